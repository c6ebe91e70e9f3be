package openairoute

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inference-gateway/internal/common/errors"
)

// ==========================
// Test Helper Functions
// ==========================

func chunksOf(parts ...string) func(func([]byte) bool) {
	return func(yield func([]byte) bool) {
		for _, p := range parts {
			if !yield([]byte(p)) {
				return
			}
		}
	}
}

func rawChunks(parts ...[]byte) func(func([]byte) bool) {
	return func(yield func([]byte) bool) {
		for _, p := range parts {
			if !yield(p) {
				return
			}
		}
	}
}

func frameTexts(frames []Frame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Text())
	}
	return out
}

// ==========================
// Line Framing Tests
// ==========================

func TestReframer_Reframe(t *testing.T) {
	tests := []struct {
		name        string
		stripPrefix bool
		chunks      []string
		expected    []string
	}{
		{
			name:        "prefix stripped and sentinel suppressed",
			stripPrefix: true,
			chunks:      []string{"data: A\n", "data: B\n", "data: [DONE]\n"},
			expected:    []string{"A", "B"},
		},
		{
			name:        "prefix kept",
			stripPrefix: false,
			chunks:      []string{"data: A\n", "data: B\n", "data: [DONE]\n"},
			expected:    []string{"data: A", "data: B"},
		},
		{
			name:        "line split across chunks",
			stripPrefix: true,
			chunks:      []string{"data: hel", "lo wor", "ld\n"},
			expected:    []string{"hello world"},
		},
		{
			name:        "several lines in one chunk",
			stripPrefix: true,
			chunks:      []string{"data: 1\ndata: 2\ndata: 3\n"},
			expected:    []string{"1", "2", "3"},
		},
		{
			name:        "blank and whitespace lines skipped",
			stripPrefix: true,
			chunks:      []string{"\n\n   \n", "data: x\r\n", "\t\n"},
			expected:    []string{"x"},
		},
		{
			name:        "surrounding whitespace trimmed before prefix check",
			stripPrefix: true,
			chunks:      []string{"   data: padded  \n"},
			expected:    []string{"padded"},
		},
		{
			name:        "lines without prefix pass through",
			stripPrefix: true,
			chunks:      []string{": keep-alive\n", "event: ping\n"},
			expected:    []string{": keep-alive", "event: ping"},
		},
		{
			name:        "content after sentinel still emitted",
			stripPrefix: true,
			chunks:      []string{"data: [DONE]\n", "data: late\n"},
			expected:    []string{"late"},
		},
		{
			name:        "unterminated tail discarded",
			stripPrefix: true,
			chunks:      []string{"data: A\ndata: B"},
			expected:    []string{"A"},
		},
		{
			name:        "empty input",
			stripPrefix: true,
			chunks:      nil,
			expected:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReframer(tt.stripPrefix)
			frames := slices.Collect(r.Reframe(chunksOf(tt.chunks...)))
			assert.Equal(t, tt.expected, frameTexts(frames))
			for _, f := range frames {
				assert.Equal(t, FrameLine, f.Kind)
			}
		})
	}
}

func TestReframer_SawDone(t *testing.T) {
	r := NewReframer(true)
	r.Feed([]byte("data: A\n"))
	assert.False(t, r.SawDone())

	r.Feed([]byte("data: [DONE]\n"))
	assert.True(t, r.SawDone())
}

func TestReframer_PendingHoldsUnterminatedText(t *testing.T) {
	r := NewReframer(true)
	frames := r.Feed([]byte("data: A\ndata: par"))
	require.Len(t, frames, 1)
	assert.Equal(t, "data: par", r.Pending())

	frames = r.Feed([]byte("tial\n"))
	require.Len(t, frames, 1)
	assert.Equal(t, "partial", frames[0].Line)
	assert.Empty(t, r.Pending())
}

// ==========================
// UTF-8 Handling Tests
// ==========================

func TestReframer_MultiByteRuneSplitAcrossChunks(t *testing.T) {
	word := []byte("data: héllo 日本\n")
	// split inside é and inside 日
	e := len("data: h") + 1
	ja := len("data: héllo ") + 1

	r := NewReframer(true)
	frames := slices.Collect(r.Reframe(rawChunks(word[:e], word[e:ja], word[ja:])))

	require.Len(t, frames, 1)
	assert.Equal(t, "héllo 日本", frames[0].Line)
}

func TestReframer_InvalidChunkYieldsErrorAndContinues(t *testing.T) {
	r := NewReframer(true)
	frames := slices.Collect(r.Reframe(rawChunks(
		[]byte("data: A\n"),
		[]byte{'x', 0xff, '\n'},
		[]byte("data: B\n"),
	)))

	require.Len(t, frames, 3)
	assert.Equal(t, "A", frames[0].Line)

	assert.Equal(t, FrameError, frames[1].Kind)
	assert.Equal(t, "Failed to decode stream data: invalid UTF-8 sequence at byte 1", frames[1].Error)
	assert.Equal(t, errors.ErrCodeStreamDecode, frames[1].Code)

	assert.Equal(t, "B", frames[2].Line)
}

func TestReframer_InvalidChunkKeepsBufferedText(t *testing.T) {
	r := NewReframer(true)
	assert.Empty(t, r.Feed([]byte("data: par")))

	frames := r.Feed([]byte{0xc3, 0x28, '\n'})
	require.Len(t, frames, 1)
	assert.Equal(t, FrameError, frames[0].Kind)
	assert.Equal(t, "data: par", r.Pending())

	frames = r.Feed([]byte("tial\n"))
	require.Len(t, frames, 1)
	assert.Equal(t, "partial", frames[0].Line)
}

func TestReframer_StopsWhenConsumerStops(t *testing.T) {
	r := NewReframer(true)
	var got []Frame
	for f := range r.Reframe(chunksOf("data: 1\ndata: 2\n", "data: 3\n")) {
		got = append(got, f)
		break
	}
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].Line)
}

func TestSplitIncompleteRune(t *testing.T) {
	complete, rest := splitIncompleteRune([]byte("ab\xe6\x97"))
	assert.Equal(t, []byte("ab"), complete)
	assert.Equal(t, []byte("\xe6\x97"), rest)

	complete, rest = splitIncompleteRune([]byte("ab日"))
	assert.Equal(t, []byte("ab日"), complete)
	assert.Nil(t, rest)

	complete, rest = splitIncompleteRune(nil)
	assert.Empty(t, complete)
	assert.Nil(t, rest)
}
