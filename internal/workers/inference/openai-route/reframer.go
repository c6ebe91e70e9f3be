// internal/workers/inference/openai-route/reframer.go
package openairoute

import (
	"bytes"
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"

	"inference-gateway/internal/common/errors"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// Reframer turns raw stream chunks into trimmed, non-empty lines. It holds
// the text after the last newline until a later chunk terminates it.
type Reframer struct {
	stripPrefix bool
	buf         []byte
	// tail of the previous chunk that ends inside a multi-byte rune
	carry   []byte
	sawDone bool
}

func NewReframer(stripPrefix bool) *Reframer {
	return &Reframer{stripPrefix: stripPrefix}
}

// Feed consumes one chunk. A chunk that is not valid UTF-8 produces a single
// error frame and leaves the buffer untouched.
func (r *Reframer) Feed(chunk []byte) []Frame {
	data := chunk
	if len(r.carry) > 0 {
		data = append(append([]byte(nil), r.carry...), chunk...)
	}

	complete, rest := splitIncompleteRune(data)
	if pos := invalidUTF8At(complete); pos >= 0 {
		r.carry = nil
		return []Frame{FailureFrame(errors.NewStreamDecodeError(fmt.Sprintf("invalid UTF-8 sequence at byte %d", pos)))}
	}
	r.carry = append(r.carry[:0], rest...)
	r.buf = append(r.buf, complete...)

	var frames []Frame
	for {
		idx := bytes.IndexByte(r.buf, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimSpace(string(r.buf[:idx]))
		r.buf = r.buf[idx+1:]

		if line == "" {
			continue
		}
		content := strings.TrimPrefix(line, dataPrefix)
		if content == doneSentinel {
			r.sawDone = true
			continue
		}
		if r.stripPrefix {
			frames = append(frames, LineFrame(content))
		} else {
			frames = append(frames, LineFrame(line))
		}
	}

	if len(r.buf) == 0 {
		r.buf = nil
	}
	return frames
}

// Reframe drives Feed over a chunk sequence. Text left without a trailing
// newline when the input ends is dropped.
func (r *Reframer) Reframe(chunks iter.Seq[[]byte]) iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		for chunk := range chunks {
			for _, f := range r.Feed(chunk) {
				if !yield(f) {
					return
				}
			}
		}
	}
}

// SawDone reports whether the [DONE] sentinel has been consumed.
func (r *Reframer) SawDone() bool {
	return r.sawDone
}

// Pending returns the unterminated text currently buffered.
func (r *Reframer) Pending() string {
	return string(r.buf)
}

// splitIncompleteRune separates a trailing partial UTF-8 sequence.
func splitIncompleteRune(b []byte) (complete, rest []byte) {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if !utf8.FullRune(b[i:]) {
			return b[:i], b[i:]
		}
		break
	}
	return b, nil
}

func invalidUTF8At(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return -1
}
