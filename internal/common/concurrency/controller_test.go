package concurrency

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestController_AdmitWithinWindowCountsEveryCall(t *testing.T) {
	clock := newFakeClock()
	c := NewController(DefaultSettings, WithClock(clock.Now))

	before := c.Rate()
	level := c.Admit(5)
	level = c.Admit(level)

	assert.Equal(t, before+2, c.Rate())
	assert.Equal(t, 3, level)
}

func TestController_StaysWithinBounds(t *testing.T) {
	clock := newFakeClock()
	c := NewController(DefaultSettings, WithClock(clock.Now))

	level := 1
	for i := 0; i < 500; i++ {
		level = c.Admit(level)
		require.GreaterOrEqual(t, level, 1)
		require.LessOrEqual(t, level, 10)
	}
}

func TestController_HighRateRaisesMonotonically(t *testing.T) {
	clock := newFakeClock()
	c := NewController(DefaultSettings, WithClock(clock.Now))

	// 60 arrivals per minute, one per second
	level := 1
	for i := 0; i < 51; i++ {
		level = c.Admit(level)
		clock.Advance(time.Second)
	}
	require.Greater(t, c.Rate(), 50)

	prev := level
	for i := 0; i < 20; i++ {
		clock.Advance(time.Second)
		level = c.Admit(level)
		assert.True(t, level == prev+1 || level == 10, "level %d after %d", level, prev)
		assert.GreaterOrEqual(t, level, prev)
		prev = level
	}
	assert.Equal(t, 10, level)
}

func TestController_LowRateLowersMonotonically(t *testing.T) {
	clock := newFakeClock()
	c := NewController(DefaultSettings, WithClock(clock.Now))

	level := 10
	prev := level
	for i := 0; i < 20; i++ {
		clock.Advance(2 * time.Second) // 30 per minute
		level = c.Admit(level)
		assert.LessOrEqual(t, level, prev)
		assert.GreaterOrEqual(t, prev-level, 0)
		assert.LessOrEqual(t, prev-level, 1)
		prev = level
	}
	assert.Equal(t, 1, level)
}

func TestController_ThresholdIsExclusive(t *testing.T) {
	clock := newFakeClock()
	c := NewController(DefaultSettings, WithClock(clock.Now))

	for i := 0; i < 49; i++ {
		c.Admit(1)
	}
	// 50th arrival: rate == 50 is not above the threshold
	assert.Equal(t, 4, c.Admit(5))
	// 51st arrival scales up
	assert.Equal(t, 6, c.Admit(5))
}

func TestController_EvictsOlderThanWindow(t *testing.T) {
	clock := newFakeClock()
	c := NewController(DefaultSettings, WithClock(clock.Now))

	for i := 0; i < 60; i++ {
		c.Admit(1)
	}
	assert.Equal(t, 60, c.Rate())

	clock.Advance(60 * time.Second)
	assert.Equal(t, 60, c.Rate(), "arrivals exactly one window old are kept")

	clock.Advance(time.Nanosecond)
	assert.Equal(t, 0, c.Rate())
	assert.Equal(t, 4, c.Admit(5))
	assert.Equal(t, 1, c.Rate())
}

func TestController_ClampsOutOfRangeInput(t *testing.T) {
	c := NewController(DefaultSettings, WithClock(newFakeClock().Now))

	assert.Equal(t, 10, c.Admit(42))
	assert.Equal(t, 1, c.Admit(-3))
}

func TestController_ConcurrentAdmitsAreSerialized(t *testing.T) {
	c := NewController(DefaultSettings, WithClock(newFakeClock().Now))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			level := c.Admit(5)
			assert.GreaterOrEqual(t, level, 1)
			assert.LessOrEqual(t, level, 10)
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, c.Rate())
}

func TestNewController_FillsZeroSettings(t *testing.T) {
	c := NewController(Settings{})
	assert.Equal(t, DefaultSettings, c.Settings())
}
