// Package concurrency turns the recent job arrival rate into a bounded
// concurrency level and enforces it with a resizable admission gate.
package concurrency

import (
	"sync"
	"time"
)

// Settings bound the controller. Zero values fall back to DefaultSettings.
type Settings struct {
	Window        time.Duration
	RateThreshold int
	MinLevel      int
	MaxLevel      int
}

// DefaultSettings: 60s window, more than 50 arrivals per window scales up,
// level kept within [1, 10].
var DefaultSettings = Settings{
	Window:        60 * time.Second,
	RateThreshold: 50,
	MinLevel:      1,
	MaxLevel:      10,
}

// Controller keeps a sliding window of arrival times. All state changes go
// through Admit.
type Controller struct {
	mu       sync.Mutex
	settings Settings
	arrivals []time.Time
	now      func() time.Time
}

type Option func(*Controller)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func NewController(settings Settings, opts ...Option) *Controller {
	if settings.Window <= 0 {
		settings.Window = DefaultSettings.Window
	}
	if settings.RateThreshold <= 0 {
		settings.RateThreshold = DefaultSettings.RateThreshold
	}
	if settings.MinLevel <= 0 {
		settings.MinLevel = DefaultSettings.MinLevel
	}
	if settings.MaxLevel <= 0 {
		settings.MaxLevel = DefaultSettings.MaxLevel
	}
	if settings.MaxLevel < settings.MinLevel {
		settings.MaxLevel = settings.MinLevel
	}

	c := &Controller{
		settings: settings,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Admit records one arrival and returns the next level: one step up while
// the windowed rate is above the threshold, one step down otherwise, always
// within [MinLevel, MaxLevel].
func (c *Controller) Admit(currentLevel int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.arrivals = append(c.arrivals, now)
	c.evict(now)

	rate := len(c.arrivals)
	next := currentLevel
	switch {
	case rate > c.settings.RateThreshold && currentLevel < c.settings.MaxLevel:
		next = currentLevel + 1
	case rate <= c.settings.RateThreshold && currentLevel > c.settings.MinLevel:
		next = currentLevel - 1
	}

	return c.clamp(next)
}

// Rate returns the arrivals currently inside the window without recording one.
func (c *Controller) Rate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evict(c.now())
	return len(c.arrivals)
}

// Settings returns the effective bounds.
func (c *Controller) Settings() Settings {
	return c.settings
}

// evict drops the prefix older than the window. Arrivals are appended in
// non-decreasing order.
func (c *Controller) evict(now time.Time) {
	cutoff := now.Add(-c.settings.Window)
	i := 0
	for i < len(c.arrivals) && c.arrivals[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		c.arrivals = c.arrivals[i:]
	}
}

func (c *Controller) clamp(level int) int {
	if level > c.settings.MaxLevel {
		return c.settings.MaxLevel
	}
	if level < c.settings.MinLevel {
		return c.settings.MinLevel
	}
	return level
}
