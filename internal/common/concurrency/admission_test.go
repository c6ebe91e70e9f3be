package concurrency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inference-gateway/internal/common/logger"
)

type recordingStats struct {
	mu     sync.Mutex
	events []StatsEvent
	err    error
}

func (r *recordingStats) Record(_ context.Context, ev StatsEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func TestAdmission_EnterResizesGate(t *testing.T) {
	clock := newFakeClock()
	stats := &recordingStats{}
	a := NewAdmission(NewController(DefaultSettings, WithClock(clock.Now)), 5, stats, logger.NewTestLogger(t))

	release, err := a.Enter(context.Background(), "/v1/models")
	require.NoError(t, err)
	defer release()

	assert.Equal(t, 4, a.Level())
	assert.Equal(t, 1, a.InFlight())
	require.Len(t, stats.events, 1)
	assert.Equal(t, 4, stats.events[0].Level)
	assert.Equal(t, 1, stats.events[0].Rate)
	assert.Equal(t, "/v1/models", stats.events[0].Route)
}

func TestAdmission_StatsFailureDoesNotBlock(t *testing.T) {
	stats := &recordingStats{err: errors.New("redis down")}
	a := NewAdmission(NewController(DefaultSettings), 1, stats, logger.NewNoOpLogger())

	release, err := a.Enter(context.Background(), "/v1/model")
	require.NoError(t, err)
	release()
	assert.Equal(t, 0, a.InFlight())
}

func TestAdmission_NilStats(t *testing.T) {
	a := NewAdmission(NewController(DefaultSettings), 1, nil, logger.NewNoOpLogger())

	release, err := a.Enter(context.Background(), "/v1/model")
	require.NoError(t, err)
	release()
}

func TestAdmission_CancelledWhileFull(t *testing.T) {
	a := NewAdmission(NewController(DefaultSettings), 1, nil, logger.NewNoOpLogger())

	release, err := a.Enter(context.Background(), "/v1/model")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Enter(ctx, "/v1/model")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdmission_ParallelEntersStepOnceEach(t *testing.T) {
	const jobs = 200
	clock := newFakeClock()
	settings := Settings{Window: time.Minute, RateThreshold: 1, MinLevel: 1, MaxLevel: jobs + 1}
	a := NewAdmission(NewController(settings, WithClock(clock.Now)), 1, nil, logger.NewNoOpLogger())

	start := make(chan struct{})
	releases := make(chan func(), jobs)
	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			release, err := a.Enter(context.Background(), "/v1/models")
			if err == nil {
				releases <- release
			}
		}()
	}
	close(start)
	wg.Wait()
	close(releases)

	held := 0
	for release := range releases {
		release()
		held++
	}
	require.Equal(t, jobs, held)

	// rate 1 steps down (clamped), every later arrival steps up by exactly one
	assert.Equal(t, jobs, a.Level())
	assert.Equal(t, 0, a.InFlight())
}
