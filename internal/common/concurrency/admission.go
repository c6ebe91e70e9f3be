package concurrency

import (
	"context"
	"sync"
	"time"

	"inference-gateway/internal/common/logger"
	"inference-gateway/internal/common/metrics"
)

// Admission runs the controller once per job, resizes the gate to the new
// level and then waits for a slot.
type Admission struct {
	// mu serializes read, Admit and Resize so no level step is lost.
	mu         sync.Mutex
	controller *Controller
	gate       *Gate
	stats      StatsStore
	logger     logger.Logger
}

// NewAdmission starts the gate at initialLevel. stats may be nil.
func NewAdmission(controller *Controller, initialLevel int, stats StatsStore, log logger.Logger) *Admission {
	metrics.ConcurrencyLevel.Set(float64(initialLevel))
	return &Admission{
		controller: controller,
		gate:       NewGate(initialLevel),
		stats:      stats,
		logger:     log,
	}
}

// Enter records the arrival and blocks until the job may run. The caller
// must invoke the returned release when the job's frames are drained.
func (a *Admission) Enter(ctx context.Context, route string) (func(), error) {
	current, next, rate := a.step()

	if next != current {
		a.logger.Info("Concurrency level adjusted", map[string]interface{}{
			"from": current,
			"to":   next,
			"rate": rate,
		})
	}
	metrics.ConcurrencyLevel.Set(float64(next))
	metrics.ArrivalRate.Set(float64(rate))

	if a.stats != nil {
		ev := StatsEvent{At: time.Now(), Rate: rate, Level: next, Route: route}
		if err := a.stats.Record(ctx, ev); err != nil {
			a.logger.Warn("Failed to record admission stats", map[string]interface{}{
				"error": err,
			})
		}
	}

	return a.gate.Acquire(ctx)
}

func (a *Admission) step() (current, next, rate int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	current = a.gate.Limit()
	next = a.controller.Admit(current)
	rate = a.controller.Rate()
	if next != current {
		a.gate.Resize(next)
	}
	return current, next, rate
}

// Level returns the gate's current capacity.
func (a *Admission) Level() int {
	return a.gate.Limit()
}

// InFlight returns the number of held slots.
func (a *Admission) InFlight() int {
	return a.gate.InUse()
}
