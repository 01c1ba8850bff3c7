// Package startup brings the service's external dependencies up in order and
// tears them down in reverse. Each dependency declares what it needs running
// first; the runner resolves the order and retries the whole sequence with a
// Fibonacci backoff, which covers the usual "Postgres is still booting"
// window in container environments.
package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
)

// Dependency is one startable piece of infrastructure.
type Dependency interface {
	Name() string
	DependsOn() []string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type status int

const (
	statusPending status = iota
	statusStarted
	statusStopped
	statusFailed
)

// Runner starts registered dependencies respecting their declared order.
type Runner struct {
	logger       ectologger.Logger
	dependencies map[string]Dependency
	order        []string
	statuses     map[string]status
	maxAttempts  int
}

// NewRunner creates a startup runner that gives the full sequence
// maxAttempts tries before giving up.
func NewRunner(logger ectologger.Logger, maxAttempts int) *Runner {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Runner{
		logger:       logger,
		dependencies: make(map[string]Dependency),
		statuses:     make(map[string]status),
		maxAttempts:  maxAttempts,
	}
}

// Add registers a dependency. Registration order is the tiebreak when two
// dependencies do not depend on each other.
func (r *Runner) Add(dep Dependency) {
	if _, ok := r.dependencies[dep.Name()]; !ok {
		r.order = append(r.order, dep.Name())
	}
	r.dependencies[dep.Name()] = dep
}

// Start brings every dependency up. On failure the attempt counter advances
// and the sequence is retried from wherever it stopped; already started
// dependencies are not restarted.
func (r *Runner) Start(ctx context.Context) error {
	var lastErr error

	a, b := 1, 1
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		r.logger.WithContext(ctx).WithField("attempt", attempt).Info("Starting dependencies")

		lastErr = nil
		for _, name := range r.order {
			if err := r.start(ctx, r.dependencies[name]); err != nil {
				lastErr = err
				break
			}
		}
		if lastErr == nil {
			return nil
		}
		if attempt == r.maxAttempts {
			break
		}

		wait := time.Duration(a) * time.Second
		a, b = b, a+b
		r.logger.WithContext(ctx).WithError(lastErr).Infof("Startup attempt %d failed, retrying in %s", attempt, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("startup failed after %d attempts: %w", r.maxAttempts, lastErr)
}

func (r *Runner) start(ctx context.Context, dep Dependency) error {
	if r.statuses[dep.Name()] == statusStarted {
		return nil
	}

	for _, name := range dep.DependsOn() {
		required, ok := r.dependencies[name]
		if !ok {
			return fmt.Errorf("dependency %q requires unknown dependency %q", dep.Name(), name)
		}
		if r.statuses[name] != statusStarted {
			if err := r.start(ctx, required); err != nil {
				return err
			}
		}
	}

	r.logger.WithContext(ctx).WithField("dependency", dep.Name()).Info("Starting dependency")
	r.statuses[dep.Name()] = statusPending
	if err := dep.Start(ctx); err != nil {
		r.statuses[dep.Name()] = statusFailed
		r.logger.WithContext(ctx).WithError(err).WithField("dependency", dep.Name()).Error("Dependency failed to start")
		return fmt.Errorf("failed to start %q: %w", dep.Name(), err)
	}
	r.statuses[dep.Name()] = statusStarted
	return nil
}

// Stop tears the started dependencies down in reverse registration order.
// Teardown continues past individual failures so one stuck dependency does
// not leak the rest; the first error is reported.
func (r *Runner) Stop(ctx context.Context) error {
	var firstErr error
	for i := len(r.order) - 1; i >= 0; i-- {
		name := r.order[i]
		if r.statuses[name] != statusStarted {
			continue
		}
		dep := r.dependencies[name]
		r.logger.WithContext(ctx).WithField("dependency", name).Info("Stopping dependency")
		if err := dep.Stop(ctx); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("dependency", name).Error("Dependency failed to stop")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		r.statuses[name] = statusStopped
	}
	return firstErr
}
