// Package schedule runs a function on a fixed interval until halted.
package schedule

import (
	"context"
	"log"
	"sync"
	"time"
)

type Task func(ctx context.Context) error

// Runner runs one Task on an interval, plus on demand through Trigger.
// Errors are logged once when a streak of failures starts and once when it
// ends; they never stop the loop.
type Runner struct {
	name     string
	interval time.Duration
	task     Task

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	trigger chan struct{}
}

func NewRunner(name string, interval time.Duration, task Task) *Runner {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Runner{
		name:     name,
		interval: interval,
		task:     task,
	}
}

// Start launches the loop. The first run comes one interval later, or on
// Trigger. Calling Start on a running Runner does nothing.
func (r *Runner) Start(parent context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.trigger = make(chan struct{}, 1)
	go r.loop(ctx, r.done, r.trigger)
}

func (r *Runner) loop(ctx context.Context, done chan struct{}, trigger chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	failing := false
	run := func() {
		err := r.task(ctx)
		if ctx.Err() != nil {
			return
		}
		switch {
		case err != nil && !failing:
			failing = true
			log.Printf("[schedule] WARN: %s failed: %v", r.name, err)
		case err == nil && failing:
			failing = false
			log.Printf("[schedule] %s recovered", r.name)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		case <-trigger:
			run()
		}
	}
}

// Trigger asks for an out-of-band run. It never blocks; a pending trigger
// absorbs further ones.
func (r *Runner) Trigger() {
	r.mu.Lock()
	trigger := r.trigger
	running := r.cancel != nil
	r.mu.Unlock()
	if !running {
		return
	}
	select {
	case trigger <- struct{}{}:
	default:
	}
}

// Halt cancels the loop without waiting for it. Safe to call from inside
// the task itself.
func (r *Runner) Halt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// Stop cancels the loop and waits for the current run to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	done := r.done
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}
