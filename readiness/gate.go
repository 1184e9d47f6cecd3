package readiness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultPollInterval is the check interval used by Poll.
const DefaultPollInterval = 25 * time.Millisecond

var (
	// ErrUnavailable is the failure cause when polling runs out of attempts.
	ErrUnavailable = errors.New("resource unavailable")
	// ErrFailed is returned by Wait on a failed gate.
	ErrFailed = errors.New("readiness failed")
)

// Status is the state of a Gate.
type Status int

const (
	Pending Status = iota
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options configures a Gate.
type Options struct {
	// Name identifies the gated resource in logs.
	Name string

	// PollInterval overrides DefaultPollInterval.
	PollInterval time.Duration

	// MaxAttempts bounds Poll. 0 polls until the context ends.
	MaxAttempts int

	Logger *slog.Logger
}

// Gate is safe for concurrent use.
type Gate struct {
	name        string
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger

	mu     sync.Mutex
	status Status
	err    error
	queue  []func()
	done   chan struct{}
}

// New creates a pending gate.
func New(opts ...Options) *Gate {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	interval := o.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := o.Name
	if name == "" {
		name = "resource"
	}
	return &Gate{
		name:        name,
		interval:    interval,
		maxAttempts: max(o.MaxAttempts, 0),
		logger:      logger,
		done:        make(chan struct{}),
	}
}

// Status returns the current status.
func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Err returns the failure cause of a failed gate.
func (g *Gate) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// Done is closed when the gate leaves Pending.
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

// Defer queues action until the gate is ready and reports whether it was
// queued. It returns false when the gate is already ready or failed; the
// caller decides whether to run the action itself.
func (g *Gate) Defer(action func()) bool {
	if action == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != Pending {
		return false
	}
	g.queue = append(g.queue, action)
	return true
}

// Pending returns the number of queued actions.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

// MarkReady opens the gate and runs the queued actions in order. It returns
// false when the gate had already left Pending.
func (g *Gate) MarkReady() bool {
	g.mu.Lock()
	if g.status != Pending {
		g.mu.Unlock()
		return false
	}
	g.status = Ready
	queue := g.queue
	g.queue = nil
	close(g.done)
	g.mu.Unlock()

	g.logger.Debug("ready", "resource", g.name, "deferred", len(queue))
	for _, action := range queue {
		action()
	}
	return true
}

// Fail closes the gate for good and drops queued actions. It returns false
// when the gate had already left Pending.
func (g *Gate) Fail(err error) bool {
	if err == nil {
		err = ErrUnavailable
	}

	g.mu.Lock()
	if g.status != Pending {
		g.mu.Unlock()
		return false
	}
	g.status = Failed
	g.err = err
	dropped := len(g.queue)
	g.queue = nil
	close(g.done)
	g.mu.Unlock()

	g.logger.Error("unavailable", "resource", g.name, "error", err, "dropped", dropped)
	return true
}

// Wait blocks until the gate leaves Pending or ctx ends.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := g.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFailed, g.name, err)
	}
	return nil
}

// Poll calls check every interval until it returns true, then marks the gate
// ready. With MaxAttempts set, running out of attempts fails the gate with
// ErrUnavailable. Poll returns early when the gate leaves Pending by other
// means or ctx ends; a cancelled context leaves the gate pending.
func (g *Gate) Poll(ctx context.Context, check func() bool) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		if g.Status() != Pending {
			return g.Wait(ctx)
		}
		if check() {
			g.MarkReady()
			return g.Wait(ctx)
		}
		if g.maxAttempts > 0 && attempt >= g.maxAttempts {
			g.Fail(fmt.Errorf("%w after %d attempts", ErrUnavailable, attempt))
			return g.Wait(ctx)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.done:
		case <-ticker.C:
		}
	}
}
