package validation

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/rtoval/internal/results"
	"github.com/JaimeStill/rtoval/internal/sessions"
	"github.com/JaimeStill/rtoval/pkg/lifecycle"
)

var runnable = []sessions.State{
	sessions.StatePending,
	sessions.StateProcessing,
	sessions.StateUnderReview,
}

type runner struct {
	rt     *Runtime
	queue  chan uuid.UUID
	mu     sync.Mutex
	active map[uuid.UUID]struct{}
}

// New creates the validation runner. Workers start with Start.
func New(rt *Runtime) System {
	rt.Logger = rt.Logger.With("system", "validation")
	return &runner{
		rt:     rt,
		queue:  make(chan uuid.UUID, max(rt.Config.QueueSize, 1)),
		active: make(map[uuid.UUID]struct{}),
	}
}

func (r *runner) Handler() *Handler {
	return NewHandler(r, r.rt.Logger)
}

func (r *runner) Start(lc *lifecycle.Coordinator) error {
	workers := max(r.rt.Config.Workers, 1)
	r.rt.Logger.Info("starting validation runner",
		"workers", workers,
		"queue_size", cap(r.queue),
		"strategy", r.rt.Config.Strategy,
		"rpm", r.rt.Pacer.RPM(),
	)

	for i := range workers {
		lc.Go(func(ctx context.Context) {
			r.work(ctx, i)
		})
	}

	lc.OnStartup(func() {
		r.resume(lc.Context())
	})

	if interval := r.rt.Config.SweepIntervalDuration(); interval > 0 {
		lc.Go(func(ctx context.Context) {
			r.sweepLoop(ctx, interval)
		})
	}
	return nil
}

func (r *runner) Validate(ctx context.Context, sessionID uuid.UUID) (*sessions.Session, error) {
	s, err := r.rt.Sessions.Find(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(runnable, s.State) {
		return nil, fmt.Errorf("%w: %s", ErrNotRunnable, s.State)
	}
	if err := r.enqueue(sessionID); err != nil {
		return nil, err
	}
	return s, nil
}

// Revalidate holds the session's claim for the duration of the call, so the
// session cannot be queued while one of its results is being replaced.
func (r *runner) Revalidate(ctx context.Context, cmd RevalidateCommand) (*results.Result, error) {
	if !r.claim(cmd.SessionID) {
		return nil, ErrSessionBusy
	}
	defer r.release(cmd.SessionID)
	return Revalidate(ctx, r.rt, cmd)
}

func (r *runner) Active(sessionID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[sessionID]
	return ok
}

// enqueue claims the session and puts it on the queue. A session is claimed
// from enqueue until its run returns.
func (r *runner) enqueue(sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[sessionID]; ok {
		return ErrSessionBusy
	}

	select {
	case r.queue <- sessionID:
		r.active[sessionID] = struct{}{}
		r.rt.Logger.Info("session queued", "session_id", sessionID, "depth", len(r.queue))
		return nil
	default:
		return ErrQueueFull
	}
}

func (r *runner) claim(sessionID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[sessionID]; ok {
		return false
	}
	r.active[sessionID] = struct{}{}
	return true
}

func (r *runner) release(sessionID uuid.UUID) {
	r.mu.Lock()
	delete(r.active, sessionID)
	r.mu.Unlock()
}

func (r *runner) work(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-r.queue:
			r.execute(ctx, worker, id)
		}
	}
}

func (r *runner) execute(ctx context.Context, worker int, id uuid.UUID) {
	defer r.release(id)

	start := time.Now()
	out, err := Execute(ctx, r.rt, id)
	if err != nil {
		r.rt.Logger.Warn("validation run ended with error",
			"worker", worker,
			"session_id", id,
			"duration", time.Since(start),
			"error", err,
		)
		return
	}

	r.rt.Logger.Info("validation run complete",
		"worker", worker,
		"session_id", id,
		"state", out.State,
		"written", out.Written,
		"failed", out.Failed,
		"skipped", out.Skipped,
		"duration", time.Since(start),
	)
}

// resume re-queues sessions a previous process left mid-run.
func (r *runner) resume(ctx context.Context) {
	stalled, err := r.rt.Sessions.ListByState(ctx, sessions.StateProcessing, sessions.StateUnderReview)
	if err != nil {
		r.rt.Logger.Error("list sessions to resume", "error", err)
		return
	}

	for _, s := range stalled {
		if err := r.enqueue(s.ID); err != nil {
			r.rt.Logger.Warn("session not resumed", "session_id", s.ID, "error", err)
		}
	}
	if len(stalled) > 0 {
		r.rt.Logger.Info("sessions resumed", "count", len(stalled))
	}
}

func (r *runner) sweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.sweep(ctx); err != nil {
				r.rt.Logger.Error("expiry sweep", "error", err)
			} else if n > 0 {
				r.rt.Logger.Info("expiry sweep failed sessions", "count", n)
			}
		}
	}
}

// sweep moves idle under_review sessions holding an expired document handle
// to error and returns how many it moved. Running sessions check expiry
// themselves before every call.
func (r *runner) sweep(ctx context.Context) (int, error) {
	reviewing, err := r.rt.Sessions.ListByState(ctx, sessions.StateUnderReview)
	if err != nil {
		return 0, err
	}

	now := r.rt.now()
	failed := 0
	for _, s := range reviewing {
		if r.Active(s.ID) {
			continue
		}

		docs, err := r.rt.Documents.ListBySession(ctx, s.ID)
		if err != nil {
			return failed, err
		}

		for _, d := range docs {
			if !d.HandleExpired(now) {
				continue
			}
			reason := fmt.Sprintf("%s: %s expired at %s", ErrHandleExpired, d.FileName, d.ExpiresAt.UTC().Format(time.RFC3339))
			if _, err := r.rt.Sessions.Fail(ctx, s.ID, reason); err != nil {
				r.rt.Logger.Warn("sweep could not fail session", "session_id", s.ID, "error", err)
			} else {
				failed++
			}
			break
		}
	}
	return failed, nil
}
