package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"artgrab/internal/logging"
	"artgrab/internal/services"
)

// ErrTaskActive is returned when a second workflow tries to start while one
// is already running in this process.
var ErrTaskActive = errors.New("another task is already running")

// Task describes the workflow currently holding the registry slot.
type Task struct {
	Name      string
	SessionID string
	StartedAt time.Time
	LastBeat  time.Time
}

// SessionToucher is the slice of the queue store the heartbeat loop needs.
type SessionToucher interface {
	TouchSession(ctx context.Context, id string) error
}

// Registry tracks the single running workflow. One logical worker runs at a
// time; the registry rejects overlap and drives the session heartbeat so an
// abandoned run is distinguishable from a live one.
type Registry struct {
	mu      sync.Mutex
	current *Task

	store    SessionToucher
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
}

// NewRegistry builds a registry that heartbeats sessions through store at
// the given interval. store may be nil for workflows without a session.
func NewRegistry(store SessionToucher, logger *slog.Logger, interval time.Duration) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Registry{
		store:    store,
		logger:   logging.WithComponent(logger, "tasks"),
		interval: interval,
		now:      time.Now,
	}
}

// Begin claims the task slot. The returned release function must be called
// when the workflow finishes; it stops the heartbeat loop started by Run.
func (r *Registry) Begin(name, sessionID string) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		return nil, ErrTaskActive
	}
	now := r.now()
	r.current = &Task{Name: name, SessionID: sessionID, StartedAt: now, LastBeat: now}

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.current = nil
	}, nil
}

// Current returns a copy of the running task, if any.
func (r *Registry) Current() (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return Task{}, false
	}
	return *r.current, true
}

// Run claims the slot, starts the session heartbeat, and executes op. The
// context handed to op carries the workflow name and session identifier so
// downstream loggers can pick them up. The slot is released and the
// heartbeat stopped when op returns.
func (r *Registry) Run(ctx context.Context, name, sessionID string, op func(ctx context.Context) error) error {
	release, err := r.Begin(name, sessionID)
	if err != nil {
		return err
	}
	defer release()

	heartbeatCtx, stop := context.WithCancel(ctx)
	defer stop()
	if sessionID != "" && r.store != nil {
		go r.heartbeatLoop(heartbeatCtx, sessionID)
	}

	ctx = services.WithWorkflow(ctx, name)
	ctx = services.WithSessionID(ctx, sessionID)
	return op(ctx)
}

func (r *Registry) heartbeatLoop(ctx context.Context, sessionID string) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.beat(ctx, sessionID)
		}
	}
}

func (r *Registry) beat(ctx context.Context, sessionID string) {
	if err := r.store.TouchSession(ctx, sessionID); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		r.logger.Warn("session heartbeat failed",
			slog.String("session_id", sessionID),
			logging.Error(err))
		return
	}

	r.mu.Lock()
	if r.current != nil && r.current.SessionID == sessionID {
		r.current.LastBeat = r.now()
	}
	r.mu.Unlock()
}
