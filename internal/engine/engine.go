package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/anchorsync/internal/anchor"
	"github.com/roach88/anchorsync/internal/anchorstore"
	"github.com/roach88/anchorsync/internal/pose"
	"github.com/roach88/anchorsync/internal/reanchor"
	"github.com/roach88/anchorsync/internal/registry"
	"github.com/roach88/anchorsync/internal/tracking"
)

// Tracker is the tracking subsystem as the engine drives it.
// *tracking.Session satisfies it.
type Tracker interface {
	registry.Remover
	AddAnchor(p pose.Pose) anchor.ID
	Tick() tracking.Changes
}

// Opener produces the durable store client. It runs off the loop goroutine
// and may block for as long as the store takes to become ready.
type Opener func(ctx context.Context) (anchorstore.Client, error)

// Engine is the single-writer event loop around a registry.
//
// Thread-safety model:
//   - Deliver, AwaitStore and every command method: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//
// Commands enqueue a closure and block until Run has executed it, so a
// command observes every batch delivered before it.
type Engine struct {
	reg      *registry.Registry
	tracker  Tracker
	reanchor *reanchor.Controller
	clock    *Clock
	queue    *eventQueue
	logger   *slog.Logger

	awaiting atomic.Bool
	stopped  chan struct{}
	stopOnce sync.Once
}

type config struct {
	clock      *Clock
	logger     *slog.Logger
	visualizer registry.Visualizer
	worldName  string
}

// Option configures an Engine.
type Option func(*config)

// WithClock sets the logical clock that stamps notifications.
func WithClock(c *Clock) Option {
	return func(cfg *config) { cfg.clock = c }
}

// WithLogger sets the logger for the engine and everything it owns.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}

// WithVisualizer sets the notification sink.
func WithVisualizer(v registry.Visualizer) Option {
	return func(cfg *config) { cfg.visualizer = v }
}

// WithWorldAnchorName overrides the reserved world anchor name.
func WithWorldAnchorName(name string) Option {
	return func(cfg *config) { cfg.worldName = name }
}

// New creates an Engine driving tracker. Finished manipulations are handed to
// locker.
func New(tracker Tracker, locker reanchor.WorldLocker, opts ...Option) *Engine {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.clock == nil {
		cfg.clock = NewClock()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	regOpts := []registry.Option{
		registry.WithRemover(tracker),
		registry.WithSequencer(cfg.clock),
		registry.WithLogger(cfg.logger),
	}
	if cfg.visualizer != nil {
		regOpts = append(regOpts, registry.WithVisualizer(cfg.visualizer))
	}
	if cfg.worldName != "" {
		regOpts = append(regOpts, registry.WithWorldAnchorName(cfg.worldName))
	}
	reg := registry.New(regOpts...)

	return &Engine{
		reg:      reg,
		tracker:  tracker,
		reanchor: reanchor.NewController(reg, locker, cfg.logger),
		clock:    cfg.clock,
		queue:    newEventQueue(),
		logger:   cfg.logger,
		stopped:  make(chan struct{}),
	}
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// QueueLen returns the number of events waiting for the loop.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Deliver hands one tracking batch to the loop without waiting for it to be
// processed. Returns false once the engine has stopped.
func (e *Engine) Deliver(changes tracking.Changes) bool {
	return e.queue.Enqueue(Event{Type: EventTypeChanges, Changes: &changes})
}

// AwaitStore starts the one store load of this session. The opener runs on
// its own goroutine; its result is applied on the loop when it returns.
//
// If the engine stops first, the result is discarded and the client is
// closed when it implements io.Closer.
func (e *Engine) AwaitStore(ctx context.Context, open Opener) error {
	if !e.awaiting.CompareAndSwap(false, true) {
		return ErrAlreadyAwaiting
	}
	begin := Event{Type: EventTypeCommand, Command: func(context.Context) {
		if err := e.reg.BeginAwait(); err != nil {
			e.logger.Warn("begin await rejected", "error", err)
		}
	}}
	if !e.queue.Enqueue(begin) {
		return ErrStopped
	}

	go func() {
		client, err := open(ctx)
		ev := Event{Type: EventTypeStoreReady, Store: &StoreResult{Client: client, Err: err}}
		if !e.queue.Enqueue(ev) {
			e.logger.Debug("store ready after engine stopped; discarded")
			e.release(ev.Store)
		}
	}()
	return nil
}

// StoreReady delivers an already-open store client and waits until the loop
// has issued its load requests. It counts as the session's one store load.
func (e *Engine) StoreReady(ctx context.Context, client anchorstore.Client) error {
	if !e.awaiting.CompareAndSwap(false, true) {
		return ErrAlreadyAwaiting
	}
	return e.do(ctx, func(ctx context.Context) error {
		return e.applyStore(ctx, &StoreResult{Client: client})
	})
}

// Run processes events until ctx is cancelled or Stop is called.
//
// On exit the registry is closed, so pending requests and records are
// discarded, and events still queued are dropped.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting")

	for {
		if err := ctx.Err(); err != nil {
			e.shutdown("context cancelled")
			return err
		}
		if e.queue.Closed() {
			e.shutdown("stopped")
			return nil
		}

		event, ok := e.queue.TryDequeue()
		if ok {
			e.processEvent(ctx, event)
			continue
		}

		// The signal channel closes with the queue, so a Stop wakes this
		// select and the checks above end the loop.
		select {
		case <-ctx.Done():
		case <-e.queue.Wait():
		}
	}
}

// Stop asks Run to return. Safe to call more than once.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Done is closed once Run has torn the engine down.
func (e *Engine) Done() <-chan struct{} {
	return e.stopped
}

func (e *Engine) shutdown(reason string) {
	e.queue.Close()
	e.reg.Close()
	for _, ev := range e.queue.Drain() {
		if ev.Type == EventTypeStoreReady {
			e.release(ev.Store)
		}
	}
	e.stopOnce.Do(func() { close(e.stopped) })
	e.logger.Info("engine stopped", "reason", reason)
}

func (e *Engine) release(res *StoreResult) {
	if res == nil || res.Client == nil {
		return
	}
	if c, ok := res.Client.(io.Closer); ok {
		if err := c.Close(); err != nil {
			e.logger.Warn("closing abandoned store client", "error", err)
		}
	}
}

func (e *Engine) processEvent(ctx context.Context, event Event) {
	switch event.Type {
	case EventTypeChanges:
		e.applyChanges(*event.Changes)
	case EventTypeStoreReady:
		if err := e.applyStore(ctx, event.Store); err != nil {
			e.logger.Debug("store ready processed", "error", err)
		}
	case EventTypeCommand:
		event.Command(ctx)
	default:
		e.logger.Error("unknown event type", "type", event.Type)
	}
}

// applyChanges processes a batch list by list: added, then updated, then
// removed.
func (e *Engine) applyChanges(c tracking.Changes) {
	for _, a := range c.Added {
		e.reg.OnAdded(a.ID, a.Pose, a.TrackingState)
	}
	for _, u := range c.Updated {
		_ = e.reg.OnUpdated(u.ID, u.Pose, u.TrackingState)
	}
	for _, id := range c.Removed {
		_ = e.reg.OnRemoved(id)
	}
}

func (e *Engine) applyStore(ctx context.Context, res *StoreResult) error {
	if res.Err != nil {
		e.reg.MarkUnavailable(res.Err)
		return fmt.Errorf("open anchor store: %w", res.Err)
	}
	return e.reg.OnStoreReady(ctx, res.Client)
}

// flush pulls the tracker's pending batch and applies it on the loop.
func (e *Engine) flush() tracking.Changes {
	changes := e.tracker.Tick()
	if !changes.Empty() {
		e.applyChanges(changes)
	}
	return changes
}

// do runs fn on the loop goroutine and waits for its result.
func (e *Engine) do(ctx context.Context, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	ev := Event{Type: EventTypeCommand, Command: func(ctx context.Context) {
		done <- fn(ctx)
	}}
	if !e.queue.Enqueue(ev) {
		return ErrStopped
	}

	select {
	case err := <-done:
		return err
	case <-e.stopped:
		select {
		case err := <-done:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ApplyChanges processes one tracking batch and waits until it is applied.
func (e *Engine) ApplyChanges(ctx context.Context, changes tracking.Changes) error {
	return e.do(ctx, func(context.Context) error {
		e.applyChanges(changes)
		return nil
	})
}

// Flush applies whatever the tracker has accumulated since the last tick.
func (e *Engine) Flush(ctx context.Context) (tracking.Changes, error) {
	var out tracking.Changes
	err := e.do(ctx, func(context.Context) error {
		out = e.flush()
		return nil
	})
	return out, err
}

// AddAnchor creates a fresh anchor through the tracker and applies the
// resulting batch, so the anchor is a live Untracked-New record on return.
func (e *Engine) AddAnchor(ctx context.Context, p pose.Pose) (anchor.ID, error) {
	var id anchor.ID
	err := e.do(ctx, func(context.Context) error {
		id = e.tracker.AddAnchor(p)
		e.flush()
		return nil
	})
	return id, err
}

// PersistAnchor saves the live anchor id under name.
func (e *Engine) PersistAnchor(ctx context.Context, id anchor.ID, name string) error {
	return e.do(ctx, func(ctx context.Context) error {
		return e.reg.PersistAnchor(ctx, id, name)
	})
}

// ClearAll erases the durable store and unnames every live record.
func (e *Engine) ClearAll(ctx context.Context) error {
	return e.do(ctx, func(ctx context.Context) error {
		return e.reg.ClearAll(ctx)
	})
}

// DropAllLiveAnchors removes every live anchor from tracking and the registry.
func (e *Engine) DropAllLiveAnchors(ctx context.Context) error {
	return e.do(ctx, func(context.Context) error {
		e.reg.DropAllLiveAnchors()
		e.flush()
		return nil
	})
}

// StartManipulation notes the anchor the user grabbed.
func (e *Engine) StartManipulation(ctx context.Context, id anchor.ID) error {
	return e.do(ctx, func(context.Context) error {
		e.reanchor.OnManipulationStart(id)
		return nil
	})
}

// FinishManipulation computes and applies the world-locking correction for
// the anchor released at target, given the root pose.
func (e *Engine) FinishManipulation(ctx context.Context, root, target pose.Pose, id anchor.ID) (reanchor.Correction, error) {
	var out reanchor.Correction
	err := e.do(ctx, func(context.Context) error {
		var err error
		out, err = e.reanchor.OnManipulationFinish(root, target, id)
		return err
	})
	return out, err
}

// RelocateWorldAnchor replaces every anchor with a single world anchor at p.
// Live anchors are dropped, the store is cleared, and the new anchor is
// persisted under the reserved world name.
func (e *Engine) RelocateWorldAnchor(ctx context.Context, p pose.Pose) (anchor.ID, error) {
	var id anchor.ID
	err := e.do(ctx, func(ctx context.Context) error {
		e.reg.DropAllLiveAnchors()
		e.flush()

		if err := e.reg.ClearAll(ctx); err != nil {
			return fmt.Errorf("relocate world anchor: %w", err)
		}

		id = e.tracker.AddAnchor(p)
		e.flush()

		name := e.reg.State().WorldAnchorName()
		if err := e.reg.PersistAnchor(ctx, id, name); err != nil {
			return fmt.Errorf("relocate world anchor: %w", err)
		}
		return nil
	})
	return id, err
}

// Records returns the live records in arrival order.
func (e *Engine) Records(ctx context.Context) ([]anchor.Record, error) {
	var out []anchor.Record
	err := e.do(ctx, func(context.Context) error {
		out = e.reg.Records()
		return nil
	})
	return out, err
}

// Lookup returns the live record for id.
func (e *Engine) Lookup(ctx context.Context, id anchor.ID) (anchor.Record, bool, error) {
	var (
		rec anchor.Record
		ok  bool
	)
	err := e.do(ctx, func(context.Context) error {
		rec, ok = e.reg.Lookup(id)
		return nil
	})
	return rec, ok, err
}

// Pending returns the load requests still waiting for their anchor.
func (e *Engine) Pending(ctx context.Context) ([]registry.PendingRequest, error) {
	var out []registry.PendingRequest
	err := e.do(ctx, func(context.Context) error {
		out = e.reg.Pending()
		return nil
	})
	return out, err
}

// Phase returns the registry lifecycle phase.
func (e *Engine) Phase(ctx context.Context) (registry.Phase, error) {
	var out registry.Phase
	err := e.do(ctx, func(context.Context) error {
		out = e.reg.Phase()
		return nil
	})
	return out, err
}
