package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/anchorsync/internal/anchor"
	"github.com/roach88/anchorsync/internal/anchorstore"
	"github.com/roach88/anchorsync/internal/pose"
)

// Phase is the store lifecycle of a Registry.
type Phase int

const (
	// PhaseUninitialized: no store load has started.
	PhaseUninitialized Phase = iota
	// PhaseAwaitingStore: waiting for the store to become ready.
	PhaseAwaitingStore
	// PhaseReady: the store is usable and load requests have been issued.
	PhaseReady
	// PhaseUnavailable: the store failed to come up; store operations are no-ops.
	PhaseUnavailable
	// PhaseClosed: torn down; all state discarded.
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseAwaitingStore:
		return "awaiting_store"
	case PhaseReady:
		return "ready"
	case PhaseUnavailable:
		return "unavailable"
	case PhaseClosed:
		return "closed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ErrAwaitNotAllowed is returned by BeginAwait outside PhaseUninitialized.
var ErrAwaitNotAllowed = errors.New("store load already started")

// Remover asks the tracking subsystem to stop tracking an anchor.
type Remover interface {
	RemoveAnchor(id anchor.ID) bool
}

// Sequencer stamps notifications. engine.Clock and testutil.DeterministicClock
// both satisfy it.
type Sequencer interface {
	Next() int64
}

type counter struct{ n int64 }

func (c *counter) Next() int64 {
	c.n++
	return c.n
}

// Registry owns the live anchor records and runs reconciliation.
//
// Registry is not safe for concurrent use. Drive it from a single goroutine.
type Registry struct {
	phase      Phase
	state      State
	store      anchorstore.Client
	remover    Remover
	visualizer Visualizer
	seq        Sequencer
	logger     *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithWorldAnchorName sets the reserved world-anchor name.
func WithWorldAnchorName(name string) Option {
	return func(r *Registry) {
		r.state = NewState(name)
	}
}

// WithVisualizer sets the notification receiver.
func WithVisualizer(v Visualizer) Option {
	return func(r *Registry) {
		r.visualizer = v
	}
}

// WithRemover sets the tracking subsystem used by DropAllLiveAnchors.
func WithRemover(rm Remover) Option {
	return func(r *Registry) {
		r.remover = rm
	}
}

// WithSequencer sets the notification sequencer.
func WithSequencer(s Sequencer) Option {
	return func(r *Registry) {
		r.seq = s
	}
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// New creates a Registry in PhaseUninitialized.
func New(opts ...Option) *Registry {
	r := &Registry{
		state:      NewState(DefaultWorldAnchorName),
		visualizer: discardVisualizer{},
		seq:        &counter{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Phase returns the current store lifecycle phase.
func (r *Registry) Phase() Phase {
	return r.phase
}

// State returns the current state snapshot.
func (r *Registry) State() State {
	return r.state
}

// Lookup returns the record for id.
func (r *Registry) Lookup(id anchor.ID) (anchor.Record, bool) {
	return r.state.Lookup(id)
}

// Records returns every live record in arrival order.
func (r *Registry) Records() []anchor.Record {
	return r.state.Records()
}

// Pending returns every unresolved load request.
func (r *Registry) Pending() []PendingRequest {
	return r.state.Pending()
}

// HoldersOf returns the identifiers of records named name.
func (r *Registry) HoldersOf(name string) []anchor.ID {
	return r.state.HoldersOf(name)
}

// apply runs the reducer and forwards its notifications.
func (r *Registry) apply(ev Event) error {
	if r.phase == PhaseClosed {
		return nil
	}
	next, notes, err := Reduce(r.state, ev)
	if err != nil {
		return err
	}
	r.state = next
	for _, n := range notes {
		n.Seq = r.seq.Next()
		r.visualizer.Notify(n)
	}
	return nil
}

// BeginAwait marks the start of the one store load of this registry's life.
func (r *Registry) BeginAwait() error {
	if r.phase != PhaseUninitialized {
		return fmt.Errorf("begin await in phase %s: %w", r.phase, ErrAwaitNotAllowed)
	}
	r.phase = PhaseAwaitingStore
	r.logger.Debug("awaiting anchor store")
	return nil
}

// OnStoreReady issues a load request for every persisted name and records the
// provisional identifiers as pending requests.
//
// Readiness is delivered at most once. A second delivery is a caller bug and
// panics with a DUPLICATE_READY *Error. Delivery after Close is ignored.
func (r *Registry) OnStoreReady(ctx context.Context, client anchorstore.Client) error {
	switch r.phase {
	case PhaseClosed:
		r.logger.Debug("store ready after close; ignored")
		return nil
	case PhaseReady, PhaseUnavailable:
		panic(duplicateReady())
	}

	if client == nil {
		r.MarkUnavailable(errors.New("no store client"))
		return ErrUnavailable
	}

	names, err := client.PersistedNames(ctx)
	if err != nil {
		r.MarkUnavailable(err)
		return unavailable(err)
	}

	r.store = client
	r.phase = PhaseReady
	r.logger.Info("anchor store ready", "persisted", len(names))

	for _, name := range names {
		id, err := client.RequestLoad(ctx, name)
		if err != nil {
			r.logger.Error("load request failed", "name", name, "error", err)
			continue
		}
		r.logger.Debug("load requested", "name", name, "id", id)
		if _, live := r.state.Lookup(id); live {
			r.logger.Warn("load answered with an identifier that already arrived; it will not be reconciled",
				"name", name, "id", id)
		}
		_ = r.apply(LoadRequested{ID: id, Name: name})
	}
	return nil
}

// MarkUnavailable records that the store will never become ready. It is
// logged once; store-dependent operations become no-ops afterwards.
func (r *Registry) MarkUnavailable(cause error) {
	switch r.phase {
	case PhaseClosed:
		return
	case PhaseReady, PhaseUnavailable:
		panic(duplicateReady())
	}
	r.phase = PhaseUnavailable
	r.logger.Warn("anchor store not available; persistence disabled", "error", cause)
}

// OnAdded handles a tracked anchor arriving.
func (r *Registry) OnAdded(id anchor.ID, p pose.Pose, state anchor.TrackingState) {
	if _, live := r.state.Lookup(id); live {
		r.logger.Debug("added event for live anchor; treating as update", "id", id)
	}
	_ = r.apply(Added{ID: id, Pose: p, TrackingState: state})
	if rec, ok := r.state.Lookup(id); ok {
		r.logger.Debug("anchor added", "id", id, "name", rec.Name, "persisted", rec.Persisted)
	}
}

// OnUpdated handles a pose or tracking-state change. Unknown identifiers are
// logged and reported, never fatal.
func (r *Registry) OnUpdated(id anchor.ID, p pose.Pose, state anchor.TrackingState) error {
	if err := r.apply(Updated{ID: id, Pose: p, TrackingState: state}); err != nil {
		r.logger.Debug("update for unknown anchor ignored", "id", id)
		return err
	}
	return nil
}

// OnRemoved handles the tracking subsystem dropping an anchor. Persisted
// entries are not touched.
func (r *Registry) OnRemoved(id anchor.ID) error {
	if err := r.apply(Removed{ID: id}); err != nil {
		r.logger.Debug("removal of unknown anchor ignored", "id", id)
		return err
	}
	r.logger.Debug("anchor removed", "id", id)
	return nil
}

// PersistAnchor saves the live anchor id under name. On failure the record is
// left unchanged; the caller decides whether to retry.
func (r *Registry) PersistAnchor(ctx context.Context, id anchor.ID, name string) error {
	if r.phase != PhaseReady {
		r.logger.Info("anchor store not available; persist skipped", "id", id, "name", name)
		return ErrUnavailable
	}
	if _, ok := r.state.Lookup(id); !ok {
		r.logger.Warn("persist of unknown anchor", "id", id, "name", name)
		return unknownIdentifier(id)
	}
	if !r.store.Persist(ctx, id, name) {
		r.logger.Warn("anchor could not be persisted", "id", id, "name", name)
		return persistFailure(id, name)
	}
	if err := r.apply(Persisted{ID: id, Name: name}); err != nil {
		return err
	}
	r.logger.Info("anchor persisted", "id", id, "name", name)
	return nil
}

// ClearAll erases the store and marks every live record unnamed and
// unpersisted. Records stay in the registry and tracking is unaffected.
//
// Without a ready store only the records are reset.
func (r *Registry) ClearAll(ctx context.Context) error {
	if r.phase == PhaseReady {
		if err := r.store.Clear(ctx); err != nil {
			r.logger.Error("anchor store clear failed", "error", err)
			return fmt.Errorf("clear all: %w", err)
		}
	}
	if err := r.apply(Cleared{}); err != nil {
		return err
	}
	r.logger.Info("persisted anchors cleared", "live", len(r.state.order))
	return nil
}

// DropAllLiveAnchors asks the tracking subsystem to remove every live anchor
// and empties the record set. Persisted entries are not touched.
func (r *Registry) DropAllLiveAnchors() {
	if r.remover != nil {
		for _, id := range r.state.order {
			if !r.remover.RemoveAnchor(id) {
				r.logger.Debug("tracker did not know anchor", "id", id)
			}
		}
	}
	dropped := len(r.state.order)
	_ = r.apply(Dropped{})
	r.logger.Info("live anchors dropped", "count", dropped)
}

// Close tears the registry down. Pending requests and records are discarded
// and every later event is ignored.
func (r *Registry) Close() {
	if r.phase == PhaseClosed {
		return
	}
	if n := len(r.state.pendingOrder); n > 0 {
		r.logger.Debug("discarding unresolved load requests", "count", n)
	}
	r.state = NewState(r.state.worldName)
	r.store = nil
	r.phase = PhaseClosed
}
