package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/anchorsync/internal/anchor"
	"github.com/roach88/anchorsync/internal/anchorstore"
	"github.com/roach88/anchorsync/internal/engine"
	"github.com/roach88/anchorsync/internal/pose"
	"github.com/roach88/anchorsync/internal/reanchor"
	"github.com/roach88/anchorsync/internal/registry"
	"github.com/roach88/anchorsync/internal/testutil"
	"github.com/roach88/anchorsync/internal/tracking"
)

// Options configure a scenario run.
type Options struct {
	// DBPath is the SQLite file to use. Empty means a fresh in-memory store.
	DBPath string

	// WorldAnchor is used when the scenario does not name one.
	WorldAnchor string

	// Logger receives engine and store logs. Nil discards them.
	Logger *slog.Logger
}

// Harness drives one scenario through an engine. Create it with New, run
// the engine loop, then call Execute.
type Harness struct {
	scenario *Scenario
	engine   *engine.Engine
	session  *tracking.Session
	store    *anchorstore.Store
	lock     *reanchor.Lock
	recorder *registry.Recorder
	labels   map[string]anchor.ID
	logger   *slog.Logger

	// seen is how many notifications are already in the trace.
	seen int
}

// Run executes a scenario against a fresh in-memory store.
func Run(scenario *Scenario) (*Result, error) {
	return RunWith(context.Background(), scenario, Options{})
}

// RunWith executes a scenario: the engine loop and the step driver run side
// by side and the engine stops once the driver is done.
func RunWith(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	h, err := New(ctx, scenario, opts)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	var result *Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.engine.Run(gctx)
	})
	g.Go(func() error {
		defer h.engine.Stop()
		var err error
		result, err = h.Execute(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// New opens the store, seeds the persisted entries and builds the engine.
// The engine is not running yet.
func New(ctx context.Context, scenario *Scenario, opts Options) (*Harness, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	path := opts.DBPath
	if path == "" {
		path = ":memory:"
	}

	session := testutil.NewSession()
	st, err := anchorstore.Open(path, anchorstore.WithTracker(session), anchorstore.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open anchor store: %w", err)
	}

	for _, e := range scenario.Persisted {
		p, err := e.Pose.Pose()
		if err == nil {
			err = st.Save(ctx, e.Name, p)
		}
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("seed persisted anchor %q: %w", e.Name, err)
		}
	}

	worldName := scenario.WorldAnchor
	if worldName == "" {
		worldName = opts.WorldAnchor
	}

	h := &Harness{
		scenario: scenario,
		session:  session,
		store:    st,
		lock:     reanchor.NewLock(),
		recorder: &registry.Recorder{},
		labels:   make(map[string]anchor.ID),
		logger:   logger,
	}
	engOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithVisualizer(h.recorder),
	}
	if worldName != "" {
		engOpts = append(engOpts, engine.WithWorldAnchorName(worldName))
	}
	h.engine = engine.New(session, h.lock, engOpts...)
	return h, nil
}

// Engine returns the engine the harness drives.
func (h *Harness) Engine() *engine.Engine {
	return h.engine
}

// Store returns the durable store.
func (h *Harness) Store() *anchorstore.Store {
	return h.store
}

// Close releases the store.
func (h *Harness) Close() error {
	return h.store.Close()
}

// Execute runs every step, then evaluates the assertions. It requires the
// engine loop to be running. Step failures are reported in the result;
// the returned error is reserved for the engine going away.
func (h *Harness) Execute(ctx context.Context) (*Result, error) {
	result := NewResult()

	for i, step := range h.scenario.Steps {
		err := h.executeStep(ctx, i, step, result)
		h.collectNotifications(i, result)
		if errors.Is(err, engine.ErrStopped) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		}
		h.checkExpectation(i, step, err, result)
	}

	records, err := h.engine.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("read final records: %w", err)
	}
	result.Records = records

	actx, err := h.assertionContext(ctx, records)
	if err != nil {
		return nil, err
	}
	for _, msg := range EvaluateAssertions(h.scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) assertionContext(ctx context.Context, records []anchor.Record) (*AssertionContext, error) {
	pending, err := h.engine.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("read pending requests: %w", err)
	}
	names, err := h.store.PersistedNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("read persisted names: %w", err)
	}
	return &AssertionContext{
		Records:       records,
		Pending:       pending,
		Notifications: h.recorder.Notifications,
		StoreNames:    names,
		Resolve:       h.ref,
	}, nil
}

// ref resolves a label, falling back to a literal identifier.
func (h *Harness) ref(s string) anchor.ID {
	if id, ok := h.labels[s]; ok {
		return id
	}
	return anchor.ID(s)
}

func (h *Harness) label(as string, id anchor.ID) {
	if as != "" {
		h.labels[as] = id
	}
}

func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	state, _ := step.trackingState()
	p, _ := step.Pose.Pose()

	h.logger.Debug("scenario step", "step", i, "action", step.Action, "id", step.ID)

	switch step.Action {
	case StepStoreReady:
		if err := h.engine.StoreReady(ctx, h.store); err != nil {
			return err
		}
		pending, err := h.engine.Pending(ctx)
		if err != nil {
			return err
		}
		for _, req := range pending {
			h.label("load:"+req.Name, req.ID)
		}
		return nil

	case StepStoreUnavailable:
		// A missing client is how the registry learns the store will never
		// be ready; the resulting UNAVAILABLE is the expected outcome.
		if err := h.engine.StoreReady(ctx, nil); !registry.IsUnavailable(err) {
			return err
		}
		return nil

	case StepTick:
		_, err := h.engine.Flush(ctx)
		return err

	case StepAdd:
		id, err := h.engine.AddAnchor(ctx, p)
		h.label(step.As, id)
		return err

	case StepInject:
		id := h.ref(step.ID)
		h.label(step.As, id)
		return h.engine.ApplyChanges(ctx, tracking.Changes{
			Added: []tracking.Change{{ID: id, Pose: p, TrackingState: state}},
		})

	case StepUpdate:
		id := h.ref(step.ID)
		if h.session.Move(id, p, state) {
			_, err := h.engine.Flush(ctx)
			return err
		}
		return h.engine.ApplyChanges(ctx, tracking.Changes{
			Updated: []tracking.Change{{ID: id, Pose: p, TrackingState: state}},
		})

	case StepRemove:
		id := h.ref(step.ID)
		if h.session.RemoveAnchor(id) {
			_, err := h.engine.Flush(ctx)
			return err
		}
		return h.engine.ApplyChanges(ctx, tracking.Changes{Removed: []anchor.ID{id}})

	case StepPersist:
		return h.engine.PersistAnchor(ctx, h.ref(step.ID), step.Name)

	case StepClear:
		return h.engine.ClearAll(ctx)

	case StepDrop:
		return h.engine.DropAllLiveAnchors(ctx)

	case StepManipulate:
		return h.manipulate(ctx, i, step, result)

	case StepRelocate:
		id, err := h.engine.RelocateWorldAnchor(ctx, p)
		h.label(step.As, id)
		return err

	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
}

func (h *Harness) manipulate(ctx context.Context, i int, step Step, result *Result) error {
	id := h.ref(step.ID)
	root, _ := step.Root.Pose()
	target, _ := step.Target.Pose()

	if err := h.engine.StartManipulation(ctx, id); err != nil {
		return err
	}
	corr, err := h.engine.FinishManipulation(ctx, root, target, id)
	if err != nil {
		return err
	}

	result.Trace = append(result.Trace, TraceEvent{
		Type: TraceCorrection,
		Step: i,
		ID:   corr.Target,
		Name: corr.Name,
		Pose: corr.Offset,
	})

	if got := pose.Compose(corr.Offset, target); !pose.ApproxEqual(got, root, pose.Tolerance) {
		result.AddError(fmt.Sprintf("step %d: offset maps target to %s, want root %s", i, got, root))
	}
	if step.ExpectOffset != nil {
		want, _ := step.ExpectOffset.Pose()
		if !pose.ApproxEqual(corr.Offset, want, pose.Tolerance) {
			result.AddError(fmt.Sprintf("step %d: offset %s, want %s", i, corr.Offset, want))
		}
	}
	return nil
}

// collectNotifications appends notifications recorded since the last call.
// The recorder is written on the loop goroutine; every command has returned
// by the time this runs.
func (h *Harness) collectNotifications(i int, result *Result) {
	for _, n := range h.recorder.Notifications[h.seen:] {
		result.Trace = append(result.Trace, TraceEvent{
			Type:          TraceNotification,
			Step:          i,
			Seq:           n.Seq,
			Kind:          string(n.Kind),
			ID:            n.View.ID,
			Name:          n.View.Name,
			Persisted:     n.View.Persisted,
			TrackingState: n.View.TrackingState.String(),
			Pose:          n.Pose,
		})
	}
	h.seen = len(h.recorder.Notifications)
}

func (h *Harness) checkExpectation(i int, step Step, err error, result *Result) {
	got := ErrorCode(err)
	if got != ExpectOK {
		result.Trace = append(result.Trace, TraceEvent{Type: TraceError, Step: i, Code: got})
	}
	if want := step.expectation(); got != want {
		msg := fmt.Sprintf("step %d (%s): got %s, want %s", i, step.Action, got, want)
		if err != nil {
			msg += ": " + err.Error()
		}
		result.AddError(msg)
	}
}

// ErrorCode names the outcome of a step: "ok", a registry error code,
// UNKNOWN_TARGET, ALREADY_AWAITING, or ERROR for anything else.
func ErrorCode(err error) string {
	if err == nil {
		return ExpectOK
	}
	var regErr *registry.Error
	switch {
	case errors.As(err, &regErr):
		return string(regErr.Code)
	case errors.Is(err, reanchor.ErrUnknownTarget):
		return "UNKNOWN_TARGET"
	case errors.Is(err, engine.ErrAlreadyAwaiting):
		return "ALREADY_AWAITING"
	default:
		return "ERROR"
	}
}
