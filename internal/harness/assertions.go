package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/anchorsync/internal/anchor"
	"github.com/roach88/anchorsync/internal/pose"
	"github.com/roach88/anchorsync/internal/registry"
)

// AssertionContext is the final state assertions are checked against.
type AssertionContext struct {
	Records       []anchor.Record
	Pending       []registry.PendingRequest
	Notifications []registry.Notification
	StoreNames    []string

	// Resolve maps an anchor reference to an identifier. Nil means the
	// reference is the identifier.
	Resolve func(string) anchor.ID
}

func (a *AssertionContext) resolve(ref string) anchor.ID {
	if a.Resolve == nil {
		return anchor.ID(ref)
	}
	return a.Resolve(ref)
}

func (a *AssertionContext) record(id anchor.ID) (anchor.Record, bool) {
	for _, r := range a.Records {
		if r.ID == id {
			return r, true
		}
	}
	return anchor.Record{}, false
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string

	// Records is the final record set, for context.
	Records []anchor.Record
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nLive records:\n")
	if len(e.Records) == 0 {
		fmt.Fprintf(&buf, "  (none)\n")
	}
	for _, r := range e.Records {
		fmt.Fprintf(&buf, "  %s name=%q persisted=%t state=%s pose=%s\n",
			r.ID, r.Name, r.Persisted, r.TrackingState, r.Pose)
	}
	return buf.String()
}

func (a *AssertionContext) fail(typ, expected, actual string) error {
	return &AssertionError{Type: typ, Expected: expected, Actual: actual, Records: a.Records}
}

// assertRecord checks the fields an assertion sets on one live record.
func assertRecord(actx *AssertionContext, as Assertion) error {
	id := actx.resolve(as.ID)
	rec, ok := actx.record(id)
	if !ok {
		return actx.fail(AssertRecord, fmt.Sprintf("live record %s (%s)", as.ID, id), "no such record")
	}

	var diffs []string
	if as.Name != nil && rec.Name != *as.Name {
		diffs = append(diffs, fmt.Sprintf("name %q, want %q", rec.Name, *as.Name))
	}
	if as.Persisted != nil && rec.Persisted != *as.Persisted {
		diffs = append(diffs, fmt.Sprintf("persisted %t, want %t", rec.Persisted, *as.Persisted))
	}
	if as.State != "" {
		want, _ := anchor.ParseTrackingState(as.State)
		if rec.TrackingState != want {
			diffs = append(diffs, fmt.Sprintf("state %s, want %s", rec.TrackingState, want))
		}
	}
	if as.Pose != nil {
		want, _ := as.Pose.Pose()
		if !pose.ApproxEqual(rec.Pose, want, pose.Tolerance) {
			diffs = append(diffs, fmt.Sprintf("pose %s, want %s", rec.Pose, want))
		}
	}

	if len(diffs) > 0 {
		return actx.fail(AssertRecord, fmt.Sprintf("record %s matches", as.ID), strings.Join(diffs, "; "))
	}
	return nil
}

func assertRecordAbsent(actx *AssertionContext, as Assertion) error {
	id := actx.resolve(as.ID)
	if rec, ok := actx.record(id); ok {
		return actx.fail(AssertRecordAbsent, fmt.Sprintf("no live record %s", as.ID),
			fmt.Sprintf("record %s named %q", rec.ID, rec.Name))
	}
	return nil
}

func assertCount(actx *AssertionContext, typ string, got, want int) error {
	if got != want {
		return actx.fail(typ, fmt.Sprintf("%d", want), fmt.Sprintf("%d", got))
	}
	return nil
}

func assertNotifications(actx *AssertionContext, as Assertion) error {
	got := make([]string, len(actx.Notifications))
	for i, n := range actx.Notifications {
		got[i] = string(n.Kind)
	}
	if !slices.Equal(got, as.Kinds) {
		return actx.fail(AssertNotifications, fmt.Sprintf("%v", as.Kinds), fmt.Sprintf("%v", got))
	}
	return nil
}

func assertStoreNames(actx *AssertionContext, as Assertion) error {
	want := slices.Clone(as.Names)
	slices.Sort(want)
	if !slices.Equal(actx.StoreNames, want) {
		return actx.fail(AssertStoreNames, fmt.Sprintf("%v", want), fmt.Sprintf("%v", actx.StoreNames))
	}
	return nil
}

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, as := range assertions {
		var err error

		switch as.Type {
		case AssertRecord:
			err = assertRecord(actx, as)
		case AssertRecordAbsent:
			err = assertRecordAbsent(actx, as)
		case AssertRecordCount, AssertPendingCount:
			switch {
			case as.Count == nil:
				err = fmt.Errorf("%s: count is required", as.Type)
			case as.Type == AssertRecordCount:
				err = assertCount(actx, as.Type, len(actx.Records), *as.Count)
			default:
				err = assertCount(actx, as.Type, len(actx.Pending), *as.Count)
			}
		case AssertNotifications:
			err = assertNotifications(actx, as)
		case AssertStoreNames:
			err = assertStoreNames(actx, as)
		default:
			err = fmt.Errorf("unknown assertion type %q", as.Type)
		}

		if err != nil {
			errors = append(errors, fmt.Sprintf("assertion[%d]: %s", i, err))
		}
	}

	return errors
}
