package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/anchorsync/internal/anchor"
	"github.com/roach88/anchorsync/internal/canon"
	"github.com/roach88/anchorsync/internal/pose"
)

// TraceSnapshot is the golden-file view of a run.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	Records      []anchor.Record
}

// Canonical renders the snapshot as canonical JSON. Poses are written as
// {"position":[x,y,z],"orientation":[w,x,y,z]} rounded by canon, so float
// noise below the pose tolerance does not change the bytes.
func (s *TraceSnapshot) Canonical() ([]byte, error) {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"type": ev.Type,
			"step": ev.Step,
		}
		switch ev.Type {
		case TraceNotification:
			m["seq"] = ev.Seq
			m["kind"] = ev.Kind
			m["id"] = string(ev.ID)
			m["name"] = ev.Name
			m["persisted"] = ev.Persisted
			m["tracking_state"] = ev.TrackingState
			m["pose"] = poseMap(ev.Pose)
		case TraceCorrection:
			m["id"] = string(ev.ID)
			m["name"] = ev.Name
			m["offset"] = poseMap(ev.Pose)
		case TraceError:
			m["code"] = ev.Code
		}
		trace[i] = m
	}

	records := make([]any, len(s.Records))
	for i, r := range s.Records {
		records[i] = map[string]any{
			"id":             string(r.ID),
			"name":           r.Name,
			"persisted":      r.Persisted,
			"tracking_state": r.TrackingState.String(),
			"pose":           poseMap(r.Pose),
		}
	}

	return canon.Marshal(map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
		"records":       records,
	})
}

func poseMap(p pose.Pose) map[string]any {
	return map[string]any{
		"position":    []any{p.Position.X, p.Position.Y, p.Position.Z},
		"orientation": []any{p.Orientation.W, p.Orientation.X, p.Orientation.Y, p.Orientation.Z},
	}
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Records:      result.Records,
	}
	traceJSON, err := snapshot.Canonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
