package harness

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/anchorsync/internal/anchor"
	"github.com/roach88/anchorsync/internal/pose"
)

// Scenario is one scripted run of the anchor engine.
type Scenario struct {
	// Name uniquely identifies the scenario; golden files are keyed by it.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// WorldAnchor overrides the reserved world anchor name.
	WorldAnchor string `yaml:"world_anchor,omitempty"`

	// Persisted seeds the durable store before the run, in save order.
	Persisted []PersistedEntry `yaml:"persisted,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// PersistedEntry is a named pose already in the durable store.
type PersistedEntry struct {
	Name string    `yaml:"name"`
	Pose *PoseSpec `yaml:"pose,omitempty"`
}

// PoseSpec is a pose as written in YAML. Orientation is either a quaternion
// [w, x, y, z] or an axis and an angle in degrees; neither means identity.
type PoseSpec struct {
	Position    []float64 `yaml:"position"`
	Orientation []float64 `yaml:"orientation,omitempty"`
	Axis        []float64 `yaml:"axis,omitempty"`
	Degrees     float64   `yaml:"degrees,omitempty"`
}

// Pose converts p. A nil PoseSpec is the identity pose.
func (p *PoseSpec) Pose() (pose.Pose, error) {
	if p == nil {
		return pose.Identity(), nil
	}
	if len(p.Position) != 3 {
		return pose.Pose{}, fmt.Errorf("position needs 3 components, got %d", len(p.Position))
	}
	pos := pose.Vec3{X: p.Position[0], Y: p.Position[1], Z: p.Position[2]}

	switch {
	case len(p.Orientation) > 0 && len(p.Axis) > 0:
		return pose.Pose{}, fmt.Errorf("give either orientation or axis, not both")
	case len(p.Orientation) > 0:
		if len(p.Orientation) != 4 {
			return pose.Pose{}, fmt.Errorf("orientation needs 4 components [w, x, y, z], got %d", len(p.Orientation))
		}
		q := pose.Quat{W: p.Orientation[0], X: p.Orientation[1], Y: p.Orientation[2], Z: p.Orientation[3]}
		if q.Length() == 0 {
			return pose.Pose{}, fmt.Errorf("orientation is a zero quaternion")
		}
		return pose.New(pos, q), nil
	case len(p.Axis) > 0:
		if len(p.Axis) != 3 {
			return pose.Pose{}, fmt.Errorf("axis needs 3 components, got %d", len(p.Axis))
		}
		axis := pose.Vec3{X: p.Axis[0], Y: p.Axis[1], Z: p.Axis[2]}
		if axis.Length() == 0 {
			return pose.Pose{}, fmt.Errorf("axis is a zero vector")
		}
		return pose.New(pos, pose.FromAxisAngle(axis, p.Degrees*math.Pi/180)), nil
	default:
		return pose.New(pos, pose.IdentityQuat()), nil
	}
}

// Step actions.
const (
	StepStoreReady       = "store_ready"
	StepStoreUnavailable = "store_unavailable"
	StepTick             = "tick"
	StepAdd              = "add"
	StepInject           = "inject"
	StepUpdate           = "update"
	StepRemove           = "remove"
	StepPersist          = "persist"
	StepClear            = "clear"
	StepDrop             = "drop"
	StepManipulate       = "manipulate"
	StepRelocate         = "relocate"
)

// ExpectOK is the default step expectation.
const ExpectOK = "ok"

// Step is one action against the engine.
type Step struct {
	Action string `yaml:"action"`

	// ID references an anchor by label or literal identifier.
	ID string `yaml:"id,omitempty"`

	// As labels the anchor this step creates (add, inject, relocate).
	As string `yaml:"as,omitempty"`

	Name  string    `yaml:"name,omitempty"`
	Pose  *PoseSpec `yaml:"pose,omitempty"`
	State string    `yaml:"state,omitempty"`

	// Root and Target are the manipulation poses.
	Root   *PoseSpec `yaml:"root,omitempty"`
	Target *PoseSpec `yaml:"target,omitempty"`

	// ExpectOffset checks the correction a manipulation produced.
	ExpectOffset *PoseSpec `yaml:"expect_offset,omitempty"`

	// Expect is "ok" (the default) or an error code such as UNAVAILABLE,
	// PERSIST_FAILURE, UNKNOWN_IDENTIFIER or UNKNOWN_TARGET.
	Expect string `yaml:"expect,omitempty"`
}

// trackingState parses State, defaulting to tracking.
func (s Step) trackingState() (anchor.TrackingState, error) {
	if s.State == "" {
		return anchor.Tracking, nil
	}
	return anchor.ParseTrackingState(s.State)
}

func (s Step) expectation() string {
	if s.Expect == "" {
		return ExpectOK
	}
	return s.Expect
}

// Assertion types.
const (
	AssertRecord        = "record"
	AssertRecordAbsent  = "record_absent"
	AssertRecordCount   = "record_count"
	AssertPendingCount  = "pending_count"
	AssertNotifications = "notifications"
	AssertStoreNames    = "store_names"
)

// Assertion checks the state after the last step.
type Assertion struct {
	Type string `yaml:"type"`

	// ID is the anchor reference for record and record_absent.
	ID string `yaml:"id,omitempty"`

	// Expected record fields; unset fields are not checked.
	Name      *string   `yaml:"name,omitempty"`
	Persisted *bool     `yaml:"persisted,omitempty"`
	State     string    `yaml:"state,omitempty"`
	Pose      *PoseSpec `yaml:"pose,omitempty"`

	// Count is used by record_count and pending_count.
	Count *int `yaml:"count,omitempty"`

	// Kinds is the exact notification kind sequence.
	Kinds []string `yaml:"kinds,omitempty"`

	// Names is the sorted list of names in the durable store.
	Names []string `yaml:"names,omitempty"`
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so that typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	seen := make(map[string]bool)
	for i, e := range s.Persisted {
		if e.Name == "" {
			return fmt.Errorf("persisted[%d]: name is required", i)
		}
		if seen[e.Name] {
			return fmt.Errorf("persisted[%d]: duplicate name %q", i, e.Name)
		}
		seen[e.Name] = true
		if _, err := e.Pose.Pose(); err != nil {
			return fmt.Errorf("persisted[%d].pose: %w", i, err)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(s Step) error {
	needID := func() error {
		if s.ID == "" {
			return fmt.Errorf("%s: id is required", s.Action)
		}
		return nil
	}

	var err error
	switch s.Action {
	case "":
		return fmt.Errorf("action is required")
	case StepStoreReady, StepStoreUnavailable, StepTick, StepAdd, StepClear, StepDrop, StepRelocate:
	case StepInject, StepUpdate, StepRemove:
		err = needID()
	case StepPersist:
		if err = needID(); err == nil && s.Name == "" {
			err = fmt.Errorf("persist: name is required")
		}
	case StepManipulate:
		if err = needID(); err == nil && (s.Root == nil || s.Target == nil) {
			err = fmt.Errorf("manipulate: root and target are required")
		}
	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}
	if err != nil {
		return err
	}

	if _, err := s.trackingState(); err != nil {
		return err
	}
	for field, p := range map[string]*PoseSpec{"pose": s.Pose, "root": s.Root, "target": s.Target, "expect_offset": s.ExpectOffset} {
		if _, err := p.Pose(); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("type is required")
	case AssertRecord, AssertRecordAbsent:
		if a.ID == "" {
			return fmt.Errorf("%s: id is required", a.Type)
		}
		if a.State != "" {
			if _, err := anchor.ParseTrackingState(a.State); err != nil {
				return err
			}
		}
		if _, err := a.Pose.Pose(); err != nil {
			return fmt.Errorf("pose: %w", err)
		}
	case AssertRecordCount, AssertPendingCount:
		if a.Count == nil {
			return fmt.Errorf("%s: count is required", a.Type)
		}
	case AssertNotifications:
		if a.Kinds == nil {
			return fmt.Errorf("notifications: kinds is required (use [] for none)")
		}
	case AssertStoreNames:
		if a.Names == nil {
			return fmt.Errorf("store_names: names is required (use [] for none)")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
