package harness

import (
	"github.com/roach88/anchorsync/internal/anchor"
	"github.com/roach88/anchorsync/internal/pose"
)

// Trace event types.
const (
	TraceNotification = "notification"
	TraceCorrection   = "correction"
	TraceError        = "error"
)

// TraceEvent is one observable outcome of a scenario run.
type TraceEvent struct {
	Type string `json:"type"`

	// Step is the index of the step that produced the event.
	Step int `json:"step"`

	// Seq is the notification sequence number (notifications only).
	Seq int64 `json:"seq,omitempty"`

	// Kind is the notification kind (notifications only).
	Kind string `json:"kind,omitempty"`

	ID            anchor.ID `json:"id,omitempty"`
	Name          string    `json:"name,omitempty"`
	Persisted     bool      `json:"persisted,omitempty"`
	TrackingState string    `json:"tracking_state,omitempty"`

	// Pose is the anchor pose for notifications and the offset for
	// corrections.
	Pose pose.Pose `json:"pose"`

	// Code is the error code (errors only).
	Code string `json:"code,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step met its expectation and every assertion
	// held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Records are the live records after the last step, in arrival order.
	Records []anchor.Record `json:"records"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
