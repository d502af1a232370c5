// Package reanchor computes the world-locking correction applied when a user
// finishes manually re-aligning a persisted anchor.
//
// The correction is Offset(root, target) = Compose(root, Invert(target)): the
// transform that carries the manipulated target pose back onto the root pose.
// It is handed to a WorldLocker, which owns how the correction is applied to
// the scene.
package reanchor

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/anchorsync/internal/anchor"
	"github.com/roach88/anchorsync/internal/pose"
)

// ErrUnknownTarget is returned when the manipulated anchor has no record.
var ErrUnknownTarget = errors.New("manipulated anchor is not live")

// Offset returns the correction that maps target onto root.
// Compose(Offset(root, target), target) == root, and Offset(p, p) is identity.
func Offset(root, target pose.Pose) pose.Pose {
	return pose.Compose(root, pose.Invert(target))
}

// WorldLocker consumes the active correction.
type WorldLocker interface {
	SetOffsetPose(offset pose.Pose)
}

// Locator finds the record a manipulation targets. *registry.Registry
// satisfies it.
type Locator interface {
	Lookup(id anchor.ID) (anchor.Record, bool)
}

// Correction is the result of one finished manipulation.
type Correction struct {
	Target anchor.ID `json:"target"`
	Name   string    `json:"name"`
	Offset pose.Pose `json:"offset"`
}

// Controller turns finished manipulations into world-locking corrections.
type Controller struct {
	locator Locator
	locker  WorldLocker
	logger  *slog.Logger
	active  anchor.ID
}

// NewController creates a Controller. A nil logger means slog.Default().
func NewController(locator Locator, locker WorldLocker, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{locator: locator, locker: locker, logger: logger}
}

// OnManipulationStart notes which anchor the user grabbed.
func (c *Controller) OnManipulationStart(id anchor.ID) {
	c.active = id
	c.logger.Debug("manipulation started", "id", id)
}

// Active returns the anchor currently being manipulated, if any.
func (c *Controller) Active() (anchor.ID, bool) {
	return c.active, c.active != ""
}

// OnManipulationFinish computes the correction for targetID from the root and
// target poses at release and hands it to the world locker.
func (c *Controller) OnManipulationFinish(root, target pose.Pose, targetID anchor.ID) (Correction, error) {
	c.active = ""

	rec, ok := c.locator.Lookup(targetID)
	if !ok {
		c.logger.Warn("manipulation finished on unknown anchor", "id", targetID)
		return Correction{}, fmt.Errorf("finish manipulation of %s: %w", targetID, ErrUnknownTarget)
	}

	offset := Offset(root, target)
	c.locker.SetOffsetPose(offset)
	c.logger.Info("world-locking correction applied",
		"id", targetID,
		"name", rec.Name,
		"offset", offset.String(),
	)
	return Correction{Target: targetID, Name: rec.Name, Offset: offset}, nil
}

// Lock is an in-memory WorldLocker. It holds the active correction and maps
// scene poses through it.
type Lock struct {
	offset  pose.Pose
	applied int
}

// NewLock returns a Lock holding the identity correction.
func NewLock() *Lock {
	return &Lock{offset: pose.Identity()}
}

// SetOffsetPose replaces the active correction.
func (l *Lock) SetOffsetPose(offset pose.Pose) {
	l.offset = offset
	l.applied++
}

// Offset returns the active correction.
func (l *Lock) Offset() pose.Pose {
	return l.offset
}

// Applied returns how many corrections have been set.
func (l *Lock) Applied() int {
	return l.applied
}

// Apply maps a pose through the active correction.
func (l *Lock) Apply(p pose.Pose) pose.Pose {
	return pose.Compose(l.offset, p)
}
