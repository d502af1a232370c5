package testutil

import (
	"math"
	"testing"

	"github.com/roach88/anchorsync/internal/pose"
)

// At returns an unrotated pose at (x, y, z).
func At(x, y, z float64) pose.Pose {
	return pose.New(pose.Vec3{X: x, Y: y, Z: z}, pose.IdentityQuat())
}

// Turned returns p rotated about axis by degrees, keeping its position.
func Turned(p pose.Pose, axis pose.Vec3, degrees float64) pose.Pose {
	q := pose.FromAxisAngle(axis, degrees*math.Pi/180)
	return pose.New(p.Position, q.Mul(p.Orientation))
}

// RequirePoseEqual fails the test now if got differs from want beyond
// pose.Tolerance.
func RequirePoseEqual(t testing.TB, want, got pose.Pose) {
	t.Helper()
	if !pose.ApproxEqual(want, got, pose.Tolerance) {
		t.Fatalf("pose mismatch:\n  want %s\n   got %s", want, got)
	}
}
