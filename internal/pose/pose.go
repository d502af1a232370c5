package pose

import (
	"fmt"
	"strconv"
	"strings"
)

// Tolerance is the component-wise tolerance used when comparing poses.
const Tolerance = 1e-5

// Pose is a rigid transform: rotate by Orientation, then translate by Position.
type Pose struct {
	Position    Vec3
	Orientation Quat
}

// Identity returns the pose that leaves every point unchanged.
func Identity() Pose {
	return Pose{Orientation: IdentityQuat()}
}

// New returns a pose with the given position and a normalised orientation.
func New(position Vec3, orientation Quat) Pose {
	return Pose{Position: position, Orientation: orientation.Normalize()}
}

// Compose returns the pose that applies rhs, then lhs:
//
//	position    = lhs.Position + lhs.Orientation * rhs.Position
//	orientation = lhs.Orientation * rhs.Orientation
func Compose(lhs, rhs Pose) Pose {
	lq := lhs.Orientation.Normalize()
	rq := rhs.Orientation.Normalize()
	return Pose{
		Position:    lhs.Position.Add(lq.Rotate(rhs.Position)),
		Orientation: lq.Mul(rq).Normalize(),
	}
}

// Invert returns q such that Compose(q, p) and Compose(p, q) are the identity.
func Invert(p Pose) Pose {
	inv := p.Orientation.Normalize().Conjugate()
	return Pose{
		Position:    inv.Rotate(p.Position).Neg(),
		Orientation: inv,
	}
}

// Apply transforms point by p.
func Apply(p Pose, point Vec3) Vec3 {
	return p.Position.Add(p.Orientation.Normalize().Rotate(point))
}

// ApproxEqual reports whether a and b are the same transform within tol.
func ApproxEqual(a, b Pose, tol float64) bool {
	return a.Position.ApproxEqual(b.Position, tol) &&
		a.Orientation.ApproxEqual(b.Orientation, tol)
}

// IsIdentity reports whether p is the identity pose within Tolerance.
func (p Pose) IsIdentity() bool {
	return ApproxEqual(p, Identity(), Tolerance)
}

// String formats p as "x,y,z@w,qx,qy,qz", the form accepted by Parse.
func (p Pose) String() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return fmt.Sprintf("%s,%s,%s@%s,%s,%s,%s",
		f(p.Position.X), f(p.Position.Y), f(p.Position.Z),
		f(p.Orientation.W), f(p.Orientation.X), f(p.Orientation.Y), f(p.Orientation.Z))
}

// Parse reads a pose written as "x,y,z" or "x,y,z@w,qx,qy,qz".
// A missing orientation means identity; a given one is normalised.
func Parse(s string) (Pose, error) {
	posPart, rotPart, hasRot := strings.Cut(strings.TrimSpace(s), "@")

	pos, err := parseFloats(posPart, 3)
	if err != nil {
		return Pose{}, fmt.Errorf("parse position %q: %w", posPart, err)
	}
	p := Pose{Position: Vec3{pos[0], pos[1], pos[2]}, Orientation: IdentityQuat()}

	if hasRot {
		rot, err := parseFloats(rotPart, 4)
		if err != nil {
			return Pose{}, fmt.Errorf("parse orientation %q: %w", rotPart, err)
		}
		q := Quat{W: rot[0], X: rot[1], Y: rot[2], Z: rot[3]}
		if q.Length() == 0 {
			return Pose{}, fmt.Errorf("parse orientation %q: zero quaternion", rotPart)
		}
		p.Orientation = q.Normalize()
	}
	return p, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	fields := strings.Split(s, ",")
	if len(fields) != n {
		return nil, fmt.Errorf("want %d components, got %d", n, len(fields))
	}
	out := make([]float64, n)
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
