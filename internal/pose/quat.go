package pose

import "math"

// Quat is a rotation quaternion w + xi + yj + zk.
type Quat struct {
	W, X, Y, Z float64
}

// IdentityQuat returns the no-rotation quaternion.
func IdentityQuat() Quat {
	return Quat{W: 1}
}

// FromAxisAngle returns the rotation of radians about axis.
// A zero axis yields the identity rotation.
func FromAxisAngle(axis Vec3, radians float64) Quat {
	n := axis.Length()
	if n == 0 {
		return IdentityQuat()
	}
	s := math.Sin(radians/2) / n
	return Quat{W: math.Cos(radians / 2), X: axis.X * s, Y: axis.Y * s, Z: axis.Z * s}
}

// Mul returns the Hamilton product q * o (rotate by o, then by q).
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
	}
}

// Conjugate returns q with its vector part negated. For unit quaternions this
// is the inverse rotation.
func (q Quat) Conjugate() Quat {
	return Quat{W: q.W, X: -q.X, Y: -q.Y, Z: -q.Z}
}

// Length returns the quaternion norm.
func (q Quat) Length() float64 {
	return math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

// Normalize returns q scaled to unit length. The zero quaternion has no
// direction and normalises to the identity.
func (q Quat) Normalize() Quat {
	n := q.Length()
	if n == 0 || math.IsNaN(n) {
		return IdentityQuat()
	}
	if math.Abs(n-1) < 1e-12 {
		return q
	}
	return Quat{W: q.W / n, X: q.X / n, Y: q.Y / n, Z: q.Z / n}
}

// Rotate applies the rotation q to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// ApproxEqual reports whether q and o describe the same rotation within tol.
// q and -q are the same rotation.
func (q Quat) ApproxEqual(o Quat, tol float64) bool {
	same := math.Abs(q.W-o.W) <= tol && math.Abs(q.X-o.X) <= tol &&
		math.Abs(q.Y-o.Y) <= tol && math.Abs(q.Z-o.Z) <= tol
	if same {
		return true
	}
	return math.Abs(q.W+o.W) <= tol && math.Abs(q.X+o.X) <= tol &&
		math.Abs(q.Y+o.Y) <= tol && math.Abs(q.Z+o.Z) <= tol
}
