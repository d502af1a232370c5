// Package pose implements rigid-transform algebra for anchor poses.
//
// A Pose is a position plus a unit quaternion orientation. Poses compose like
// transforms: Compose(lhs, rhs) applies rhs first, then lhs, so that
//
//	Apply(Compose(lhs, rhs), v) == Apply(lhs, Apply(rhs, v))
//
// Composition is associative but not commutative. Invert(p) is the two-sided
// inverse of p under Compose.
//
// All functions are pure. Orientations are expected to be unit length; Compose
// and Invert renormalise their results so that floating-point drift does not
// accumulate across repeated corrections. A zero quaternion normalises to the
// identity rotation.
package pose
