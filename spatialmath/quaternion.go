// Package spatialmath defines spatial mathematical operations needed for
// task-space control: quaternion construction from Euler angles and rotation
// matrices, and the small set of unit-quaternion helpers built on gonum.
package spatialmath

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// QuaternionFromEulerXYZ returns the quaternion for an intrinsic rotation
// about x by alpha, then about the new y by beta, then about the new z by
// gamma. This is the "rxyz" rotating-axes convention.
func QuaternionFromEulerXYZ(alpha, beta, gamma float64) quat.Number {
	qx := quat.Number{Real: math.Cos(alpha / 2), Imag: math.Sin(alpha / 2)}
	qy := quat.Number{Real: math.Cos(beta / 2), Jmag: math.Sin(beta / 2)}
	qz := quat.Number{Real: math.Cos(gamma / 2), Kmag: math.Sin(gamma / 2)}
	return quat.Mul(quat.Mul(qx, qy), qz)
}

// QuaternionFromRotationMatrix converts a 3x3 rotation matrix to a quaternion
// using Shepperd's method, branching on the largest diagonal element so the
// divisor is always well away from zero.
func QuaternionFromRotationMatrix(r mat.Matrix) quat.Number {
	var q quat.Number
	tr := r.At(0, 0) + r.At(1, 1) + r.At(2, 2)
	switch {
	case tr > 0:
		s := 2 * math.Sqrt(tr+1)
		q.Real = s / 4
		q.Imag = (r.At(2, 1) - r.At(1, 2)) / s
		q.Jmag = (r.At(0, 2) - r.At(2, 0)) / s
		q.Kmag = (r.At(1, 0) - r.At(0, 1)) / s
	case r.At(0, 0) > r.At(1, 1) && r.At(0, 0) > r.At(2, 2):
		s := 2 * math.Sqrt(1+r.At(0, 0)-r.At(1, 1)-r.At(2, 2))
		q.Real = (r.At(2, 1) - r.At(1, 2)) / s
		q.Imag = s / 4
		q.Jmag = (r.At(0, 1) + r.At(1, 0)) / s
		q.Kmag = (r.At(0, 2) + r.At(2, 0)) / s
	case r.At(1, 1) > r.At(2, 2):
		s := 2 * math.Sqrt(1+r.At(1, 1)-r.At(0, 0)-r.At(2, 2))
		q.Real = (r.At(0, 2) - r.At(2, 0)) / s
		q.Imag = (r.At(0, 1) + r.At(1, 0)) / s
		q.Jmag = s / 4
		q.Kmag = (r.At(1, 2) + r.At(2, 1)) / s
	default:
		s := 2 * math.Sqrt(1+r.At(2, 2)-r.At(0, 0)-r.At(1, 1))
		q.Real = (r.At(1, 0) - r.At(0, 1)) / s
		q.Imag = (r.At(0, 2) + r.At(2, 0)) / s
		q.Jmag = (r.At(1, 2) + r.At(2, 1)) / s
		q.Kmag = s / 4
	}
	return q
}

// Normalize returns the unit quaternion pointing the same direction as q.
// The zero quaternion normalizes to the identity rotation.
func Normalize(q quat.Number) quat.Number {
	length := quat.Abs(q)
	if length == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/length, q)
}

// QuaternionAlmostEqual returns whether two quaternions represent rotations
// within tol of each other, accounting for the double cover (q and -q are the
// same rotation).
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	diff := quat.Mul(a, quat.Conj(b))
	return 2*math.Atan2(vectorNorm(diff), math.Abs(diff.Real)) < tol
}

func vectorNorm(q quat.Number) float64 {
	return math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
}
