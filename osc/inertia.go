package osc

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	// Below this determinant magnitude the task-space inertia is treated as
	// singular and inverted by damped SVD instead of directly.
	singularDetThreshold = 1e-5
	// Singular values at or below this fraction of the largest are zeroed in
	// the damped inverse.
	singularValueCutoff = 0.005
)

// invertTaskInertia inverts the task-space inertia inverse Mx_inv. Away from
// kinematic singularities a direct inverse is used; near them Mx_inv is
// rank-deficient and a naive inverse produces unbounded torques, so the
// near-zero singular directions are dropped instead.
func invertTaskInertia(mxInv *mat.Dense) (*mat.Dense, error) {
	n, _ := mxInv.Dims()
	mx := mat.NewDense(n, n, nil)
	if det := mat.Det(mxInv); math.Abs(det) >= singularDetThreshold {
		if err := mx.Inverse(mxInv); err != nil {
			if _, ok := err.(mat.Condition); !ok {
				return nil, errors.Wrap(err, "inverting task-space inertia")
			}
		}
		return mx, nil
	}

	var svd mat.SVD
	if !svd.Factorize(mxInv, mat.SVDThin) {
		return nil, errors.New("SVD of task-space inertia failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	values := svd.Values(nil)

	cutoff := singularValueCutoff * values[0]
	sInv := mat.NewDense(n, n, nil)
	for i, s := range values {
		if s > cutoff {
			sInv.Set(i, i, 1/s)
		}
	}

	mx.Product(&v, sInv, u.T())
	return mx, nil
}
