package osc

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// controlLaw converts the masked task-space error into the final task-space
// force, and optionally a joint-space base torque. uTask holds the scaled
// error on entry and may be mutated; a nil base torque means zero. Both laws
// are fixed at construction: they are alternative formulations, not a
// fallback path.
type controlLaw interface {
	apply(uTask, targetVel *mat.VecDense, j, m *mat.Dense, dq *mat.VecDense) (*mat.VecDense, *mat.VecDense)
}

// unlimitedLaw is the plain proportional law. When no tracking velocity is
// requested, damping is applied in joint space (-kv*M*dq), which behaves
// better numerically than task-space damping; otherwise velocity compensation
// stays in task space.
type unlimitedLaw struct {
	kp, kv float64
}

func (l *unlimitedLaw) apply(uTask, targetVel *mat.VecDense, j, m *mat.Dense, dq *mat.VecDense) (*mat.VecDense, *mat.VecDense) {
	uTask.ScaleVec(-l.kp, uTask)

	zeroVel := true
	for i := 0; i < targetVel.Len(); i++ {
		if targetVel.AtVec(i) != 0 {
			zeroVel = false
			break
		}
	}
	if zeroVel {
		var base mat.VecDense
		base.MulVec(m, dq)
		base.ScaleVec(-l.kv, &base)
		return uTask, &base
	}

	var dx mat.VecDense
	dx.MulVec(j, dq)
	for i := 0; i < uTask.Len(); i++ {
		uTask.SetVec(i, uTask.AtVec(i)-l.kv*(dx.AtVec(i)-targetVel.AtVec(i)))
	}
	return uTask, nil
}

// velocityLimitedLaw caps the commanded end-effector speed at vmax. The
// dimension with the least headroom is clipped to vmax and the others are
// scaled in proportion so the direction of approach is preserved. All damping
// is expressed in task space; the base torque is zero.
type velocityLimitedLaw struct {
	kv, lambda, vmax float64
}

func (l *velocityLimitedLaw) apply(uTask, targetVel *mat.VecDense, j, m *mat.Dense, dq *mat.VecDense) (*mat.VecDense, *mat.VecDense) {
	n := uTask.Len()

	// saturation ratio per dimension; a zero-error dimension has infinite
	// headroom, never a division fault
	sat := make([]float64, n)
	minSat, minIdx := math.Inf(1), 0
	for i := 0; i < n; i++ {
		if e := math.Abs(uTask.AtVec(i)); e != 0 {
			sat[i] = l.vmax / (l.lambda * e)
		} else {
			sat[i] = math.Inf(1)
		}
		if sat[i] < minSat {
			minSat, minIdx = sat[i], i
		}
	}

	scale := make([]float64, n)
	for i := range scale {
		scale[i] = 1
	}
	if minSat < 1 {
		for i := range scale {
			scale[i] = minSat
		}
		scale[minIdx] = 1
	}

	var dx mat.VecDense
	dx.MulVec(j, dq)
	for i := 0; i < n; i++ {
		ratio := sat[i] / scale[i]
		if ratio > 1 {
			ratio = 1
		} else if ratio < 0 {
			ratio = 0
		}
		uTask.SetVec(i, -l.kv*(dx.AtVec(i)-targetVel.AtVec(i)+ratio*l.lambda*scale[i]*uTask.AtVec(i)))
	}
	return uTask, nil
}
