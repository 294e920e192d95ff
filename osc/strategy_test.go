package osc

import (
	"math"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestUnlimitedLawJointSpaceDamping(t *testing.T) {
	law := &unlimitedLaw{kp: 10, kv: 4}
	uTask := mat.NewVecDense(2, []float64{0.5, -0.25})
	targetVel := mat.NewVecDense(2, nil)
	j := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	m := mat.NewDense(2, 2, []float64{2, 0, 0, 3})
	dq := mat.NewVecDense(2, []float64{1, -1})

	out, base := law.apply(uTask, targetVel, j, m, dq)
	test.That(t, out.AtVec(0), test.ShouldAlmostEqual, -5, 1e-12)
	test.That(t, out.AtVec(1), test.ShouldAlmostEqual, 2.5, 1e-12)

	// zero target velocity puts the damping in joint space: -kv*M*dq
	test.That(t, base, test.ShouldNotBeNil)
	test.That(t, base.AtVec(0), test.ShouldAlmostEqual, -8, 1e-12)
	test.That(t, base.AtVec(1), test.ShouldAlmostEqual, 12, 1e-12)
}

func TestUnlimitedLawTaskSpaceCompensation(t *testing.T) {
	law := &unlimitedLaw{kp: 10, kv: 4}
	uTask := mat.NewVecDense(1, []float64{0.5})
	targetVel := mat.NewVecDense(1, []float64{0.2})
	j := mat.NewDense(1, 2, []float64{1, 1})
	m := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	dq := mat.NewVecDense(2, []float64{0.3, 0})

	out, base := law.apply(uTask, targetVel, j, m, dq)
	test.That(t, base, test.ShouldBeNil)
	// -kp*u - kv*(J*dq - targetVel)
	test.That(t, out.AtVec(0), test.ShouldAlmostEqual, -10*0.5-4*(0.3-0.2), 1e-12)
}

func TestVelocityLimitedLawClipsBindingDimension(t *testing.T) {
	law := &velocityLimitedLaw{kv: 4, lambda: 2.5, vmax: 0.5}
	uTask := mat.NewVecDense(1, []float64{10}) // far from target
	targetVel := mat.NewVecDense(1, nil)
	j := mat.NewDense(1, 2, []float64{1, 0})
	m := mat.NewDense(2, 2, nil)
	dq := mat.NewVecDense(2, nil)

	out, base := law.apply(uTask, targetVel, j, m, dq)
	test.That(t, base, test.ShouldBeNil)
	// at rest, the commanded force is -kv*vmax toward the target
	test.That(t, out.AtVec(0), test.ShouldAlmostEqual, -4*0.5, 1e-12)
}

func TestVelocityLimitedLawScalesProportionally(t *testing.T) {
	law := &velocityLimitedLaw{kv: 4, lambda: 2.5, vmax: 0.5}
	uTask := mat.NewVecDense(2, []float64{10, 2})
	targetVel := mat.NewVecDense(2, nil)
	j := mat.NewDense(2, 3, nil)
	m := mat.NewDense(3, 3, nil)
	dq := mat.NewVecDense(3, nil)

	out, _ := law.apply(uTask, targetVel, j, m, dq)
	// the binding dimension saturates at vmax, the other keeps the error
	// direction: commanded velocities stay in a 10:2 ratio
	test.That(t, out.AtVec(0), test.ShouldAlmostEqual, -4*0.5, 1e-12)
	test.That(t, out.AtVec(1)/out.AtVec(0), test.ShouldAlmostEqual, 0.2, 1e-12)
}

func TestVelocityLimitedLawBelowLimit(t *testing.T) {
	law := &velocityLimitedLaw{kv: 4, lambda: 2.5, vmax: 100}
	uTask := mat.NewVecDense(1, []float64{0.1})
	targetVel := mat.NewVecDense(1, nil)
	j := mat.NewDense(1, 1, []float64{1})
	m := mat.NewDense(1, 1, nil)
	dq := mat.NewVecDense(1, nil)

	out, _ := law.apply(uTask, targetVel, j, m, dq)
	// unsaturated: reduces to -kv*lambda*u, the plain proportional force
	test.That(t, out.AtVec(0), test.ShouldAlmostEqual, -4*2.5*0.1, 1e-12)
}

func TestVelocityLimitedLawZeroErrorDimension(t *testing.T) {
	law := &velocityLimitedLaw{kv: 4, lambda: 2.5, vmax: 0.5}
	uTask := mat.NewVecDense(2, []float64{10, 0})
	targetVel := mat.NewVecDense(2, nil)
	j := mat.NewDense(2, 2, nil)
	m := mat.NewDense(2, 2, nil)
	dq := mat.NewVecDense(2, nil)

	out, _ := law.apply(uTask, targetVel, j, m, dq)
	test.That(t, math.IsNaN(out.AtVec(0)), test.ShouldBeFalse)
	test.That(t, math.IsNaN(out.AtVec(1)), test.ShouldBeFalse)
	test.That(t, out.AtVec(0), test.ShouldAlmostEqual, -4*0.5, 1e-12)
	test.That(t, out.AtVec(1), test.ShouldAlmostEqual, 0, 1e-12)
}
