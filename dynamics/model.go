// Package dynamics describes the kinematic and dynamic quantities of a
// serial-chain arm that a task-space controller needs each tick, and provides
// an analytic two-link planar arm implementing them.
package dynamics

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Frame names a point of reference on the arm.
type Frame string

// FrameEndEffector is the frame at the tip of the final link. Models may
// define additional frames for intermediate links.
const FrameEndEffector = Frame("EE")

// Model supplies the per-configuration quantities of an arm. All matrices are
// newly allocated on each call; implementations must not retain or mutate the
// q and dq slices they are given.
type Model interface {
	// NumJoints returns the number of actuated joints N.
	NumJoints() int

	// Jacobian returns the 6xN matrix mapping joint velocities to the linear
	// and angular velocity of the given offset point within frame. The offset
	// is expressed in the frame's local coordinates.
	Jacobian(frame Frame, q []float64, offset r3.Vector) (*mat.Dense, error)

	// Inertia returns the NxN joint-space mass matrix M(q).
	Inertia(q []float64) *mat.Dense

	// Position returns the world position of the offset point within frame.
	Position(frame Frame, q []float64, offset r3.Vector) (r3.Vector, error)

	// Rotation returns the 3x3 world rotation matrix of the given frame.
	Rotation(frame Frame, q []float64) (*mat.Dense, error)

	// Coriolis returns the NxN matrix C(q,dq) of Coriolis and centripetal
	// terms, such that C(q,dq)*dq is the corresponding joint torque.
	Coriolis(q, dq []float64) *mat.Dense

	// Gravity returns the torque gravity exerts on each joint. A controller
	// compensates by subtracting it from its command.
	Gravity(q []float64) []float64
}

// Integrate advances joint state one timestep under an applied torque using
// semi-implicit Euler, and returns the new q and dq.
func Integrate(m Model, q, dq, u []float64, dt float64) ([]float64, []float64, error) {
	n := m.NumJoints()
	if len(q) != n || len(dq) != n || len(u) != n {
		return nil, nil, errors.Errorf("expected state and torque of length %d, got %d, %d, %d", n, len(q), len(dq), len(u))
	}

	rhs := mat.NewVecDense(n, nil)
	g := m.Gravity(q)
	for i := 0; i < n; i++ {
		rhs.SetVec(i, u[i]+g[i])
	}
	var cdq mat.VecDense
	cdq.MulVec(m.Coriolis(q, dq), mat.NewVecDense(n, dq))
	rhs.SubVec(rhs, &cdq)

	var ddq mat.VecDense
	if err := ddq.SolveVec(m.Inertia(q), rhs); err != nil {
		return nil, nil, errors.Wrap(err, "solving forward dynamics")
	}

	nextQ := make([]float64, n)
	nextDQ := make([]float64, n)
	for i := 0; i < n; i++ {
		nextDQ[i] = dq[i] + ddq.AtVec(i)*dt
		nextQ[i] = q[i] + nextDQ[i]*dt
	}
	return nextQ, nextDQ, nil
}
