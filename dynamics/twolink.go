package dynamics

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// FrameLink1 is the frame at the far end of the first link (the elbow).
const FrameLink1 = Frame("link1")

// TwoLink is an analytic model of a two-joint revolute arm moving in the x-y
// plane, joints rotating about +z, gravity acting along -y. The closed forms
// for M, C and g are the textbook planar manipulator equations.
type TwoLink struct {
	// L1, L2 are link lengths in meters; R1, R2 the distances from each joint
	// to its link's center of mass.
	L1, L2 float64
	R1, R2 float64
	// M1, M2 are link masses in kilograms; I1, I2 the link moments of inertia
	// about their centers of mass.
	M1, M2 float64
	I1, I2 float64
	// G is gravitational acceleration, m/s^2.
	G float64
}

// NewTwoLink returns a two-link arm with half-meter links of one kilogram
// each, uniform-rod inertias, under standard gravity.
func NewTwoLink() *TwoLink {
	const l, m = 0.5, 1.0
	return &TwoLink{
		L1: l, L2: l,
		R1: l / 2, R2: l / 2,
		M1: m, M2: m,
		I1: m * l * l / 12, I2: m * l * l / 12,
		G: 9.81,
	}
}

// NumJoints returns 2.
func (a *TwoLink) NumJoints() int { return 2 }

// endpoint returns the planar world coordinates of the offset point within
// frame along with the frame's world angle.
func (a *TwoLink) endpoint(frame Frame, q []float64, offset r3.Vector) (x, y, theta float64, err error) {
	switch frame {
	case FrameLink1:
		theta = q[0]
		ex := (a.L1+offset.X)*math.Cos(theta) - offset.Y*math.Sin(theta)
		ey := (a.L1+offset.X)*math.Sin(theta) + offset.Y*math.Cos(theta)
		return ex, ey, theta, nil
	case FrameEndEffector:
		theta = q[0] + q[1]
		ex := a.L1*math.Cos(q[0]) + (a.L2+offset.X)*math.Cos(theta) - offset.Y*math.Sin(theta)
		ey := a.L1*math.Sin(q[0]) + (a.L2+offset.X)*math.Sin(theta) + offset.Y*math.Cos(theta)
		return ex, ey, theta, nil
	default:
		return 0, 0, 0, errors.Errorf("unknown frame %q", frame)
	}
}

// Jacobian implements Model. Rows are ordered [vx vy vz wx wy wz].
func (a *TwoLink) Jacobian(frame Frame, q []float64, offset r3.Vector) (*mat.Dense, error) {
	j := mat.NewDense(6, 2, nil)
	switch frame {
	case FrameLink1:
		ex := (a.L1+offset.X)*math.Cos(q[0]) - offset.Y*math.Sin(q[0])
		ey := (a.L1+offset.X)*math.Sin(q[0]) + offset.Y*math.Cos(q[0])
		j.Set(0, 0, -ey)
		j.Set(1, 0, ex)
		j.Set(5, 0, 1)
	case FrameEndEffector:
		theta := q[0] + q[1]
		// planar components of the offset point relative to the elbow
		ex := (a.L2+offset.X)*math.Cos(theta) - offset.Y*math.Sin(theta)
		ey := (a.L2+offset.X)*math.Sin(theta) + offset.Y*math.Cos(theta)
		j.Set(0, 0, -a.L1*math.Sin(q[0])-ey)
		j.Set(0, 1, -ey)
		j.Set(1, 0, a.L1*math.Cos(q[0])+ex)
		j.Set(1, 1, ex)
		j.Set(5, 0, 1)
		j.Set(5, 1, 1)
	default:
		return nil, errors.Errorf("unknown frame %q", frame)
	}
	return j, nil
}

// Inertia implements Model.
func (a *TwoLink) Inertia(q []float64) *mat.Dense {
	c2 := math.Cos(q[1])
	m11 := a.I1 + a.I2 + a.M1*a.R1*a.R1 + a.M2*(a.L1*a.L1+a.R2*a.R2+2*a.L1*a.R2*c2)
	m12 := a.I2 + a.M2*(a.R2*a.R2+a.L1*a.R2*c2)
	m22 := a.I2 + a.M2*a.R2*a.R2
	return mat.NewDense(2, 2, []float64{m11, m12, m12, m22})
}

// Position implements Model.
func (a *TwoLink) Position(frame Frame, q []float64, offset r3.Vector) (r3.Vector, error) {
	x, y, _, err := a.endpoint(frame, q, offset)
	if err != nil {
		return r3.Vector{}, err
	}
	return r3.Vector{X: x, Y: y, Z: offset.Z}, nil
}

// Rotation implements Model.
func (a *TwoLink) Rotation(frame Frame, q []float64) (*mat.Dense, error) {
	_, _, theta, err := a.endpoint(frame, q, r3.Vector{})
	if err != nil {
		return nil, err
	}
	c, s := math.Cos(theta), math.Sin(theta)
	return mat.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	}), nil
}

// Coriolis implements Model.
func (a *TwoLink) Coriolis(q, dq []float64) *mat.Dense {
	h := a.M2 * a.L1 * a.R2 * math.Sin(q[1])
	return mat.NewDense(2, 2, []float64{
		-h * dq[1], -h * (dq[0] + dq[1]),
		h * dq[0], 0,
	})
}

// Gravity implements Model.
func (a *TwoLink) Gravity(q []float64) []float64 {
	c1 := math.Cos(q[0])
	c12 := math.Cos(q[0] + q[1])
	g2 := a.M2 * a.R2 * a.G * c12
	g1 := (a.M1*a.R1+a.M2*a.L1)*a.G*c1 + g2
	return []float64{-g1, -g2}
}
