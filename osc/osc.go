// Package osc implements an operational space controller: a per-tick control
// law that drives an arm's end-effector toward a task-space pose and velocity,
// mapped to joint torques through the Jacobian and inertia matrix, with
// optional secondary controllers blended in the primary task's null space.
package osc

import (
	"sync"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/opspace/dynamics"
	"go.viam.com/opspace/spatialmath"
)

// taskDimensions is the size of a full task-space pose [x y z alpha beta gamma].
const taskDimensions = 6

// A TorqueGenerator produces a joint torque from joint state alone. Secondary
// controllers implement it directly; the primary controller composes into it
// via Tracking.
type TorqueGenerator interface {
	Generate(q, dq []float64) ([]float64, error)
}

// Controller computes joint torques steering the end-effector toward a
// task-space target. The integral error accumulator is the only state carried
// between calls; everything else is a pure function of the inputs. One
// goroutine at a time may drive Generate.
type Controller struct {
	model       dynamics.Model
	logger      golog.Logger
	g           gains
	dof         [6]bool
	nCtrl       int
	law         controlLaw
	secondaries []TorqueGenerator
	useGravity  bool
	useCoriolis bool

	mu         sync.Mutex
	integrated [3]float64
	training   []float64
}

// New returns a Controller for the given model. Any secondary controllers are
// applied, in order, in the null space of the primary task.
func New(model dynamics.Model, cfg Config, logger golog.Logger, secondaries ...TorqueGenerator) (*Controller, error) {
	g, dof, err := cfg.Validate()
	if err != nil {
		return nil, errors.Wrap(err, "invalid controller config")
	}

	nCtrl := 0
	for _, on := range dof {
		if on {
			nCtrl++
		}
	}
	if n := model.NumJoints(); nCtrl > n {
		logger.Warnf(
			"robot has fewer joints (%d) than the %d task dimensions to control; poor performance may result",
			n, nCtrl)
	}

	var law controlLaw
	if g.vmax > 0 {
		law = &velocityLimitedLaw{kv: g.kv, lambda: g.lambda, vmax: g.vmax}
	} else {
		law = &unlimitedLaw{kp: g.kp, kv: g.kv}
	}

	return &Controller{
		model:       model,
		logger:      logger,
		g:           g,
		dof:         dof,
		nCtrl:       nCtrl,
		law:         law,
		secondaries: secondaries,
		useGravity:  !cfg.DisableGravity,
		useCoriolis: cfg.UseCoriolis,
	}, nil
}

type generateOptions struct {
	targetVel []float64
	refFrame  dynamics.Frame
	offset    r3.Vector
}

// GenerateOption configures a single Generate call.
type GenerateOption func(*generateOptions)

// WithTargetVelocity sets the desired task-space velocity, length 6. Defaults
// to zero.
func WithTargetVelocity(vel []float64) GenerateOption {
	return func(o *generateOptions) { o.targetVel = vel }
}

// WithReferenceFrame sets the frame whose point of interest is controlled.
// Defaults to the end-effector.
func WithReferenceFrame(frame dynamics.Frame) GenerateOption {
	return func(o *generateOptions) { o.refFrame = frame }
}

// WithOffset sets the point of interest within the reference frame, in that
// frame's coordinates. Defaults to the origin.
func WithOffset(offset r3.Vector) GenerateOption {
	return func(o *generateOptions) { o.offset = offset }
}

// Generate computes the joint torque moving the point of interest toward the
// target pose [x y z alpha beta gamma] (meters, radians). It returns a newly
// allocated vector of length NumJoints.
func (c *Controller) Generate(q, dq, target []float64, opts ...GenerateOption) ([]float64, error) {
	o := generateOptions{refFrame: dynamics.FrameEndEffector}
	for _, opt := range opts {
		opt(&o)
	}

	n := c.model.NumJoints()
	if len(q) != n || len(dq) != n {
		return nil, errors.Errorf("expected joint state of length %d, got %d and %d", n, len(q), len(dq))
	}
	if len(target) != taskDimensions {
		return nil, errors.Errorf("target must have length %d, got %d", taskDimensions, len(target))
	}
	targetVel := o.targetVel
	if targetVel == nil {
		targetVel = make([]float64, taskDimensions)
	} else if len(targetVel) != taskDimensions {
		return nil, errors.Errorf("target velocity must have length %d, got %d", taskDimensions, len(targetVel))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	jFull, err := c.model.Jacobian(o.refFrame, q, o.offset)
	if err != nil {
		return nil, err
	}
	j := c.maskRows(jFull)

	// joint-space inertia and its task-space counterpart
	mJoint := c.model.Inertia(q)
	var mInv mat.Dense
	if err := mInv.Inverse(mJoint); err != nil {
		// a poorly conditioned inertia matrix still yields a usable inverse
		if _, ok := err.(mat.Condition); !ok {
			return nil, errors.Wrap(err, "inverting joint-space inertia")
		}
	}
	var mxInv mat.Dense
	mxInv.Product(j, &mInv, j.T())
	mx, err := invertTaskInertia(&mxInv)
	if err != nil {
		return nil, err
	}

	// task-space error for the controlled dimensions
	uTaskFull := make([]float64, taskDimensions)
	var pos r3.Vector
	positionControlled := c.dof[0] || c.dof[1] || c.dof[2]
	if positionControlled {
		pos, err = c.model.Position(o.refFrame, q, o.offset)
		if err != nil {
			return nil, err
		}
		uTaskFull[0] = pos.X - target[0]
		uTaskFull[1] = pos.Y - target[1]
		uTaskFull[2] = pos.Z - target[2]
	}
	if c.dof[3] || c.dof[4] || c.dof[5] {
		if err := c.orientationError(q, target, uTaskFull); err != nil {
			return nil, err
		}
	}

	uTask := mat.NewVecDense(c.nCtrl, c.maskTask(uTaskFull))
	tvActive := mat.NewVecDense(c.nCtrl, c.maskTask(targetVel))
	dqVec := mat.NewVecDense(n, dq)

	uTask, base := c.law.apply(uTask, tvActive, j, mJoint, dqVec)

	// integral of position error, persisted across ticks
	if c.g.ki != 0 && positionControlled {
		c.integrated[0] += target[0] - pos.X
		c.integrated[1] += target[1] - pos.Y
		c.integrated[2] += target[2] - pos.Z
		row := 0
		for dim, on := range c.dof {
			if !on {
				continue
			}
			if dim < 3 {
				uTask.SetVec(row, uTask.AtVec(row)-c.g.ki*c.integrated[dim])
			}
			row++
		}
	}

	torque := mat.NewVecDense(n, nil)
	if base != nil {
		torque.CopyVec(base)
	}

	// dynamically consistent map from task force to joint torque
	var fTask, jtf mat.VecDense
	fTask.MulVec(mx, uTask)
	jtf.MulVec(j.T(), &fTask)
	torque.AddVec(torque, &jtf)

	if c.useCoriolis {
		var cdq mat.VecDense
		cdq.MulVec(c.model.Coriolis(q, dq), dqVec)
		torque.SubVec(torque, &cdq)
	}

	// snapshot before gravity and null-space terms, for adaptive consumers
	if c.training == nil {
		c.training = make([]float64, n)
	}
	copy(c.training, torque.RawVector().Data)

	if c.useGravity {
		g := c.model.Gravity(q)
		for i := 0; i < n; i++ {
			torque.SetVec(i, torque.AtVec(i)-g[i])
		}
	}

	if len(c.secondaries) > 0 {
		if err := c.addNullSpace(torque, j, &mInv, mx, q, dq); err != nil {
			return nil, err
		}
	}

	out := make([]float64, n)
	copy(out, torque.RawVector().Data)
	return out, nil
}

// orientationError writes the orientation components of the task error into
// uTask. The error is the vector part of the rotation taking the current
// end-effector orientation to the target, scaled by -(ko/kp) and by the sign
// of the scalar part. The sign term resolves the quaternion double cover.
func (c *Controller) orientationError(q, target, uTask []float64) error {
	qTarget := spatialmath.Normalize(
		spatialmath.QuaternionFromEulerXYZ(target[3], target[4], target[5]))
	rot, err := c.model.Rotation(dynamics.FrameEndEffector, q)
	if err != nil {
		return err
	}
	qCurrent := spatialmath.Normalize(spatialmath.QuaternionFromRotationMatrix(rot))
	qRel := quat.Mul(qTarget, quat.Conj(qCurrent))

	sign := 0.0
	switch {
	case qRel.Real > 0:
		sign = 1
	case qRel.Real < 0:
		sign = -1
	}
	k := -c.g.ko / c.g.kp * sign
	uTask[3] = k * qRel.Imag
	uTask[4] = k * qRel.Jmag
	uTask[5] = k * qRel.Kmag
	return nil
}

// addNullSpace projects each secondary controller's torque through the
// primary task's null-space projector and adds it to torque. Every secondary
// signal passes through the same projector and the results are summed, so
// none of them can exert a task-space force.
func (c *Controller) addNullSpace(torque *mat.VecDense, j, mInv, mx *mat.Dense, q, dq []float64) error {
	n := c.model.NumJoints()

	var jBar mat.Dense
	jBar.Product(mInv, j.T(), mx)

	var proj mat.Dense
	proj.Mul(j.T(), jBar.T())
	proj.Sub(identity(n), &proj)

	for _, sec := range c.secondaries {
		uNull, err := sec.Generate(q, dq)
		if err != nil {
			return errors.Wrap(err, "secondary controller")
		}
		if len(uNull) != n {
			return errors.Errorf("secondary controller returned torque of length %d, expected %d", len(uNull), n)
		}
		var filtered mat.VecDense
		filtered.MulVec(&proj, mat.NewVecDense(n, uNull))
		torque.AddVec(torque, &filtered)
	}
	return nil
}

// maskRows selects the Jacobian rows of the controlled task dimensions.
func (c *Controller) maskRows(jFull *mat.Dense) *mat.Dense {
	_, n := jFull.Dims()
	j := mat.NewDense(c.nCtrl, n, nil)
	row := 0
	for dim, on := range c.dof {
		if !on {
			continue
		}
		for col := 0; col < n; col++ {
			j.Set(row, col, jFull.At(dim, col))
		}
		row++
	}
	return j
}

// maskTask selects the entries of a length-6 task vector whose dimensions are
// controlled.
func (c *Controller) maskTask(full []float64) []float64 {
	out := make([]float64, 0, c.nCtrl)
	for dim, on := range c.dof {
		if on {
			out = append(out, full[dim])
		}
	}
	return out
}

// TrainingSignal returns a copy of the most recent torque before gravity and
// null-space terms were added, or nil before the first Generate call. It is
// the feedback signal adaptive-dynamics consumers train against.
func (c *Controller) TrainingSignal() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.training == nil {
		return nil
	}
	out := make([]float64, len(c.training))
	copy(out, c.training)
	return out
}

// IntegratedError returns a copy of the accumulated task-space position
// error.
func (c *Controller) IntegratedError() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]float64, len(c.integrated))
	copy(out, c.integrated[:])
	return out
}

// ResetIntegratedError zeroes the accumulated position error, e.g. between
// episodes.
func (c *Controller) ResetIntegratedError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.integrated = [3]float64{}
}

// Tracking binds a fixed target pose and velocity, composing the controller
// into the TorqueGenerator capability shared with secondary controllers.
func (c *Controller) Tracking(target []float64, opts ...GenerateOption) TorqueGenerator {
	return &trackingGenerator{c: c, target: target, opts: opts}
}

type trackingGenerator struct {
	c      *Controller
	target []float64
	opts   []GenerateOption
}

func (t *trackingGenerator) Generate(q, dq []float64) ([]float64, error) {
	return t.c.Generate(q, dq, t.target, t.opts...)
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
