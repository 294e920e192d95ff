// Package jointctl provides simple joint-space controllers meant to run in
// the null space of a task-space controller: velocity damping and a
// resting-posture attractor.
package jointctl

import (
	"github.com/pkg/errors"
)

// Damping produces a torque opposing joint velocity, u = -kv*dq.
type Damping struct {
	kv float64
}

// NewDamping returns a joint-space velocity damper with gain kv.
func NewDamping(kv float64) *Damping {
	return &Damping{kv: kv}
}

// Generate returns the damping torque for the given joint state.
func (d *Damping) Generate(q, dq []float64) ([]float64, error) {
	if len(q) != len(dq) {
		return nil, errors.Errorf("mismatched state lengths %d and %d", len(q), len(dq))
	}
	u := make([]float64, len(dq))
	for i, v := range dq {
		u[i] = -d.kv * v
	}
	return u, nil
}

// RestingPosture drives the joints toward a rest configuration with a PD law,
// u = kp*(rest-q) - kv*dq. Run in a primary task's null space, it resolves
// arm redundancy toward the rest posture without disturbing the task.
type RestingPosture struct {
	rest   []float64
	kp, kv float64
}

// NewRestingPosture returns a resting-posture controller. The rest slice is
// copied.
func NewRestingPosture(rest []float64, kp, kv float64) *RestingPosture {
	r := make([]float64, len(rest))
	copy(r, rest)
	return &RestingPosture{rest: r, kp: kp, kv: kv}
}

// Generate returns the PD torque toward the rest configuration.
func (r *RestingPosture) Generate(q, dq []float64) ([]float64, error) {
	if len(q) != len(r.rest) || len(dq) != len(r.rest) {
		return nil, errors.Errorf("expected state of length %d, got %d and %d", len(r.rest), len(q), len(dq))
	}
	u := make([]float64, len(q))
	for i := range u {
		u[i] = r.kp*(r.rest[i]-q[i]) - r.kv*dq[i]
	}
	return u, nil
}
