package osc

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// DefaultControlledDOF is the default task-dimension mask: position only.
var DefaultControlledDOF = []bool{true, true, true, false, false, false}

// Config holds the gains and options of a Controller. The zero value of each
// optional field selects its documented default.
type Config struct {
	// KP is the proportional gain on position error. Required, must be
	// positive.
	KP float64 `json:"kp"`
	// KO is the proportional gain on orientation error; 0 means use KP.
	KO float64 `json:"ko,omitempty"`
	// KV is the velocity (damping) gain; 0 means use sqrt(KP+KO).
	KV float64 `json:"kv,omitempty"`
	// KI is the integral gain on position error; 0 disables the integral
	// term.
	KI float64 `json:"ki,omitempty"`
	// VMax caps the commanded end-effector speed in task space; 0 means no
	// limiting.
	VMax float64 `json:"v_max,omitempty"`
	// ControlledDOF selects which of the six task dimensions
	// [x y z alpha beta gamma] are actively servoed. Must have length 6 when
	// set; nil means position only.
	ControlledDOF []bool `json:"controlled_dof,omitempty"`
	// DisableGravity turns off gravity compensation.
	DisableGravity bool `json:"disable_gravity,omitempty"`
	// UseCoriolis enables Coriolis and centripetal compensation.
	UseCoriolis bool `json:"use_coriolis,omitempty"`
}

// gains are the resolved numeric parameters of a controller.
type gains struct {
	kp, ko, kv, ki float64
	lambda         float64
	vmax           float64
}

// Validate checks the config and returns the resolved gains and DOF mask.
func (cfg *Config) Validate() (gains, [6]bool, error) {
	var err error
	if cfg.KP <= 0 {
		err = multierr.Append(err, errors.New("kp must be positive"))
	}
	if cfg.KO < 0 {
		err = multierr.Append(err, errors.New("ko cannot be negative"))
	}
	if cfg.KV < 0 {
		err = multierr.Append(err, errors.New("kv cannot be negative"))
	}
	if cfg.KI < 0 {
		err = multierr.Append(err, errors.New("ki cannot be negative"))
	}
	if cfg.VMax < 0 {
		err = multierr.Append(err, errors.New("v_max cannot be negative"))
	}

	g := gains{kp: cfg.KP, ko: cfg.KO, ki: cfg.KI, vmax: cfg.VMax}
	if g.ko == 0 {
		g.ko = g.kp
	}
	g.kv = cfg.KV
	if g.kv == 0 {
		g.kv = math.Sqrt(g.kp + g.ko)
	}
	if g.kv > 0 {
		g.lambda = g.kp / g.kv
	} else {
		err = multierr.Append(err, errors.New("resolved kv is zero"))
	}

	var dof [6]bool
	mask := cfg.ControlledDOF
	if mask == nil {
		mask = DefaultControlledDOF
	}
	if len(mask) != len(dof) {
		err = multierr.Append(err, errors.Errorf("controlled_dof must have length %d, got %d", len(dof), len(mask)))
	} else {
		copy(dof[:], mask)
		any := false
		for _, on := range dof {
			any = any || on
		}
		if !any {
			err = multierr.Append(err, errors.New("controlled_dof selects no task dimensions"))
		}
	}

	if err != nil {
		return gains{}, dof, err
	}
	return g, dof, nil
}
