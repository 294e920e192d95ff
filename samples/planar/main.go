// Package main steers a simulated two-link planar arm to a task-space target
// with the operational space controller.
package main

import (
	"context"
	"flag"
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/utils"

	"go.viam.com/opspace/dynamics"
	"go.viam.com/opspace/jointctl"
	"go.viam.com/opspace/osc"
)

var logger = golog.NewDevelopmentLogger("planar")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	fs := flag.NewFlagSet(args[0], flag.ExitOnError)
	targetX := fs.Float64("x", 0.4, "target x position in meters")
	targetY := fs.Float64("y", 0.3, "target y position in meters")
	vmax := fs.Float64("vmax", 0.5, "end-effector speed cap in m/s")
	seconds := fs.Float64("seconds", 3.0, "how long to simulate")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	arm := dynamics.NewTwoLink()
	ctrl, err := osc.New(arm, osc.Config{
		KP:          50,
		KI:          0.05,
		VMax:        *vmax,
		UseCoriolis: true,
	}, logger, jointctl.NewRestingPosture([]float64{math.Pi / 4, math.Pi / 4}, 10, 2))
	if err != nil {
		return err
	}

	target := []float64{*targetX, *targetY, 0, 0, 0, 0}
	const dt = 1e-3
	q := []float64{math.Pi / 2, 0.1}
	dq := []float64{0, 0}

	steps := int(*seconds / dt)
	for i := 0; i < steps; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		u, err := ctrl.Generate(q, dq, target)
		if err != nil {
			return err
		}
		if q, dq, err = dynamics.Integrate(arm, q, dq, u, dt); err != nil {
			return err
		}
		if i%500 == 0 {
			pos, err := arm.Position(dynamics.FrameEndEffector, q, r3.Vector{})
			if err != nil {
				return err
			}
			logger.Infow("tracking",
				"t", float64(i)*dt,
				"x", pos.X, "y", pos.Y,
				"err", math.Hypot(pos.X-target[0], pos.Y-target[1]))
		}
	}

	pos, err := arm.Position(dynamics.FrameEndEffector, q, r3.Vector{})
	if err != nil {
		return err
	}
	logger.Infow("done",
		"x", pos.X, "y", pos.Y,
		"err", math.Hypot(pos.X-target[0], pos.Y-target[1]))
	return nil
}
