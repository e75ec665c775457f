// Package control holds the per-axis proportional controllers and the scan
// state machine that drive the pan/tilt actuators.
package control

import (
	"context"
	"fmt"
	"math"
)

// Actuator is the two-operation device surface the controllers are written
// against. go.viam.com/rdk/components/servo.Servo satisfies it, as does any
// in-memory substitute honoring the same contract.
type Actuator interface {
	Move(ctx context.Context, angleDeg uint32, extra map[string]interface{}) error
	Position(ctx context.Context, extra map[string]interface{}) (uint32, error)
}

// AxisConfig describes one rotational degree of freedom. Values are fixed for
// the process lifetime.
type AxisConfig struct {
	CenterDeg int     `json:"center"`
	MinDeg    int     `json:"min"`
	MaxDeg    int     `json:"max"`
	Gain      float64 `json:"gain"`
	Deadzone  float64 `json:"deadzone"`
	Invert    bool    `json:"invert"`
}

// Validate rejects configuration that makes tracking impossible. Axis ranges
// must fit inside the actuator's hardware-safe [0, 180] span.
func (c AxisConfig) Validate() error {
	if c.MinDeg > c.MaxDeg {
		return fmt.Errorf("min angle %d greater than max angle %d", c.MinDeg, c.MaxDeg)
	}
	if c.CenterDeg < c.MinDeg || c.CenterDeg > c.MaxDeg {
		return fmt.Errorf("center angle %d outside [%d, %d]", c.CenterDeg, c.MinDeg, c.MaxDeg)
	}
	if c.MinDeg < 0 || c.MaxDeg > 180 {
		return fmt.Errorf("range [%d, %d] outside servo travel [0, 180]", c.MinDeg, c.MaxDeg)
	}
	if c.Gain <= 0 {
		return fmt.Errorf("gain must be positive, got %f", c.Gain)
	}
	if c.Deadzone < 0 || c.Deadzone >= 1 {
		return fmt.Errorf("deadzone must be in [0, 1), got %f", c.Deadzone)
	}
	return nil
}

// Axis is a proportional controller for a single joint. The angle accumulates
// in floating precision across frames; only the command sent to the actuator
// is rounded.
type Axis struct {
	cfg      AxisConfig
	actuator Actuator
	angle    float64
}

func NewAxis(cfg AxisConfig, actuator Actuator) *Axis {
	return &Axis{
		cfg:      cfg,
		actuator: actuator,
		angle:    float64(cfg.CenterDeg),
	}
}

// Angle returns the accumulated (unrounded) angle.
func (a *Axis) Angle() float64 {
	return a.angle
}

// Step applies one frame of proportional correction for the given normalized
// error and commands the actuator. Errors inside the deadzone produce no
// motion but the hold command is still issued.
func (a *Axis) Step(ctx context.Context, err float64) error {
	if a.cfg.Invert {
		err = -err
	}
	if math.Abs(err) < a.cfg.Deadzone {
		err = 0
	}
	next := a.angle + a.cfg.Gain*err*float64(a.cfg.MaxDeg-a.cfg.MinDeg)*0.5
	a.angle = Clamp(next, float64(a.cfg.MinDeg), float64(a.cfg.MaxDeg))
	return a.command(ctx)
}

// Center snaps the axis back to its configured center angle.
func (a *Axis) Center(ctx context.Context) error {
	a.angle = float64(a.cfg.CenterDeg)
	return a.command(ctx)
}

// Hold re-sends the current angle without recomputing it.
func (a *Axis) Hold(ctx context.Context) error {
	return a.command(ctx)
}

func (a *Axis) command(ctx context.Context) error {
	deg := Clamp(math.Round(a.angle), 0, 180)
	return a.actuator.Move(ctx, uint32(deg), nil)
}

// Clamp bounds value to [min, max].
func Clamp(value, min, max float64) float64 {
	return math.Max(min, math.Min(max, value))
}
