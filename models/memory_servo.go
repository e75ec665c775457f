// Package models holds the Viam resource models this module registers.
package models

import (
	"context"
	"sync"

	"go.viam.com/rdk/components/servo"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
)

var MemoryServo = resource.NewModel("jbeats13", "cat", "memory-servo")

func init() {
	resource.RegisterComponent(servo.API, MemoryServo,
		resource.Registration[servo.Servo, *MemoryServoConfig]{
			Constructor: newMemoryServo,
		},
	)
}

type MemoryServoConfig struct {
	resource.TriviallyValidateConfig
}

// memoryServo is a servo with no hardware behind it: it remembers the last
// commanded angle and nothing more. It lets the tracking loop run on machines
// without a pan/tilt rig attached, with the same command contract as a real
// servo: whole degrees, clamped to [0, 180], reading 90 until first moved.
type memoryServo struct {
	resource.Named
	resource.AlwaysRebuild
	resource.TriviallyCloseable

	mu    sync.Mutex
	angle uint32
}

func newMemoryServo(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (servo.Servo, error) {
	return NewMemoryServo(rawConf.ResourceName()), nil
}

func NewMemoryServo(name resource.Name) servo.Servo {
	return &memoryServo{
		Named: name.AsNamed(),
		angle: 90,
	}
}

func (s *memoryServo) Move(ctx context.Context, angleDeg uint32, extra map[string]interface{}) error {
	if angleDeg > 180 {
		angleDeg = 180
	}
	s.mu.Lock()
	s.angle = angleDeg
	s.mu.Unlock()
	return nil
}

func (s *memoryServo) Position(ctx context.Context, extra map[string]interface{}) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.angle, nil
}

func (s *memoryServo) Stop(ctx context.Context, extra map[string]interface{}) error {
	return nil
}

func (s *memoryServo) IsMoving(ctx context.Context) (bool, error) {
	return false, nil
}
