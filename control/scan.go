package control

import "context"

// Mode says which component drives the actuators on a given frame.
type Mode int

const (
	// ModeTracking means a target was selected and the axis controllers
	// follow its centering error.
	ModeTracking Mode = iota
	// ModeScanning means the target has been absent long enough that the
	// scanner sweeps the pan axis.
	ModeScanning
)

func (m Mode) String() string {
	if m == ModeTracking {
		return "tracking"
	}
	return "scanning"
}

// Scanner sweeps the pan axis between its bounds while no target is selected.
// A debounce threshold of consecutive miss frames keeps single-frame
// detection dropouts from causing visible motion.
type Scanner struct {
	threshold int
	stepDeg   float64

	misses    int
	direction int
}

func NewScanner(missThreshold int, stepDeg float64) *Scanner {
	return &Scanner{
		threshold: missThreshold,
		stepDeg:   stepDeg,
		direction: 1,
	}
}

// Observe records whether this frame produced a target and returns the mode
// for the frame. The miss counter resets the instant a target appears, even
// mid-scan.
func (s *Scanner) Observe(targetFound bool) Mode {
	if targetFound {
		s.misses = 0
		return ModeTracking
	}
	s.misses++
	if s.misses >= s.threshold {
		return ModeScanning
	}
	return ModeTracking
}

// Mode reports whether the last observed frame left the scanner driving.
func (s *Scanner) Mode() Mode {
	if s.misses >= s.threshold {
		return ModeScanning
	}
	return ModeTracking
}

// Misses returns the consecutive target-absent frame count.
func (s *Scanner) Misses() int {
	return s.misses
}

// Direction returns the current sweep direction, +1 or -1.
func (s *Scanner) Direction() int {
	return s.direction
}

// Tick advances the sweep by one frame: the pan axis moves one step and
// reverses exactly at either bound, the tilt axis is re-sent unchanged.
func (s *Scanner) Tick(ctx context.Context, pan, tilt *Axis) error {
	next := pan.angle + float64(s.direction)*s.stepDeg
	if next >= float64(pan.cfg.MaxDeg) {
		next = float64(pan.cfg.MaxDeg)
		s.direction = -1
	} else if next <= float64(pan.cfg.MinDeg) {
		next = float64(pan.cfg.MinDeg)
		s.direction = 1
	}
	pan.angle = next
	if err := pan.command(ctx); err != nil {
		return err
	}
	return tilt.Hold(ctx)
}
