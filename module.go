// Package cat keeps a pan/tilt camera rig pointed at a chosen class of moving
// subject. A vision service supplies per-frame detections; the service picks
// one target, converts its offset from frame center into servo corrections,
// and sweeps the pan axis when the target has been gone for a while.
package cat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/components/servo"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	genericservice "go.viam.com/rdk/services/generic"
	"go.viam.com/rdk/services/vision"
	rdk_utils "go.viam.com/utils"

	"github.com/jbeats13/cat/control"
	"github.com/jbeats13/cat/selector"
)

var Follower = resource.NewModel("jbeats13", "cat", "follower")

func init() {
	resource.RegisterService(genericservice.API, Follower,
		resource.Registration[resource.Resource, *Config]{
			Constructor: newFollower,
		},
	)
}

// Defaults match the original Arducam pan/tilt rig this was built for.
var (
	defaultPan  = control.AxisConfig{CenterDeg: 90, MinDeg: 30, MaxDeg: 150}
	defaultTilt = control.AxisConfig{CenterDeg: 90, MinDeg: 50, MaxDeg: 130}
)

const (
	defaultGain          = 0.55
	defaultDeadzone      = 0.05
	defaultMissThreshold = 10
	defaultScanStepDeg   = 2.0
	defaultUpdateRateHz  = 15.0
	defaultSweepStepDeg  = 5
	sweepStepDelay       = 50 * time.Millisecond
)

type Config struct {
	CameraName    string `json:"camera_name"`
	DetectorName  string `json:"detector_name"`
	PanServoName  string `json:"pan_servo_name"`
	TiltServoName string `json:"tilt_servo_name"`

	Pan  control.AxisConfig `json:"pan"`
	Tilt control.AxisConfig `json:"tilt"`

	Classes   []string `json:"classes"`
	MinWidth  int      `json:"min_width"`
	MinHeight int      `json:"min_height"`

	MissThreshold   int     `json:"miss_threshold"`
	ScanStepDegrees float64 `json:"scan_step_degrees"`

	UpdateRateHz  float64 `json:"update_rate_hz"`
	EnableOnStart bool    `json:"enable_on_start"`
}

// Validate ensures all parts of the config are valid and important fields
// exist, filling documented defaults on zero values. It returns the four
// collaborator resources as required implicit dependencies.
func (cfg *Config) Validate(path string) ([]string, []string, error) {
	if cfg.CameraName == "" {
		return nil, nil, errors.New("camera_name is required")
	}
	if cfg.DetectorName == "" {
		return nil, nil, errors.New("detector_name is required")
	}
	if cfg.PanServoName == "" {
		return nil, nil, errors.New("pan_servo_name is required")
	}
	if cfg.TiltServoName == "" {
		return nil, nil, errors.New("tilt_servo_name is required")
	}
	if len(cfg.Classes) == 0 {
		return nil, nil, errors.New("classes must name at least one class to track")
	}
	if cfg.MinWidth < 0 || cfg.MinHeight < 0 {
		return nil, nil, errors.New("min_width and min_height must not be negative")
	}
	if cfg.MissThreshold < 0 {
		return nil, nil, errors.New("miss_threshold must not be negative")
	}
	if cfg.ScanStepDegrees < 0 {
		return nil, nil, errors.New("scan_step_degrees must not be negative")
	}
	if cfg.UpdateRateHz < 0 {
		return nil, nil, errors.New("update_rate_hz must not be negative")
	}

	if cfg.Pan.MinDeg == 0 && cfg.Pan.MaxDeg == 0 {
		cfg.Pan.CenterDeg = defaultPan.CenterDeg
		cfg.Pan.MinDeg = defaultPan.MinDeg
		cfg.Pan.MaxDeg = defaultPan.MaxDeg
	}
	if cfg.Tilt.MinDeg == 0 && cfg.Tilt.MaxDeg == 0 {
		cfg.Tilt.CenterDeg = defaultTilt.CenterDeg
		cfg.Tilt.MinDeg = defaultTilt.MinDeg
		cfg.Tilt.MaxDeg = defaultTilt.MaxDeg
	}
	if cfg.Pan.Gain == 0 {
		cfg.Pan.Gain = defaultGain
	}
	if cfg.Tilt.Gain == 0 {
		cfg.Tilt.Gain = defaultGain
	}
	if cfg.Pan.Deadzone == 0 {
		cfg.Pan.Deadzone = defaultDeadzone
	}
	if cfg.Tilt.Deadzone == 0 {
		cfg.Tilt.Deadzone = defaultDeadzone
	}
	if cfg.MissThreshold == 0 {
		cfg.MissThreshold = defaultMissThreshold
	}
	if cfg.ScanStepDegrees == 0 {
		cfg.ScanStepDegrees = defaultScanStepDeg
	}
	if cfg.UpdateRateHz == 0 {
		cfg.UpdateRateHz = defaultUpdateRateHz
	}

	if err := cfg.Pan.Validate(); err != nil {
		return nil, nil, fmt.Errorf("pan: %w", err)
	}
	if err := cfg.Tilt.Validate(); err != nil {
		return nil, nil, fmt.Errorf("tilt: %w", err)
	}

	return []string{cfg.CameraName, cfg.DetectorName, cfg.PanServoName, cfg.TiltServoName}, nil, nil
}

type followService struct {
	resource.AlwaysRebuild

	name   resource.Name
	logger logging.Logger
	cfg    *Config

	cam      camera.Camera
	detector vision.Service
	classIDs map[string]int
	filter   selector.Filter

	// mu serializes every actuator write: only one of the tracking loop,
	// sweep, or recenter may command the servos at a time.
	mu        sync.Mutex
	panServo  servo.Servo
	tiltServo servo.Servo
	pan       *control.Axis
	tilt      *control.Axis
	scanner   *control.Scanner
	worker    *rdk_utils.StoppableWorkers
}

func newFollower(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (resource.Resource, error) {
	conf, err := resource.NativeConfig[*Config](rawConf)
	if err != nil {
		return nil, err
	}
	return NewFollower(ctx, deps, rawConf.ResourceName(), conf, logger)
}

// NewFollower builds the service from an already-validated config, centers
// both axes, and starts the tracking loop if configured to.
func NewFollower(ctx context.Context, deps resource.Dependencies, name resource.Name, conf *Config, logger logging.Logger) (resource.Resource, error) {
	cam, err := camera.FromDependencies(deps, conf.CameraName)
	if err != nil {
		return nil, fmt.Errorf("failed to get camera %q: %w", conf.CameraName, err)
	}
	detector, err := vision.FromDependencies(deps, conf.DetectorName)
	if err != nil {
		return nil, fmt.Errorf("failed to get detector %q: %w", conf.DetectorName, err)
	}
	panServo, err := servo.FromDependencies(deps, conf.PanServoName)
	if err != nil {
		return nil, fmt.Errorf("failed to get pan servo %q: %w", conf.PanServoName, err)
	}
	tiltServo, err := servo.FromDependencies(deps, conf.TiltServoName)
	if err != nil {
		return nil, fmt.Errorf("failed to get tilt servo %q: %w", conf.TiltServoName, err)
	}

	// Detections carry string labels; give each configured class a stable
	// numeric id so the selector can stay label-agnostic.
	classIDs := make(map[string]int, len(conf.Classes))
	allowed := make(map[int]bool, len(conf.Classes))
	for i, class := range conf.Classes {
		classIDs[class] = i
		allowed[i] = true
	}

	s := &followService{
		name:      name,
		logger:    logger,
		cfg:       conf,
		cam:       cam,
		detector:  detector,
		classIDs:  classIDs,
		filter:    selector.Filter{AllowedClasses: allowed, MinWidth: conf.MinWidth, MinHeight: conf.MinHeight},
		panServo:  panServo,
		tiltServo: tiltServo,
		pan:       control.NewAxis(conf.Pan, panServo),
		tilt:      control.NewAxis(conf.Tilt, tiltServo),
		scanner:   control.NewScanner(conf.MissThreshold, conf.ScanStepDegrees),
	}

	if err := s.pan.Center(ctx); err != nil {
		return nil, fmt.Errorf("failed to center pan servo: %w", err)
	}
	if err := s.tilt.Center(ctx); err != nil {
		return nil, fmt.Errorf("failed to center tilt servo: %w", err)
	}

	if conf.EnableOnStart {
		if err := s.start(); err != nil {
			return nil, err
		}
		logger.Infof("follower started, tracking %v", conf.Classes)
	}
	return s, nil
}

func (s *followService) Name() resource.Name {
	return s.name
}

// start launches the tracking loop. It fails if the loop is already running.
func (s *followService) start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.worker != nil {
		return errors.New("tracking loop already running")
	}
	s.worker = rdk_utils.NewBackgroundStoppableWorkers(s.trackingLoop)
	return nil
}

// stop halts the tracking loop and re-centers both axes.
func (s *followService) stop() {
	s.mu.Lock()
	worker := s.worker
	s.worker = nil
	s.mu.Unlock()
	if worker != nil {
		worker.Stop()
	}
	s.recenter()
}

func (s *followService) trackingLoop(ctx context.Context) {
	interval := time.Duration(float64(time.Second) / s.cfg.UpdateRateHz)
	s.logger.Infof("tracking loop running at %.1f Hz (every %v)", s.cfg.UpdateRateHz, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.processFrame(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				// Capture and actuator failures end the run; the axes
				// are parked at center rather than wherever the fault
				// left them.
				s.logger.Errorf("tracking loop stopping: %v", err)
				s.recenter()
				s.mu.Lock()
				s.worker = nil
				s.mu.Unlock()
				return
			}
		}
	}
}

// processFrame runs one iteration of the control loop: capture, detect,
// select, then either correct toward the target or advance the scan.
func (s *followService) processFrame(ctx context.Context) error {
	img, err := camera.DecodeImageFromCamera(ctx, "", nil, s.cam)
	if err != nil {
		return fmt.Errorf("capture frame: %w", err)
	}
	detections, err := s.detector.Detections(ctx, img, nil)
	if err != nil {
		return fmt.Errorf("run detector: %w", err)
	}

	candidates := make([]selector.Detection, 0, len(detections))
	for _, d := range detections {
		box := d.BoundingBox()
		if box == nil {
			continue
		}
		id, ok := s.classIDs[d.Label()]
		if !ok {
			id = -1
		}
		candidates = append(candidates, selector.Detection{
			ClassID:    id,
			Box:        *box,
			Confidence: d.Score(),
		})
	}

	bounds := img.Bounds()

	s.mu.Lock()
	defer s.mu.Unlock()

	target, found := selector.Select(candidates, s.filter)
	mode := s.scanner.Observe(found)
	if found {
		offset := selector.CenterError(target, float64(bounds.Dx()), float64(bounds.Dy()))
		s.logger.Debugf("tracking %s: area=%d err=(%.3f, %.3f) pan=%.1f tilt=%.1f",
			s.cfg.Classes[target.ClassID], target.Area, offset.X, offset.Y, s.pan.Angle(), s.tilt.Angle())
		if err := s.pan.Step(ctx, offset.X); err != nil {
			return fmt.Errorf("pan command: %w", err)
		}
		if err := s.tilt.Step(ctx, offset.Y); err != nil {
			return fmt.Errorf("tilt command: %w", err)
		}
		return nil
	}

	if mode == control.ModeScanning {
		if err := s.scanner.Tick(ctx, s.pan, s.tilt); err != nil {
			return fmt.Errorf("scan command: %w", err)
		}
		s.logger.Debugf("scanning: pan=%.1f direction=%+d", s.pan.Angle(), s.scanner.Direction())
	}
	return nil
}

// recenter parks both axes at their configured center. It runs on its own
// context so shutdown cleanup happens even after the loop context is gone.
func (s *followService) recenter() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pan.Center(ctx); err != nil {
		s.logger.Errorf("failed to re-center pan servo: %v", err)
	}
	if err := s.tilt.Center(ctx); err != nil {
		s.logger.Errorf("failed to re-center tilt servo: %v", err)
	}
}

func (s *followService) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	var req struct {
		Command     string `mapstructure:"command"`
		StepDegrees int    `mapstructure:"step_degrees"`
	}
	// Numbers arrive as float64 over gRPC; weak decoding converts them.
	if err := mapstructure.WeakDecode(cmd, &req); err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}

	switch req.Command {
	case "status":
		s.mu.Lock()
		defer s.mu.Unlock()
		return map[string]interface{}{
			"running":             s.worker != nil,
			"mode":                s.scanner.Mode().String(),
			"pan_angle":           s.pan.Angle(),
			"tilt_angle":          s.tilt.Angle(),
			"frames_since_target": s.scanner.Misses(),
			"scan_direction":      s.scanner.Direction(),
		}, nil

	case "start":
		if err := s.start(); err != nil {
			return nil, err
		}
		return map[string]interface{}{"status": "started"}, nil

	case "stop":
		s.stop()
		return map[string]interface{}{"status": "stopped"}, nil

	case "recenter":
		s.recenter()
		return map[string]interface{}{"status": "centered"}, nil

	case "sweep":
		step := req.StepDegrees
		if step == 0 {
			step = defaultSweepStepDeg
		}
		if step < 0 {
			return nil, errors.New("step_degrees must be positive")
		}
		if err := s.sweep(ctx, step); err != nil {
			return nil, err
		}
		return map[string]interface{}{"status": "swept", "step_degrees": step}, nil

	default:
		return nil, fmt.Errorf("invalid command: %v", cmd["command"])
	}
}

// sweep exercises both servos across their full configured travel, then
// re-centers. Useful for confirming wiring before letting the loop drive.
func (s *followService) sweep(ctx context.Context, stepDeg int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.worker != nil {
		return errors.New("cannot sweep while the tracking loop is running")
	}

	s.logger.Infof("sweeping pan %d..%d and tilt %d..%d by %d°",
		s.cfg.Pan.MinDeg, s.cfg.Pan.MaxDeg, s.cfg.Tilt.MinDeg, s.cfg.Tilt.MaxDeg, stepDeg)

	if err := sweepAxis(ctx, s.panServo, s.cfg.Pan, stepDeg); err != nil {
		return fmt.Errorf("pan sweep: %w", err)
	}
	if err := sweepAxis(ctx, s.tiltServo, s.cfg.Tilt, stepDeg); err != nil {
		return fmt.Errorf("tilt sweep: %w", err)
	}

	if err := s.pan.Center(ctx); err != nil {
		return fmt.Errorf("re-center pan: %w", err)
	}
	if err := s.tilt.Center(ctx); err != nil {
		return fmt.Errorf("re-center tilt: %w", err)
	}
	return nil
}

func sweepAxis(ctx context.Context, actuator control.Actuator, cfg control.AxisConfig, stepDeg int) error {
	for angle := cfg.MinDeg; angle <= cfg.MaxDeg; angle += stepDeg {
		if err := sweepMove(ctx, actuator, angle); err != nil {
			return err
		}
	}
	for angle := cfg.MaxDeg; angle >= cfg.MinDeg; angle -= stepDeg {
		if err := sweepMove(ctx, actuator, angle); err != nil {
			return err
		}
	}
	return nil
}

func sweepMove(ctx context.Context, actuator control.Actuator, angle int) error {
	if err := actuator.Move(ctx, uint32(angle), nil); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(sweepStepDelay):
		return nil
	}
}

func (s *followService) Close(context.Context) error {
	s.stop()
	return nil
}
