// Command cli connects to a machine and runs the follower against its
// camera, detector, and servos. Flags mirror the knobs an operator tunes in
// the field; everything else takes the module defaults.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/components/servo"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/robot/client"
	genericservice "go.viam.com/rdk/services/generic"
	"go.viam.com/rdk/services/vision"
	"go.viam.com/utils/rpc"

	cat "github.com/jbeats13/cat"
	"github.com/jbeats13/cat/internal/creds"
	"github.com/jbeats13/cat/models"
)

func main() {
	credsPath := flag.String("creds", "", "path to machine credentials JSON file")
	cameraName := flag.String("camera", "cam", "camera component name on the machine")
	detectorName := flag.String("detector", "detector", "vision service name on the machine")
	panName := flag.String("pan", "pan", "pan servo component name")
	tiltName := flag.String("tilt", "tilt", "tilt servo component name")
	track := flag.String("track", "cat,person", "comma-separated classes to track")
	gain := flag.Float64("gain", 0, "tracking gain for both axes (0 = default)")
	minWidth := flag.Int("min-width", 0, "min box width (px) to track; 0 = any size")
	minHeight := flag.Int("min-height", 0, "min box height (px) to track; 0 = any size")
	invertPan := flag.Bool("invert-pan", false, "reverse pan direction (if camera moves wrong way)")
	invertTilt := flag.Bool("invert-tilt", false, "reverse tilt direction (if camera moves wrong way)")
	mockServos := flag.Bool("mock-servos", false, "drive in-memory servos instead of the machine's")
	flag.Parse()

	logger := logging.NewLogger("cat-cli")

	if *credsPath == "" {
		logger.Fatal("-creds flag is required")
	}
	machineCreds, err := creds.Load(*credsPath)
	if err != nil {
		logger.Fatal(err)
	}

	var classes []string
	for _, class := range strings.Split(*track, ",") {
		if class = strings.TrimSpace(class); class != "" {
			classes = append(classes, class)
		}
	}

	cfg := cat.Config{
		CameraName:    *cameraName,
		DetectorName:  *detectorName,
		PanServoName:  *panName,
		TiltServoName: *tiltName,
		Classes:       classes,
		MinWidth:      *minWidth,
		MinHeight:     *minHeight,
		EnableOnStart: true,
	}
	cfg.Pan.Invert = *invertPan
	cfg.Tilt.Invert = *invertTilt
	if *gain > 0 {
		cfg.Pan.Gain = *gain
		cfg.Tilt.Gain = *gain
	}
	if _, _, err := cfg.Validate(""); err != nil {
		logger.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	machine, err := client.New(
		ctx,
		machineCreds.Address,
		logger,
		client.WithDialOptions(rpc.WithEntityCredentials(
			machineCreds.EntityID,
			rpc.Credentials{
				Type:    rpc.CredentialsTypeAPIKey,
				Payload: machineCreds.APIKey,
			})),
	)
	if err != nil {
		logger.Fatal(err)
	}
	defer machine.Close(context.Background())

	logger.Info("Connected to machine")

	deps := resource.Dependencies{}
	for _, name := range []resource.Name{camera.Named(*cameraName), vision.Named(*detectorName)} {
		res, err := machine.ResourceByName(name)
		if err != nil {
			logger.Fatalf("machine has no %v: %v", name, err)
		}
		deps[name] = res
	}
	for _, name := range []resource.Name{servo.Named(*panName), servo.Named(*tiltName)} {
		if *mockServos {
			deps[name] = models.NewMemoryServo(name)
			continue
		}
		res, err := machine.ResourceByName(name)
		if err != nil {
			logger.Fatalf("machine has no %v: %v", name, err)
		}
		deps[name] = res
	}

	follower, err := cat.NewFollower(ctx, deps, genericservice.Named("follower"), &cfg, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer follower.Close(context.Background())

	logger.Infof("Tracking %s; Ctrl+C to stop", strings.Join(classes, ", "))
	<-ctx.Done()
}
