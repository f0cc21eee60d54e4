// wasteid - Waste item identification from photos
// Serves the HTTP API, or classifies a single file or camera snapshot.
//
// Usage:
//
//	wasteid [flags] serve
//	wasteid [flags] classify <image>
//	wasteid [flags] snap
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-wasteid/internal/config"
	"github.com/teslashibe/go-wasteid/internal/log"
	"github.com/teslashibe/go-wasteid/internal/metrics"
	"github.com/teslashibe/go-wasteid/pkg/camera"
	"github.com/teslashibe/go-wasteid/pkg/capture"
	"github.com/teslashibe/go-wasteid/pkg/classify"
	"github.com/teslashibe/go-wasteid/pkg/web"
)

type flags struct {
	envFile string
	models  string
	port    string
	preset  string
	device  int
	noCam   bool
	debug   bool
}

func main() {
	f := parseFlags()

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.LogLevel)
	metrics.Register()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "serve"
	}

	switch cmd {
	case "serve":
		err = serve(ctx, cfg, f)
	case "classify":
		if flag.NArg() < 2 {
			usage()
			os.Exit(2)
		}
		err = classifyFile(ctx, cfg, flag.Arg(1))
	case "snap":
		err = snap(ctx, cfg)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Error("command failed", "command", cmd, "error", err)
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.envFile, "env", "", "Path to a .env file (default: ./.env if present)")
	flag.StringVar(&f.models, "models", "", "Comma-separated provider:model candidates (overrides WASTEID_MODELS)")
	flag.StringVar(&f.port, "port", "", "HTTP port (overrides WASTEID_PORT)")
	flag.StringVar(&f.preset, "camera-preset", "", "Camera preset: low, default, hd")
	flag.IntVar(&f.device, "camera-device", -1, "Camera device index (overrides WASTEID_CAMERA_DEVICE)")
	flag.BoolVar(&f.noCam, "no-camera", false, "Disable camera routes")
	flag.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	flag.Usage = usage
	flag.Parse()
	return f
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] serve | classify <image> | snap\n\n", os.Args[0])
	flag.PrintDefaults()
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig(f flags) (*config.Config, error) {
	var files []string
	if f.envFile != "" {
		files = append(files, f.envFile)
	}

	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}

	if f.models != "" {
		models, err := config.ParseModels(f.models)
		if err != nil {
			return nil, err
		}
		cfg.Models = models
	}
	if f.port != "" {
		cfg.Port = f.port
	}
	if f.preset != "" {
		cfg.CameraPreset = f.preset
	}
	if f.device >= 0 {
		cfg.CameraDevice = f.device
	}
	if f.debug {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newClassifier builds the providers the model list needs and the
// classifier over them.
func newClassifier(ctx context.Context, cfg *config.Config) (*classify.Classifier, []namedProvider, error) {
	providers, err := buildProviders(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	candidates, err := classify.FromSpecs(cfg.Models, registry(providers))
	if err != nil {
		closeProviders(providers)
		return nil, nil, err
	}
	return classify.New(candidates, log.L()), providers, nil
}

// newCamera returns a camera manager configured from the preset and device.
func newCamera(cfg *config.Config) (*camera.Manager, error) {
	preset := camera.GetPreset(cfg.CameraPreset)
	if preset == nil {
		return nil, fmt.Errorf("unknown camera preset %q (available: %v)", cfg.CameraPreset, camera.PresetNames())
	}
	preset.Device = cfg.CameraDevice
	if errs := preset.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid camera config: %v", errs)
	}
	return camera.NewManager(nil, *preset, log.L()), nil
}

func serve(ctx context.Context, cfg *config.Config, f flags) error {
	cls, providers, err := newClassifier(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeProviders(providers)

	var cam *camera.Manager
	if !f.noCam {
		if cam, err = newCamera(cfg); err != nil {
			return err
		}
	}

	server := web.NewServer(cls, cam, web.Options{
		Port:           cfg.Port,
		MaxUploadBytes: cfg.MaxUploadBytes,
		RequestTimeout: cfg.RequestTimeout,
		Normalize:      capture.DefaultNormalizeOptions(),
		Providers:      providerList(providers),
		Logger:         log.L(),
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func classifyFile(ctx context.Context, cfg *config.Config, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	img, err := capture.FromReader(file, cfg.MaxUploadBytes)
	if err != nil {
		return err
	}
	return classifyAndPrint(ctx, cfg, img)
}

func snap(ctx context.Context, cfg *config.Config) error {
	cam, err := newCamera(cfg)
	if err != nil {
		return err
	}
	defer cam.Close()

	var img capture.Image
	err = cam.WithSession(ctx, func(s *camera.Session) error {
		var cerr error
		img, cerr = cam.Capture(s)
		return cerr
	})
	if errors.Is(err, camera.ErrCameraAccess) {
		return errors.New(camera.AccessMessage)
	}
	if err != nil {
		return err
	}
	return classifyAndPrint(ctx, cfg, img)
}

// classifyAndPrint prints the name on stdout.
func classifyAndPrint(ctx context.Context, cfg *config.Config, img capture.Image) error {
	img, err := capture.Normalize(img, capture.DefaultNormalizeOptions())
	if err != nil {
		return err
	}

	cls, providers, err := newClassifier(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeProviders(providers)

	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	res := cls.Classify(ctx, img)
	if !res.OK() {
		return res.Err
	}

	log.Debug("classified", "model", res.Model, "attempts", res.Attempts, "duration", res.Duration)
	fmt.Println(res.Name)
	return nil
}
