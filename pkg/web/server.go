// Package web serves the waste identification API: image upload
// classification, camera session control and a live preview websocket.
package web

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-wasteid/internal/log"
	"github.com/teslashibe/go-wasteid/pkg/camera"
	"github.com/teslashibe/go-wasteid/pkg/capture"
	"github.com/teslashibe/go-wasteid/pkg/classify"
	"github.com/teslashibe/go-wasteid/pkg/hub"
	"github.com/teslashibe/go-wasteid/pkg/inference"
)

// Classifier names the item in an image.
type Classifier interface {
	Classify(ctx context.Context, img capture.Image) classify.Result
	Candidates() []string
}

// Options configures the server.
type Options struct {
	Port           string
	MaxUploadBytes int64
	RequestTimeout time.Duration
	Normalize      capture.NormalizeOptions

	// Providers are checked by GET /api/health?deep=1.
	Providers []inference.Provider

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Port == "" {
		o.Port = "3000"
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = capture.DefaultMaxBytes
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 60 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// multipartOverhead leaves room for form boundaries and headers on top of
// the image itself.
const multipartOverhead = 64 * 1024

// Server is the HTTP host for classification and camera control.
type Server struct {
	app        *fiber.App
	opts       Options
	classifier Classifier
	camera     *camera.Manager // nil when no camera is configured
	cameraHub  *hub.Hub
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	previewMu     sync.Mutex
	previewCancel context.CancelFunc
}

// NewServer creates the server. cam may be nil, in which case camera routes
// report the device as unavailable.
func NewServer(cls Classifier, cam *camera.Manager, opts Options) *Server {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		opts:       opts,
		classifier: cls,
		camera:     cam,
		logger:     log.Component(opts.Logger, "web.Server"),
		cameraHub:  hub.New("camera", opts.Logger),
		ctx:        ctx,
		cancel:     cancel,
	}

	app := fiber.New(fiber.Config{
		AppName:               "wasteid",
		DisableStartupMessage: true,
		BodyLimit:             int(opts.MaxUploadBytes) + multipartOverhead,
		ErrorHandler:          s.handleError,
	})

	app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: uuid.NewString,
	}))
	app.Use(s.logRequests)

	// CORS for browser clients on another origin
	app.Use(cors.New())

	api := app.Group("/api")
	api.Post("/detect-waste", s.handleDetectWaste)
	api.Get("/health", s.handleHealth)

	cam := api.Group("/camera/session")
	cam.Post("/", s.handleStartSession)
	cam.Get("/", s.handleGetSession)
	cam.Delete("/", s.handleStopSession)
	cam.Post("/capture", s.handleCaptureSession)

	api.Get("/camera/config", s.handleGetCameraConfig)
	api.Put("/camera/config", s.handleSetCameraConfig)
	api.Post("/camera/preset/:name", s.handleApplyPreset)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	go s.cameraHub.Run(ctx)
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured port and blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", ":"+s.opts.Port, "candidates", s.classifier.Candidates())
	return s.app.Listen(":" + s.opts.Port)
}

// Shutdown stops the preview, releases any camera session and stops the
// listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopPreview()
	if s.camera != nil {
		s.camera.Close()
	}
	s.cancel()
	return s.app.ShutdownWithContext(ctx)
}

// handleError renders every error as {"error": "..."}.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= 500 {
		s.logger.Error("request failed", "path", c.Path(), "request_id", requestID(c), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// logRequests logs one line per request.
func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	if err != nil {
		if herr := c.App().ErrorHandler(c, err); herr != nil {
			return herr
		}
	}
	s.logger.Info("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start).Round(time.Millisecond),
		"request_id", requestID(c),
	)
	return nil
}

func requestID(c *fiber.Ctx) string {
	return c.GetRespHeader(fiber.HeaderXRequestID)
}
