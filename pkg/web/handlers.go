package web

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-wasteid/pkg/camera"
	"github.com/teslashibe/go-wasteid/pkg/capture"
	"github.com/teslashibe/go-wasteid/pkg/classify"
	"github.com/teslashibe/go-wasteid/pkg/hub"
)

// Messages returned to clients.
const (
	msgNoImage      = "No image provided"
	msgTimedOut     = "Classification timed out"
	msgShuttingDown = "Server is shutting down"
	msgNoCamera     = camera.AccessMessage
	formField       = "image"
)

var errNoImage = errors.New(msgNoImage)

// DetectRequest is the JSON form of POST /api/detect-waste.
type DetectRequest struct {
	// Image is a data URL or bare base64.
	Image string `json:"image"`
}

// DetectResponse is returned when an item was named.
type DetectResponse struct {
	WasteName string `json:"wasteName"`
	Model     string `json:"model"`
}

// SessionResponse describes the camera session state.
type SessionResponse struct {
	ID    string       `json:"id,omitempty"`
	State camera.State `json:"state"`
}

// CaptureRequest optionally names the session to capture from.
type CaptureRequest struct {
	ID string `json:"id"`
}

// handleDetectWaste classifies an uploaded image. It accepts a multipart
// "image" field, a JSON {"image": "<data URL>"} body or a raw image body.
func (s *Server) handleDetectWaste(c *fiber.Ctx) error {
	img, err := s.readImage(c)
	if errors.Is(err, errNoImage) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msgNoImage})
	}
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	return s.classifyAndRespond(c, img)
}

// readImage decodes the request body into an image.
func (s *Server) readImage(c *fiber.Ctx) (capture.Image, error) {
	contentType := strings.ToLower(string(c.Request().Header.ContentType()))

	switch {
	case strings.HasPrefix(contentType, fiber.MIMEMultipartForm):
		fh, err := c.FormFile(formField)
		if err != nil {
			return capture.Image{}, errNoImage
		}
		f, err := fh.Open()
		if err != nil {
			return capture.Image{}, err
		}
		defer f.Close()
		return capture.FromReader(f, s.opts.MaxUploadBytes)

	case strings.HasPrefix(contentType, fiber.MIMEApplicationJSON):
		var req DetectRequest
		if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Image) == "" {
			return capture.Image{}, errNoImage
		}
		return capture.FromDataURL(req.Image)

	case strings.HasPrefix(contentType, "image/"):
		body := c.Body()
		if len(body) == 0 {
			return capture.Image{}, errNoImage
		}
		return capture.FromReader(bytes.NewReader(body), s.opts.MaxUploadBytes)
	}

	return capture.Image{}, errNoImage
}

// classifyAndRespond normalizes img, classifies it and writes the result.
func (s *Server) classifyAndRespond(c *fiber.Ctx, img capture.Image) error {
	img, err := capture.Normalize(img, s.opts.Normalize)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	// fasthttp does not cancel on client disconnect, so the request only
	// ends early on its deadline or on server shutdown.
	ctx, cancel := context.WithTimeout(c.UserContext(), s.opts.RequestTimeout)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	res := s.classifier.Classify(ctx, img)

	if errors.Is(res.Err, classify.ErrAbandoned) {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": msgTimedOut})
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": msgShuttingDown})
	}

	if !res.OK() {
		s.logger.Warn("classification failed",
			"request_id", requestID(c),
			"attempts", res.Attempts,
			"error", res.Err,
		)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": res.ErrorMessage()})
	}

	s.logger.Info("classified",
		"request_id", requestID(c),
		"name", res.Name,
		"model", res.Model,
		"attempts", res.Attempts,
		"duration", res.Duration.Round(time.Millisecond),
	)
	s.cameraHub.BroadcastEvent("result", DetectResponse{WasteName: res.Name, Model: res.Model})

	return c.JSON(DetectResponse{WasteName: res.Name, Model: res.Model})
}

// handleStartSession opens the camera, replacing any active session.
func (s *Server) handleStartSession(c *fiber.Ctx) error {
	if s.camera == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": msgNoCamera})
	}

	sess, err := s.camera.Start(c.UserContext())
	if errors.Is(err, camera.ErrCameraAccess) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": msgNoCamera})
	}
	if err != nil {
		return err
	}

	s.startPreview(sess)
	s.cameraHub.BroadcastEvent("session", SessionResponse{ID: sess.ID, State: sess.State()})

	return c.Status(fiber.StatusCreated).JSON(SessionResponse{ID: sess.ID, State: sess.State()})
}

// handleGetSession reports the camera state.
func (s *Server) handleGetSession(c *fiber.Ctx) error {
	if s.camera == nil {
		return c.JSON(SessionResponse{State: camera.StateIdle})
	}

	resp := SessionResponse{State: s.camera.State()}
	if active := s.camera.Active(); active != nil {
		resp.ID = active.ID
	}
	return c.JSON(resp)
}

// handleStopSession stops the active session. Stopping when nothing is
// active succeeds.
func (s *Server) handleStopSession(c *fiber.Ctx) error {
	if s.camera != nil {
		s.stopSession(s.camera.Active())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleCaptureSession takes a photo with the active session, stops it and
// classifies the photo.
func (s *Server) handleCaptureSession(c *fiber.Ctx) error {
	if s.camera == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": camera.ErrInvalidSession.Error()})
	}

	var req CaptureRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	sess := s.camera.Active()
	if sess == nil || (req.ID != "" && req.ID != sess.ID) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": camera.ErrInvalidSession.Error()})
	}

	s.stopPreview()
	img, err := s.camera.CaptureAndStop(sess)
	s.cameraHub.BroadcastEvent("session", SessionResponse{ID: sess.ID, State: sess.State()})

	if errors.Is(err, camera.ErrInvalidSession) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return err
	}

	return s.classifyAndRespond(c, img)
}

// handleGetCameraConfig returns the settings used by the next session.
func (s *Server) handleGetCameraConfig(c *fiber.Ctx) error {
	if s.camera == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": msgNoCamera})
	}
	return c.JSON(fiber.Map{
		"config":  s.camera.GetConfig(),
		"presets": camera.PresetNames(),
	})
}

// handleSetCameraConfig replaces the camera settings. They apply from the
// next session on.
func (s *Server) handleSetCameraConfig(c *fiber.Ctx) error {
	if s.camera == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": msgNoCamera})
	}

	cfg := s.camera.GetConfig()
	if err := c.BodyParser(&cfg); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := s.camera.SetConfig(cfg); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{"config": s.camera.GetConfig()})
}

// handleApplyPreset switches to a named preset.
func (s *Server) handleApplyPreset(c *fiber.Ctx) error {
	if s.camera == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": msgNoCamera})
	}
	if err := s.camera.ApplyPreset(c.Params("name")); err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return c.JSON(fiber.Map{"config": s.camera.GetConfig()})
}

// handleHealth reports liveness. With ?deep=1 every provider is checked.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := fiber.Map{
		"status":     "ok",
		"candidates": s.classifier.Candidates(),
	}
	if s.camera != nil {
		resp["camera"] = s.camera.State()
	}

	if c.QueryBool("deep") {
		ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
		defer cancel()

		providers := fiber.Map{}
		healthy := true
		for _, p := range s.opts.Providers {
			if err := p.Health(ctx); err != nil {
				providers[p.Name()] = err.Error()
				healthy = false
				continue
			}
			providers[p.Name()] = "ok"
		}
		resp["providers"] = providers
		if !healthy {
			resp["status"] = "degraded"
			return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
		}
	}

	return c.JSON(resp)
}

// handleCameraWS streams preview frames and session events.
func (s *Server) handleCameraWS(c *websocket.Conn) {
	client := hub.NewClient(s.cameraHub, c)
	if client == nil {
		return
	}
	client.Run()
}

// startPreview streams frames from sess to websocket clients until the
// session stops.
func (s *Server) startPreview(sess *camera.Session) {
	s.previewMu.Lock()
	defer s.previewMu.Unlock()

	if s.previewCancel != nil {
		s.previewCancel()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.previewCancel = cancel

	go func() {
		defer cancel()
		s.camera.Preview(ctx, sess, 0, func(img capture.Image) {
			if s.cameraHub.ClientCount() > 0 {
				s.cameraHub.BroadcastBinary(img.Data)
			}
		})
	}()
}

func (s *Server) stopPreview() {
	s.previewMu.Lock()
	defer s.previewMu.Unlock()

	if s.previewCancel != nil {
		s.previewCancel()
		s.previewCancel = nil
	}
}

func (s *Server) stopSession(sess *camera.Session) {
	if sess == nil {
		return
	}
	s.stopPreview()
	s.camera.Stop(sess)
	s.cameraHub.BroadcastEvent("session", SessionResponse{ID: sess.ID, State: sess.State()})
}
