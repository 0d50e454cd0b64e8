// Package server is the segment database backend: fingerprint lookups and
// on-demand detection for transcripts it has not seen.
package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/sponsorskip/internal/fingerprint"
	"github.com/codebuildervaibhav/sponsorskip/internal/logging"
	"github.com/codebuildervaibhav/sponsorskip/internal/types"
)

// NotFound is the error tag returned for an unknown fingerprint.
const NotFound = "No ads found for the given subtitle SHA256 hash."

// Store is the fingerprint -> segments cache.
type Store interface {
	Get(ctx context.Context, sha256 string) ([]types.Segment, bool, error)
	Save(ctx context.Context, sha256 string, segments []types.Segment) error
	Count(ctx context.Context) (int, error)
}

// Detector finds ad segments in a transcript.
type Detector interface {
	Detect(ctx context.Context, transcript []byte) ([]types.Segment, error)
}

// LogSource exposes recent log lines.
type LogSource interface {
	Lines() []string
}

// Options configures the backend app.
type Options struct {
	BodyLimitMB int
	Logs        LogSource
	Logger      logrus.FieldLogger
}

// Server holds the backend's dependencies.
type Server struct {
	store    Store
	detector Detector
	logs     LogSource
	log      logrus.FieldLogger
}

// New builds the fiber app serving the backend API.
func New(store Store, detector Detector, opts Options) *fiber.App {
	s := &Server{
		store:    store,
		detector: detector,
		logs:     opts.Logs,
		log:      logging.Component(opts.Logger, "server"),
	}

	limit := opts.BodyLimitMB
	if limit <= 0 {
		limit = 16
	}
	app := fiber.New(fiber.Config{
		BodyLimit:             limit * 1024 * 1024,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestLogger(s.log))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"system": "running"})
	})
	app.Get("/health", s.health)
	app.Get("/logs", s.recentLogs)
	app.Get("/ads/sha256/:sha256", s.lookup)
	app.Post("/ads/text", s.compute)

	return app
}

func (s *Server) health(c *fiber.Ctx) error {
	count, err := s.store.Count(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"status":       "healthy",
		"fingerprints": count,
	})
}

func (s *Server) recentLogs(c *fiber.Ctx) error {
	lines := []string{}
	if s.logs != nil {
		lines = s.logs.Lines()
	}
	return c.JSON(fiber.Map{"logs": lines})
}

func (s *Server) lookup(c *fiber.Ctx) error {
	sha := c.Params("sha256")
	if !fingerprint.Valid(sha) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid SHA256 hash."})
	}

	segments, found, err := s.store.Get(c.UserContext(), sha)
	if err != nil {
		s.log.WithError(err).WithField("sha256", sha).Error("Cache lookup failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Cache lookup failed."})
	}
	if !found {
		return c.JSON(fiber.Map{"error": NotFound})
	}
	return c.JSON(fiber.Map{"ads": segments})
}

func (s *Server) compute(c *fiber.Ctx) error {
	// fasthttp reuses the body buffer after the handler returns
	body := append([]byte(nil), c.Body()...)
	if len(body) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Empty subtitle text."})
	}

	ctx := c.UserContext()
	sha := fingerprint.SumBytes(body)
	log := s.log.WithField("sha256", sha)

	segments, found, err := s.store.Get(ctx, sha)
	if err != nil {
		log.WithError(err).Error("Cache lookup failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Cache lookup failed."})
	}
	if found {
		log.Info("Returning cached ads")
		return c.JSON(fiber.Map{"ads": segments, "sha256": sha})
	}

	if s.detector == nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "No detector configured."})
	}

	segments, err = s.detector.Detect(ctx, body)
	if err != nil {
		log.WithError(err).Error("Ad detection failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": detectionMessage(err)})
	}

	if err := s.store.Save(ctx, sha, segments); err != nil {
		log.WithError(err).Error("Saving ads failed")
	}
	log.WithField("segments", len(segments)).Info("Ads detected")

	return c.JSON(fiber.Map{"ads": segments, "sha256": sha})
}

func detectionMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "Ad detection timed out."
	}
	return "Ad detection failed: " + err.Error()
}
