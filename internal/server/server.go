package server

import (
	"context"
	"embed"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/dudu/emoface/internal/pipeline"
)

//go:embed web/index.html
var webFS embed.FS

// Analyzer runs the emotion pipeline on an image file
type Analyzer interface {
	ProcessImage(imagePath string) ([]pipeline.Result, error)
}

type ServerOption func(*Server) error

// Server is the HTTP front end of the pipeline
type Server struct {
	engine    *fiber.App
	log       *logrus.Logger
	analyzer  Analyzer
	uploadDir string
	limiter   *rateLimiter
}

// NewServer applies options, prepares the upload directory and registers
// routes. Fiber app, logger and analyzer are required.
func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{
		uploadDir: "uploads",
		limiter:   newRateLimiter(5, 10),
	}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}

	if err := os.MkdirAll(server.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	server.routes()
	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithAnalyzer(analyzer Analyzer) ServerOption {
	return func(s *Server) error {
		s.analyzer = analyzer
		return nil
	}
}

func WithUploadDir(dir string) ServerOption {
	return func(s *Server) error {
		if dir == "" {
			return fmt.Errorf("upload directory must not be empty")
		}
		s.uploadDir = dir
		return nil
	}
}

// WithRateLimit sets the per-IP request rate for /analyze
func WithRateLimit(perSecond float64, burst int) ServerOption {
	return func(s *Server) error {
		if perSecond <= 0 || burst < 1 {
			return fmt.Errorf("invalid rate limit %v/s burst %d", perSecond, burst)
		}
		s.limiter = newRateLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}

func (s *Server) routes() {
	s.engine.Use(recover.New())
	s.engine.Use(requestIDMiddleware())
	s.engine.Use(s.loggingMiddleware())

	s.engine.Get("/", s.index)
	s.engine.Get("/healthz", s.healthz)
	s.engine.Post("/analyze", s.rateLimitMiddleware(), s.analyze)
}

// App exposes the fiber app, mainly for tests
func (s *Server) App() *fiber.App {
	return s.engine
}

// Run listens on addr until Shutdown is called
func (s *Server) Run(addr string) error {
	s.log.Infof("Listening on %s", addr)
	return s.engine.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.engine.ShutdownWithContext(ctx)
}
