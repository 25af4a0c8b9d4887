package api

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/splice/pkg/correlate"
	"github.com/papercomputeco/splice/pkg/dotdir"
	"github.com/papercomputeco/splice/pkg/eventstream"
)

// Runner runs one correlation batch.
type Runner interface {
	Run(ctx context.Context, rc correlate.RunConfig) (*correlate.Report, error)
}

// Server is the API server for triggering correlation runs and reading
// their reports.
type Server struct {
	config    Config
	runner    Runner
	publisher eventstream.Publisher
	logger    *slog.Logger
	app       *fiber.App

	// running is set while a run triggered over the API is in flight
	running atomic.Bool

	// mu guards latest
	mu     sync.RWMutex
	latest *correlate.Report
}

// NewServer creates a new API server.
// The runner and publisher are injected so the CLI can share them.
func NewServer(config Config, runner Runner, publisher eventstream.Publisher, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:    config,
		runner:    runner,
		publisher: publisher,
		logger:    logger,
		app:       app,
	}

	if config.PersistReports {
		var report correlate.Report
		found, err := dotdir.NewManager().LoadLastReport(&report, config.ReportDir)
		if err != nil {
			return nil, err
		}
		if found {
			s.latest = &report
			logger.Info("loaded last report", "run_id", report.RunID)
		}
	}

	app.Get("/ping", s.handlePing)
	app.Post("/v1/runs", s.handleCreateRun)
	app.Get("/v1/runs/latest", s.handleLatestRun)

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// Latest returns the most recent report, or nil before the first run.
func (s *Server) Latest() *correlate.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

func (s *Server) setLatest(report *correlate.Report) {
	s.mu.Lock()
	s.latest = report
	s.mu.Unlock()
}
