package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/splice/pkg/correlate"
	"github.com/papercomputeco/splice/pkg/dotdir"
	"github.com/papercomputeco/splice/pkg/eventstream"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

// RunResponse is returned by POST /v1/runs.
type RunResponse struct {
	Summary string            `json:"summary"`
	Clean   bool              `json:"clean"`
	Report  *correlate.Report `json:"report"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleCreateRun runs a correlation batch synchronously and returns its
// report. Only one run may be in flight at a time.
func (s *Server) handleCreateRun(c *fiber.Ctx) error {
	if !s.running.CompareAndSwap(false, true) {
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: "a run is already in progress"})
	}
	defer s.running.Store(false)

	ctx := c.UserContext()
	report, err := s.runner.Run(ctx, s.config.RunConfig)

	var cfgErr *correlate.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:    "invalid run configuration",
			Problems: cfgErr.Problems,
		})
	case report == nil && err != nil:
		s.logger.Error("correlation run failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	case err != nil:
		s.logger.Warn("correlation run incomplete", "run_id", report.RunID, "error", err)
	}

	s.setLatest(report)
	s.persist(report)
	s.publish(context.WithoutCancel(ctx), report)

	return c.JSON(RunResponse{
		Summary: report.Summary(),
		Clean:   report.Clean(),
		Report:  report,
	})
}

// handleLatestRun returns the most recent report.
func (s *Server) handleLatestRun(c *fiber.Ctx) error {
	report := s.Latest()
	if report == nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "no report available"})
	}
	return c.JSON(report)
}

func (s *Server) persist(report *correlate.Report) {
	if !s.config.PersistReports {
		return
	}
	if err := dotdir.NewManager().SaveLastReport(report, s.config.ReportDir); err != nil {
		s.logger.Warn("failed to save last report", "run_id", report.RunID, "error", err)
	}
}

// publish emits the report event. Publish failures are logged and never
// fail the request.
func (s *Server) publish(ctx context.Context, report *correlate.Report) {
	if s.publisher == nil {
		return
	}
	event := eventstream.NewReportCompletedEvent(report, s.config.Source, time.Now())
	if err := s.publisher.PublishReport(ctx, event); err != nil {
		s.logger.Warn("failed to publish report event",
			"run_id", report.RunID,
			"error", err,
		)
	}
}
