// Package api provides an HTTP API for running correlations and reading reports.
package api

import (
	"github.com/papercomputeco/splice/pkg/correlate"
	"github.com/papercomputeco/splice/pkg/eventstream"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8082")
	ListenAddr string

	// RunConfig is used for every run triggered over the API.
	RunConfig correlate.RunConfig

	// Source identifies this deployment in published events.
	Source eventstream.EventSource

	// PersistReports saves each report as the last report in the dot dir,
	// and loads it back on startup.
	PersistReports bool

	// ReportDir overrides the dot dir used when PersistReports is set.
	ReportDir string
}
