// Package servecmder provides the serve command, which runs the report API.
package servecmder

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/splice/api"
	"github.com/papercomputeco/splice/cmd/splice/wiring"
	"github.com/papercomputeco/splice/pkg/config"
	"github.com/papercomputeco/splice/pkg/eventstream"
	"github.com/papercomputeco/splice/pkg/logger"
)

const serveLongDesc string = `Run the splice report API.

The server runs a correlation batch on every POST /v1/runs and keeps the
latest report, which GET /v1/runs/latest returns. Reports are saved in the
.splice/ directory so the latest one survives restarts.

Examples:
  splice serve
  splice serve --listen :9090
  splice serve --eventstream-provider kafka
  splice serve --log-file ./splice-serve.log`

const serveShortDesc string = "Run the report API"

var flagKeys = []string{
	config.FlagAPIListen,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagVectorStoreDims,
	config.FlagPageSize,
	config.FlagMaxConcurrency,
	config.FlagCurrentVersion,
	config.FlagMaxAttempts,
	config.FlagEventProvider,
	config.FlagEventTopic,
}

type ServeCommander struct {
	flags wiring.GlobalFlags

	listen         string
	provider       string
	target         string
	dimensions     uint
	pageSize       int
	maxConcurrency int
	currentVersion string
	maxAttempts    int
	eventProvider  string
	eventTopic     string
	logFile        string

	logger *slog.Logger
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.flags, err = wiring.ReadGlobalFlags(cmd)
			if err != nil {
				return err
			}

			cfg, err := wiring.LoadConfig(cmd, cmder.flags.ConfigDir, flagKeys)
			if err != nil {
				return err
			}

			cmder.logger, err = wiring.NewLogger(cmder.flags)
			if err != nil {
				return err
			}

			if cmder.logFile != "" {
				f, err := os.OpenFile(cmder.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
				if err != nil {
					return fmt.Errorf("opening log file: %w", err)
				}
				defer f.Close()

				cmder.logger = logger.Multi(cmder.logger, logger.New(
					logger.WithDebug(cmder.flags.Debug),
					logger.WithFormat(logger.FormatJSON),
					logger.WithWriter(f),
				))
			}
			return cmder.run(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.target)
	config.AddUintFlag(cmd, config.Flags, config.FlagVectorStoreDims, &cmder.dimensions)
	config.AddIntFlag(cmd, config.Flags, config.FlagPageSize, &cmder.pageSize)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxConcurrency, &cmder.maxConcurrency)
	config.AddStringFlag(cmd, config.Flags, config.FlagCurrentVersion, &cmder.currentVersion)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxAttempts, &cmder.maxAttempts)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventProvider, &cmder.eventProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventTopic, &cmder.eventTopic)

	return cmd
}

func (c *ServeCommander) run(cmd *cobra.Command, cfg *config.Config) error {
	rc, err := cfg.RunConfig()
	if err != nil {
		return err
	}

	rt, err := wiring.Build(cmd.Context(), cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			c.logger.Warn("failed to close backends", "error", err)
		}
	}()

	engine, err := rt.Engine(cfg, c.logger)
	if err != nil {
		return err
	}

	host, _ := os.Hostname()
	server, err := api.NewServer(api.Config{
		ListenAddr:     cfg.API.Listen,
		RunConfig:      rc,
		Source:         eventstream.EventSource{Host: host, VectorStore: cfg.VectorStore.Provider},
		PersistReports: true,
		ReportDir:      c.flags.ConfigDir,
	}, engine, rt.Publisher, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}
