// Package correlatecmder provides the correlate command, which runs one
// correlation batch and prints its report.
package correlatecmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/splice/cmd/splice/wiring"
	"github.com/papercomputeco/splice/pkg/cliui"
	"github.com/papercomputeco/splice/pkg/config"
	"github.com/papercomputeco/splice/pkg/correlate"
	"github.com/papercomputeco/splice/pkg/dotdir"
	"github.com/papercomputeco/splice/pkg/eventstream"
)

// Output formats.
const (
	OutputText     = "text"
	OutputJSON     = "json"
	OutputMarkdown = "markdown"
)

// ErrNotClean is returned in strict mode when the report has failed entity
// types or orphaned identifiers.
var ErrNotClean = errors.New("correlation found failed entity types or orphaned embeddings")

const correlateLongDesc string = `Run a correlation batch and print the report.

Every configured entity type is exported from the vector store, its
identifiers are looked up in the entity type's source, and each identifier
is classified as correlated, partial, orphaned or missing.

The command exits 0 even when entity types fail, unless --strict is set.
The report is saved as the last report in the .splice/ directory and, when
an event stream is configured, published as a splice.report.completed event.

Examples:
  splice correlate
  splice correlate -o json > report.json
  splice correlate --current-version v3 --strict
  splice correlate -o markdown --no-publish`

const correlateShortDesc string = "Run a correlation and print the report"

var flagKeys = []string{
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

type correlateCommander struct {
	flags wiring.GlobalFlags

	output    string
	strict    bool
	noPublish bool
	noSave    bool

	vectorStoreProvider string
	vectorStoreTarget   string
	vectorStoreDims     uint
	pageSize            int
	maxConcurrency      int
	currentVersion      string
	maxAttempts         int
	eventProvider       string
	eventTopic          string

	out    io.Writer
	logger *slog.Logger
}

func NewCorrelateCmd() *cobra.Command {
	cmder := &correlateCommander{}

	cmd := &cobra.Command{
		Use:   "correlate",
		Short: correlateShortDesc,
		Long:  correlateLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.flags, err = wiring.ReadGlobalFlags(cmd)
			if err != nil {
				return err
			}

			switch cmder.output {
			case OutputText, OutputJSON, OutputMarkdown:
			default:
				return fmt.Errorf("unknown output format %q (available: text, json, markdown)", cmder.output)
			}

			cfg, err := wiring.LoadConfig(cmd, cmder.flags.ConfigDir, flagKeys)
			if err != nil {
				return err
			}

			cmder.logger, err = wiring.NewLogger(cmder.flags)
			if err != nil {
				return err
			}
			cmder.out = cmd.OutOrStdout()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&cmder.output, "output", "o", OutputText, "Report format: text, json or markdown")
	cmd.Flags().BoolVar(&cmder.strict, "strict", false, "Exit non-zero when an entity type failed or an embedding is orphaned")
	cmd.Flags().BoolVar(&cmder.noPublish, "no-publish", false, "Do not publish the report to the event stream")
	cmd.Flags().BoolVar(&cmder.noSave, "no-save", false, "Do not save the report as the last report")

	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.vectorStoreProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.vectorStoreTarget)
	config.AddUintFlag(cmd, config.Flags, config.FlagVectorStoreDims, &cmder.vectorStoreDims)
	config.AddIntFlag(cmd, config.Flags, config.FlagPageSize, &cmder.pageSize)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxConcurrency, &cmder.maxConcurrency)
	config.AddStringFlag(cmd, config.Flags, config.FlagCurrentVersion, &cmder.currentVersion)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxAttempts, &cmder.maxAttempts)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventProvider, &cmder.eventProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventTopic, &cmder.eventTopic)

	return cmd
}

func (c *correlateCommander) run(ctx context.Context, cfg *config.Config) error {
	rc, err := cfg.RunConfig()
	if err != nil {
		return err
	}

	rt, err := wiring.Build(ctx, cfg, c.logger)
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

	var report *correlate.Report
	var runErr error
	runner := func() error {
		report, runErr = engine.Run(ctx, rc)
		return runErr
	}
	if c.output == OutputText && wiring.IsTerminal(os.Stderr) {
		_ = cliui.Step(os.Stderr, fmt.Sprintf("Correlating %d entity types", len(rc.EntityTypes)), runner)
	} else {
		_ = runner()
	}

	if report == nil {
		return runErr
	}

	if err := c.render(report); err != nil {
		return err
	}

	if !c.noSave {
		if err := dotdir.NewManager().SaveLastReport(report, c.flags.ConfigDir); err != nil {
			c.logger.Warn("failed to save last report", "error", err)
		}
	}

	if !c.noPublish {
		event := eventstream.NewReportCompletedEvent(report, eventSource(cfg), time.Now())
		if err := rt.Publisher.PublishReport(context.WithoutCancel(ctx), event); err != nil {
			c.logger.Warn("failed to publish report event", "error", err)
		}
	}

	if runErr != nil {
		return runErr
	}
	if c.strict && (len(report.FailedEntityTypes()) > 0 || report.Counts.Orphaned > 0) {
		return ErrNotClean
	}
	return nil
}

func (c *correlateCommander) render(report *correlate.Report) error {
	switch c.output {
	case OutputJSON:
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)

	case OutputMarkdown:
		md := cliui.ReportMarkdown(report)
		if wiring.IsTerminal(c.out) {
			rendered, err := cliui.RenderMarkdown(md)
			if err == nil {
				md = rendered
			}
		}
		_, err := io.WriteString(c.out, md)
		return err

	default:
		cliui.RenderReport(c.out, report)
		return nil
	}
}

func eventSource(cfg *config.Config) eventstream.EventSource {
	host, _ := os.Hostname()
	return eventstream.EventSource{
		Host:        host,
		VectorStore: cfg.VectorStore.Provider,
	}
}
