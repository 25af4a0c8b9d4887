// Package wiring builds the logger, configuration and backends shared by the
// splice commands.
package wiring

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/splice/pkg/config"
	"github.com/papercomputeco/splice/pkg/correlate"
	"github.com/papercomputeco/splice/pkg/embedding"
	"github.com/papercomputeco/splice/pkg/eventstream"
	eventstreamutils "github.com/papercomputeco/splice/pkg/eventstream/utils"
	"github.com/papercomputeco/splice/pkg/logger"
	"github.com/papercomputeco/splice/pkg/source"
	sourceutils "github.com/papercomputeco/splice/pkg/source/utils"
	"github.com/papercomputeco/splice/pkg/vector"
	vectorutils "github.com/papercomputeco/splice/pkg/vector/utils"
)

// GlobalFlags are the persistent flags defined on the root command.
type GlobalFlags struct {
	Debug     bool
	LogFormat string
	ConfigDir string
}

// ReadGlobalFlags reads the persistent root flags from cmd.
func ReadGlobalFlags(cmd *cobra.Command) (GlobalFlags, error) {
	var (
		g   GlobalFlags
		err error
	)
	if g.Debug, err = cmd.Flags().GetBool("debug"); err != nil {
		return g, fmt.Errorf("could not get debug flag: %w", err)
	}
	if g.LogFormat, err = cmd.Flags().GetString("log-format"); err != nil {
		return g, fmt.Errorf("could not get log-format flag: %w", err)
	}
	if g.ConfigDir, err = cmd.Flags().GetString("config-dir"); err != nil {
		return g, fmt.Errorf("could not get config-dir flag: %w", err)
	}
	return g, nil
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// NewLogger builds the command logger. Records go to stderr so that stdout
// only carries command output. Without an explicit format, a terminal gets
// pretty output and anything else gets text.
func NewLogger(g GlobalFlags) (*slog.Logger, error) {
	format, err := logger.ParseFormat(g.LogFormat)
	if err != nil {
		return nil, err
	}
	if g.LogFormat == "" && IsTerminal(os.Stderr) {
		format = logger.FormatPretty
	}

	return logger.New(
		logger.WithDebug(g.Debug),
		logger.WithFormat(format),
		logger.WithWriter(os.Stderr),
	), nil
}

// LoadConfig loads config.toml from the resolved dot dir and overlays
// environment variables and the given registered flags.
func LoadConfig(cmd *cobra.Command, configDir string, flagKeys []string) (*config.Config, error) {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

	if err := config.Apply(v, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Runtime holds the backends a correlation run needs.
type Runtime struct {
	Store     vector.Driver
	Sources   *source.Registry
	Publisher eventstream.Publisher
}

// Build connects to the vector store, every configured source, and the event
// stream. Whatever was opened before a failure is closed again.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Runtime, error) {
	rt := &Runtime{Sources: source.NewRegistry()}

	store, err := NewVectorDriver(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	rt.Store = store

	for _, et := range cfg.EntityTypes {
		src, err := cfg.SourceFor(et)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}

		adapter, err := sourceutils.NewAdapter(ctx, &sourceutils.NewAdapterOpts{
			Kind:     src.Kind,
			Target:   src.Target,
			Table:    src.Table,
			Database: src.Database,
			IDField:  src.IDField,
			IDKind:   src.IDKind,
			Columns:  src.Columns,
			Logger:   log.With("entity_type", et.Name),
		})
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("source for %s: %w", et.Name, err)
		}
		rt.Sources.Register(embedding.EntityType(et.Name), adapter)
	}

	rt.Publisher, err = eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.EventStream.Provider,
		Brokers:      cfg.EventStream.Brokers,
		Topic:        cfg.EventStream.Topic,
		Logger:       log,
	})
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	return rt, nil
}

// NewVectorDriver opens the configured vector store.
func NewVectorDriver(ctx context.Context, cfg *config.Config, log *slog.Logger) (vector.Driver, error) {
	store, err := vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		TargetURL:    cfg.VectorStore.Target,
		Dimensions:   cfg.VectorStore.Dimensions,
		Logger:       log,
	})
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	return store, nil
}

// Engine creates a correlation engine over the runtime's backends.
func (r *Runtime) Engine(cfg *config.Config, log *slog.Logger) (*correlate.Engine, error) {
	return correlate.NewEngine(correlate.Config{
		Store:             r.Store,
		Sources:           r.Sources,
		RequestsPerSecond: cfg.Run.RequestsPerSecond,
	}, log)
}

// Close releases every backend.
func (r *Runtime) Close() error {
	var errs []error
	if r.Publisher != nil {
		errs = append(errs, r.Publisher.Close())
	}
	if r.Sources != nil {
		errs = append(errs, r.Sources.Close())
	}
	if r.Store != nil {
		errs = append(errs, r.Store.Close())
	}
	return errors.Join(errs...)
}
