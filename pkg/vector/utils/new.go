// Package vectorutils builds a vector.Driver from configuration.
package vectorutils

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/papercomputeco/splice/pkg/vector"
	"github.com/papercomputeco/splice/pkg/vector/chroma"
	"github.com/papercomputeco/splice/pkg/vector/inmemory"
	"github.com/papercomputeco/splice/pkg/vector/pgvector"
	"github.com/papercomputeco/splice/pkg/vector/qdrant"
	"github.com/papercomputeco/splice/pkg/vector/sqlitevec"
)

// Supported vector store providers.
const (
	ProviderSQLiteVec = "sqlite-vec"
	ProviderChroma    = "chroma"
	ProviderQdrant    = "qdrant"
	ProviderPGVector  = "pgvector"
	ProviderMemory    = "memory"
)

// Providers lists every provider NewVectorDriver accepts.
func Providers() []string {
	return []string{ProviderSQLiteVec, ProviderChroma, ProviderQdrant, ProviderPGVector, ProviderMemory}
}

type NewVectorDriverOpts struct {
	ProviderType string

	// TargetURL is provider specific: a file path for sqlite-vec, a URL for
	// chroma, host:port for qdrant and a connection string for pgvector.
	TargetURL string

	Dimensions uint
	Logger     *slog.Logger
}

func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case ProviderSQLiteVec:
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.TargetURL,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case ProviderChroma:
		return chroma.NewDriver(chroma.Config{
			URL: o.TargetURL,
		}, o.Logger)
	case ProviderQdrant:
		host, port, err := splitHostPort(o.TargetURL)
		if err != nil {
			return nil, err
		}
		return qdrant.NewDriver(qdrant.Config{
			Host:       host,
			Port:       port,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case ProviderPGVector:
		return pgvector.NewDriver(ctx, pgvector.Config{
			ConnStr:    o.TargetURL,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case ProviderMemory:
		return inmemory.NewDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s (available: %s)", o.ProviderType, strings.Join(Providers(), ", "))
	}
}

func splitHostPort(target string) (string, int, error) {
	if target == "" {
		return "", 0, fmt.Errorf("qdrant target is required")
	}

	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		// No port: use the client default.
		return target, 0, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}
	return host, port, nil
}
