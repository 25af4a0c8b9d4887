// Package sourceutils builds source adapters from configuration.
package sourceutils

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/splice/pkg/source"
	"github.com/papercomputeco/splice/pkg/source/jsonfile"
	"github.com/papercomputeco/splice/pkg/source/mongo"
	"github.com/papercomputeco/splice/pkg/source/sqlsource"
)

// Supported source kinds.
const (
	KindJSONFile = "jsonfile"
	KindPostgres = "postgres"
	KindSQLite   = "sqlite"
	KindMongo    = "mongo"
)

// Kinds lists every kind NewAdapter accepts.
func Kinds() []string {
	return []string{KindJSONFile, KindPostgres, KindSQLite, KindMongo}
}

type NewAdapterOpts struct {
	Kind string

	// Target is a connection string for databases or a path pattern for files.
	Target string

	// Table is the SQL table or the Mongo collection.
	Table string

	// Database is the Mongo database.
	Database string

	IDField string
	IDKind  string
	Columns []string
	Logger  *slog.Logger
}

func NewAdapter(ctx context.Context, o *NewAdapterOpts) (source.Adapter, error) {
	switch o.Kind {
	case KindJSONFile:
		return jsonfile.NewAdapter(jsonfile.Config{
			Pattern: o.Target,
			IDField: o.IDField,
		}, o.Logger)
	case KindPostgres, KindSQLite:
		driver := sqlsource.DriverPostgres
		if o.Kind == KindSQLite {
			driver = sqlsource.DriverSQLite
		}
		return sqlsource.NewAdapter(ctx, sqlsource.Config{
			Driver:   driver,
			DSN:      o.Target,
			Table:    o.Table,
			IDColumn: o.IDField,
			IDKind:   o.IDKind,
			Columns:  o.Columns,
		}, o.Logger)
	case KindMongo:
		return mongo.NewAdapter(ctx, mongo.Config{
			URI:        o.Target,
			Database:   o.Database,
			Collection: o.Table,
			IDField:    o.IDField,
			IDKind:     o.IDKind,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("%w: %s (available: %s)", source.ErrUnsupportedKind, o.Kind, strings.Join(Kinds(), ", "))
	}
}
