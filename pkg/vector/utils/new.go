// Package vectorutils builds vector drivers from provider-agnostic options.
package vectorutils

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/spool/pkg/vector"
	"github.com/papercomputeco/spool/pkg/vector/chroma"
	"github.com/papercomputeco/spool/pkg/vector/pgvector"
	"github.com/papercomputeco/spool/pkg/vector/pinecone"
	"github.com/papercomputeco/spool/pkg/vector/qdrant"
	"github.com/papercomputeco/spool/pkg/vector/sqlitevec"
)

// NewDriverOpts carries the provider-independent knobs plus the union of
// provider-specific ones. Unused fields are ignored by the chosen provider.
type NewDriverOpts struct {
	// Provider names the backend: sqlitevec, chroma, pinecone, qdrant, or
	// pgvector.
	Provider string

	// Target is the provider's address: a server URL for chroma, host:port
	// for qdrant, a connection string for pgvector, and a database path for
	// sqlitevec. Pinecone resolves its own data-plane hosts.
	Target string

	// APIKey authenticates against managed providers.
	APIKey string

	// UseTLS enables TLS where the provider's transport supports it.
	UseTLS bool

	// Cloud and Region place a Pinecone serverless index. Ignored by other
	// providers; Pinecone's own defaults apply when empty.
	Cloud  string
	Region string

	Collection string
	Dimensions int
	Metric     string
	BatchSize  int

	Logger *slog.Logger
}

// NewDriver builds the vector driver named by Provider.
func NewDriver(o *NewDriverOpts) (vector.Driver, error) {
	metric, err := vector.ParseMetric(o.Metric)
	if err != nil {
		return nil, err
	}

	switch o.Provider {
	case "sqlitevec":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.Target,
			Collection: o.Collection,
			Dimensions: o.Dimensions,
			Metric:     metric,
			BatchSize:  o.BatchSize,
		}, o.Logger)
	case "chroma":
		return chroma.NewDriver(chroma.Config{
			URL:        o.Target,
			Collection: o.Collection,
			Dimensions: o.Dimensions,
			Metric:     metric,
			BatchSize:  o.BatchSize,
		}, o.Logger)
	case "pinecone":
		c := pinecone.Config{
			APIKey:     o.APIKey,
			Collection: o.Collection,
			Dimensions: o.Dimensions,
			Metric:     metric,
			BatchSize:  o.BatchSize,
		}
		if o.Cloud != "" || o.Region != "" {
			c.Serverless = &pinecone.ServerlessSpec{Cloud: o.Cloud, Region: o.Region}
		}
		return pinecone.New(c, o.Logger)
	case "qdrant":
		return qdrant.New(qdrant.Config{
			Target:     o.Target,
			APIKey:     o.APIKey,
			UseTLS:     o.UseTLS,
			Collection: o.Collection,
			Dimensions: o.Dimensions,
			Metric:     metric,
			BatchSize:  o.BatchSize,
		}, o.Logger)
	case "pgvector":
		return pgvector.New(pgvector.Config{
			ConnString: o.Target,
			Collection: o.Collection,
			Dimensions: o.Dimensions,
			Metric:     metric,
			BatchSize:  o.BatchSize,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.Provider)
	}
}
