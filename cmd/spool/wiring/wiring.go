// Package wiring assembles configured spool components for CLI commands.
// Commands register flags from the shared registry, bind them to viper in
// PreRunE via InitCommand, and build the vector driver, embedder, journal,
// and event publisher from the resulting viper instance.
package wiring

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/spool/pkg/config"
	"github.com/papercomputeco/spool/pkg/dotdir"
	"github.com/papercomputeco/spool/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/spool/pkg/embeddings/utils"
	"github.com/papercomputeco/spool/pkg/eventstream"
	eventkafka "github.com/papercomputeco/spool/pkg/eventstream/kafka"
	eventnop "github.com/papercomputeco/spool/pkg/eventstream/nop"
	"github.com/papercomputeco/spool/pkg/history"
	"github.com/papercomputeco/spool/pkg/vector"
	vectorutils "github.com/papercomputeco/spool/pkg/vector/utils"
)

// InitCommand wires a command into the configuration chain: it initializes
// viper from the config directory, binds the command's registered flags, and
// applies any saved collection context. Call it from PreRunE with the keys
// returned by the Register helpers.
func InitCommand(cmd *cobra.Command, registryKeys []string) (*viper.Viper, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("initializing config: %w", err)
	}

	config.BindRegisteredFlags(v, cmd, Flags, registryKeys)
	ApplyContextState(v, configDir)

	return v, nil
}

// ApplyContextState lowers the collection saved by "spool collection use"
// into the viper defaults. Explicit flags, environment variables, and config
// file values still win; only the built-in default is displaced.
func ApplyContextState(v *viper.Viper, configDir string) {
	state, err := dotdir.NewManager().LoadContextState(configDir)
	if err != nil || state == nil || state.Collection == "" {
		return
	}

	v.SetDefault("vector_store.collection", state.Collection)
}

// BuildDriver constructs the configured vector store driver.
func BuildDriver(v *viper.Viper, logger *slog.Logger) (vector.Driver, error) {
	return vectorutils.NewDriver(&vectorutils.NewDriverOpts{
		Provider:   v.GetString("vector_store.provider"),
		Target:     v.GetString("vector_store.target"),
		APIKey:     v.GetString("vector_store.api_key"),
		UseTLS:     v.GetBool("vector_store.use_tls"),
		Cloud:      v.GetString("vector_store.cloud"),
		Region:     v.GetString("vector_store.region"),
		Collection: v.GetString("vector_store.collection"),
		Dimensions: v.GetInt("vector_store.dimensions"),
		Metric:     v.GetString("vector_store.metric"),
		BatchSize:  v.GetInt("vector_store.batch_size"),
		Logger:     logger,
	})
}

// BuildEmbedder constructs the configured embedder. It inherits the vector
// store dimensions so embeddings match the collection.
func BuildEmbedder(v *viper.Viper) (embeddings.Embedder, error) {
	return embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		Provider:   v.GetString("embedding.provider"),
		TargetURL:  v.GetString("embedding.target"),
		APIKey:     v.GetString("embedding.api_key"),
		Model:      v.GetString("embedding.model"),
		Dimensions: v.GetInt("vector_store.dimensions"),
	})
}

// BuildJournal opens the mutation journal, or returns nil when history is
// disabled.
func BuildJournal(v *viper.Viper, logger *slog.Logger) (history.Journal, error) {
	if !v.GetBool("history.enabled") {
		return nil, nil
	}

	return history.NewSQLiteJournal(v.GetString("history.path"), logger)
}

// BuildPublisher constructs the configured mutation event publisher.
func BuildPublisher(v *viper.Viper, logger *slog.Logger) (eventstream.Publisher, error) {
	switch provider := v.GetString("events.provider"); provider {
	case "", "nop":
		return eventnop.NewPublisher(), nil
	case "kafka":
		return eventkafka.NewPublisher(eventkafka.Config{
			Brokers: v.GetStringSlice("events.brokers"),
			Topic:   v.GetString("events.topic"),
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported events provider: %q", provider)
	}
}

// Mutators bundles the optional mutation side effects (history journal and
// event publisher) a command wires once and applies per record.
type Mutators struct {
	Journal    history.Journal
	Publisher  eventstream.Publisher
	Collection string
	Provider   string
	Logger     *slog.Logger
}

// BuildMutators assembles the configured journal and publisher.
func BuildMutators(v *viper.Viper, logger *slog.Logger) (*Mutators, error) {
	journal, err := BuildJournal(v, logger)
	if err != nil {
		return nil, fmt.Errorf("opening history journal: %w", err)
	}

	publisher, err := BuildPublisher(v, logger)
	if err != nil {
		if journal != nil {
			_ = journal.Close()
		}
		return nil, fmt.Errorf("building event publisher: %w", err)
	}

	return &Mutators{
		Journal:    journal,
		Publisher:  publisher,
		Collection: v.GetString("vector_store.collection"),
		Provider:   v.GetString("vector_store.provider"),
		Logger:     logger,
	}, nil
}

// Record journals the mutation and publishes its event. Both side effects
// are best-effort: failures are logged and never fail the command.
func (m *Mutators) Record(ctx context.Context, recordID string, action history.Action, eventType string, payload map[string]any) {
	if m.Journal != nil {
		if err := m.Journal.Append(ctx, m.Collection, recordID, action, payload); err != nil {
			m.Logger.Warn("journaling mutation failed", "record_id", recordID, "error", err)
		}
	}

	if m.Publisher != nil {
		event := eventstream.NewRecordMutationEvent(eventType, m.Collection, m.Provider, recordID, payload)
		if err := m.Publisher.PublishMutation(ctx, event); err != nil {
			m.Logger.Warn("publishing mutation event failed", "record_id", recordID, "error", err)
		}
	}
}

// Close releases the journal and publisher.
func (m *Mutators) Close() {
	if m.Journal != nil {
		_ = m.Journal.Close()
	}
	if m.Publisher != nil {
		_ = m.Publisher.Close()
	}
}
