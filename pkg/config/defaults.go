package config

const (
	defaultVectorProvider = "sqlitevec"
	defaultVectorTarget   = "spool.db"
	defaultCollection     = "spool"
	defaultDimensions     = 768
	defaultMetric         = "cosine"
	defaultBatchSize      = 100

	defaultEmbeddingProvider = "ollama"
	defaultEmbeddingTarget   = "http://localhost:11434"
	defaultEmbeddingModel    = "embeddinggemma"

	defaultHistoryPath = "spool-history.db"

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "spool.mutations"

	defaultAPIListen = ":8082"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Target:     defaultVectorTarget,
			Collection: defaultCollection,
			Dimensions: defaultDimensions,
			Metric:     defaultMetric,
			BatchSize:  defaultBatchSize,
		},
		Embedding: EmbeddingConfig{
			Provider: defaultEmbeddingProvider,
			Target:   defaultEmbeddingTarget,
			Model:    defaultEmbeddingModel,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    defaultHistoryPath,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
	}
}
