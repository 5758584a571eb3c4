package wiring

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/spool/pkg/config"
)

// Flags is the shared flag registry for spool commands. Commands pull a
// flag's name, shorthand, viper key, and help text from here, so the same
// logical flag cannot drift between commands.
var Flags = config.FlagSet{
	config.FlagProvider:   {Name: "provider", Shorthand: "p", ViperKey: "vector_store.provider", Description: "Vector store provider (sqlitevec, chroma, qdrant, pinecone, pgvector)"},
	config.FlagTarget:     {Name: "target", Shorthand: "t", ViperKey: "vector_store.target", Description: "Vector store target (db path, URL, host:port, or connection string)"},
	config.FlagAPIKey:     {Name: "api-key", ViperKey: "vector_store.api_key", Description: "Vector store API key"},
	config.FlagUseTLS:     {Name: "use-tls", ViperKey: "vector_store.use_tls", Description: "Connect to the vector store over TLS"},
	config.FlagCollection: {Name: "collection", Shorthand: "c", ViperKey: "vector_store.collection", Description: "Collection to operate on"},
	config.FlagDimensions: {Name: "dimensions", ViperKey: "vector_store.dimensions", Description: "Vector dimensions for the collection"},
	config.FlagMetric:     {Name: "metric", ViperKey: "vector_store.metric", Description: "Distance metric (cosine, euclidean, dot)"},
	config.FlagBatchSize:  {Name: "batch-size", ViperKey: "vector_store.batch_size", Description: "Records per insert batch"},
	config.FlagCloud:      {Name: "cloud", ViperKey: "vector_store.cloud", Description: "Serverless cloud for pinecone indexes"},
	config.FlagRegion:     {Name: "region", ViperKey: "vector_store.region", Description: "Serverless region for pinecone indexes"},

	config.FlagEmbeddingProv:  {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider (ollama, openai)"},
	config.FlagEmbeddingTgt:   {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding API base URL"},
	config.FlagEmbeddingKey:   {Name: "embedding-api-key", ViperKey: "embedding.api_key", Description: "Embedding API key"},
	config.FlagEmbeddingModel: {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model name"},

	config.FlagHistory:     {Name: "history", ViperKey: "history.enabled", Description: "Journal record mutations to the history database"},
	config.FlagHistoryPath: {Name: "history-path", ViperKey: "history.path", Description: "Path to the history database"},

	config.FlagEventsProvider: {Name: "events-provider", ViperKey: "events.provider", Description: "Mutation event publisher (nop, kafka)"},
	config.FlagEventsBrokers:  {Name: "events-brokers", ViperKey: "events.brokers", Description: "Kafka bootstrap brokers (host:port)"},
	config.FlagEventsTopic:    {Name: "events-topic", ViperKey: "events.topic", Description: "Kafka topic for mutation events"},

	config.FlagAPIListen: {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
}

// StoreFlags receives the vector store flag group for a command.
type StoreFlags struct {
	Provider   string
	Target     string
	APIKey     string
	UseTLS     bool
	Collection string
	Dimensions uint
	Metric     string
	BatchSize  int
	Cloud      string
	Region     string
}

// RegisterStoreFlags adds the vector store flag group to cmd and returns the
// registry keys to pass to config.BindRegisteredFlags.
func RegisterStoreFlags(cmd *cobra.Command, f *StoreFlags) []string {
	config.AddStringFlag(cmd, Flags, config.FlagProvider, &f.Provider)
	config.AddStringFlag(cmd, Flags, config.FlagTarget, &f.Target)
	config.AddStringFlag(cmd, Flags, config.FlagAPIKey, &f.APIKey)
	config.AddBoolFlag(cmd, Flags, config.FlagUseTLS, &f.UseTLS)
	config.AddStringFlag(cmd, Flags, config.FlagCollection, &f.Collection)
	config.AddUintFlag(cmd, Flags, config.FlagDimensions, &f.Dimensions)
	config.AddStringFlag(cmd, Flags, config.FlagMetric, &f.Metric)
	config.AddIntFlag(cmd, Flags, config.FlagBatchSize, &f.BatchSize)
	config.AddStringFlag(cmd, Flags, config.FlagCloud, &f.Cloud)
	config.AddStringFlag(cmd, Flags, config.FlagRegion, &f.Region)

	return []string{
		config.FlagProvider,
		config.FlagTarget,
		config.FlagAPIKey,
		config.FlagUseTLS,
		config.FlagCollection,
		config.FlagDimensions,
		config.FlagMetric,
		config.FlagBatchSize,
		config.FlagCloud,
		config.FlagRegion,
	}
}

// EmbeddingFlags receives the embedding flag group for a command.
type EmbeddingFlags struct {
	Provider string
	Target   string
	APIKey   string
	Model    string
}

// RegisterEmbeddingFlags adds the embedding flag group to cmd and returns the
// registry keys to pass to config.BindRegisteredFlags.
func RegisterEmbeddingFlags(cmd *cobra.Command, f *EmbeddingFlags) []string {
	config.AddStringFlag(cmd, Flags, config.FlagEmbeddingProv, &f.Provider)
	config.AddStringFlag(cmd, Flags, config.FlagEmbeddingTgt, &f.Target)
	config.AddStringFlag(cmd, Flags, config.FlagEmbeddingKey, &f.APIKey)
	config.AddStringFlag(cmd, Flags, config.FlagEmbeddingModel, &f.Model)

	return []string{
		config.FlagEmbeddingProv,
		config.FlagEmbeddingTgt,
		config.FlagEmbeddingKey,
		config.FlagEmbeddingModel,
	}
}

// MutationFlags receives the history journal and event stream flag group.
type MutationFlags struct {
	History        bool
	HistoryPath    string
	EventsProvider string
	EventsBrokers  []string
	EventsTopic    string
}

// RegisterMutationFlags adds the history and event stream flag group to cmd
// and returns the registry keys to pass to config.BindRegisteredFlags.
func RegisterMutationFlags(cmd *cobra.Command, f *MutationFlags) []string {
	config.AddBoolFlag(cmd, Flags, config.FlagHistory, &f.History)
	config.AddStringFlag(cmd, Flags, config.FlagHistoryPath, &f.HistoryPath)
	config.AddStringFlag(cmd, Flags, config.FlagEventsProvider, &f.EventsProvider)
	config.AddStringSliceFlag(cmd, Flags, config.FlagEventsBrokers, &f.EventsBrokers)
	config.AddStringFlag(cmd, Flags, config.FlagEventsTopic, &f.EventsTopic)

	return []string{
		config.FlagHistory,
		config.FlagHistoryPath,
		config.FlagEventsProvider,
		config.FlagEventsBrokers,
		config.FlagEventsTopic,
	}
}
