// Package config provides configuration loading for notegraph.
//
// Configuration is read from a YAML file, then overridden by environment
// variables with the NOTEGRAPH_ prefix. Unset fields fall back to defaults.
package config

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/fyrsmithlabs/notegraph/internal/logging"
)

// Config holds the complete notegraph configuration.
type Config struct {
	Notes       NotesConfig       `koanf:"notes"`
	VectorStore VectorStoreConfig `koanf:"vector_store"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Logging     logging.Config    `koanf:"logging"`
}

// NotesConfig describes where notes live on disk.
type NotesConfig struct {
	// RootDir is the root of the Markdown notes tree. Document IDs are
	// paths relative to this directory.
	RootDir string `koanf:"root_dir"`

	// ExcludePatterns are glob patterns matched against paths relative to
	// RootDir; matching files are not indexed.
	ExcludePatterns []string `koanf:"exclude_patterns"`
}

// VectorStoreConfig holds settings for the embedded vector store.
type VectorStoreConfig struct {
	// Path is the directory for persistent storage.
	Path string `koanf:"path"`

	// Compress enables gzip compression for stored data.
	Compress bool `koanf:"compress"`

	// ChunkSizeMin and ChunkSizeMax bound chunk length in characters.
	ChunkSizeMin int `koanf:"chunk_size_min"`
	ChunkSizeMax int `koanf:"chunk_size_max"`

	// SearchThreshold is the minimum similarity for ad-hoc searches.
	SearchThreshold float64 `koanf:"search_threshold"`

	// SemanticLinkThreshold and SemanticLinkLimit control the tight
	// "closely related content" lookup during relationship analysis.
	SemanticLinkThreshold float64 `koanf:"semantic_link_threshold"`
	SemanticLinkLimit     int     `koanf:"semantic_link_limit"`

	// SuggestionThreshold and SuggestionLimit control the looser
	// discovery pass that feeds suggested links.
	SuggestionThreshold float64 `koanf:"suggestion_threshold"`
	SuggestionLimit     int     `koanf:"suggestion_limit"`
}

// EmbeddingsConfig holds settings for the embedding backend.
type EmbeddingsConfig struct {
	// Provider is the backend type: "openai" or "tei".
	Provider string `koanf:"provider"`

	// Model is the embedding model name.
	Model string `koanf:"model"`

	// BatchSize is the number of texts per embedding request.
	BatchSize int `koanf:"batch_size"`

	// BaseURL is the endpoint for the TEI provider.
	BaseURL string `koanf:"base_url"`

	// APIKey authenticates against the OpenAI provider. Usually set via
	// the OPENAI_API_KEY environment variable instead.
	APIKey string `koanf:"api_key"`
}

// NewDefaultConfig returns config with defaults applied.
func NewDefaultConfig() *Config {
	return &Config{
		Notes: NotesConfig{
			RootDir:         "~/Documents/notes",
			ExcludePatterns: []string{".obsidian/**", "*.excalidraw.md"},
		},
		VectorStore: VectorStoreConfig{
			Path:                  "~/Documents/notes/.vector_store",
			ChunkSizeMin:          50,
			ChunkSizeMax:          1500,
			SearchThreshold:       0.3,
			SemanticLinkThreshold: 0.6,
			SemanticLinkLimit:     5,
			SuggestionThreshold:   0.5,
			SuggestionLimit:       10,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			BatchSize: 100,
		},
		Logging: logging.NewDefaultConfig(),
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Notes),
		validation.Field(&c.VectorStore),
		validation.Field(&c.Embeddings),
	)
}

// Validate implements validation.Validatable.
func (c NotesConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.RootDir, validation.Required),
	)
}

// Validate implements validation.Validatable.
func (c VectorStoreConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.ChunkSizeMin, validation.Required, validation.Min(1)),
		validation.Field(&c.ChunkSizeMax, validation.Required, validation.Min(c.ChunkSizeMin)),
		validation.Field(&c.SearchThreshold, validation.Min(-1.0), validation.Max(1.0)),
		validation.Field(&c.SemanticLinkThreshold, validation.Min(-1.0), validation.Max(1.0)),
		validation.Field(&c.SuggestionThreshold, validation.Min(-1.0), validation.Max(1.0)),
		validation.Field(&c.SemanticLinkLimit, validation.Min(1)),
		validation.Field(&c.SuggestionLimit, validation.Min(1)),
	)
}

// Validate implements validation.Validatable.
func (c EmbeddingsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Provider, validation.Required, validation.In("openai", "tei")),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.BatchSize, validation.Min(1)),
	)
}
