package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix         = "NOTEGRAPH_"
	maxConfigFileSize = 1024 * 1024 // 1MB
)

// compoundKeys maps flattened env suffixes to their dotted config paths.
// Needed because underscores are ambiguous between section separators and
// field-name underscores (NOTEGRAPH_VECTOR_STORE_CHUNK_SIZE_MAX).
var compoundKeys = map[string]string{
	"NOTES_ROOT_DIR":                      "notes.root_dir",
	"NOTES_EXCLUDE_PATTERNS":              "notes.exclude_patterns",
	"VECTOR_STORE_PATH":                   "vector_store.path",
	"VECTOR_STORE_COMPRESS":               "vector_store.compress",
	"VECTOR_STORE_CHUNK_SIZE_MIN":         "vector_store.chunk_size_min",
	"VECTOR_STORE_CHUNK_SIZE_MAX":         "vector_store.chunk_size_max",
	"VECTOR_STORE_SEARCH_THRESHOLD":       "vector_store.search_threshold",
	"VECTOR_STORE_SEMANTIC_THRESHOLD":     "vector_store.semantic_link_threshold",
	"VECTOR_STORE_SEMANTIC_LIMIT":         "vector_store.semantic_link_limit",
	"VECTOR_STORE_SUGGESTION_THRESHOLD":   "vector_store.suggestion_threshold",
	"VECTOR_STORE_SUGGESTION_LIMIT":       "vector_store.suggestion_limit",
	"EMBEDDINGS_PROVIDER":                 "embeddings.provider",
	"EMBEDDINGS_MODEL":                    "embeddings.model",
	"EMBEDDINGS_BATCH_SIZE":               "embeddings.batch_size",
	"EMBEDDINGS_BASE_URL":                 "embeddings.base_url",
	"EMBEDDINGS_API_KEY":                  "embeddings.api_key",
	"LOGGING_LEVEL":                       "logging.level",
	"LOGGING_FORMAT":                      "logging.format",
	"LOGGING_CALLER":                      "logging.caller",
}

// Load loads configuration from the given YAML file, then overrides with
// NOTEGRAPH_* environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (NOTEGRAPH_EMBEDDINGS_MODEL, ...)
//  2. YAML config file
//  3. Defaults from NewDefaultConfig
//
// If configPath is empty the default path ~/.config/notegraph/config.yaml is
// used; a missing file is not an error, defaults apply.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "notegraph", "config.yaml")
	} else {
		configPath = ExpandPath(configPath)
	}

	if f, err := os.Open(configPath); err == nil {
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file %s exceeds %d bytes", configPath, maxConfigFileSize)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("opening config file %s: %w", configPath, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.TrimPrefix(s, envPrefix)
		if mapped, ok := compoundKeys[key]; ok {
			return mapped
		}
		return strings.ToLower(strings.ReplaceAll(key, "_", "."))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment overrides: %w", err)
	}

	cfg := NewDefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
