package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent splice configuration stored as config.toml
// in the .splice/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int                     `toml:"version"`
	Run         RunConfig               `toml:"run"`
	Retry       RetryConfig             `toml:"retry"`
	VectorStore VectorStoreConfig       `toml:"vector_store"`
	Models      map[string]int          `toml:"models,omitempty"`
	EntityTypes []EntityTypeConfig      `toml:"entity_types,omitempty"`
	Sources     map[string]SourceConfig `toml:"sources,omitempty"`
	EventStream EventStreamConfig       `toml:"eventstream"`
	API         APIConfig               `toml:"api"`
}

// RunConfig holds correlation run settings.
type RunConfig struct {
	PageSize          int     `toml:"page_size,omitempty"`
	MaxConcurrency    int     `toml:"max_concurrency,omitempty"`
	MaxChunkTotal     int     `toml:"max_chunk_total,omitempty"`
	CurrentVersion    string  `toml:"current_embedding_version,omitempty"`
	RequestsPerSecond float64 `toml:"requests_per_second,omitempty"`
}

// RetryConfig holds the retry policy for page fetches and source lookups.
// Backoffs are Go duration strings such as "200ms".
type RetryConfig struct {
	MaxAttempts    int    `toml:"max_attempts,omitempty"`
	InitialBackoff string `toml:"initial_backoff,omitempty"`
	MaxBackoff     string `toml:"max_backoff,omitempty"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// EntityTypeConfig registers one entity type for correlation.
type EntityTypeConfig struct {
	Name       string `toml:"name"`
	Collection string `toml:"collection"`
	Dimension  int    `toml:"dimension,omitempty"`
	IDField    string `toml:"id_field,omitempty"`

	// Source names an entry in [sources]. Defaults to Name.
	Source string `toml:"source,omitempty"`
}

// SourceConfig describes the adapter serving one entity type's records.
type SourceConfig struct {
	Kind     string   `toml:"kind"`
	Target   string   `toml:"target"`
	Table    string   `toml:"table,omitempty"`
	Database string   `toml:"database,omitempty"`
	IDField  string   `toml:"id_field,omitempty"`
	IDKind   string   `toml:"id_kind,omitempty"`
	Columns  []string `toml:"columns,omitempty"`
}

// EventStreamConfig holds report publishing settings. An empty provider
// disables publishing.
type EventStreamConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.Itoa(*field(c))
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = n
			return nil
		},
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported scalar config keys.
// Keys use dotted notation matching the TOML section structure. Entity
// types, sources and models are tables and are edited in the file.
var configKeys = map[string]configKeyInfo{
	"run.page_size":       intKey("run.page_size", func(c *Config) *int { return &c.Run.PageSize }),
	"run.max_concurrency": intKey("run.max_concurrency", func(c *Config) *int { return &c.Run.MaxConcurrency }),
	"run.max_chunk_total": intKey("run.max_chunk_total", func(c *Config) *int { return &c.Run.MaxChunkTotal }),
	"run.current_embedding_version": {
		get: func(c *Config) string { return c.Run.CurrentVersion },
		set: func(c *Config, v string) error { c.Run.CurrentVersion = v; return nil },
	},
	"run.requests_per_second": {
		get: func(c *Config) string {
			if c.Run.RequestsPerSecond == 0 {
				return ""
			}
			return strconv.FormatFloat(c.Run.RequestsPerSecond, 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < 0 {
				return fmt.Errorf("invalid value for run.requests_per_second: %q", v)
			}
			c.Run.RequestsPerSecond = f
			return nil
		},
	},
	"retry.max_attempts":    intKey("retry.max_attempts", func(c *Config) *int { return &c.Retry.MaxAttempts }),
	"retry.initial_backoff": durationKey("retry.initial_backoff", func(c *Config) *string { return &c.Retry.InitialBackoff }),
	"retry.max_backoff":     durationKey("retry.max_backoff", func(c *Config) *string { return &c.Retry.MaxBackoff }),
	"vector_store.provider": {
		get: func(c *Config) string { return c.VectorStore.Provider },
		set: func(c *Config, v string) error { c.VectorStore.Provider = v; return nil },
	},
	"vector_store.target": {
		get: func(c *Config) string { return c.VectorStore.Target },
		set: func(c *Config, v string) error { c.VectorStore.Target = v; return nil },
	},
	"vector_store.dimensions": {
		get: func(c *Config) string {
			if c.VectorStore.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.VectorStore.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for vector_store.dimensions: %w", err)
			}
			c.VectorStore.Dimensions = uint(n)
			return nil
		},
	},
	"eventstream.provider": {
		get: func(c *Config) string { return c.EventStream.Provider },
		set: func(c *Config, v string) error { c.EventStream.Provider = v; return nil },
	},
	"eventstream.brokers": {
		get: func(c *Config) string { return strings.Join(c.EventStream.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.EventStream.Brokers = nil
			for b := range strings.SplitSeq(v, ",") {
				if b = strings.TrimSpace(b); b != "" {
					c.EventStream.Brokers = append(c.EventStream.Brokers, b)
				}
			}
			return nil
		},
	},
	"eventstream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
}
