package config

const (
	defaultPageSize       = 500
	defaultMaxConcurrency = 4
	defaultMaxChunkTotal  = 10000

	defaultMaxAttempts    = 3
	defaultInitialBackoff = "200ms"
	defaultMaxBackoff     = "5s"

	defaultVectorProvider   = "sqlite-vec"
	defaultVectorTarget     = "splice.sqlite"
	defaultVectorDimensions = 384

	defaultEventTopic = "splice.reports"

	defaultAPIListen = ":8082"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Run: RunConfig{
			PageSize:       defaultPageSize,
			MaxConcurrency: defaultMaxConcurrency,
			MaxChunkTotal:  defaultMaxChunkTotal,
		},
		Retry: RetryConfig{
			MaxAttempts:    defaultMaxAttempts,
			InitialBackoff: defaultInitialBackoff,
			MaxBackoff:     defaultMaxBackoff,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Target:     defaultVectorTarget,
			Dimensions: defaultVectorDimensions,
		},
		EventStream: EventStreamConfig{
			Topic: defaultEventTopic,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
	}
}
