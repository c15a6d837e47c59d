package config

const (
	defaultBaseURL   = "http://localhost:8080/api/v1"
	defaultTimeout   = "30s"
	defaultChunkSize = 4096
	defaultListen    = ":8080"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	markdown := true

	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			BaseURL: defaultBaseURL,
			Timeout: defaultTimeout,
		},
		Chat: ChatConfig{
			Markdown:  &markdown,
			ChunkSize: defaultChunkSize,
		},
		Serve: ServeConfig{
			Listen: defaultListen,
		},
	}
}
