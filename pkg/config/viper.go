package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/rolechat/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the ROLECHAT_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (ROLECHAT_SERVER_BASE_URL, ROLECHAT_LOG_JSON, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("ROLECHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes the effective configuration held by v.
func FromViper(v *viper.Viper) *Config {
	markdown := v.GetBool("chat.markdown")

	cfg := &Config{
		Version: v.GetInt("version"),
		Server: ServerConfig{
			BaseURL: v.GetString("server.base_url"),
			Timeout: v.GetString("server.timeout"),
		},
		Chat: ChatConfig{
			Markdown:  &markdown,
			ChunkSize: v.GetUint("chat.chunk_size"),
		},
		Serve: ServeConfig{
			Listen: v.GetString("serve.listen"),
		},
		Log: LogConfig{
			JSON: v.GetBool("log.json"),
		},
	}
	applyDefaults(cfg)

	return cfg
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Server
	v.SetDefault("server.base_url", d.Server.BaseURL)
	v.SetDefault("server.timeout", d.Server.Timeout)

	// Chat
	v.SetDefault("chat.markdown", d.Chat.RenderMarkdown())
	v.SetDefault("chat.chunk_size", d.Chat.ChunkSize)

	// Serve
	v.SetDefault("serve.listen", d.Serve.Listen)

	// Log
	v.SetDefault("log.json", d.Log.JSON)
}
