package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent rolechat configuration stored as
// config.toml in the .rolechat/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version int          `toml:"version"`
	Server  ServerConfig `toml:"server"`
	Chat    ChatConfig   `toml:"chat"`
	Serve   ServeConfig  `toml:"serve"`
	Log     LogConfig    `toml:"log"`
}

// ServerConfig holds the settings used to reach the chat service.
type ServerConfig struct {
	// BaseURL is the API root, scheme + host + path prefix
	// (e.g. http://localhost:8080/api/v1).
	BaseURL string `toml:"base_url,omitempty"`

	// Timeout bounds non-streaming requests, as a Go duration string.
	// Streams are never subject to it.
	Timeout string `toml:"timeout,omitempty"`
}

// TimeoutDuration parses Timeout, falling back to the default on empty or
// invalid values.
func (s ServerConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(defaultTimeout)
	}
	return d
}

// ChatConfig holds settings for "rolechat chat".
type ChatConfig struct {
	// Markdown renders each finished reply with glamour. A nil value means
	// the default (enabled).
	Markdown *bool `toml:"markdown,omitempty"`

	// ChunkSize is the read size used when pulling stream bodies.
	ChunkSize uint `toml:"chunk_size,omitempty"`
}

// RenderMarkdown reports whether finished replies are rendered as markdown.
func (c ChatConfig) RenderMarkdown() bool {
	return c.Markdown == nil || *c.Markdown
}

// ServeConfig holds settings for the local dev backend.
type ServeConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	JSON bool `toml:"json,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.base_url": {
		get: func(c *Config) string { return c.Server.BaseURL },
		set: func(c *Config, v string) error { c.Server.BaseURL = v; return nil },
	},
	"server.timeout": {
		get: func(c *Config) string { return c.Server.Timeout },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid value for server.timeout: %w", err)
			}
			if d <= 0 {
				return errors.New("invalid value for server.timeout: must be positive")
			}
			c.Server.Timeout = v
			return nil
		},
	},
	"chat.markdown": {
		get: func(c *Config) string { return strconv.FormatBool(c.Chat.RenderMarkdown()) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for chat.markdown: %w", err)
			}
			c.Chat.Markdown = &b
			return nil
		},
	},
	"chat.chunk_size": {
		get: func(c *Config) string {
			if c.Chat.ChunkSize == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Chat.ChunkSize), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid value for chat.chunk_size: %w", err)
			}
			if n == 0 {
				return errors.New("invalid value for chat.chunk_size: must be positive")
			}
			c.Chat.ChunkSize = uint(n)
			return nil
		},
	},
	"serve.listen": {
		get: func(c *Config) string { return c.Serve.Listen },
		set: func(c *Config, v string) error { c.Serve.Listen = v; return nil },
	},
	"log.json": {
		get: func(c *Config) string { return strconv.FormatBool(c.Log.JSON) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for log.json: %w", err)
			}
			c.Log.JSON = b
			return nil
		},
	},
}
