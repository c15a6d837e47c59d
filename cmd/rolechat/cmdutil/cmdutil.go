// Package cmdutil holds the setup shared by rolechat commands that talk to
// the chat service: effective configuration, the logger, the credential
// store, and the API client.
package cmdutil

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/rolechat/pkg/client"
	"github.com/papercomputeco/rolechat/pkg/config"
	"github.com/papercomputeco/rolechat/pkg/credentials"
	"github.com/papercomputeco/rolechat/pkg/logger"
)

// ClientFlagKeys are the registry keys added by AddClientFlags.
var ClientFlagKeys = []string{
	config.FlagBaseURL,
	config.FlagTimeout,
	config.FlagLogJSON,
}

// Env is everything a command needs to reach the chat service.
type Env struct {
	ConfigDir   string
	Config      *config.Config
	Logger      *slog.Logger
	Credentials *credentials.Manager
	Client      *client.Client

	logFile io.Closer
}

// AddClientFlags registers the flags shared by every command that talks to
// the chat service. Their values are read back through viper.
func AddClientFlags(cmd *cobra.Command) {
	var (
		baseURL string
		timeout string
		logJSON bool
	)
	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &baseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagTimeout, &timeout)
	config.AddBoolFlag(cmd, config.Flags, config.FlagLogJSON, &logJSON)
}

// LoadConfig resolves the effective configuration for cmd. Flags named by
// keys take precedence over ROLECHAT_* variables, config.toml and defaults.
func LoadConfig(cmd *cobra.Command, keys ...string) (*config.Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, keys)

	return config.FromViper(v), nil
}

// NewLogger builds the command logger. Terminal output goes to stderr so
// stdout carries chat text. With --log-file every record, debug included, is
// also appended to that file as JSON; the returned closer releases it.
func NewLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, io.Closer, error) {
	debug, _ := cmd.Flags().GetBool("debug")
	logFile, _ := cmd.Flags().GetString("log-file")

	terminal := logger.New(
		logger.WithWriter(cmd.ErrOrStderr()),
		logger.WithDebug(debug),
		logger.WithPretty(true),
		logger.WithJSON(cfg.Log.JSON),
		logger.WithPrefix(cmd.Name()),
	)
	if logFile == "" {
		return terminal, nopCloser{}, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(
		logger.WithWriter(f),
		logger.WithDebug(true),
		logger.WithJSON(true),
		logger.WithSource(true),
	)

	return logger.Multi(terminal, file), f, nil
}

// Setup builds the Env for cmd, binding ClientFlagKeys plus extraKeys.
// Callers must Close it.
func Setup(cmd *cobra.Command, extraKeys ...string) (*Env, error) {
	cfg, err := LoadConfig(cmd, append(slices.Clone(ClientFlagKeys), extraKeys...)...)
	if err != nil {
		return nil, err
	}

	log, closer, err := NewLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	configDir, _ := cmd.Flags().GetString("config-dir")
	creds, err := credentials.NewManager(configDir)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	c, err := client.New(cfg.Server.BaseURL,
		client.WithTokenStore(creds.ForServer(cfg.Server.BaseURL)),
		client.WithTimeout(cfg.Server.TimeoutDuration()),
		client.WithLogger(log),
	)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	return &Env{
		ConfigDir:   configDir,
		Config:      cfg,
		Logger:      log,
		Credentials: creds,
		Client:      c,
		logFile:     closer,
	}, nil
}

// Close releases the log file, if any.
func (e *Env) Close() error {
	if e.logFile == nil {
		return nil
	}
	return e.logFile.Close()
}

// SaveSession stores the token and profile returned by login or
// registration for the configured server.
func (e *Env) SaveSession(resp *client.AuthResponse) error {
	return e.Credentials.SetSession(e.Config.Server.BaseURL, credentials.ServerCredential{
		Token:    resp.Token,
		UserID:   resp.User.ID,
		Username: resp.User.Username,
		Email:    resp.User.Email,
	})
}

// Explain adds a hint to errors a user can act on.
func Explain(err error) error {
	if errors.Is(err, client.ErrUnauthorized) {
		return fmt.Errorf("%w\n\nRun 'rolechat auth login' to sign in again", err)
	}
	return err
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
