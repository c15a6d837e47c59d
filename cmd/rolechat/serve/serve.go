// Package servecmder provides the serve command, which runs the development
// backend.
package servecmder

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/rolechat/api"
	"github.com/papercomputeco/rolechat/cmd/rolechat/cmdutil"
	"github.com/papercomputeco/rolechat/pkg/config"
)

type serveCommander struct {
	fragmentDelay time.Duration
	rateLimit     int
}

const serveLongDesc string = `Run a local development backend.

The backend serves the chat service API from memory: accounts, a small cast
of characters, conversations, and streamed replies from an echo responder.
Nothing is persisted across restarts.

Examples:
  rolechat serve
  rolechat serve --listen :9090 --fragment-delay 50ms
  rolechat chat --base-url http://localhost:9090/api/v1 --character 1`

const serveShortDesc string = "Run a local development backend"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	var (
		listen  string
		logJSON bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &listen)
	config.AddBoolFlag(cmd, config.Flags, config.FlagLogJSON, &logJSON)
	cmd.Flags().DurationVar(&cmder.fragmentDelay, "fragment-delay", 30*time.Millisecond, "Pause between streamed reply fragments")
	cmd.Flags().IntVar(&cmder.rateLimit, "rate-limit", 0, "Messages per user per minute (0 disables)")

	return cmd
}

func (c *serveCommander) run(cmd *cobra.Command) error {
	cfg, err := cmdutil.LoadConfig(cmd, config.FlagListen, config.FlagLogJSON)
	if err != nil {
		return err
	}

	log, closer, err := cmdutil.NewLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	store := api.NewStore(api.DefaultCharacters()...)
	server := api.NewServer(api.Config{
		ListenAddr:       cfg.Serve.Listen,
		FragmentDelay:    c.fragmentDelay,
		MessageRateLimit: c.rateLimit,
	}, store, log)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("dev backend error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}
