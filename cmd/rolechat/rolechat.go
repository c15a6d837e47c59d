// Package rolechatcmder
package rolechatcmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/rolechat/cmd/rolechat/auth"
	characterscmder "github.com/papercomputeco/rolechat/cmd/rolechat/characters"
	chatcmder "github.com/papercomputeco/rolechat/cmd/rolechat/chat"
	configcmder "github.com/papercomputeco/rolechat/cmd/rolechat/config"
	conversationscmder "github.com/papercomputeco/rolechat/cmd/rolechat/conversations"
	servecmder "github.com/papercomputeco/rolechat/cmd/rolechat/serve"
	versioncmder "github.com/papercomputeco/rolechat/cmd/version"
)

const rolechatLongDesc string = `Rolechat is a terminal client for role-play chat with AI characters.

Get started:
  rolechat auth register          Create an account
  rolechat characters             Browse characters
  rolechat chat --character 1     Start chatting

Run "rolechat serve" for a local development backend.`

const rolechatShortDesc string = "Rolechat - role-play chat in your terminal"

func NewRolechatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rolechat",
		Short:         rolechatShortDesc,
		Long:          rolechatLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .rolechat/ directory")
	cmd.PersistentFlags().String("log-file", "", "Also write every log record to this file as JSON")

	// Add subcommands
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(characterscmder.NewCharactersCmd())
	cmd.AddCommand(conversationscmder.NewConversationsCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
