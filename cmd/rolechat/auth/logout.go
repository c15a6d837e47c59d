package authcmder

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/rolechat/cmd/rolechat/cmdutil"
	"github.com/papercomputeco/rolechat/pkg/cliui"
	"github.com/papercomputeco/rolechat/pkg/client"
)

func newLogoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdutil.Setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			// The local session is dropped even when the server is unreachable.
			if err := env.Client.Logout(cmd.Context()); err != nil && !errors.Is(err, client.ErrUnauthorized) {
				env.Logger.Warn("server logout failed", "error", err)
			}

			if err := env.Credentials.RemoveSession(env.Config.Server.BaseURL); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Signed out of %s\n\n",
				cliui.SuccessMark,
				cliui.DimStyle.Render(env.Config.Server.BaseURL),
			)
			return nil
		},
	}

	cmdutil.AddClientFlags(cmd)

	return cmd
}

func newWhoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdutil.Setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			user, err := env.Client.Me(cmd.Context())
			if err != nil {
				return cmdutil.Explain(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s %s\n  %s %s\n  %s %s\n\n",
				cliui.KeyStyle.Render("User: "), cliui.NameStyle.Render(user.Username),
				cliui.KeyStyle.Render("Email:"), cliui.ValueStyle.Render(user.Email),
				cliui.KeyStyle.Render("Server:"), cliui.DimStyle.Render(env.Config.Server.BaseURL),
			)
			return nil
		},
	}

	cmdutil.AddClientFlags(cmd)

	return cmd
}
