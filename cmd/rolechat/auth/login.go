package authcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/rolechat/cmd/rolechat/cmdutil"
	"github.com/papercomputeco/rolechat/pkg/cliui"
	"github.com/papercomputeco/rolechat/pkg/client"
)

func newLoginCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with an existing account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrompter(cmd)

			addr, err := p.ask("Email", email)
			if err != nil {
				return err
			}
			password, err := p.secret("Password")
			if err != nil {
				return err
			}

			return authenticate(cmd, func(env *cmdutil.Env) (*client.AuthResponse, error) {
				return env.Client.Login(cmd.Context(), client.LoginRequest{Email: addr, Password: password})
			})
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmdutil.AddClientFlags(cmd)

	return cmd
}

func newRegisterCmd() *cobra.Command {
	var username, email string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrompter(cmd)

			name, err := p.ask("Username", username)
			if err != nil {
				return err
			}
			addr, err := p.ask("Email", email)
			if err != nil {
				return err
			}
			password, err := p.secret("Password")
			if err != nil {
				return err
			}

			return authenticate(cmd, func(env *cmdutil.Env) (*client.AuthResponse, error) {
				return env.Client.Register(cmd.Context(), client.RegisterRequest{
					Username: name,
					Email:    addr,
					Password: password,
				})
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Account username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmdutil.AddClientFlags(cmd)

	return cmd
}

func authenticate(cmd *cobra.Command, call func(*cmdutil.Env) (*client.AuthResponse, error)) error {
	env, err := cmdutil.Setup(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	resp, err := call(env)
	if err != nil {
		return err
	}

	if err := env.SaveSession(resp); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}

	env.Logger.Debug("session stored",
		"server", env.Config.Server.BaseURL,
		"user_id", resp.User.ID,
	)

	fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Signed in as %s %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(resp.User.Username),
		cliui.DimStyle.Render("("+env.Config.Server.BaseURL+")"),
	)

	return nil
}
