// Package conversationscmder provides the conversations command for listing,
// creating, inspecting and deleting conversations.
package conversationscmder

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/rolechat/cmd/rolechat/cmdutil"
	"github.com/papercomputeco/rolechat/pkg/chat"
	"github.com/papercomputeco/rolechat/pkg/cliui"
	"github.com/papercomputeco/rolechat/pkg/utils"
)

const conversationsLongDesc string = `Manage your conversations.

Examples:
  rolechat conversations list
  rolechat conversations create 2
  rolechat conversations show 14
  rolechat conversations delete 14 15 16`

const conversationsShortDesc string = "Manage conversations"

const titleWidth = 48

func NewConversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"convs"},
		Short:   conversationsShortDesc,
		Long:    conversationsLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newDeleteCmd())

	return cmd
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your conversations, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdutil.Setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			convs, err := env.Client.Conversations(cmd.Context())
			if err != nil {
				return cmdutil.Explain(err)
			}

			w := cmd.OutOrStdout()
			if len(convs) == 0 {
				fmt.Fprintf(w, "\n  %s No conversations yet. Start one with 'rolechat chat --character <id>'.\n\n",
					cliui.DimStyle.Render("●"))
				return nil
			}

			fmt.Fprintf(w, "\n  %s\n\n", cliui.HeaderStyle.Render("Conversations"))
			for _, conv := range convs {
				fmt.Fprintf(w, "  %s  %s  %s\n",
					cliui.DimStyle.Render(fmt.Sprintf("%4d", conv.ID)),
					utils.Truncate(utils.SingleLine(conv.Title), titleWidth),
					cliui.DimStyle.Render(conv.UpdatedAt.Local().Format(time.DateTime)),
				)
			}
			fmt.Fprintln(w)
			return nil
		},
	}

	cmdutil.AddClientFlags(cmd)
	return cmd
}

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <character-id>",
		Short: "Start a conversation with a character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			characterID, err := parseID(args[0])
			if err != nil {
				return err
			}

			env, err := cmdutil.Setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			conv, err := env.Client.CreateConversation(cmd.Context(), characterID)
			if err != nil {
				return cmdutil.Explain(err)
			}

			if err := env.RememberConversation(*conv); err != nil {
				env.Logger.Warn("could not store session state", "error", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Created conversation %s %s\n\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(strconv.FormatInt(conv.ID, 10)),
				cliui.DimStyle.Render("("+conv.Title+")"),
			)
			return nil
		},
	}

	cmdutil.AddClientFlags(cmd)
	return cmd
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Print a conversation's history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			env, err := cmdutil.Setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			detail, err := env.Client.Conversation(cmd.Context(), id)
			if err != nil {
				return cmdutil.Explain(err)
			}

			name := "assistant"
			if detail.Conversation.Character != nil {
				name = detail.Conversation.Character.Name
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "\n  %s\n\n", cliui.HeaderStyle.Render(detail.Conversation.Title))
			for _, m := range detail.Messages {
				label := cliui.UserStyle.Render("you")
				if m.Role == chat.RoleAssistant {
					label = cliui.CharacterStyle.Render(name)
				}
				fmt.Fprintf(w, "  %s %s\n  %s\n\n",
					label,
					cliui.DimStyle.Render(m.CreatedAt.Local().Format(time.DateTime)),
					m.Content,
				)
			}
			return nil
		},
	}

	cmdutil.AddClientFlags(cmd)
	return cmd
}

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete <conversation-id>...",
		Aliases: []string{"rm"},
		Short:   "Delete one or more conversations",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			env, err := cmdutil.Setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			deleted := len(ids)
			if len(ids) == 1 {
				err = env.Client.DeleteConversation(cmd.Context(), ids[0])
			} else {
				deleted, err = env.Client.BatchDeleteConversations(cmd.Context(), ids)
			}
			if err != nil {
				return cmdutil.Explain(err)
			}

			env.ForgetConversations(ids)

			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Deleted %d conversation(s)\n\n", cliui.SuccessMark, deleted)
			return nil
		},
	}

	cmdutil.AddClientFlags(cmd)
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
