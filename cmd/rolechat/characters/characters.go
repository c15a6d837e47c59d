// Package characterscmder provides the characters command for browsing the
// personas available on the chat service.
package characterscmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/rolechat/cmd/rolechat/cmdutil"
	"github.com/papercomputeco/rolechat/pkg/cliui"
	"github.com/papercomputeco/rolechat/pkg/client"
	"github.com/papercomputeco/rolechat/pkg/utils"
)

const charactersLongDesc string = `List the characters available on the chat service.

Examples:
  rolechat characters
  rolechat characters --search captain`

const charactersShortDesc string = "List available characters"

const descriptionWidth = 60

func NewCharactersCmd() *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:     "characters",
		Aliases: []string{"chars"},
		Short:   charactersShortDesc,
		Long:    charactersLongDesc,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdutil.Setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			var chars []client.Character
			if search != "" {
				chars, err = env.Client.SearchCharacters(cmd.Context(), search)
			} else {
				chars, err = env.Client.Characters(cmd.Context())
			}
			if err != nil {
				return cmdutil.Explain(err)
			}

			PrintCharacters(cmd.OutOrStdout(), chars)
			return nil
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Only show characters matching a query")
	cmdutil.AddClientFlags(cmd)

	return cmd
}

// PrintCharacters writes a one-line summary per character.
func PrintCharacters(w io.Writer, chars []client.Character) {
	if len(chars) == 0 {
		fmt.Fprintf(w, "\n  %s No characters found.\n\n", cliui.DimStyle.Render("●"))
		return
	}

	fmt.Fprintf(w, "\n  %s\n\n", cliui.HeaderStyle.Render("Characters"))
	for _, ch := range chars {
		fmt.Fprintf(w, "  %s  %s %s\n      %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("%4d", ch.ID)),
			cliui.NameStyle.Render(ch.Name),
			cliui.DimStyle.Render("["+ch.Category+"]"),
			utils.Truncate(utils.SingleLine(ch.Description), descriptionWidth),
		)
	}
	fmt.Fprintln(w)
}
