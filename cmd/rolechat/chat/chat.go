// Package chatcmder provides the interactive chat command.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/rolechat/cmd/rolechat/cmdutil"
	"github.com/papercomputeco/rolechat/pkg/chat"
	"github.com/papercomputeco/rolechat/pkg/cliui"
	"github.com/papercomputeco/rolechat/pkg/client"
	"github.com/papercomputeco/rolechat/pkg/config"
)

const chatLongDesc string = `Start an interactive chat with a character.

Replies stream in as the character writes them. The conversation is
remembered in the .rolechat/ directory, so running "rolechat chat" again
resumes where you left off.

Type /history to reprint the conversation and /exit or Ctrl+D to quit.
Ctrl+C while a reply is streaming stops waiting for it.

Examples:
  rolechat chat --character 2          Start a new conversation
  rolechat chat                        Resume the last conversation
  rolechat chat --conversation 14      Resume a specific conversation
  rolechat chat --no-stream            Wait for complete replies
  rolechat chat --record stream.log    Save the raw reply streams`

const chatShortDesc string = "Chat with a character"

// historyTail is how many earlier messages are shown when resuming.
const historyTail = 6

type chatCommander struct {
	conversationID int64
	characterID    int64
	noStream       bool
	audioURL       string
	record         string

	env      *cmdutil.Env
	out      io.Writer
	width    int
	markdown bool
	name     string
	spinner  *cliui.Spinner
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	var (
		markdown  bool
		chunkSize uint
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdutil.Setup(cmd, config.FlagMarkdown, config.FlagChunkSize)
			if err != nil {
				return err
			}
			defer env.Close()

			cmder.env = env
			return cmder.run(cmd)
		},
	}

	cmd.Flags().Int64VarP(&cmder.conversationID, "conversation", "c", 0, "Conversation to resume")
	cmd.Flags().Int64Var(&cmder.characterID, "character", 0, "Start a new conversation with this character")
	cmd.Flags().BoolVar(&cmder.noStream, "no-stream", false, "Wait for complete replies instead of streaming")
	cmd.Flags().StringVar(&cmder.audioURL, "audio-url", "", "Audio clip to attach to the first message")
	cmd.Flags().StringVar(&cmder.record, "record", "", "Append raw reply streams to this file")
	config.AddBoolFlag(cmd, config.Flags, config.FlagMarkdown, &markdown)
	config.AddUintFlag(cmd, config.Flags, config.FlagChunkSize, &chunkSize)
	cmdutil.AddClientFlags(cmd)

	cmd.MarkFlagsMutuallyExclusive("conversation", "character")

	return cmd
}

func (c *chatCommander) run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	c.out = cmd.OutOrStdout()
	c.width = terminalWidth(c.out)
	c.markdown = c.env.Config.Chat.RenderMarkdown()

	detail, err := c.openConversation(ctx)
	if err != nil {
		return err
	}

	c.name = "assistant"
	if detail.Conversation.Character != nil {
		c.name = detail.Conversation.Character.Name
	}
	if c.width > 0 {
		c.spinner = cliui.NewSpinner(c.out, cliui.PendingStyle.Render(c.name+" is typing..."))
	}

	var recorder io.Writer
	if c.record != "" {
		f, err := os.OpenFile(c.record, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("opening record file: %w", err)
		}
		defer f.Close()
		recorder = f
	}

	session := chat.NewSession(c.env.Client,
		chat.WithLogger(c.env.Logger),
		chat.WithBusyHook(c.onBusy),
		chat.WithChunkSize(int(c.env.Config.Chat.ChunkSize)),
	)
	session.Load(detail.Messages)

	c.printHeader(detail, len(detail.Messages))
	c.printMessages(tail(detail.Messages, historyTail))

	scanner := bufio.NewScanner(cmd.InOrStdin())
	audioURL := c.audioURL

	for {
		fmt.Fprint(c.out, cliui.UserStyle.Render("you> "))
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/exit", "/quit":
			fmt.Fprintln(c.out)
			return nil
		case "/history":
			c.printMessages(session.Messages())
			continue
		}

		err := c.send(ctx, session, detail.Conversation.ID, input, audioURL, recorder)
		if errors.Is(err, client.ErrUnauthorized) {
			return cmdutil.Explain(err)
		}
		if err == nil {
			audioURL = ""
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// openConversation creates or resumes the conversation to chat in and
// records it for the next run.
func (c *chatCommander) openConversation(ctx context.Context) (*client.ConversationDetail, error) {
	cl := c.env.Client

	id := c.conversationID
	if c.characterID > 0 {
		conv, err := cl.CreateConversation(ctx, c.characterID)
		if err != nil {
			return nil, cmdutil.Explain(err)
		}
		id = conv.ID
	}

	resumed := false
	if id == 0 {
		id = c.env.LastConversation()
		resumed = true
	}
	if id == 0 {
		return nil, errors.New("no conversation to resume\n\nStart one with 'rolechat chat --character <id>' (see 'rolechat characters')")
	}

	detail, err := cl.Conversation(ctx, id)
	if err != nil {
		var se *client.StatusError
		if resumed && errors.As(err, &se) && se.Code == 404 {
			c.env.ForgetConversations([]int64{id})
			return nil, fmt.Errorf("the last conversation (%d) no longer exists\n\nStart one with 'rolechat chat --character <id>'", id)
		}
		return nil, cmdutil.Explain(err)
	}

	if err := c.env.RememberConversation(detail.Conversation); err != nil {
		c.env.Logger.Warn("could not store session state", "error", err)
	}

	return detail, nil
}

// send sends one message and renders the reply as it arrives.
func (c *chatCommander) send(ctx context.Context, session *chat.Session, conversationID int64, content, audioURL string, recorder io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	view := newReplyView(c.out, cliui.CharacterStyle.Render(c.name+">"), c.width, c.markdown)

	opts := []chat.SendOption{
		chat.WithObserver(view.update),
		chat.WithAudioURL(audioURL),
	}
	if recorder != nil {
		opts = append(opts, chat.WithRecorder(recorder))
	}

	var err error
	if c.noStream {
		err = session.Send(ctx, conversationID, content, opts...)
	} else {
		err = session.SendStreaming(ctx, conversationID, content, opts...)
	}
	view.finish()

	switch {
	case err == nil && !view.started:
		fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("(no reply)"))
	case errors.Is(err, context.Canceled):
		fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("(interrupted)"))
	case err != nil:
		fmt.Fprintf(c.out, "  %s %v\n\n", cliui.FailMark, err)
	}

	return err
}

func (c *chatCommander) onBusy(busy bool) {
	if c.spinner == nil {
		return
	}
	if busy {
		c.spinner.Start()
	} else {
		c.spinner.Stop()
	}
}

func (c *chatCommander) printHeader(detail *client.ConversationDetail, count int) {
	fmt.Fprintf(c.out, "\n  %s Chatting with %s %s\n",
		cliui.SuccessMark,
		cliui.CharacterStyle.Render(c.name),
		cliui.DimStyle.Render(fmt.Sprintf("(conversation %d, %d messages)", detail.Conversation.ID, count)),
	)
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /history to review, /exit or Ctrl+D to quit."))
}

func (c *chatCommander) printMessages(msgs []chat.Message) {
	for _, m := range msgs {
		label := cliui.UserStyle.Render("you>")
		if m.Role == chat.RoleAssistant {
			label = cliui.CharacterStyle.Render(c.name + ">")
		}

		content := m.Content
		if m.Provisional {
			content += " " + cliui.PendingStyle.Render("(not sent)")
		}
		fmt.Fprintf(c.out, "%s %s\n\n", label, content)
	}
}

func tail(msgs []chat.Message, n int) []chat.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

// terminalWidth returns the column count of w, or 0 when w is not a
// terminal.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}

	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
