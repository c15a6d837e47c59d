package chatcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/papercomputeco/rolechat/pkg/chat"
	"github.com/papercomputeco/rolechat/pkg/cliui"
)

// replyView renders one assistant reply while it streams. Every event holds
// the whole reply so far; extensions are printed as deltas and anything else
// redraws the reply. On a terminal, a finished reply is redrawn as markdown
// when enabled.
type replyView struct {
	out      io.Writer
	label    string
	width    int
	markdown bool

	started bool
	printed string
}

func newReplyView(out io.Writer, label string, width int, markdown bool) *replyView {
	return &replyView{out: out, label: label, width: width, markdown: markdown}
}

func (v *replyView) update(ev chat.StreamEvent) {
	if ev.Content == "" || ev.Content == v.printed {
		return
	}

	switch {
	case !v.started:
		fmt.Fprintf(v.out, "%s %s", v.label, ev.Content)
		v.started = true
	case strings.HasPrefix(ev.Content, v.printed):
		fmt.Fprint(v.out, ev.Content[len(v.printed):])
	default:
		v.clear()
		fmt.Fprintf(v.out, "%s %s", v.label, ev.Content)
	}

	v.printed = ev.Content
}

func (v *replyView) finish() {
	if !v.started {
		return
	}

	if v.markdown && v.width > 0 {
		rendered, err := cliui.RenderMarkdown(v.printed, v.width)
		if err == nil {
			v.clear()
			fmt.Fprintf(v.out, "%s\n%s\n", v.label, strings.TrimRight(rendered, "\n"))
			return
		}
	}

	fmt.Fprint(v.out, "\n\n")
}

// clear erases what the view has printed. Off a terminal it starts a new
// line instead.
func (v *replyView) clear() {
	if v.width <= 0 {
		fmt.Fprintln(v.out)
		return
	}

	if rows := v.rows(); rows > 1 {
		fmt.Fprint(v.out, ansi.CursorUp(rows-1))
	}
	fmt.Fprint(v.out, "\r"+ansi.EraseScreenBelow)
}

// rows counts the terminal rows the printed reply occupies.
func (v *replyView) rows() int {
	text := ansi.Strip(v.label) + " " + v.printed

	n := 0
	for _, line := range strings.Split(text, "\n") {
		n += max(1, (ansi.StringWidth(line)+v.width-1)/v.width)
	}
	return n
}
