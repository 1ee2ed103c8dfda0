package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tanishra/smartinfo"
)

type replAction int

const (
	actionAsk replAction = iota
	actionExit
	actionHistory
	actionClear
	actionDocsOn
	actionDocsOff
	actionHelp
	actionUnknown
)

// parseLine classifies one line of REPL input.
func parseLine(line string) replAction {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "exit", "quit", "q":
		return actionExit
	case "history", "logs":
		return actionHistory
	case "clear", "reset":
		return actionClear
	case ":docs on":
		return actionDocsOn
	case ":docs off":
		return actionDocsOff
	case "help", ":help", "?":
		return actionHelp
	}
	if strings.HasPrefix(strings.TrimSpace(line), ":") {
		return actionUnknown
	}
	return actionAsk
}

const replHelp = `Commands:
  exit | quit | q     leave the chat
  history | logs      show the conversation so far
  clear | reset       forget the conversation
  :docs on | off      answer with passages from ingested documents
Anything else is sent as a question.`

func (c *cli) chatCmd() *cobra.Command {
	var docs bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			return c.repl(cmd.Context(), app, cmd.InOrStdin(), cmd.OutOrStdout(), docs)
		},
	}
	cmd.Flags().BoolVar(&docs, "docs", false, "start with document answers enabled")
	return cmd
}

// repl reads questions until exit or end of input. Both end the session
// gracefully.
func (c *cli) repl(ctx context.Context, app *smartinfo.App, in io.Reader, out io.Writer, docs bool) error {
	st := c.styles
	fmt.Fprintln(out, st.banner())
	fmt.Fprintln(out, st.dim("Type 'help' for commands, 'exit' to quit."))

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		fmt.Fprint(out, st.prompt("You: "))
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		switch parseLine(line) {
		case actionExit:
			fmt.Fprintln(out, st.dim("Goodbye."))
			return nil
		case actionHistory:
			history, err := app.History(ctx, c.flags.Session)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, history)
		case actionClear:
			if err := app.Clear(ctx, c.flags.Session); err != nil {
				return err
			}
			fmt.Fprintln(out, st.success("Conversation history cleared."))
		case actionDocsOn:
			docs = true
			fmt.Fprintln(out, st.dim("Document answers enabled."))
		case actionDocsOff:
			docs = false
			fmt.Fprintln(out, st.dim("Document answers disabled."))
		case actionHelp:
			fmt.Fprintln(out, replHelp)
		case actionUnknown:
			fmt.Fprintf(out, "%s unknown command %q\n", st.warnPrefix(), line)
		default:
			res, err := app.Ask(ctx, c.flags.Session, line, docs)
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprint(out, st.prompt("Agent: "))
			if err := c.printResult(out, res, false); err != nil {
				return err
			}
		}
	}
}
