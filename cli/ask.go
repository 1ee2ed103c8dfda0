package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tanishra/smartinfo/core"
	"github.com/tanishra/smartinfo/orchestrator"
)

type askFlags struct {
	docs bool
	raw  bool
}

func (c *cli) askCmd() *cobra.Command {
	var f askFlags
	cmd := &cobra.Command{
		Use:   "ask <query...>",
		Short: "Answer a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return fmt.Errorf("empty query")
			}

			app, err := c.loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Ask(cmd.Context(), c.flags.Session, query, f.docs)
			if err != nil {
				return err
			}
			return c.printResult(cmd.OutOrStdout(), res, f.raw)
		},
	}
	cmd.Flags().BoolVar(&f.docs, "docs", false, "answer with passages from ingested documents")
	cmd.Flags().BoolVar(&f.raw, "raw", false, "also print every tool result summary")
	return cmd
}

type resultJSON struct {
	Answer       string             `json:"answer"`
	ToolResults  []core.ToolResult  `json:"tool_results"`
	Context      []core.ScoredChunk `json:"context,omitempty"`
	Iterations   int                `json:"iterations"`
	LimitReached bool               `json:"limit_reached"`
	DurationMS   int64              `json:"duration_ms"`
	Error        string             `json:"error,omitempty"`
}

func (c *cli) printResult(w io.Writer, res orchestrator.Result, raw bool) error {
	if c.flags.JSON {
		out := resultJSON{
			Answer:       res.Answer,
			ToolResults:  res.ToolResults,
			Context:      res.Context,
			Iterations:   res.Iterations,
			LimitReached: res.LimitReached,
			DurationMS:   res.Duration.Milliseconds(),
		}
		if res.Err != nil {
			out.Error = res.Err.Error()
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintln(w, res.Answer)

	if raw && len(res.ToolResults) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, c.styles.separator(40))
		for _, r := range res.ToolResults {
			if r.Succeeded {
				fmt.Fprintln(w, c.styles.kv(r.Name, r.Summary))
			} else {
				fmt.Fprintln(w, c.styles.kv(r.Name, "failed: "+r.Err.Error()))
			}
		}
	}
	if raw && len(res.Context) > 0 {
		fmt.Fprintln(w, c.styles.separator(40))
		for _, hit := range res.Context {
			fmt.Fprintln(w, c.styles.kv("source", fmt.Sprintf("%s #%d (%.3f)", hit.Source, hit.Chunk.Index, hit.Score)))
		}
	}

	if res.Err != nil {
		fmt.Fprintln(c.opts.ErrOut, c.errSt.warnPrefix(), res.Err)
	}
	if raw {
		fmt.Fprintln(w, c.styles.dim(fmt.Sprintf("%d tool call(s) in %s", res.Iterations, res.Duration.Round(time.Millisecond))))
	}
	return nil
}
