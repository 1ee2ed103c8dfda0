package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tanishra/smartinfo/core"
	"github.com/tanishra/smartinfo/internal/util"
	"github.com/tanishra/smartinfo/model"
)

// DefaultInstructions is the system prompt template. It is rendered with
// the assistant name, the tool definitions and the retrieved context.
const DefaultInstructions = `You are {{.Name}}, a helpful assistant that answers questions with live data and the user's documents.
{{if .Tools}}
You can call these tools:
{{range .Tools}}- {{.Function.Name}}: {{.Function.Description}}
{{end}}
Call a tool only when the question needs the live data it provides. For greetings and general questions reply conversationally without tools.
If a tool reports an error, explain it to the user instead of retrying the same call.
{{end}}{{if .Context}}
Use the document excerpts below when they are relevant and cite them as [source #chunk]. Say so when they do not contain the answer.
{{range .Context}}
[{{.Source}} #{{.Chunk.Index}}] {{.Chunk.Text}}
{{end}}{{end}}`

// DefaultName is the assistant name used in the system prompt.
const DefaultName = "Smart Info Agent"

const (
	limitHeader  = "I could not finish this request within %d tool calls. Here is what I found so far:"
	limitNothing = "No tool returned usable data."
	limitFooter  = "Please try rephrasing your question or asking for one thing at a time."
	failPrefix   = "Could not complete the request: "
)

func (o *Orchestrator) instructions(defs []model.ToolDefinition, ctxChunks []core.ScoredChunk) (string, error) {
	return util.RenderTemplate(o.opts.Instructions, map[string]any{
		"Name":    o.opts.Name,
		"Tools":   defs,
		"Context": ctxChunks,
	})
}

// buildRequest assembles the oracle request for the current state.
func (o *Orchestrator) buildRequest(st ConversationState, defs []model.ToolDefinition) (model.Request, error) {
	instructions, err := o.instructions(defs, st.Context)
	if err != nil {
		return model.Request{}, fmt.Errorf("render instructions: %w", err)
	}

	contents := make([]core.Content, 0, 2*len(st.Recent)+1+len(st.Transcript))
	for _, t := range st.Recent {
		contents = append(contents,
			core.NewTextContent(core.RoleUser, t.Query),
			core.NewTextContent(core.RoleAssistant, t.Response),
		)
	}
	contents = append(contents, core.NewTextContent(core.RoleUser, st.Query))
	contents = append(contents, st.Transcript...)

	return model.Request{
		Instructions: instructions,
		Contents:     contents,
		Tools:        defs,
	}, nil
}

// LimitAnswer renders the answer for a query that hit the iteration bound.
func LimitAnswer(max int, results []core.ToolResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, limitHeader, max)
	b.WriteString("\n")

	found := false
	for _, r := range results {
		if !r.Succeeded {
			continue
		}
		found = true
		b.WriteString("- ")
		b.WriteString(strings.ReplaceAll(resultSummary(r), "\n", "\n  "))
		b.WriteString("\n")
	}
	if !found {
		b.WriteString(limitNothing)
		b.WriteString("\n")
	}

	b.WriteString(limitFooter)
	return b.String()
}

// FailureAnswer renders the answer for a query the loop could not complete.
func FailureAnswer(reason error) string {
	return failPrefix + reason.Error()
}

func resultSummary(r core.ToolResult) string {
	if s := strings.TrimSpace(r.Summary); s != "" {
		return s
	}

	b, err := json.Marshal(r.Payload)
	if err != nil {
		return fmt.Sprintf("%s returned %v", r.Name, r.Payload)
	}
	return fmt.Sprintf("%s: %s", r.Name, truncateRunes(string(b), maxPayloadRunes))
}

const maxPayloadRunes = 300

// truncateRunes cuts s to at most n runes, marking the cut with "...".
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
