package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanishra/smartinfo"
	"github.com/tanishra/smartinfo/config"
	"github.com/tanishra/smartinfo/core"
	"github.com/tanishra/smartinfo/embed"
	"github.com/tanishra/smartinfo/model"
	"github.com/tanishra/smartinfo/tool"
)

// isolate points the state directory at a temp dir and hides any .env file.
func isolate(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("SMARTINFO_HOME", home)
	t.Chdir(t.TempDir())
	return home
}

func run(t *testing.T, oracle model.Model, stdin string, args ...string) (int, string, string) {
	t.Helper()

	var out, errOut bytes.Buffer
	code := Execute(context.Background(), args, func(o *Options) {
		o.In = strings.NewReader(stdin)
		o.Out = &out
		o.ErrOut = &errOut
		o.NewApp = func(ctx context.Context, cfg config.Config) (*smartinfo.App, error) {
			return smartinfo.New(ctx, cfg, func(o *smartinfo.Options) {
				o.Oracle = oracle
				o.Embedder = embed.NewHashEmbedder(0)
				o.Tools = []tool.Tool{}
			})
		}
	})
	return code, out.String(), errOut.String()
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want replAction
	}{
		{"exit", actionExit},
		{"QUIT", actionExit},
		{" q ", actionExit},
		{"history", actionHistory},
		{"logs", actionHistory},
		{"clear", actionClear},
		{"reset", actionClear},
		{":docs on", actionDocsOn},
		{":DOCS OFF", actionDocsOff},
		{"help", actionHelp},
		{":nope", actionUnknown},
		{"weather in Delhi", actionAsk},
		{"exit the building safely?", actionAsk},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLine(tt.line))
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitGenericError, ExitCode(errors.New("boom")))
	assert.Equal(t, ExitConfigInvalid, ExitCode(fmt.Errorf("load: %w", config.ErrInvalid)))
	assert.Equal(t, ExitUnsupportedInput, ExitCode(errors.Join(
		errors.New("other"),
		&core.UnsupportedFormatError{Name: "deck.pptx", Ext: ".pptx"},
	)))
}

func TestChat_Session(t *testing.T) {
	isolate(t)
	oracle := model.NewScriptedModel(model.TextStep("Hello! How can I help?"))

	input := strings.Join([]string{"hi", ":docs on", "history", "clear", "history", ":what", "exit"}, "\n") + "\n"
	code, out, _ := run(t, oracle, input, "chat")

	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "Agent: Hello! How can I help?")
	assert.Contains(t, out, "User: hi")
	assert.Contains(t, out, "Document answers enabled.")
	assert.Contains(t, out, "Conversation history cleared.")
	assert.Contains(t, out, "No conversation history.")
	assert.Contains(t, out, `unknown command ":what"`)
	assert.Contains(t, out, "Goodbye.")
	assert.Equal(t, 1, oracle.Calls())
}

func TestChat_EndOfInputExitsCleanly(t *testing.T) {
	isolate(t)

	code, out, _ := run(t, model.NewScriptedModel(), "", "chat")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "You: ")
}

func TestAsk_PersistsAcrossInvocations(t *testing.T) {
	isolate(t)

	code, out, _ := run(t, model.NewScriptedModel(model.TextStep("It is sunny.")), "", "ask", "how", "is", "the", "weather")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "It is sunny.\n", out)

	code, out, _ = run(t, model.NewScriptedModel(), "", "history")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "User: how is the weather")
	assert.Contains(t, out, "Assistant: It is sunny.")

	code, _, _ = run(t, model.NewScriptedModel(), "", "clear")
	require.Equal(t, ExitSuccess, code)

	_, out, _ = run(t, model.NewScriptedModel(), "", "history")
	assert.Contains(t, out, "No conversation history.")
}

func TestAsk_JSON(t *testing.T) {
	isolate(t)

	code, out, _ := run(t, model.NewScriptedModel(model.TextStep("42")), "", "--json", "ask", "meaning of life")
	require.Equal(t, ExitSuccess, code)

	var got resultJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "42", got.Answer)
	assert.False(t, got.LimitReached)
	assert.Empty(t, got.Error)
}

func TestAsk_InvalidConfig(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ingest]\nchunk_size = 100\noverlap = 100\n"), 0o600))

	code, _, errOut := run(t, model.NewScriptedModel(), "", "ask", "hello")
	assert.Equal(t, ExitConfigInvalid, code)
	assert.Contains(t, errOut, "ingest.overlap")
}

func TestIngest(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	doc := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(doc, []byte("The warehouse opens at nine every weekday."), 0o600))

	code, out, _ := run(t, model.NewScriptedModel(), "", "ingest", doc)
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "indexed")
	assert.Contains(t, out, "notes.txt")

	code, out, _ = run(t, model.NewScriptedModel(), "", "ingest", filepath.Join(dir, "deck.pptx"))
	assert.Equal(t, ExitUnsupportedInput, code)
	assert.Contains(t, out, "deck.pptx")
}

func TestConfigInit(t *testing.T) {
	home := isolate(t)

	code, out, _ := run(t, nil, "", "config", "init")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, filepath.Join(home, "config.toml"))
	assert.FileExists(t, filepath.Join(home, "config.toml"))

	code, _, errOut := run(t, nil, "", "config", "init")
	assert.Equal(t, ExitGenericError, code)
	assert.Contains(t, errOut, "already exists")

	code, _, _ = run(t, nil, "", "config", "init", "--force")
	assert.Equal(t, ExitSuccess, code)
}
