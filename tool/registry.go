package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tanishra/smartinfo/core"
	"github.com/tanishra/smartinfo/logging"
)

// DefaultTimeout bounds a single tool invocation.
const DefaultTimeout = 15 * time.Second

// ErrDuplicateTool is returned when registering a name twice.
var ErrDuplicateTool = errors.New("tool already registered")

// RegistryOptions configure a Registry.
type RegistryOptions struct {
	// Timeout bounds each invocation; zero uses DefaultTimeout.
	Timeout time.Duration
	Logger  logging.Logger
}

type entry struct {
	tool   Tool
	schema *jsonschema.Schema
}

// Registry maps tool names to validated invocation handlers.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	opts    RegistryOptions
	logger  logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{Timeout: DefaultTimeout}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Registry{
		entries: make(map[string]entry),
		opts:    opts,
		logger:  logging.Ensure(opts.Logger),
	}
}

// Register compiles the tool's schema and adds it to the registry.
func (r *Registry) Register(t Tool) error {
	schema, err := compileSchema(t.Name(), t.Parameters())
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[t.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name())
	}
	r.entries[t.Name()] = entry{tool: t, schema: schema}

	return nil
}

// RegisterFunc registers a plain function under name with the given schema.
func (r *Registry) RegisterFunc(
	name, description string,
	schema map[string]any,
	fn func(ctx context.Context, args map[string]any) (any, error),
) error {
	return r.Register(NewFunctionTool(name, description, schema, fn))
}

// MustRegister is Register for static wiring; it panics on error.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Has reports whether a tool with name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Tools returns the registered tools sorted by name.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })

	return out
}

// Validate normalises and checks call arguments without invoking the tool.
// The returned call carries the normalised arguments.
func (r *Registry) Validate(call core.ToolCall) (core.ToolCall, error) {
	r.mu.RLock()
	e, ok := r.entries[call.Name]
	r.mu.RUnlock()

	if !ok {
		return call, core.NewToolError(call.Name, core.CodeInvalidToolCall, fmt.Sprintf("unknown tool %q", call.Name), nil)
	}

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	if n, ok := e.tool.(ArgumentNormalizer); ok {
		args = n.NormalizeArguments(args)
	}

	canonical, err := canonicalize(args)
	if err != nil {
		return call, core.NewToolError(call.Name, core.CodeInvalidToolCall, err.Error(), err)
	}
	if err := e.schema.Validate(canonical); err != nil {
		return call, core.NewToolError(call.Name, core.CodeValidation, validationMessage(err), err)
	}

	call.Arguments = canonical.(map[string]any)
	return call, nil
}

// Dispatch validates and invokes a tool call under the per-call timeout. It
// always returns a ToolResult; no failure is propagated to the caller.
func (r *Registry) Dispatch(ctx context.Context, call core.ToolCall) core.ToolResult {
	start := time.Now()
	r.logger.Debug("tool.dispatch.start", "tool", call.Name, "call_id", call.ID)

	validated, err := r.Validate(call)
	if err != nil {
		r.logger.Warn("tool.dispatch.invalid", "tool", call.Name, "error", err.Error())
		return core.NewToolFailure(call, err)
	}

	r.mu.RLock()
	t := r.entries[call.Name].tool
	r.mu.RUnlock()

	payload, err := r.invoke(ctx, t, validated.Arguments)
	dur := time.Since(start)
	r.logToolCall(call.Name, dur, err)

	if err != nil {
		return core.NewToolFailure(validated, err)
	}

	summary := ""
	if s, ok := t.(Summarizer); ok {
		summary = s.Summarize(payload)
	}

	return core.NewToolSuccess(validated, payload, summary)
}

type outcome struct {
	payload any
	err     error
}

func (r *Registry) invoke(ctx context.Context, t Tool, args map[string]any) (any, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("tool.dispatch.panic", "tool", t.Name(), "recover", fmt.Sprint(rec), "stack", string(debug.Stack()))
				done <- outcome{err: core.NewToolError(t.Name(), core.CodePanic, fmt.Sprintf("panic: %v", rec), nil)}
			}
		}()
		payload, err := t.Call(callCtx, args)
		done <- outcome{payload: payload, err: err}
	}()

	select {
	case out := <-done:
		if out.err == nil {
			return out.payload, nil
		}
		var te *core.ToolError
		if errors.As(out.err, &te) {
			return nil, out.err
		}
		if errors.Is(out.err, context.DeadlineExceeded) {
			return nil, core.NewToolError(t.Name(), core.CodeTimeout, fmt.Sprintf("timed out after %s", r.opts.Timeout), out.err)
		}
		return nil, core.NewToolError(t.Name(), core.CodeExecution, out.err.Error(), out.err)
	case <-callCtx.Done():
		code := core.CodeTimeout
		msg := fmt.Sprintf("timed out after %s", r.opts.Timeout)
		if errors.Is(ctx.Err(), context.Canceled) {
			code, msg = core.CodeExecution, "cancelled"
		}
		return nil, core.NewToolError(t.Name(), code, msg, callCtx.Err())
	}
}

func (r *Registry) logToolCall(name string, dur time.Duration, err error) {
	if sl, ok := r.logger.(interface {
		LogToolCall(tool string, dur time.Duration, success bool, err error)
	}); ok {
		sl.LogToolCall(name, dur, err == nil, err)
		return
	}
	if err != nil {
		r.logger.Warn("tool.dispatch.failed", "tool", name, "duration_ms", dur.Milliseconds(), "error", err.Error())
		return
	}
	r.logger.Info("tool.dispatch.success", "tool", name, "duration_ms", dur.Milliseconds())
}

func compileSchema(name string, params map[string]any) (*jsonschema.Schema, error) {
	if params == nil {
		params = map[string]any{"type": "object"}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("tool %s schema encode failed: %w", name, err)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	schemaURL := fmt.Sprintf("https://smartinfo.local/tools/%s.schema.json", name)
	if err := c.AddResource(schemaURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("tool %s schema load failed: %w", name, err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("tool %s schema compile failed: %w", name, err)
	}

	return compiled, nil
}

// canonicalize round-trips args through JSON so the validator sees the same
// value shapes an oracle would send.
func canonicalize(args map[string]any) (any, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("arguments are not JSON-serialisable: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func validationMessage(err error) string {
	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		if leaf.InstanceLocation != "" {
			return fmt.Sprintf("%s: %s", leaf.InstanceLocation, leaf.Message)
		}
		return leaf.Message
	}
	return err.Error()
}
