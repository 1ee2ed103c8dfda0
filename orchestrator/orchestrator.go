package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tanishra/smartinfo/core"
	"github.com/tanishra/smartinfo/logging"
	"github.com/tanishra/smartinfo/model"
	"github.com/tanishra/smartinfo/tool"
)

// Defaults.
const (
	DefaultMaxIterations = 5
	DefaultHistoryTurns  = 10
	DefaultTopK          = 5
	DefaultQueryTimeout  = 2 * time.Minute
	DefaultOracleTimeout = 60 * time.Second
)

// Memory is the conversation log the orchestrator reads and appends to.
type Memory interface {
	Append(turn core.Turn)
	Recent(n int) []core.Turn
}

// Dispatcher validates and executes tool calls. Dispatch must always return
// a result.
type Dispatcher interface {
	Tools() []tool.Tool
	Dispatch(ctx context.Context, call core.ToolCall) core.ToolResult
}

// Retriever supplies document context.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]core.ScoredChunk, error)
}

var _ Dispatcher = (*tool.Registry)(nil)

// Options configure an Orchestrator.
type Options struct {
	// MaxIterations caps tool dispatches per query. Invalid calls count.
	MaxIterations int
	// HistoryTurns is how many recent memory turns seed each query.
	HistoryTurns int
	TopK         int
	// QueryTimeout bounds a whole query; zero disables it.
	QueryTimeout time.Duration
	// OracleTimeout bounds each oracle call; zero disables it.
	OracleTimeout time.Duration
	// AutoRetrieve consults the retriever on every query, not only on
	// queries that ask for documents.
	AutoRetrieve bool

	Name         string
	Instructions string

	Retriever Retriever
	Logger    logging.Logger
}

// Orchestrator runs the decision loop. It holds no per-query state and is
// safe for concurrent use across sessions.
type Orchestrator struct {
	oracle     model.Model
	dispatcher Dispatcher
	opts       Options
	logger     logging.Logger
}

// New creates an Orchestrator.
func New(oracle model.Model, dispatcher Dispatcher, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		MaxIterations: DefaultMaxIterations,
		HistoryTurns:  DefaultHistoryTurns,
		TopK:          DefaultTopK,
		QueryTimeout:  DefaultQueryTimeout,
		OracleTimeout: DefaultOracleTimeout,
		Name:          DefaultName,
		Instructions:  DefaultInstructions,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxIterations < 1 {
		opts.MaxIterations = 1
	}
	if opts.TopK < 1 {
		opts.TopK = DefaultTopK
	}

	return &Orchestrator{
		oracle:     oracle,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     logging.Ensure(opts.Logger),
	}
}

// AskOptions tune a single query.
type AskOptions struct {
	// Documents enables retrieval for this query.
	Documents bool
}

// Result is the outcome of one query.
type Result struct {
	Answer       string             `json:"answer"`
	ToolResults  []core.ToolResult  `json:"tool_results"`
	Context      []core.ScoredChunk `json:"context,omitempty"`
	Iterations   int                `json:"iterations"`
	LimitReached bool               `json:"limit_reached"`
	// Err is set when the answer is a fallback. It unwraps to
	// core.ErrIterationLimit, core.ErrQueryTimeout or the oracle failure.
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Ask answers query against mem. It always produces an answer; failures are
// expressed in the answer text and in Result.Err.
func (o *Orchestrator) Ask(ctx context.Context, mem Memory, query string, optFns ...func(o *AskOptions)) Result {
	var ask AskOptions
	for _, fn := range optFns {
		fn(&ask)
	}

	start := time.Now()
	if o.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.QueryTimeout)
		defer cancel()
	}

	o.logger.Info("orchestrator.query.start", "documents", ask.Documents || o.opts.AutoRetrieve)

	st := NewConversationState(query, mem.Recent(o.opts.HistoryTurns), o.retrieve(ctx, query, ask))

	limiter := core.NewIterationLimiter(o.opts.MaxIterations)
	for !st.Done() {
		st = o.Step(ctx, st, limiter)
	}

	mem.Append(core.NewTurn(query, st.Answer))

	res := Result{
		Answer:       st.Answer,
		ToolResults:  st.Results,
		Context:      st.Context,
		Iterations:   st.Iterations,
		LimitReached: st.LimitReached,
		Err:          st.Err,
		Duration:     time.Since(start),
	}

	o.logger.Info("orchestrator.query.finalized",
		"iterations", res.Iterations,
		"limit_reached", res.LimitReached,
		"error", res.Err != nil,
		"duration_ms", res.Duration.Milliseconds(),
	)

	return res
}

func (o *Orchestrator) retrieve(ctx context.Context, query string, ask AskOptions) []core.ScoredChunk {
	if o.opts.Retriever == nil || !(ask.Documents || o.opts.AutoRetrieve) {
		return nil
	}

	hits, err := o.opts.Retriever.Retrieve(ctx, query, o.opts.TopK)
	if err != nil {
		o.logger.Warn("orchestrator.retrieve.failed", "error", err)
		return nil
	}

	o.logger.Debug("orchestrator.retrieve.completed", "hits", len(hits))
	return hits
}

// Step performs one transition of the loop and returns the new state.
func (o *Orchestrator) Step(ctx context.Context, st ConversationState, limiter *core.IterationLimiter) ConversationState {
	switch st.Phase {
	case PhaseAwaitDecision:
		return o.decide(ctx, st, limiter)
	case PhaseDispatchTool:
		return o.dispatch(ctx, st, limiter)
	default:
		return st
	}
}

func (o *Orchestrator) decide(ctx context.Context, st ConversationState, limiter *core.IterationLimiter) ConversationState {
	if err := ctx.Err(); err != nil {
		return o.interrupted(st, err)
	}

	defs := o.toolDefinitions()
	req, err := o.buildRequest(st, defs)
	if err != nil {
		return o.fail(st, err)
	}

	callCtx := ctx
	if o.opts.OracleTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.opts.OracleTimeout)
		defer cancel()
	}

	began := time.Now()
	resp, err := model.Complete(callCtx, o.oracle, req)
	o.logModelCall(time.Since(began), st.Iterations, err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return o.interrupted(st, ctxErr)
		}
		return o.fail(st, err)
	}

	calls := resp.Content.FunctionCalls()
	if len(calls) == 0 {
		answer := strings.TrimSpace(resp.Content.Text())
		if answer == "" {
			return o.fail(st, model.ErrNoResponse)
		}
		st.Answer = answer
		st.Phase = PhaseFinalize
		return st
	}

	if limiter.Exhausted() {
		return o.limit(st, limiter)
	}

	st.Transcript = append(st.Transcript, assistantCalls(resp.Content, calls))
	st.Pending = calls
	st.Phase = PhaseDispatchTool
	return st
}

func (o *Orchestrator) dispatch(ctx context.Context, st ConversationState, limiter *core.IterationLimiter) ConversationState {
	pending := st.Pending
	st.Pending = nil

	for _, fc := range pending {
		if err := limiter.Increment(); err != nil {
			return o.limit(st, limiter)
		}
		if err := ctx.Err(); err != nil {
			return o.interrupted(st, err)
		}

		o.logger.Info("orchestrator.iteration", "iteration", limiter.Count(), "tool", fc.Name)

		var result core.ToolResult
		call, err := core.ParseToolCall(fc)
		if err != nil {
			result = core.NewToolFailure(call, err)
		} else {
			result = o.dispatcher.Dispatch(ctx, call)
		}

		st.Iterations = limiter.Count()
		st.Results = append(st.Results, result)
		st.Transcript = append(st.Transcript, core.Content{
			Role:  core.RoleTool,
			Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: result.FunctionResponse()}},
		})
	}

	st.Phase = PhaseAwaitDecision
	return st
}

func (o *Orchestrator) limit(st ConversationState, limiter *core.IterationLimiter) ConversationState {
	o.logger.Warn("orchestrator.limit.reached", "max_iterations", limiter.Max())

	st.Pending = nil
	st.LimitReached = true
	st.Err = fmt.Errorf("%w: %d tool calls", core.ErrIterationLimit, limiter.Max())
	st.Answer = LimitAnswer(limiter.Max(), st.Results)
	st.Phase = PhaseFinalize
	return st
}

// interrupted finalizes a query whose context ended.
func (o *Orchestrator) interrupted(st ConversationState, err error) ConversationState {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s", core.ErrQueryTimeout, o.opts.QueryTimeout)
	}
	return o.fail(st, err)
}

func (o *Orchestrator) fail(st ConversationState, err error) ConversationState {
	o.logger.Error("orchestrator.query.failed", "error", err)

	st.Pending = nil
	st.Err = err
	st.Answer = FailureAnswer(err)
	st.Phase = PhaseFinalize
	return st
}

func (o *Orchestrator) toolDefinitions() []model.ToolDefinition {
	tools := o.dispatcher.Tools()
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, model.NewToolDefinition(t.Name(), t.Description(), t.Parameters()))
	}
	return defs
}

// assistantCalls keeps the assistant turn that requested calls so the tool
// responses that follow have a matching request in the transcript.
func assistantCalls(c core.Content, calls []core.FunctionCall) core.Content {
	parts := make([]core.Part, 0, len(calls)+1)
	if text := c.Text(); text != "" {
		parts = append(parts, core.TextPart{Text: text})
	}
	for _, fc := range calls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
	}
	return core.Content{Role: core.RoleAssistant, Parts: parts}
}

func (o *Orchestrator) logModelCall(dur time.Duration, iteration int, err error) {
	if sl, ok := o.logger.(interface {
		LogModelCall(model string, dur time.Duration, success bool, err error)
	}); ok {
		sl.LogModelCall(o.oracle.Info().Name, dur, err == nil, err)
		return
	}
	o.logger.Debug("orchestrator.oracle.completed",
		"iteration", iteration,
		"duration_ms", dur.Milliseconds(),
		"error", err != nil,
	)
}
