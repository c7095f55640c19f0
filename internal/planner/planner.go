package planner

import (
	"context"
	"errors"
	"time"

	"wellness-meal-planner/internal/llm"
	"wellness-meal-planner/internal/logger"
	"wellness-meal-planner/internal/profile"
	"wellness-meal-planner/internal/shared"
)

// Source says where a plan came from.
type Source string

const (
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)

// Error kinds recorded with each generation. InvalidResponse is a 2xx
// reply that carries no generated text.
const (
	ErrorKindNone            = ""
	ErrorKindConfiguration   = "configuration"
	ErrorKindTransport       = "transport"
	ErrorKindInvalidResponse = "invalid_response"
	ErrorKindParse           = "parse"
)

// Recorder receives the metadata of every generation attempt.
type Recorder interface {
	RecordGeneration(ctx context.Context, meta shared.GenerationMeta) error
}

// Result is the outcome of Generate. Plan is always usable; Err is the
// absorbed cause when Source is SourceFallback.
type Result struct {
	Plan   MealPlan
	Source Source
	Err    error
	Meta   shared.GenerationMeta
}

// Generator turns preferences into a weekly plan with one remote call,
// serving the fallback plan on any failure.
type Generator struct {
	textGen  llm.TextGenerator
	log      *logger.Logger
	recorder Recorder
	model    string
}

// Option configures a Generator.
type Option func(*Generator)

func WithRecorder(r Recorder) Option {
	return func(g *Generator) { g.recorder = r }
}

// WithModel sets the model name reported in metrics when the backend
// does not return one.
func WithModel(model string) Option {
	return func(g *Generator) { g.model = model }
}

// NewGenerator creates a new Generator.
func NewGenerator(textGen llm.TextGenerator, log *logger.Logger, opts ...Option) *Generator {
	g := &Generator{
		textGen: textGen,
		log:     log,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate never fails: the returned Result carries either the remote
// plan or the fallback together with the reason.
func (g *Generator) Generate(ctx context.Context, prefs profile.Preferences) Result {
	start := time.Now()

	plan, usage, err := g.generateRemote(ctx, prefs)

	res := Result{
		Plan:   plan,
		Source: SourceRemote,
		Meta: shared.GenerationMeta{
			Source:  string(SourceRemote),
			Usage:   usage,
			Latency: time.Since(start),
		},
	}
	if res.Meta.Usage.Model == "" {
		res.Meta.Usage.Model = g.model
	}

	if err != nil {
		kind := ErrorKind(err)
		res.Plan = Fallback()
		res.Source = SourceFallback
		res.Err = err
		res.Meta.Source = string(SourceFallback)
		res.Meta.ErrorKind = kind
		g.logFailure(kind, err)
	} else {
		g.log.Info("meal plan generated",
			"model", res.Meta.Usage.Model,
			"prompt_tokens", usage.PromptTokens,
			"completion_tokens", usage.CompletionTokens,
			"latency_ms", res.Meta.Latency.Milliseconds(),
		)
	}

	if g.recorder != nil {
		// Metrics must not depend on the caller's request lifetime.
		if rerr := g.recorder.RecordGeneration(context.WithoutCancel(ctx), res.Meta); rerr != nil {
			g.log.Warn("failed to record generation metrics", "error", rerr)
		}
	}
	return res
}

func (g *Generator) generateRemote(ctx context.Context, prefs profile.Preferences) (MealPlan, shared.TokenUsage, error) {
	prompt, err := BuildPrompt(prefs)
	if err != nil {
		return MealPlan{}, shared.TokenUsage{}, err
	}

	// No deadline of our own: the caller's context and the transport decide.
	resp, err := g.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return MealPlan{}, resp.Usage, err
	}

	plan, err := ParsePlan(resp.Content)
	if err != nil {
		return MealPlan{}, resp.Usage, err
	}
	return plan, resp.Usage, nil
}

// ErrorKind classifies a generation failure.
func ErrorKind(err error) string {
	var te *llm.TransportError
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, llm.ErrMissingAPIKey):
		return ErrorKindConfiguration
	case errors.As(err, &te):
		return ErrorKindTransport
	case errors.Is(err, llm.ErrMalformedResponse):
		return ErrorKindInvalidResponse
	case errors.Is(err, ErrParse):
		return ErrorKindParse
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrorKindTransport
	}
	return ErrorKindParse
}

func (g *Generator) logFailure(kind string, err error) {
	switch kind {
	case ErrorKindConfiguration:
		g.log.Error("meal plan generation is not configured, serving fallback", "error", err)
	case ErrorKindTransport:
		var te *llm.TransportError
		status := 0
		if errors.As(err, &te) {
			status = te.StatusCode
		}
		g.log.Error("meal plan generation request failed, serving fallback", "status", status, "error", err)
	case ErrorKindInvalidResponse:
		g.log.Error("generation service returned an invalid response, serving fallback", "error", err)
	default:
		g.log.Warn("generated meal plan could not be parsed, serving fallback", "error", err)
	}
}
