package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/evandrarf/neurocase-be/internal/pkg/metrics"
	"github.com/sirupsen/logrus"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Schema describes the JSON object a structured call must return.
type Schema struct {
	Name       string
	Definition map[string]any
}

type Options struct {
	Model           string
	UseFallback     bool
	MaxOutputTokens int
	Temperature     *float32
	TopP            *float32
	JSONSchema      *Schema
	Timeout         time.Duration
}

type ResultKind string

const (
	ResultText  ResultKind = "text"
	ResultJSON  ResultKind = "json"
	ResultEmpty ResultKind = "empty"
)

type Result struct {
	Kind  ResultKind
	Text  string
	JSON  map[string]any
	Model string
}

// RequireText returns the text of a non-empty result.
func (r Result) RequireText() (string, error) {
	if r.Kind == ResultEmpty || strings.TrimSpace(r.Text) == "" {
		return "", &EmptyOutputError{Model: r.Model}
	}
	return r.Text, nil
}

type GenerationClient interface {
	Generate(ctx context.Context, messages []Message, opts Options) (Result, error)
}

// Provider performs a single raw completion against one backend.
// Implementations return errors already classified into the types of this package.
type Provider interface {
	Complete(ctx context.Context, model string, messages []Message, opts Options) (string, error)
}

type ClientConfig struct {
	Provider      Provider
	Model         string
	FallbackModel string
	Timeout       time.Duration
	Log           *logrus.Logger
}

type Client struct {
	provider Provider
	primary  string
	fallback string
	timeout  time.Duration
	log      *logrus.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = logrus.New()
	}
	return &Client{
		provider: cfg.Provider,
		primary:  cfg.Model,
		fallback: cfg.FallbackModel,
		timeout:  cfg.Timeout,
		log:      cfg.Log,
	}
}

func (c *Client) Generate(ctx context.Context, messages []Message, opts Options) (Result, error) {
	model := c.primary
	if opts.Model != "" {
		model = opts.Model
	}
	if opts.UseFallback && c.fallback != "" {
		model = c.fallback
	}

	raw, err := c.complete(ctx, model, messages, opts)
	if err != nil {
		var transient *TransientBackendError
		if errors.As(err, &transient) && c.fallback != "" && c.fallback != model {
			c.log.WithFields(logrus.Fields{
				"model":    model,
				"fallback": c.fallback,
				"error":    err.Error(),
			}).Warn("generation failed on primary model, retrying on fallback")
			model = c.fallback
			raw, err = c.complete(ctx, model, messages, opts)
		}
	}
	if err != nil {
		metrics.GenerationCalls.WithLabelValues(model, outcomeOf(err)).Inc()
		return Result{Model: model}, err
	}

	result, err := normalize(raw, model, opts.JSONSchema != nil)
	if err != nil {
		metrics.GenerationCalls.WithLabelValues(model, "malformed").Inc()
		return result, err
	}
	metrics.GenerationCalls.WithLabelValues(model, string(result.Kind)).Inc()
	return result, nil
}

func (c *Client) complete(ctx context.Context, model string, messages []Message, opts Options) (string, error) {
	if c.provider == nil {
		return "", errors.New("generation provider not initialized")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := c.provider.Complete(callCtx, model, messages, opts)
	if err != nil {
		return "", classifyTransport(err)
	}
	return raw, nil
}

func normalize(raw string, model string, wantJSON bool) (Result, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Result{Kind: ResultEmpty, Model: model}, nil
	}
	if !wantJSON {
		return Result{Kind: ResultText, Text: trimmed, Model: model}, nil
	}
	obj, err := ExtractJSONObject(trimmed)
	if err != nil {
		return Result{Kind: ResultText, Text: trimmed, Model: model}, err
	}
	return Result{Kind: ResultJSON, Text: trimmed, JSON: obj, Model: model}, nil
}

func outcomeOf(err error) string {
	var transient *TransientBackendError
	var policy *PolicyRejectionError
	switch {
	case errors.As(err, &transient):
		return "transient"
	case errors.As(err, &policy):
		return "policy"
	default:
		return "error"
	}
}

// Float32 is a small helper for optional sampling parameters.
func Float32(v float32) *float32 {
	return &v
}
