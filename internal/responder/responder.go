package responder

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/chatdesk/internal/observability/metrics"
	"github.com/wolfman30/chatdesk/internal/operator"
	"github.com/wolfman30/chatdesk/pkg/logging"
)

var tracer = otel.Tracer("chatdesk.internal.responder")

// FallbackReply is sent whenever the completion provider cannot answer.
const FallbackReply = "I'm having trouble answering that right now. If you'd like, ask to speak with a person and someone from our team will follow up."

const (
	defaultTimeout     = 30 * time.Second
	defaultTemperature = 0.4
)

// TokenBudget maps a response length tier to a completion token cap.
func TokenBudget(length operator.ResponseLength) int32 {
	switch length {
	case operator.LengthShort:
		return 150
	case operator.LengthDetailed:
		return 600
	default:
		return 300
	}
}

// Result is a generated reply. Fallback is set when Text is FallbackReply
// because the provider failed.
type Result struct {
	Text     string
	Fallback bool
}

// Responder wraps an LLMClient with prompt assembly, a per-call timeout and
// failure recovery.
type Responder struct {
	client  LLMClient
	model   string
	timeout time.Duration
	metrics *metrics.ChatMetrics
	logger  *logging.Logger
}

// Option customizes a Responder.
type Option func(*Responder)

func WithTimeout(d time.Duration) Option {
	return func(r *Responder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithModel(model string) Option {
	return func(r *Responder) { r.model = strings.TrimSpace(model) }
}

func WithMetrics(m *metrics.ChatMetrics) Option {
	return func(r *Responder) { r.metrics = m }
}

func WithLogger(logger *logging.Logger) Option {
	return func(r *Responder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New returns a Responder. A nil client makes every reply the fallback.
func New(client LLMClient, opts ...Option) *Responder {
	r := &Responder{
		client:  client,
		timeout: defaultTimeout,
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reply generates the assistant's next message for history. It never
// returns an error; provider failures yield FallbackReply.
func (r *Responder) Reply(ctx context.Context, cfg *operator.Config, history []ChatMessage) Result {
	ctx, span := tracer.Start(ctx, "responder.reply")
	defer span.End()

	if r == nil || r.client == nil {
		return Result{Text: FallbackReply, Fallback: true}
	}
	if len(history) == 0 {
		return Result{Text: FallbackReply, Fallback: true}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req := LLMRequest{
		Model:       r.model,
		System:      []string{BuildSystemPrompt(cfg)},
		Messages:    history,
		MaxTokens:   TokenBudget(lengthOf(cfg)),
		Temperature: defaultTemperature,
	}
	span.SetAttributes(
		attribute.Int("chatdesk.responder.history", len(history)),
		attribute.Int("chatdesk.responder.max_tokens", int(req.MaxTokens)),
	)

	start := time.Now()
	resp, err := r.client.Complete(ctx, req)
	elapsed := time.Since(start)
	switch {
	case err != nil:
		status := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			status = "timeout"
		}
		span.RecordError(err)
		r.metrics.ObserveCompletion(status, elapsed)
		r.logger.Warn("completion failed", "error", err, "status", status, "elapsed", elapsed)
		return Result{Text: FallbackReply, Fallback: true}
	case strings.TrimSpace(resp.Text) == "":
		r.metrics.ObserveCompletion("empty", elapsed)
		r.logger.Warn("completion returned empty text", "stop_reason", resp.StopReason)
		return Result{Text: FallbackReply, Fallback: true}
	}
	r.metrics.ObserveCompletion("ok", elapsed)
	r.logger.Debug("completion ok", "elapsed", elapsed, "output_tokens", resp.Usage.OutputTokens)
	return Result{Text: strings.TrimSpace(resp.Text)}
}

func lengthOf(cfg *operator.Config) operator.ResponseLength {
	if cfg == nil {
		return operator.LengthModerate
	}
	return cfg.ResponseLength
}
