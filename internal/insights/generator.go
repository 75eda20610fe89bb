// Package insights turns appointment summaries into short natural-language
// facts using a hosted generative model.
package insights

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/appointment-insights/internal/observability/metrics"
	"github.com/wolfman30/appointment-insights/pkg/logging"
)

// MaxFacts caps every fact list.
const MaxFacts = 5

const defaultTimeout = 30 * time.Second

var (
	// ErrorFacts is returned when the remote call or JSON decoding fails.
	ErrorFacts = []string{
		"An error occurred while generating insights.",
		"The AI model may be temporarily unavailable.",
		"Please check your connection and try again later.",
	}
	// NoInsightFacts is returned when the response decodes but carries no facts.
	NoInsightFacts = []string{"Could not generate insights from the data provided."}
)

// FactsSchema is the structured response every fact request asks for.
var FactsSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"facts": {
			Type:        genai.TypeArray,
			Description: "A list of exactly 5 insightful and brief facts derived from the data.",
			Items: &genai.Schema{
				Type:        genai.TypeString,
				Description: "An insightful fact derived from the data.",
			},
		},
	},
	Required: []string{"facts"},
}

// Generator produces fact lists. It never returns an error; failures degrade
// to fixed fallback lists.
type Generator struct {
	client  LLMClient
	timeout time.Duration
	logger  *logging.Logger
	metrics *metrics.DashboardMetrics
	tracer  trace.Tracer
}

type GeneratorOption func(*Generator)

// WithTimeout bounds each remote call.
func WithTimeout(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithMetrics(m *metrics.DashboardMetrics) GeneratorOption {
	return func(g *Generator) {
		g.metrics = m
	}
}

func NewGenerator(client LLMClient, logger *logging.Logger, opts ...GeneratorOption) *Generator {
	if client == nil {
		panic("insights: llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	g := &Generator{
		client:  client,
		timeout: defaultTimeout,
		logger:  logger,
		tracer:  otel.Tracer("appointment-insights.internal.insights"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateFacts sends prompt and returns between one and MaxFacts facts.
func (g *Generator) GenerateFacts(ctx context.Context, prompt string) []string {
	return g.generate(ctx, "adhoc", prompt)
}

func (g *Generator) generate(ctx context.Context, category, prompt string) []string {
	ctx, span := g.tracer.Start(ctx, "insights.generate_facts",
		trace.WithAttributes(attribute.String("insights.category", category)))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Complete(callCtx, LLMRequest{
		Prompt:         prompt,
		Temperature:    -1,
		ResponseSchema: FactsSchema,
	})
	elapsed := time.Since(start).Seconds()
	if err != nil {
		span.RecordError(err)
		g.metrics.ObserveFactLatency(category, "error", elapsed)
		g.metrics.ObserveFactFallback(category, "remote_error")
		g.logger.Warn("fact generation failed", "category", category, "error", err)
		return copyFacts(ErrorFacts)
	}
	g.metrics.ObserveFactLatency(category, "ok", elapsed)

	facts, err := parseFacts(resp.Text)
	if err != nil {
		span.RecordError(err)
		g.metrics.ObserveFactFallback(category, "malformed")
		g.logger.Warn("fact response was not valid JSON", "category", category, "error", err)
		return copyFacts(ErrorFacts)
	}
	if len(facts) == 0 {
		g.metrics.ObserveFactFallback(category, "no_facts")
		g.logger.Warn("fact response had an unexpected structure", "category", category, "response", resp.Text)
		return copyFacts(NoInsightFacts)
	}

	span.SetAttributes(attribute.Int("insights.fact_count", len(facts)))
	return facts
}

// parseFacts returns an error only for text that is not JSON. A JSON value
// without a usable "facts" array yields an empty list.
func parseFacts(text string) ([]string, error) {
	var decoded any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &decoded); err != nil {
		return nil, err
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, nil
	}
	items, ok := obj["facts"].([]any)
	if !ok {
		return nil, nil
	}

	facts := make([]string, 0, MaxFacts)
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		facts = append(facts, s)
		if len(facts) == MaxFacts {
			break
		}
	}
	return facts, nil
}

func copyFacts(src []string) []string {
	return append([]string(nil), src...)
}
