// Package analysis builds prompts for the generation oracle and turns its free-form
// replies into structured results. It never returns errors to callers: failures
// become degraded but well-formed results.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"legalease/internal/logging"
	"legalease/internal/model"
	"legalease/internal/oracle"
)

// DefaultMaxPromptChars bounds how much document text is sent to the oracle.
const DefaultMaxPromptChars = 8000

const (
	outcomeOK       = "ok"
	outcomeFallback = "fallback"
	outcomeDegraded = "degraded"
	outcomeOffline  = "offline"

	opAnalyze = "analyze"
	opAnswer  = "answer"
)

// Analyzer produces analyses and answers for document text.
type Analyzer interface {
	Analyze(ctx context.Context, text, filename string) model.AnalysisResult
	Answer(ctx context.Context, text, question string) model.AnswerResult
}

// Engine is the Analyzer backed by an oracle.Generator, or by canned replies when offline.
type Engine struct {
	gen      oracle.Generator
	maxChars int
	log      *slog.Logger
	tracer   trace.Tracer

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ Analyzer = (*Engine)(nil)

type Option func(*Engine)

func WithMaxPromptChars(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxChars = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics registers request counters and oracle latency histograms on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Engine) {
		if reg == nil {
			return
		}
		e.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "legalease_analysis_requests_total",
			Help: "Analysis and question requests by operation and outcome",
		}, []string{"operation", "outcome"})
		e.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "legalease_oracle_request_duration_seconds",
			Help:    "Latency of oracle generation calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"operation"})
		reg.MustRegister(e.requests, e.duration)
	}
}

// New creates an Engine. A nil generator selects offline mode for the engine's lifetime.
func New(gen oracle.Generator, opts ...Option) *Engine {
	e := &Engine{
		gen:      gen,
		maxChars: DefaultMaxPromptChars,
		tracer:   otel.Tracer("legalease/analysis"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = logging.OrDiscard(e.log).With("component", "analysis")
	if e.Offline() {
		e.log.Info("no oracle configured, using offline responses")
	}
	return e
}

// Offline reports whether the engine answers without calling an oracle.
func (e *Engine) Offline() bool { return e.gen == nil }

func (e *Engine) Analyze(ctx context.Context, text, filename string) (res model.AnalysisResult) {
	ctx, span := e.tracer.Start(ctx, "analysis.Analyze")
	defer span.End()

	outcome := outcomeOK
	defer func() {
		if r := recover(); r != nil {
			res, outcome = degradedAnalysis(fmt.Errorf("internal error: %v", r)), outcomeDegraded
		}
		e.finish(span, opAnalyze, outcome, res.Error)
	}()

	bounded, cut := truncate(text, e.maxChars)
	span.SetAttributes(
		attribute.Int("document.chars", utf8.RuneCountInString(text)),
		attribute.Bool("prompt.truncated", cut),
	)

	var raw string
	if e.Offline() {
		raw, outcome = offlineAnalysis(text), outcomeOffline
	} else {
		var err error
		raw, err = e.generate(ctx, opAnalyze, buildAnalysisPrompt(bounded, filename))
		if err != nil {
			e.log.Error("document analysis failed", "filename", filename, "error", err)
			return degradedAnalysis(err)
		}
	}

	res, ok := parseAnalysis(raw)
	if !ok {
		e.log.Warn("analysis reply was not valid JSON, using fallback", "filename", filename)
		outcome = outcomeFallback
	}
	e.log.Info("document analysed", "filename", filename, "outcome", outcome, "key_points", len(res.KeyPoints))
	return res
}

func (e *Engine) Answer(ctx context.Context, text, question string) (res model.AnswerResult) {
	ctx, span := e.tracer.Start(ctx, "analysis.Answer")
	defer span.End()

	outcome := outcomeOK
	defer func() {
		if r := recover(); r != nil {
			res, outcome = degradedAnswer(fmt.Errorf("internal error: %v", r)), outcomeDegraded
		}
		e.finish(span, opAnswer, outcome, res.Error)
	}()

	bounded, cut := truncate(text, e.maxChars)
	span.SetAttributes(
		attribute.Int("document.chars", utf8.RuneCountInString(text)),
		attribute.Int("question.chars", utf8.RuneCountInString(question)),
		attribute.Bool("prompt.truncated", cut),
	)

	var raw string
	if e.Offline() {
		raw, outcome = offlineAnswer(text, question), outcomeOffline
	} else {
		var err error
		raw, err = e.generate(ctx, opAnswer, buildQuestionPrompt(bounded, question))
		if err != nil {
			e.log.Error("question answering failed", "error", err)
			return degradedAnswer(err)
		}
	}

	res, ok := parseAnswer(raw)
	if !ok {
		e.log.Warn("answer reply was not valid JSON, returning raw text")
		outcome = outcomeFallback
	}
	e.log.Info("question answered", "outcome", outcome, "confidence", string(res.Confidence))
	return res
}

func (e *Engine) generate(ctx context.Context, op, prompt string) (string, error) {
	start := time.Now()
	out, err := e.gen.Generate(ctx, prompt)
	if e.duration != nil {
		e.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
	return out, err
}

func (e *Engine) finish(span trace.Span, op, outcome, errMsg string) {
	if errMsg != "" {
		outcome = outcomeDegraded
		span.SetStatus(codes.Error, errMsg)
	}
	span.SetAttributes(attribute.String("analysis.outcome", outcome))
	if e.requests != nil {
		e.requests.WithLabelValues(op, outcome).Inc()
	}
}

func degradedAnalysis(err error) model.AnalysisResult {
	return model.AnalysisResult{
		Summary:   "Analysis failed due to technical error",
		KeyPoints: []string{"Unable to analyze document at this time"},
		Warnings:  []string{"Please try again later or contact support"},
		Error:     err.Error(),
	}
}

func degradedAnswer(err error) model.AnswerResult {
	return model.AnswerResult{
		Answer:     "Unable to answer question due to technical error",
		Confidence: model.ConfidenceLow,
		Error:      err.Error(),
	}
}

func offlineAnalysis(text string) string {
	b, _ := json.Marshal(map[string]any{
		"summary": fmt.Sprintf("This legal document contains %d characters of text with various contractual provisions. "+
			"The document appears to establish terms and conditions between parties, including rights, obligations, "+
			"and procedures for compliance.", utf8.RuneCountInString(text)),
		"key_points": []string{
			"Document contains specific terms and conditions for the agreement",
			"Payment obligations and financial responsibilities are outlined",
			"Liability limitations and risk allocation clauses are present",
			"Termination procedures and conditions are specified",
			"Dispute resolution mechanisms are established",
		},
		"warnings": []string{
			"Review all financial obligations and payment terms carefully",
			"Pay attention to liability limitations that may affect your rights",
			"Note any automatic renewal or termination clauses",
			"Consider consulting with a legal professional for complex matters",
			"This is an offline analysis; configure an API key for full AI analysis",
		},
	})
	return string(b)
}

func offlineAnswer(text, question string) string {
	b, _ := json.Marshal(map[string]any{
		"answer": fmt.Sprintf("Based on the document content, I can see this is a legal document with %d characters. "+
			"Your question '%s' relates to the document content. This is an offline response; configure an API key "+
			"for detailed answers about specific clauses, terms, and conditions.", utf8.RuneCountInString(text), question),
		"source_section": "Document Analysis (Offline Mode)",
		"confidence":     "medium",
	})
	return string(b)
}
