package analysis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"legalease/internal/model"
)

const fallbackSummaryChars = 500

var jsonSpan = regexp.MustCompile(`(?s)\{.*\}`)

var (
	fallbackKeyPoints = []string{
		"Document analysis completed",
		"Please review the full response above",
		"Contact support if you need clarification",
	}
	fallbackWarnings = []string{
		"Analysis format may not be optimal",
		"Please verify important details independently",
	}
)

const analysisSchema = `{
  "type": "object",
  "properties": {
    "summary":    {"type": "string"},
    "key_points": {"type": "array", "items": {"type": "string"}},
    "warnings":   {"type": "array", "items": {"type": "string"}}
  }
}`

const answerSchema = `{
  "type": "object",
  "properties": {
    "answer":         {"type": "string"},
    "source_section": {"type": ["string", "null"]},
    "confidence":     {"type": ["string", "null"]}
  }
}`

var (
	analysisValidator = mustCompile("analysis.json", analysisSchema)
	answerValidator   = mustCompile("answer.json", answerSchema)
)

func mustCompile(name, schema string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}
	return compiler.MustCompile(name)
}

// decodeSpan decodes the greedy {...} span of raw and checks it against schema.
// Lenient coercions are applied before validation.
func decodeSpan(raw string, schema *jsonschema.Schema, coerce func(map[string]any)) (map[string]any, error) {
	span := jsonSpan.FindString(raw)
	if span == "" {
		return nil, fmt.Errorf("no JSON object in response")
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(span), &m); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	if coerce != nil {
		coerce(m)
	}
	if err := schema.Validate(m); err != nil {
		return nil, fmt.Errorf("unexpected shape: %w", err)
	}
	return m, nil
}

// parseAnalysis turns raw oracle output into a well-formed result. The bool is false when
// the fallback result was used.
func parseAnalysis(raw string) (model.AnalysisResult, bool) {
	m, err := decodeSpan(raw, analysisValidator, coerceAnalysis)
	if err != nil {
		return fallbackAnalysis(raw), false
	}

	res := model.AnalysisResult{KeyPoints: []string{}, Warnings: []string{}}
	if s, ok := m["summary"].(string); ok {
		res.Summary = s
	}
	res.KeyPoints = append(res.KeyPoints, stringSlice(m["key_points"])...)
	res.Warnings = append(res.Warnings, stringSlice(m["warnings"])...)
	delete(m, "summary")
	delete(m, "key_points")
	delete(m, "warnings")
	if len(m) > 0 {
		res.Extras = m
	}
	return res, true
}

func fallbackAnalysis(raw string) model.AnalysisResult {
	summary, cut := truncate(raw, fallbackSummaryChars)
	if cut {
		summary += "..."
	}
	return model.AnalysisResult{
		Summary:   summary,
		KeyPoints: append([]string{}, fallbackKeyPoints...),
		Warnings:  append([]string{}, fallbackWarnings...),
	}
}

// parseAnswer turns raw oracle output into an answer. The bool is false when the raw
// text had to be used as the answer.
func parseAnswer(raw string) (model.AnswerResult, bool) {
	m, err := decodeSpan(raw, answerValidator, nil)
	if err != nil {
		return model.AnswerResult{Answer: raw, Confidence: model.ConfidenceLow}, false
	}

	res := model.AnswerResult{Answer: raw, Confidence: model.ConfidenceMedium}
	if a, ok := m["answer"].(string); ok {
		res.Answer = a
	}
	if s, ok := m["source_section"].(string); ok {
		res.SourceSection = &s
	}
	if c, ok := m["confidence"].(string); ok {
		res.Confidence, _ = model.ParseConfidence(c)
	}
	return res, true
}

// coerceAnalysis repairs common near-misses: null values and single strings where a list is expected.
func coerceAnalysis(m map[string]any) {
	if v, ok := m["summary"]; ok && v == nil {
		m["summary"] = ""
	}
	for _, k := range []string{"key_points", "warnings"} {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case nil:
			m[k] = []any{}
		case string:
			if strings.TrimSpace(t) == "" {
				m[k] = []any{}
			} else {
				m[k] = []any{t}
			}
		case []any:
			for i, item := range t {
				switch it := item.(type) {
				case string:
				case float64, bool:
					t[i] = fmt.Sprint(it)
				}
			}
		}
	}
}

func stringSlice(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
