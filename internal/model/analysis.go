package model

import (
	"encoding/json"
	"maps"
	"strings"
)

// AnalysisResult is the structured analysis of a document.
// Summary, KeyPoints and Warnings are always present; Error is set when the result is degraded.
// Extras keeps any additional keys the model returned.
type AnalysisResult struct {
	Summary   string         `json:"summary"`
	KeyPoints []string       `json:"key_points"`
	Warnings  []string       `json:"warnings"`
	Error     string         `json:"error,omitempty"`
	Extras    map[string]any `json:"-"`
}

// Degraded reports whether the result was produced after a generation failure.
func (r AnalysisResult) Degraded() bool { return r.Error != "" }

// Clone returns a deep copy of r.
func (r AnalysisResult) Clone() AnalysisResult {
	out := r
	out.KeyPoints = append([]string{}, r.KeyPoints...)
	out.Warnings = append([]string{}, r.Warnings...)
	if r.Extras != nil {
		out.Extras = cloneMap(r.Extras)
	}
	return out
}

// cloneMap copies m and every nested map or slice decoded from JSON.
func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// MarshalJSON flattens Extras next to the primary fields. Primary fields win on collision.
func (r AnalysisResult) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extras)+4)
	maps.Copy(out, r.Extras)
	out["summary"] = r.Summary
	out["key_points"] = nonNil(r.KeyPoints)
	out["warnings"] = nonNil(r.Warnings)
	if r.Error != "" {
		out["error"] = r.Error
	} else {
		delete(out, "error")
	}
	return json.Marshal(out)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Confidence grades how well an answer is supported by the document.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence normalises s case-insensitively. Unknown values yield medium and false.
func ParseConfidence(s string) (Confidence, bool) {
	switch c := Confidence(strings.ToLower(strings.TrimSpace(s))); c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return c, true
	default:
		return ConfidenceMedium, false
	}
}

// AnswerResult is the answer to a question about a document. It is never persisted.
type AnswerResult struct {
	Answer        string     `json:"answer"`
	SourceSection *string    `json:"source_section"`
	Confidence    Confidence `json:"confidence"`
	Error         string     `json:"error,omitempty"`
}

// Degraded reports whether the answer was produced after a generation failure.
func (r AnswerResult) Degraded() bool { return r.Error != "" }
