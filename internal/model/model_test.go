package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_Expired_IsInclusive(t *testing.T) {
	exp := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := Document{ExpiresAt: exp}

	assert.False(t, d.Expired(exp.Add(-time.Nanosecond)))
	assert.True(t, d.Expired(exp))
	assert.True(t, d.Expired(exp.Add(time.Second)))
}

func TestDocument_Clone_DoesNotShareAnalysis(t *testing.T) {
	d := Document{ID: "a", Analysis: &AnalysisResult{
		Summary:   "s",
		KeyPoints: []string{"k"},
		Warnings:  []string{"w"},
		Extras:    map[string]any{"risk": "high"},
	}}

	c := d.Clone()
	c.Analysis.KeyPoints[0] = "changed"
	c.Analysis.Extras["risk"] = "low"

	assert.Equal(t, "k", d.Analysis.KeyPoints[0])
	assert.Equal(t, "high", d.Analysis.Extras["risk"])
}

func TestAnalysisResult_Clone_CopiesNestedExtras(t *testing.T) {
	r := AnalysisResult{Extras: map[string]any{
		"parties": []any{"Landlord", map[string]any{"role": "Tenant"}},
		"terms":   map[string]any{"rent": []any{1200.0}},
	}}

	c := r.Clone()
	c.Extras["parties"].([]any)[0] = "changed"
	c.Extras["parties"].([]any)[1].(map[string]any)["role"] = "changed"
	c.Extras["terms"].(map[string]any)["rent"].([]any)[0] = 0.0

	assert.Equal(t, "Landlord", r.Extras["parties"].([]any)[0])
	assert.Equal(t, "Tenant", r.Extras["parties"].([]any)[1].(map[string]any)["role"])
	assert.Equal(t, 1200.0, r.Extras["terms"].(map[string]any)["rent"].([]any)[0])
}

func TestAnalysisResult_MarshalJSON(t *testing.T) {
	r := AnalysisResult{Summary: "s", Extras: map[string]any{"risk_score": 3.0, "summary": "ignored"}}

	b, err := json.Marshal(r)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "s", got["summary"])
	assert.Equal(t, []any{}, got["key_points"])
	assert.Equal(t, []any{}, got["warnings"])
	assert.Equal(t, 3.0, got["risk_score"])
	_, hasErr := got["error"]
	assert.False(t, hasErr)
}

func TestParseConfidence(t *testing.T) {
	tests := []struct {
		in   string
		want Confidence
		ok   bool
	}{
		{"high", ConfidenceHigh, true},
		{" LOW ", ConfidenceLow, true},
		{"Medium", ConfidenceMedium, true},
		{"certain", ConfidenceMedium, false},
		{"", ConfidenceMedium, false},
	}
	for _, tt := range tests {
		got, ok := ParseConfidence(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestNewDocumentInfo(t *testing.T) {
	d := Document{ID: "id", Filename: "lease.pdf", Text: "héllo"}
	info := NewDocumentInfo(d)
	assert.Equal(t, 5, info.TextLength)
	assert.False(t, info.HasAnalysis)
	assert.Nil(t, info.AnalysisSummary)

	d.Analysis = &AnalysisResult{Summary: "abc", KeyPoints: []string{"1", "2"}, Warnings: []string{"w"}}
	info = NewDocumentInfo(d)
	require.NotNil(t, info.AnalysisSummary)
	assert.Equal(t, AnalysisSummary{SummaryLength: 3, KeyPointsCount: 2, WarningsCount: 1}, *info.AnalysisSummary)
}
