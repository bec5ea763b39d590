package model

import "time"

// Document is a piece of extracted text held by the document store.
// It carries no storage-specific tags so it can be used from HTTP, service and store layers alike.
type Document struct {
	ID        string          `json:"id"`
	Text      string          `json:"-"`
	Filename  string          `json:"filename"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Analysis  *AnalysisResult `json:"analysis,omitempty"`
}

// Expired reports whether the document is no longer visible at now.
// A document whose expiry equals now is already expired.
func (d Document) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

// Clone returns a deep copy so callers never share mutable state with the store.
func (d Document) Clone() Document {
	out := d
	if d.Analysis != nil {
		a := d.Analysis.Clone()
		out.Analysis = &a
	}
	return out
}

// DocumentInfo is the public metadata view of a stored document. It never includes the text.
type DocumentInfo struct {
	ID              string           `json:"document_id"`
	Filename        string           `json:"filename"`
	CreatedAt       time.Time        `json:"created_at"`
	ExpiresAt       time.Time        `json:"expires_at"`
	TextLength      int              `json:"text_length"`
	HasAnalysis     bool             `json:"has_analysis"`
	AnalysisSummary *AnalysisSummary `json:"analysis_summary,omitempty"`
}

// AnalysisSummary counts what an attached analysis holds.
type AnalysisSummary struct {
	SummaryLength  int `json:"summary_length"`
	KeyPointsCount int `json:"key_points_count"`
	WarningsCount  int `json:"warnings_count"`
}

// NewDocumentInfo builds the metadata view of d.
func NewDocumentInfo(d Document) DocumentInfo {
	info := DocumentInfo{
		ID:          d.ID,
		Filename:    d.Filename,
		CreatedAt:   d.CreatedAt,
		ExpiresAt:   d.ExpiresAt,
		TextLength:  len([]rune(d.Text)),
		HasAnalysis: d.Analysis != nil,
	}
	if d.Analysis != nil {
		info.AnalysisSummary = &AnalysisSummary{
			SummaryLength:  len([]rune(d.Analysis.Summary)),
			KeyPointsCount: len(d.Analysis.KeyPoints),
			WarningsCount:  len(d.Analysis.Warnings),
		}
	}
	return info
}

// StoreStats describes the live contents of the document store.
// The timestamps are nil when the store is empty.
type StoreStats struct {
	Count           int        `json:"total_documents"`
	OldestCreatedAt *time.Time `json:"oldest_document,omitempty"`
	NewestCreatedAt *time.Time `json:"newest_document,omitempty"`
}
