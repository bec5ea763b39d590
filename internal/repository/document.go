package repository

import "legalease/internal/model"

// DocumentRepository holds extracted documents and their analysis for a bounded time.
// Implementations must be safe for concurrent use. Reads return copies, never shared state.
type DocumentRepository interface {
	// Create stores text under a fresh id that expires after the session timeout.
	Create(text, filename string) string

	// Get returns the document if it exists and has not expired.
	// An expired document found here is removed.
	Get(id string) (model.Document, bool)

	// UpdateAnalysis attaches result to a live document. It never creates an entry.
	UpdateAnalysis(id string, result model.AnalysisResult) bool

	// Delete removes the document and reports whether it existed.
	Delete(id string) bool

	// Sweep removes every expired document and returns how many were removed.
	Sweep() int

	// Stats describes the live documents. Expired entries are not counted.
	Stats() model.StoreStats
}
