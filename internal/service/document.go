package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"legalease/internal/analysis"
	"legalease/internal/extract"
	"legalease/internal/logging"
	"legalease/internal/model"
	"legalease/internal/repository"
)

var (
	ErrIDRequired       = errors.New("document id is required")
	ErrNotFound         = errors.New("document not found or expired")
	ErrReaderNil        = errors.New("reader is nil")
	ErrQuestionRequired = errors.New("question is required")
	ErrEmptyText        = errors.New("document has no text")
)

// AnalyzeOutcome is what a caller gets back after uploading a document.
type AnalyzeOutcome struct {
	DocumentID     string               `json:"document_id"`
	Filename       string               `json:"filename"`
	Analysis       model.AnalysisResult `json:"analysis"`
	TextLength     int                  `json:"text_length"`
	TotalPages     int                  `json:"total_pages"`
	PagesProcessed int                  `json:"pages_processed"`
	Truncated      bool                 `json:"truncated"`
	ProcessedAt    time.Time            `json:"processed_at"`
}

// DocumentService runs the intake pipeline: extract, store, analyse, and later answer questions.
type DocumentService interface {
	// Analyze extracts text from an uploaded file, stores it and attaches an analysis.
	// Extraction failures wrap extract.ErrUnreadable or extract.ErrNoText.
	Analyze(ctx context.Context, src extract.Source, filename string) (*AnalyzeOutcome, error)

	// AnalyzeBytes is Analyze for an in-memory file.
	AnalyzeBytes(ctx context.Context, data []byte, filename string) (*AnalyzeOutcome, error)

	// Ask answers a question about a stored document. The answer is not persisted.
	Ask(ctx context.Context, id, question string) (*model.AnswerResult, error)

	// Info returns metadata about a stored document.
	Info(ctx context.Context, id string) (*model.DocumentInfo, error)

	// Delete removes a stored document.
	Delete(ctx context.Context, id string) error

	// Stats describes the store.
	Stats(ctx context.Context) model.StoreStats
}

type documentService struct {
	extractor extract.TextExtractor
	repo      repository.DocumentRepository
	analyzer  analysis.Analyzer
	log       *slog.Logger
	now       func() time.Time
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(ex extract.TextExtractor, repo repository.DocumentRepository, an analysis.Analyzer, log *slog.Logger) DocumentService {
	return &documentService{
		extractor: ex,
		repo:      repo,
		analyzer:  an,
		log:       logging.OrDiscard(log).With("component", "service"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *documentService) Analyze(ctx context.Context, src extract.Source, filename string) (*AnalyzeOutcome, error) {
	if src == nil {
		return nil, ErrReaderNil
	}
	res, err := s.extractor.ExtractReader(src)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	return s.process(ctx, res, filename)
}

func (s *documentService) AnalyzeBytes(ctx context.Context, data []byte, filename string) (*AnalyzeOutcome, error) {
	res, err := s.extractor.ExtractBytes(data)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	return s.process(ctx, res, filename)
}

func (s *documentService) process(ctx context.Context, res extract.Result, filename string) (*AnalyzeOutcome, error) {
	if strings.TrimSpace(res.Text) == "" {
		return nil, ErrEmptyText
	}

	id := s.repo.Create(res.Text, filename)
	s.log.Info("document stored",
		"document_id", id,
		"filename", filename,
		"strategy", res.Strategy,
		"pages", res.PagesProcessed,
	)

	// No store lock is held here; the oracle call may take a while.
	result := s.analyzer.Analyze(ctx, res.Text, filename)
	if !s.repo.UpdateAnalysis(id, result) {
		s.log.Warn("document expired before analysis was attached", "document_id", id)
	}
	if result.Degraded() {
		s.log.Warn("analysis degraded", "document_id", id, "error", result.Error)
	}

	return &AnalyzeOutcome{
		DocumentID:     id,
		Filename:       filename,
		Analysis:       result,
		TextLength:     utf8.RuneCountInString(res.Text),
		TotalPages:     res.TotalPages,
		PagesProcessed: res.PagesProcessed,
		Truncated:      res.Truncated,
		ProcessedAt:    s.now(),
	}, nil
}

func (s *documentService) Ask(ctx context.Context, id, question string) (*model.AnswerResult, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(question) == "" {
		return nil, ErrQuestionRequired
	}
	doc, ok := s.repo.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil, ErrEmptyText
	}
	ans := s.analyzer.Answer(ctx, doc.Text, question)
	return &ans, nil
}

func (s *documentService) Info(ctx context.Context, id string) (*model.DocumentInfo, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, ok := s.repo.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	info := model.NewDocumentInfo(doc)
	return &info, nil
}

func (s *documentService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	if !s.repo.Delete(id) {
		return ErrNotFound
	}
	s.log.Info("document deleted", "document_id", id)
	return nil
}

func (s *documentService) Stats(ctx context.Context) model.StoreStats {
	return s.repo.Stats()
}
