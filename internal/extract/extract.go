// Package extract turns PDF binaries into page-marked plain text.
//
// Extraction runs an ordered chain of strategies. The first strategy whose
// text meets the minimum length wins; a page that fails is skipped without
// aborting the document.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"legalease/internal/logging"
)

const (
	DefaultMaxPages      = 50
	DefaultMinTextLength = 10
)

var (
	// ErrUnreadable means no strategy could parse the input as a PDF.
	ErrUnreadable = errors.New("extraction error")
	// ErrNoText means the PDF parsed but yielded too little text.
	ErrNoText = errors.New("no readable text found; the document may contain only images")
)

// Source is a rewindable byte stream, typically an uploaded file.
type Source interface {
	io.Reader
	io.Seeker
}

// Document is a parsed PDF as seen by a strategy. Pages are 1-based.
type Document interface {
	NumPage() int
	PageText(n int) (string, error)
}

// Strategy is one way of reading text out of a PDF.
type Strategy interface {
	Name() string
	Open(r io.ReaderAt, size int64) (Document, error)
}

// Result is the outcome of a successful extraction.
type Result struct {
	Text           string `json:"-"`
	Strategy       string `json:"strategy"`
	TotalPages     int    `json:"total_pages"`
	PagesProcessed int    `json:"pages_processed"`
	Truncated      bool   `json:"truncated"`
}

// TextExtractor is implemented by Extractor.
type TextExtractor interface {
	ExtractReader(src Source) (Result, error)
	ExtractBytes(data []byte) (Result, error)
}

// PageCounter reports the page count of a PDF without extracting text.
type PageCounter func(rs io.ReadSeeker) (int, error)

// Extractor runs the strategy chain.
type Extractor struct {
	strategies    []Strategy
	maxPages      int
	minTextLength int
	countPages    PageCounter
	log           *slog.Logger
}

type Option func(*Extractor)

// WithStrategies replaces the default strategy chain.
func WithStrategies(s ...Strategy) Option {
	return func(e *Extractor) { e.strategies = s }
}

func WithMaxPages(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxPages = n
		}
	}
}

func WithMinTextLength(n int) Option {
	return func(e *Extractor) {
		if n >= 0 {
			e.minTextLength = n
		}
	}
}

// WithPageCounter overrides the structural page count. A nil counter disables it.
func WithPageCounter(pc PageCounter) Option {
	return func(e *Extractor) { e.countPages = pc }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.log = l }
}

// New builds an Extractor using the layout strategy first and the plain strategy as fallback.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		strategies:    []Strategy{LayoutStrategy{}, PlainStrategy{}},
		maxPages:      DefaultMaxPages,
		minTextLength: DefaultMinTextLength,
		countPages:    CountPages,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = logging.OrDiscard(e.log).With("component", "extract")
	return e
}

// ExtractReader extracts text from src. The source is rewound before reading and again before returning.
func (e *Extractor) ExtractReader(src Source) (Result, error) {
	if src == nil {
		return Result{}, fmt.Errorf("%w: no input", ErrUnreadable)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return Result{}, fmt.Errorf("%w: rewind input: %v", ErrUnreadable, err)
	}
	data, err := io.ReadAll(src)
	if _, serr := src.Seek(0, io.SeekStart); serr != nil && err == nil {
		err = serr
	}
	if err != nil {
		return Result{}, fmt.Errorf("%w: read input: %v", ErrUnreadable, err)
	}
	return e.extract(data)
}

// ExtractBytes extracts text from an in-memory PDF.
func (e *Extractor) ExtractBytes(data []byte) (Result, error) {
	return e.extract(data)
}

func (e *Extractor) extract(data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{}, fmt.Errorf("%w: empty input", ErrUnreadable)
	}

	structural := -1
	if e.countPages != nil {
		n, err := safely(func() (int, error) { return e.countPages(bytes.NewReader(data)) })
		if err != nil {
			e.log.Debug("structural page count failed", "error", err)
		} else {
			structural = n
		}
	}

	var (
		lastErr error
		opened  bool
		total   = max(structural, 0)
	)
	for _, s := range e.strategies {
		doc, err := safely(func() (Document, error) { return s.Open(bytes.NewReader(data), int64(len(data))) })
		if err != nil {
			lastErr = err
			e.log.Warn("extraction strategy could not open document", "strategy", s.Name(), "error", err)
			continue
		}
		opened = true

		res := e.run(s.Name(), doc)
		e.reconcile(&res.Result, structural)
		total = res.TotalPages
		if res.contentLength >= e.minTextLength && res.contentLength > 0 {
			e.log.Info("text extracted",
				"strategy", res.Strategy,
				"pages", res.PagesProcessed,
				"total_pages", res.TotalPages,
				"chars", utf8.RuneCountInString(res.Text))
			return res.Result, nil
		}
		e.log.Warn("extraction strategy found too little text",
			"strategy", s.Name(), "chars", res.contentLength, "min", e.minTextLength)
	}

	if !opened {
		if lastErr == nil {
			lastErr = errors.New("no extraction strategy configured")
		}
		if structural > 0 {
			e.log.Warn("pdf is structurally valid but no strategy could read it", "total_pages", structural)
		}
		return Result{}, fmt.Errorf("%w: %v", ErrUnreadable, lastErr)
	}
	return Result{TotalPages: total}, ErrNoText
}

// reconcile trusts the structural page count when the text reader reports fewer pages,
// which happens with broken page trees. Pages the reader cannot see count as truncated.
func (e *Extractor) reconcile(r *Result, structural int) {
	if structural <= r.TotalPages {
		return
	}
	e.log.Warn("text reader under-reports pages",
		"strategy", r.Strategy, "reader_pages", r.TotalPages, "total_pages", structural)
	r.TotalPages = structural
	r.Truncated = true
}

type pass struct {
	Result
	contentLength int
}

func (e *Extractor) run(name string, doc Document) pass {
	n, err := safely(func() (int, error) { return doc.NumPage(), nil })
	if err != nil {
		e.log.Warn("could not count pages", "strategy", name, "error", err)
		return pass{Result: Result{Strategy: name}}
	}

	limit := n
	if limit > e.maxPages {
		limit = e.maxPages
		e.log.Warn("page limit reached, remaining pages ignored",
			"strategy", name, "total_pages", n, "max_pages", e.maxPages)
	}

	var (
		blocks    []string
		processed int
		content   int
	)
	for i := 1; i <= limit; i++ {
		text, err := safely(func() (string, error) { return doc.PageText(i) })
		if err != nil {
			e.log.Warn("page extraction failed, skipping", "strategy", name, "page", i, "error", err)
			continue
		}
		processed++
		text = strings.TrimSpace(text)
		if text == "" {
			e.log.Debug("page has no text", "strategy", name, "page", i)
			continue
		}
		content += utf8.RuneCountInString(text)
		blocks = append(blocks, fmt.Sprintf("--- Page %d ---\n%s\n", i, text))
	}

	return pass{
		Result: Result{
			Text:           strings.Join(blocks, "\n"),
			Strategy:       name,
			TotalPages:     n,
			PagesProcessed: processed,
			Truncated:      n > limit,
		},
		contentLength: content,
	}
}

// safely runs fn, turning a panic into an error. PDF parsers panic on malformed input.
func safely[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()
	return fn()
}
