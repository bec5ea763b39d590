// Package memory implements the document repository as a process-local map.
package memory

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"legalease/internal/logging"
	"legalease/internal/model"
	"legalease/internal/repository"
)

// DefaultSessionTimeout is how long a document stays visible after creation.
const DefaultSessionTimeout = time.Hour

// DocumentMemory is a mutex-guarded, TTL-bounded document store.
// Every operation runs in one short critical section and never calls out while locked.
type DocumentMemory struct {
	mu    sync.Mutex
	docs  map[string]model.Document
	ttl   time.Duration
	now   func() time.Time
	newID func() string
	log   *slog.Logger
}

var _ repository.DocumentRepository = (*DocumentMemory)(nil)

type Option func(*DocumentMemory)

// WithClock sets the time source used for every expiry decision.
func WithClock(now func() time.Time) Option {
	return func(m *DocumentMemory) { m.now = now }
}

// WithIDGenerator replaces the UUIDv4 generator.
func WithIDGenerator(fn func() string) Option {
	return func(m *DocumentMemory) { m.newID = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *DocumentMemory) { m.log = l }
}

// NewDocumentMemory creates an empty store. A non-positive ttl falls back to DefaultSessionTimeout.
func NewDocumentMemory(ttl time.Duration, opts ...Option) *DocumentMemory {
	if ttl <= 0 {
		ttl = DefaultSessionTimeout
	}
	m := &DocumentMemory{
		docs:  make(map[string]model.Document),
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = logging.OrDiscard(m.log).With("component", "store")
	return m
}

func (m *DocumentMemory) Create(text, filename string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	id := m.newID()
	for _, taken := m.docs[id]; taken; _, taken = m.docs[id] {
		id = m.newID()
	}
	m.docs[id] = model.Document{
		ID:        id,
		Text:      text,
		Filename:  filename,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	m.log.Debug("document stored", "document_id", id, "chars", len(text))
	return id
}

func (m *DocumentMemory) Get(id string) (model.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.liveLocked(id)
	if !ok {
		return model.Document{}, false
	}
	return doc.Clone(), true
}

func (m *DocumentMemory) UpdateAnalysis(id string, result model.AnalysisResult) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.liveLocked(id)
	if !ok {
		return false
	}
	r := result.Clone()
	doc.Analysis = &r
	m.docs[id] = doc
	return true
}

func (m *DocumentMemory) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; !ok {
		return false
	}
	delete(m.docs, id)
	return true
}

func (m *DocumentMemory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, doc := range m.docs {
		if doc.Expired(now) {
			delete(m.docs, id)
			removed++
		}
	}
	return removed
}

func (m *DocumentMemory) Stats() model.StoreStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var stats model.StoreStats
	for _, doc := range m.docs {
		if doc.Expired(now) {
			continue
		}
		stats.Count++
		created := doc.CreatedAt
		if stats.OldestCreatedAt == nil || created.Before(*stats.OldestCreatedAt) {
			stats.OldestCreatedAt = &created
		}
		if stats.NewestCreatedAt == nil || created.After(*stats.NewestCreatedAt) {
			stats.NewestCreatedAt = &created
		}
	}
	return stats
}

// Len returns the number of entries held, expired or not.
func (m *DocumentMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

// Live returns the number of documents that have not expired yet.
func (m *DocumentMemory) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for _, doc := range m.docs {
		if !doc.Expired(now) {
			n++
		}
	}
	return n
}

// RegisterMetrics exposes the live document count as a gauge.
func (m *DocumentMemory) RegisterMetrics(reg prometheus.Registerer) error {
	if reg == nil {
		return nil
	}
	return reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "legalease_documents_stored",
		Help: "Number of documents currently held in memory",
	}, func() float64 { return float64(m.Live()) }))
}

// liveLocked returns the entry for id, deleting it if it has expired. Caller holds mu.
func (m *DocumentMemory) liveLocked(id string) (model.Document, bool) {
	doc, ok := m.docs[id]
	if !ok {
		return model.Document{}, false
	}
	if doc.Expired(m.now()) {
		delete(m.docs, id)
		m.log.Debug("expired document removed on access", "document_id", id)
		return model.Document{}, false
	}
	return doc, true
}
