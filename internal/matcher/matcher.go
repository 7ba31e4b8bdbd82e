// Package matcher pairs extracted QA materials with supplier BOM items,
// reusing prior decisions from the knowledge base and recording new ones.
package matcher

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bom-matcher/internal/knowledge"
	"github.com/sells-group/bom-matcher/internal/model"
	"github.com/sells-group/bom-matcher/internal/scorer"
)

const (
	// DefaultMinConfidence is the lowest fresh score reported as a match.
	DefaultMinConfidence = 0.3
	defaultWorkers       = 8
)

// Knowledge is the subset of the knowledge base the matcher needs.
type Knowledge interface {
	Lookup(ctx context.Context, fingerprint string) (*model.KnowledgeEntry, error)
	Record(ctx context.Context, entry model.KnowledgeEntry) error
}

// Observer receives per-material outcomes. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveMatch(rec model.MatchRecord)
	ObserveKnowledgeError(op string)
}

// Matcher resolves each material to its best supplier item.
type Matcher struct {
	scorer        *scorer.Scorer
	prior         priorSource
	minConfidence float64
	workers       int
	log           *zap.Logger
	now           func() time.Time
	observer      Observer
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithMinConfidence sets the threshold below which fresh matches are
// reported unmatched.
func WithMinConfidence(v float64) Option {
	return func(m *Matcher) { m.minConfidence = v }
}

// WithWorkers bounds how many materials are matched concurrently.
func WithWorkers(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithLogger sets the logger. Defaults to zap.L().
func WithLogger(log *zap.Logger) Option {
	return func(m *Matcher) {
		if log != nil {
			m.log = log
		}
	}
}

// WithClock overrides the timestamp source for recorded entries.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) {
		if now != nil {
			m.now = now
		}
	}
}

// WithObserver attaches an outcome observer such as a metrics collector.
func WithObserver(o Observer) Option {
	return func(m *Matcher) {
		if o != nil {
			m.observer = o
		}
	}
}

// New returns a Matcher. A nil kb selects fresh-only matching.
func New(sc *scorer.Scorer, kb Knowledge, opts ...Option) *Matcher {
	if sc == nil {
		sc = scorer.Default()
	}
	m := &Matcher{
		scorer:        sc,
		minConfidence: DefaultMinConfidence,
		workers:       defaultWorkers,
		log:           zap.L(),
		now:           func() time.Time { return time.Now().UTC() },
		observer:      nopObserver{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.Named("matcher")

	if kb == nil {
		m.prior = freshOnly{}
	} else {
		m.prior = &knowledgeBacked{kb: kb, log: m.log, observer: m.observer}
	}
	return m
}

// UsesKnowledgeBase reports whether prior decisions are consulted.
func (m *Matcher) UsesKnowledgeBase() bool {
	_, ok := m.prior.(*knowledgeBacked)
	return ok
}

// MatchItemsWithKnowledgeBase returns one record per material, in input order.
// Knowledge base failures never abort matching; affected materials are scored
// fresh and nothing is recorded for them.
func (m *Matcher) MatchItemsWithKnowledgeBase(ctx context.Context, materials []model.ExtractedMaterial, items []model.SupplierItem, workflowID string) []model.MatchRecord {
	records := make([]model.MatchRecord, len(materials))
	if len(materials) == 0 {
		return records
	}

	index := supplierIndex(items)

	var g errgroup.Group
	g.SetLimit(m.workers)
	for i := range materials {
		g.Go(func() error {
			records[i] = m.matchOne(ctx, materials[i], items, index, workflowID)
			m.observer.ObserveMatch(records[i])
			return nil
		})
	}
	_ = g.Wait()

	m.log.Info("matching complete",
		zap.String("workflow_id", workflowID),
		zap.Int("materials", len(materials)),
		zap.Int("supplier_items", len(items)),
	)
	return records
}

func (m *Matcher) matchOne(ctx context.Context, mat model.ExtractedMaterial, items []model.SupplierItem, index map[string]int, workflowID string) model.MatchRecord {
	fp := knowledge.MaterialFingerprint(mat)
	rec := model.MatchRecord{
		Material:              mat,
		MatchSource:           model.MatchSourceFreshScore,
		QAClassificationLabel: mat.QAClassificationLabel,
		QAConfidenceLevel:     model.NormalizeConfidenceLevel(string(mat.QAConfidenceLevel)),
		Fingerprint:           fp,
	}

	if entry, ok := m.prior.lookup(ctx, fp); ok {
		if idx, found := index[entry.MatchedSupplierFingerprint]; found {
			item := items[idx]
			rec.SupplierItem = &item
			rec.ConfidenceScore = entry.ConfirmedConfidence
			rec.HasPreviousMatch = true
			rec.MatchSource = model.MatchSourceKnowledgeBase
			return rec
		}
	}

	idx, score := m.scorer.Best(mat, items)
	rec.ConfidenceScore = score
	if idx < 0 || score < m.minConfidence {
		m.log.Debug("material unmatched",
			zap.String("material", mat.MaterialName),
			zap.Float64("best_score", score),
		)
		return rec
	}

	item := items[idx]
	rec.SupplierItem = &item
	m.prior.record(ctx, model.KnowledgeEntry{
		Fingerprint:                fp,
		MatchedSupplierFingerprint: knowledge.SupplierFingerprint(item),
		ConfirmedConfidence:        score,
		WorkflowID:                 workflowID,
		Timestamp:                  m.now(),
	})
	return rec
}

// supplierIndex maps each supplier fingerprint to its first position.
func supplierIndex(items []model.SupplierItem) map[string]int {
	index := make(map[string]int, len(items))
	for i, item := range items {
		fp := knowledge.SupplierFingerprint(item)
		if _, dup := index[fp]; !dup {
			index[fp] = i
		}
	}
	return index
}

// priorSource is the one point where knowledge-base-backed and fresh-only
// matching differ.
type priorSource interface {
	lookup(ctx context.Context, fingerprint string) (*model.KnowledgeEntry, bool)
	record(ctx context.Context, entry model.KnowledgeEntry)
}

type freshOnly struct{}

func (freshOnly) lookup(context.Context, string) (*model.KnowledgeEntry, bool) { return nil, false }
func (freshOnly) record(context.Context, model.KnowledgeEntry)                 {}

type knowledgeBacked struct {
	kb       Knowledge
	log      *zap.Logger
	observer Observer
}

func (k *knowledgeBacked) lookup(ctx context.Context, fingerprint string) (*model.KnowledgeEntry, bool) {
	entry, err := k.kb.Lookup(ctx, fingerprint)
	if err != nil {
		k.warn("lookup", fingerprint, err)
		return nil, false
	}
	return entry, entry != nil
}

func (k *knowledgeBacked) record(ctx context.Context, entry model.KnowledgeEntry) {
	if err := k.kb.Record(ctx, entry); err != nil {
		k.warn("record", entry.Fingerprint, err)
	}
}

func (k *knowledgeBacked) warn(op, fingerprint string, err error) {
	k.observer.ObserveKnowledgeError(op)
	msg := "knowledge base " + op + " failed"
	if knowledge.IsUnavailable(err) {
		msg = "knowledge base unavailable, using fresh scoring"
	}
	k.log.Warn(msg,
		zap.String("op", op),
		zap.String("fingerprint", fingerprint),
		zap.Error(err),
	)
}

type nopObserver struct{}

func (nopObserver) ObserveMatch(model.MatchRecord) {}
func (nopObserver) ObserveKnowledgeError(string)   {}
