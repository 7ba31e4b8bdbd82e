// Package knowledge persists past material-to-supplier match decisions so
// later workflows can reuse them instead of re-scoring.
package knowledge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bom-matcher/internal/model"
	"github.com/sells-group/bom-matcher/internal/resilience"
)

// Store is the persistence backend for knowledge entries. Entries are only
// ever appended; the newest entry for a fingerprint wins.
type Store interface {
	// Latest returns the newest entry for a fingerprint, or nil if none.
	Latest(ctx context.Context, fingerprint string) (*model.KnowledgeEntry, error)
	// Append adds an entry unless the newest entry for its fingerprint already
	// states the same fact. It reports whether a row was written.
	Append(ctx context.Context, entry model.KnowledgeEntry) (bool, error)
	// Stats aggregates over all entries.
	Stats(ctx context.Context, workflowID string) (*model.ProcessingStats, error)

	Migrate(ctx context.Context) error
	Close() error
}

// UnavailableError marks a backend failure. Callers treat it as a soft
// failure and fall back to fresh scoring.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return "knowledge base unavailable: " + e.Op + ": " + e.Err.Error()
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err (or any error in its chain) is an
// UnavailableError.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// KnowledgeBase is the concurrency-safe front of a Store. Writes for the same
// fingerprint are serialized; reads and writes on distinct fingerprints run
// concurrently.
//
// A circuit breaker sits in front of the store: after repeated backend
// failures, calls fail fast with an UnavailableError instead of waiting on a
// dead database once per material.
type KnowledgeBase struct {
	store   Store
	locks   *keyLocks
	breaker *resilience.CircuitBreaker
	log     *zap.Logger
	now     func() time.Time
}

// Option configures a KnowledgeBase.
type Option func(*KnowledgeBase)

// WithBreaker replaces the default circuit breaker settings.
func WithBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(kb *KnowledgeBase) { kb.breaker = resilience.NewCircuitBreaker(cfg) }
}

// New wraps a Store. A nil logger falls back to the global zap logger.
func New(st Store, log *zap.Logger, opts ...Option) *KnowledgeBase {
	if log == nil {
		log = zap.L()
	}
	log = log.Named("knowledge")
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		OnStateChange: func(from, to resilience.CircuitState) {
			log.Warn("backend circuit changed state",
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
	kb := &KnowledgeBase{
		store:   st,
		locks:   newKeyLocks(),
		breaker: breaker,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(kb)
	}
	return kb
}

// Lookup returns the most recent entry for a fingerprint, or nil if the
// fingerprint has never been recorded.
func (kb *KnowledgeBase) Lookup(ctx context.Context, fingerprint string) (*model.KnowledgeEntry, error) {
	if err := kb.breaker.Allow(); err != nil {
		return nil, &UnavailableError{Op: "lookup", Err: err}
	}
	e, err := kb.store.Latest(ctx, fingerprint)
	kb.breaker.Record(err)
	if err != nil {
		return nil, &UnavailableError{Op: "lookup", Err: err}
	}
	return e, nil
}

// Record appends an entry. Recording a fact identical to the current newest
// entry for the fingerprint leaves the store unchanged.
func (kb *KnowledgeBase) Record(ctx context.Context, entry model.KnowledgeEntry) error {
	if entry.Fingerprint == "" {
		return eris.New("knowledge: record: empty fingerprint")
	}
	if entry.ConfirmedConfidence < 0 || entry.ConfirmedConfidence > 1 {
		return eris.Errorf("knowledge: record: confidence %.4f out of range", entry.ConfirmedConfidence)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = kb.now()
	}

	if err := kb.breaker.Allow(); err != nil {
		return &UnavailableError{Op: "record", Err: err}
	}

	unlock := kb.locks.lock(entry.Fingerprint)
	defer unlock()

	written, err := kb.store.Append(ctx, entry)
	kb.breaker.Record(err)
	if err != nil {
		return &UnavailableError{Op: "record", Err: err}
	}
	if !written {
		kb.log.Debug("record: fact already current",
			zap.String("fingerprint", entry.Fingerprint),
			zap.String("workflow_id", entry.WorkflowID),
		)
	}
	return nil
}

// ProcessingStats never fails: backend errors are logged and an empty stats
// value is returned.
func (kb *KnowledgeBase) ProcessingStats(ctx context.Context, workflowID string) model.ProcessingStats {
	stats, err := kb.store.Stats(ctx, workflowID)
	if err != nil {
		kb.log.Warn("stats unavailable", zap.String("workflow_id", workflowID), zap.Error(err))
		return model.ProcessingStats{}
	}
	if stats == nil {
		return model.ProcessingStats{}
	}
	return *stats
}

// Close releases the underlying store.
func (kb *KnowledgeBase) Close() error {
	return kb.store.Close()
}

// keyLocks hands out one mutex per key, dropping it once no holder remains.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*keyLock)}
}

func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
