package knowledge

import (
	"context"
	"sync"

	"github.com/sells-group/bom-matcher/internal/model"
)

// MemoryStore is an in-process Store. Contents are lost on exit.
type MemoryStore struct {
	mu      sync.RWMutex
	seq     int64
	entries map[string][]memEntry
	total   int
}

type memEntry struct {
	seq   int64
	entry model.KnowledgeEntry
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]memEntry)}
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Latest(_ context.Context, fingerprint string) (*model.KnowledgeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.latestLocked(fingerprint)
	if !ok {
		return nil, nil
	}
	out := e.entry
	return &out, nil
}

func (s *MemoryStore) Append(_ context.Context, entry model.KnowledgeEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.latestLocked(entry.Fingerprint); ok && cur.entry.SameFact(entry) {
		return false, nil
	}
	s.seq++
	s.entries[entry.Fingerprint] = append(s.entries[entry.Fingerprint], memEntry{seq: s.seq, entry: entry})
	s.total++
	return true, nil
}

func (s *MemoryStore) Stats(_ context.Context, workflowID string) (*model.ProcessingStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &model.ProcessingStats{
		TotalEntries:       s.total,
		UniqueFingerprints: len(s.entries),
	}
	workflows := make(map[string]struct{})
	var sum float64
	for _, list := range s.entries {
		for _, e := range list {
			workflows[e.entry.WorkflowID] = struct{}{}
			sum += e.entry.ConfirmedConfidence
			if e.entry.WorkflowID == workflowID {
				st.EntriesThisWorkflow++
			}
			if st.LastRecordedAt == nil || e.entry.Timestamp.After(*st.LastRecordedAt) {
				t := e.entry.Timestamp
				st.LastRecordedAt = &t
			}
		}
	}
	st.Workflows = len(workflows)
	if s.total > 0 {
		st.AverageConfidence = sum / float64(s.total)
	}
	return st, nil
}

// latestLocked picks the newest entry by timestamp, then insertion order.
func (s *MemoryStore) latestLocked(fingerprint string) (memEntry, bool) {
	list := s.entries[fingerprint]
	if len(list) == 0 {
		return memEntry{}, false
	}
	best := list[0]
	for _, e := range list[1:] {
		if e.entry.Timestamp.After(best.entry.Timestamp) ||
			(e.entry.Timestamp.Equal(best.entry.Timestamp) && e.seq > best.seq) {
			best = e
		}
	}
	return best, true
}
