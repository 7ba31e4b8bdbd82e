package model

import "time"

// MatchSource records where a match decision came from.
type MatchSource string

const (
	MatchSourceKnowledgeBase MatchSource = "knowledge_base"
	MatchSourceFreshScore    MatchSource = "fresh_score"
)

// MatchRecord pairs an extracted material with its best supplier item.
// SupplierItem is nil when no candidate cleared the confidence threshold.
type MatchRecord struct {
	Material              ExtractedMaterial `json:"material"`
	SupplierItem          *SupplierItem     `json:"supplier_item"`
	ConfidenceScore       float64           `json:"confidence_score"`
	HasPreviousMatch      bool              `json:"has_previous_match"`
	MatchSource           MatchSource       `json:"match_source"`
	QAClassificationLabel int               `json:"qa_classification_label"`
	QAConfidenceLevel     ConfidenceLevel   `json:"qa_confidence_level"`
	Fingerprint           string            `json:"fingerprint"`
}

// Matched reports whether the record carries a supplier item.
func (r MatchRecord) Matched() bool {
	return r.SupplierItem != nil
}

// KnowledgeEntry is one append-only fact in the knowledge base: a material
// fingerprint was matched to a supplier fingerprint with a confidence.
type KnowledgeEntry struct {
	Fingerprint                string    `json:"fingerprint"`
	MatchedSupplierFingerprint string    `json:"matched_supplier_fingerprint"`
	ConfirmedConfidence        float64   `json:"confirmed_confidence"`
	WorkflowID                 string    `json:"workflow_id"`
	Timestamp                  time.Time `json:"timestamp"`
}

// SameFact reports whether two entries describe the same pairing and
// confidence, ignoring workflow and time.
func (e KnowledgeEntry) SameFact(o KnowledgeEntry) bool {
	return e.Fingerprint == o.Fingerprint &&
		e.MatchedSupplierFingerprint == o.MatchedSupplierFingerprint &&
		e.ConfirmedConfidence == o.ConfirmedConfidence
}

// ProcessingStats is an aggregate view over the knowledge base.
type ProcessingStats struct {
	TotalEntries        int        `json:"total_entries"`
	UniqueFingerprints  int        `json:"unique_fingerprints"`
	EntriesThisWorkflow int        `json:"entries_this_workflow"`
	Workflows           int        `json:"workflows"`
	AverageConfidence   float64    `json:"average_confidence"`
	LastRecordedAt      *time.Time `json:"last_recorded_at,omitempty"`
}
