// Package summary aggregates match records into report-ready counts.
package summary

import (
	"time"

	"github.com/sells-group/bom-matcher/internal/model"
)

// SuccessThreshold is the confidence above which a match counts as
// successful in the workflow summary.
const SuccessThreshold = 0.5

// Summarize counts QA classification labels and confidence tiers. A missing
// tier counts as medium; unrecognized tiers are skipped.
func Summarize(matches []model.MatchRecord) model.ClassificationSummary {
	out := model.ClassificationSummary{
		ClassificationCounts:   make(map[int]int),
		ConfidenceDistribution: make(map[model.ConfidenceLevel]int, 3),
		TotalItems:             len(matches),
	}
	for _, level := range model.AllConfidenceLevels() {
		out.ConfidenceDistribution[level] = 0
	}

	for _, m := range matches {
		out.ClassificationCounts[m.QAClassificationLabel]++

		level := model.NormalizeConfidenceLevel(string(m.QAConfidenceLevel))
		if level.Valid() {
			out.ConfidenceDistribution[level]++
		}
	}
	return out
}

// BuildWorkflowSummary computes the headline numbers for a finished run.
func BuildWorkflowSummary(materials []model.ExtractedMaterial, items []model.SupplierItem, matches []model.MatchRecord, enhanced bool, at time.Time) model.WorkflowSummary {
	s := model.WorkflowSummary{
		TotalMaterials:     len(materials),
		TotalSupplierItems: len(items),
		ProcessingDate:     at,
		EnhancedMatching:   enhanced,
	}
	for _, m := range matches {
		if m.Matched() && m.ConfidenceScore > SuccessThreshold {
			s.SuccessfulMatches++
		}
		if m.MatchSource == model.MatchSourceKnowledgeBase {
			s.KnowledgeBaseMatches++
		}
		if !m.Matched() {
			s.Unmatched++
		}
	}
	return s
}
