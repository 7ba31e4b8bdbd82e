package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/bom-matcher/internal/model"
)

// FormatReport renders a human-readable summary of a workflow result.
func FormatReport(res *model.WorkflowResult) string {
	var b strings.Builder

	s := res.Summary
	fmt.Fprintf(&b, "# Matching Report: %s\n\n", res.WorkflowID)

	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Materials: %d\n", s.TotalMaterials)
	fmt.Fprintf(&b, "- Supplier items: %d\n", s.TotalSupplierItems)
	fmt.Fprintf(&b, "- Successful matches: %d\n", s.SuccessfulMatches)
	fmt.Fprintf(&b, "- Knowledge base matches: %d\n", s.KnowledgeBaseMatches)
	fmt.Fprintf(&b, "- Unmatched: %d\n", s.Unmatched)
	fmt.Fprintf(&b, "- Knowledge base entries: %d\n\n", res.KnowledgeBaseStats.TotalEntries)

	b.WriteString("## Matches\n")
	if len(res.Matches) == 0 {
		b.WriteString("No matches.\n\n")
	}
	for _, m := range res.Matches {
		target := "(unmatched)"
		if m.SupplierItem != nil {
			target = m.SupplierItem.ItemName
			if m.SupplierItem.PartNumber != "" {
				target += " [" + m.SupplierItem.PartNumber + "]"
			}
		}
		fmt.Fprintf(&b, "- %s -> %s (%.0f%%, %s)\n", m.Material.MaterialName, target, m.ConfidenceScore*100, m.MatchSource)
	}
	if len(res.Matches) > 0 {
		b.WriteString("\n")
	}

	qa := res.QAClassificationSummary
	b.WriteString("## QA Classification\n")
	for _, level := range model.AllConfidenceLevels() {
		fmt.Fprintf(&b, "- %s: %d\n", level, qa.ConfidenceDistribution[level])
	}
	labels := make([]int, 0, len(qa.ClassificationCounts))
	for l := range qa.ClassificationCounts {
		labels = append(labels, l)
	}
	sort.Ints(labels)
	for _, l := range labels {
		fmt.Fprintf(&b, "- label %d: %d\n", l, qa.ClassificationCounts[l])
	}

	return b.String()
}
