package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/bom-matcher/internal/matcher"
	"github.com/sells-group/bom-matcher/internal/metrics"
	"github.com/sells-group/bom-matcher/internal/model"
	"github.com/sells-group/bom-matcher/internal/summary"
)

var (
	matchMaterialsPath string
	matchItemsPath     string
	matchWorkflowID    string
	matchFormat        string
	matchNoKB          bool
)

// matchOutput is what the match command prints.
type matchOutput struct {
	WorkflowID              string                      `json:"workflow_id" yaml:"workflow_id"`
	Matches                 []model.MatchRecord         `json:"matches" yaml:"matches"`
	Summary                 model.WorkflowSummary       `json:"summary" yaml:"summary"`
	QAClassificationSummary model.ClassificationSummary `json:"qa_classification_summary" yaml:"qa_classification_summary"`
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match already-extracted materials against supplier items",
	Long:  "Reads materials and supplier items from JSON or YAML files and runs only the matching step, learning into the knowledge base.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var materials []model.ExtractedMaterial
		if err := decodeFile(matchMaterialsPath, &materials); err != nil {
			return eris.Wrap(err, "load materials")
		}
		var items []model.SupplierItem
		if err := decodeFile(matchItemsPath, &items); err != nil {
			return eris.Wrap(err, "load supplier items")
		}

		wf := matchWorkflowID
		if wf == "" {
			wf = uuid.NewString()
		}
		if err := checkWorkflowID(wf); err != nil {
			return err
		}

		collector := metrics.New()
		defer flushMetrics(collector)

		kb := openKnowledge(ctx, cfg.Store, matchNoKB)
		if kb != nil {
			defer kb.Close() //nolint:errcheck
		}
		m, err := newMatcher(cfg.Matcher, kb, collector)
		if err != nil {
			return err
		}

		out := runMatch(ctx, m, materials, items, wf, time.Now().UTC())
		return writeOutput(os.Stdout, matchFormat, out)
	},
}

func runMatch(ctx context.Context, m *matcher.Matcher, materials []model.ExtractedMaterial, items []model.SupplierItem, wf string, at time.Time) matchOutput {
	matches := m.MatchItemsWithKnowledgeBase(ctx, materials, items, wf)
	return matchOutput{
		WorkflowID:              wf,
		Matches:                 matches,
		Summary:                 summary.BuildWorkflowSummary(materials, items, matches, m.UsesKnowledgeBase(), at),
		QAClassificationSummary: summary.Summarize(matches),
	}
}

// decodeFile reads a YAML or JSON list into out and validates each element.
func decodeFile[T interface{ Validate() error }](path string, out *[]T) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "read %s", path)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return eris.Wrapf(err, "decode %s", path)
	}
	for i, v := range *out {
		if err := v.Validate(); err != nil {
			return eris.Wrapf(err, "%s: entry %d", path, i)
		}
	}
	return nil
}

func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		// Go through JSON so the output keys follow the json tags.
		data, err := json.Marshal(v)
		if err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		blockStyle(&node)
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(&node); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return eris.Errorf("unknown output format %q", format)
	}
}

// blockStyle clears the flow style a JSON document parses with.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func init() {
	matchCmd.Flags().StringVar(&matchMaterialsPath, "materials", "", "materials file (JSON or YAML list)")
	matchCmd.Flags().StringVar(&matchItemsPath, "items", "", "supplier items file (JSON or YAML list)")
	matchCmd.Flags().StringVar(&matchWorkflowID, "workflow-id", "", "workflow ID (default: random UUID)")
	matchCmd.Flags().StringVar(&matchFormat, "format", "json", "output format: json or yaml")
	matchCmd.Flags().BoolVar(&matchNoKB, "no-kb", false, "match with fresh scores only")
	_ = matchCmd.MarkFlagRequired("materials")
	_ = matchCmd.MarkFlagRequired("items")
	rootCmd.AddCommand(matchCmd)
}
