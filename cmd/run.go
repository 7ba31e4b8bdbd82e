package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bom-matcher/internal/metrics"
	"github.com/sells-group/bom-matcher/internal/model"
	"github.com/sells-group/bom-matcher/internal/pipeline"
	"github.com/sells-group/bom-matcher/internal/stage"
)

var (
	runQAPath     string
	runBOMPath    string
	runWorkflowID string
	runJSON       bool
	runNoKB       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full workflow for a QA document and a supplier BOM",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		wf := runWorkflowID
		if wf == "" {
			wf = uuid.NewString()
		}
		if err := checkWorkflowID(wf); err != nil {
			return err
		}

		collector := metrics.New()
		defer flushMetrics(collector)

		var opts []pipeline.Option
		kb := openKnowledge(ctx, cfg.Store, runNoKB)
		if kb != nil {
			defer kb.Close() //nolint:errcheck
			opts = append(opts, pipeline.WithStats(kb))
		}

		m, err := newMatcher(cfg.Matcher, kb, collector)
		if err != nil {
			return err
		}
		llm := newLLM(cfg.Anthropic, collector)

		p := pipeline.New(cfg.Pipeline,
			stage.NewTranslator(llm),
			stage.NewExtractor(llm),
			stage.NewBOMParser(),
			m,
			append(opts, pipeline.WithObserver(collector), pipeline.WithLogger(zap.L()))...,
		)

		res, err := p.Run(ctx, pipeline.Input{
			WorkflowID:      wf,
			QADocumentPath:  runQAPath,
			SupplierBOMPath: runBOMPath,
		}, printProgress)
		if err != nil {
			return eris.Wrapf(err, "workflow %s", wf)
		}

		if runJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		fmt.Print(pipeline.FormatReport(res))
		return nil
	},
}

func printProgress(_ context.Context, u model.ProgressUpdate) error {
	_, err := fmt.Fprintf(os.Stderr, "[%5.1f%%] %-12s %s\n", u.Progress, u.Stage, u.Message)
	return err
}

func init() {
	runCmd.Flags().StringVar(&runQAPath, "qa", "", "QA document path (txt, md, pdf, docx)")
	runCmd.Flags().StringVar(&runBOMPath, "bom", "", "supplier BOM path (csv, tsv, xlsx)")
	runCmd.Flags().StringVar(&runWorkflowID, "workflow-id", "", "workflow ID (default: random UUID)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the workflow result as JSON")
	runCmd.Flags().BoolVar(&runNoKB, "no-kb", false, "match with fresh scores only")
	_ = runCmd.MarkFlagRequired("qa")
	_ = runCmd.MarkFlagRequired("bom")
	rootCmd.AddCommand(runCmd)
}
