// Package pipeline runs the document workflow: translation, extraction,
// supplier BOM parsing and knowledge-base matching, in that order.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bom-matcher/internal/config"
	"github.com/sells-group/bom-matcher/internal/model"
	"github.com/sells-group/bom-matcher/internal/report"
	"github.com/sells-group/bom-matcher/internal/summary"
)

// Translator loads and translates the QA document.
type Translator interface {
	Process(ctx context.Context, path, sourceLang, targetLang string) (*model.TranslationResult, error)
}

// Extractor pulls materials out of translated text.
type Extractor interface {
	Extract(ctx context.Context, text string) (*model.ExtractionResult, error)
}

// BOMParser reads the supplier bill of materials.
type BOMParser interface {
	Parse(ctx context.Context, path string) (*model.SupplierBOMResult, error)
}

// Matcher pairs materials with supplier items.
type Matcher interface {
	MatchItemsWithKnowledgeBase(ctx context.Context, materials []model.ExtractedMaterial, items []model.SupplierItem, workflowID string) []model.MatchRecord
	UsesKnowledgeBase() bool
}

// StatsSource reports knowledge base statistics. It never fails.
type StatsSource interface {
	ProcessingStats(ctx context.Context, workflowID string) model.ProcessingStats
}

// Observer records stage timings and failures.
type Observer interface {
	ObserveStage(stage model.Stage, d time.Duration)
	ObserveStageFailure(stage model.Stage)
}

// Input names the two documents of a workflow.
type Input struct {
	WorkflowID      string
	QADocumentPath  string
	SupplierBOMPath string
}

// Pipeline orchestrates one workflow at a time per Run call.
type Pipeline struct {
	cfg        config.PipelineConfig
	translator Translator
	extractor  Extractor
	bom        BOMParser
	matcher    Matcher
	stats      StatsSource
	observer   Observer
	log        *zap.Logger
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStats sets the knowledge base stats source.
func WithStats(s StatsSource) Option {
	return func(p *Pipeline) { p.stats = s }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a Pipeline.
func New(cfg config.PipelineConfig, tr Translator, ex Extractor, bom BOMParser, m Matcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		translator: tr,
		extractor:  ex,
		bom:        bom,
		matcher:    m,
		observer:   nopObserver{},
		log:        zap.L(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) progressTimeout() time.Duration {
	if p.cfg.ProgressTimeoutMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(p.cfg.ProgressTimeoutMS) * time.Millisecond
}

// Run executes the workflow. A stage that fails or yields nothing aborts
// the run with a *StageFailure after reporting stage "error" to progress.
func (p *Pipeline) Run(ctx context.Context, in Input, progress ProgressFunc) (*model.WorkflowResult, error) {
	wf := in.WorkflowID
	log := p.log.With(zap.String("workflow_id", wf))
	log.Info("pipeline: starting workflow",
		zap.String("qa_document", in.QADocumentPath),
		zap.String("supplier_bom", in.SupplierBOMPath),
	)

	rep := newProgressReporter(ctx, progress, wf, p.progressTimeout(), p.now, log)
	defer rep.close()

	fail := func(stage model.Stage, err error) error {
		p.observer.ObserveStageFailure(stage)
		log.Error("pipeline: stage failed", zap.String("stage", string(stage)), zap.Error(err))
		rep.report(model.StageError, 0, "Processing failed: "+err.Error())
		return &StageFailure{Stage: stage, Err: err}
	}
	timed := func(stage model.Stage, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "cancelled before stage")
		}
		start := time.Now()
		err := fn()
		p.observer.ObserveStage(stage, time.Since(start))
		log.Info("pipeline: stage complete", zap.String("stage", string(stage)), zap.Duration("duration", time.Since(start)), zap.Bool("ok", err == nil))
		return err
	}

	// Translation.
	rep.report(model.StageTranslation, 5, "Translating QA document")
	var tr *model.TranslationResult
	err := timed(model.StageTranslation, func() error {
		var err error
		tr, err = p.translator.Process(ctx, in.QADocumentPath, p.cfg.SourceLanguage, p.cfg.TargetLanguage)
		if tr != nil {
			p.saveStageResult(wf, model.StageTranslation, tr)
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(tr.TranslatedContent) == "" {
			return eris.New("no translated content")
		}
		return nil
	})
	if err != nil {
		return nil, fail(model.StageTranslation, err)
	}
	rep.report(model.StageTranslation, 30, "Translation completed")

	// Extraction.
	rep.report(model.StageExtraction, 35, "Extracting materials with QA classification")
	var ex *model.ExtractionResult
	err = timed(model.StageExtraction, func() error {
		var err error
		ex, err = p.extractor.Extract(ctx, tr.TranslatedContent)
		if ex != nil {
			p.saveStageResult(wf, model.StageExtraction, ex)
		}
		if err != nil {
			return err
		}
		if len(ex.Materials) == 0 {
			return eris.New("no materials extracted")
		}
		return nil
	})
	if err != nil {
		return nil, fail(model.StageExtraction, err)
	}
	materials := ex.Materials
	rep.report(model.StageExtraction, 60, fmt.Sprintf("Extracted %d materials", len(materials)))

	// Supplier BOM.
	rep.report(model.StageSupplierBOM, 65, "Parsing supplier BOM")
	var bom *model.SupplierBOMResult
	err = timed(model.StageSupplierBOM, func() error {
		var err error
		bom, err = p.bom.Parse(ctx, in.SupplierBOMPath)
		if bom != nil {
			p.saveStageResult(wf, model.StageSupplierBOM, bom)
		}
		if err != nil {
			return err
		}
		if len(bom.Items) == 0 {
			return eris.New("no supplier items parsed")
		}
		return nil
	})
	if err != nil {
		return nil, fail(model.StageSupplierBOM, err)
	}
	items := bom.Items
	rep.report(model.StageSupplierBOM, 80, fmt.Sprintf("Processed %d supplier BOM items", len(items)))

	// Comparison.
	msg := "Matching materials against supplier items"
	if p.matcher.UsesKnowledgeBase() {
		msg = "Matching materials using knowledge base"
	}
	rep.report(model.StageComparison, 85, msg)
	var matches []model.MatchRecord
	err = timed(model.StageComparison, func() error {
		matches = p.matcher.MatchItemsWithKnowledgeBase(ctx, materials, items, wf)
		if len(matches) != len(materials) {
			return eris.Errorf("matcher returned %d records for %d materials", len(matches), len(materials))
		}
		return nil
	})
	if err != nil {
		return nil, fail(model.StageComparison, err)
	}
	rep.report(model.StageComparison, 95, "Matching completed")

	res := &model.WorkflowResult{
		WorkflowID:              wf,
		Matches:                 matches,
		Summary:                 summary.BuildWorkflowSummary(materials, items, matches, p.matcher.UsesKnowledgeBase(), p.now().UTC()),
		QAClassificationSummary: summary.Summarize(matches),
	}
	if p.stats != nil {
		res.KnowledgeBaseStats = p.stats.ProcessingStats(ctx, wf)
	}
	p.saveStageResult(wf, model.StageFinal, res)
	p.writeReport(res)

	rep.report(model.StageCompleted, 100, "Processing completed successfully")
	log.Info("pipeline: workflow complete",
		zap.Int("materials", res.Summary.TotalMaterials),
		zap.Int("supplier_items", res.Summary.TotalSupplierItems),
		zap.Int("successful_matches", res.Summary.SuccessfulMatches),
		zap.Int("knowledge_base_matches", res.Summary.KnowledgeBaseMatches),
	)
	return res, nil
}

// ReportPath returns where the XLSX report of a workflow is written.
func ReportPath(resultsDir, workflowID string) string {
	return filepath.Join(resultsDir, workflowID, "report.xlsx")
}

func (p *Pipeline) writeReport(res *model.WorkflowResult) {
	if !p.cfg.Report || p.cfg.ResultsDir == "" {
		return
	}
	path := ReportPath(p.cfg.ResultsDir, res.WorkflowID)
	if err := report.WriteXLSX(path, res); err != nil {
		p.log.Warn("pipeline: write report failed", zap.String("path", path), zap.Error(err))
	}
}

type nopObserver struct{}

func (nopObserver) ObserveStage(model.Stage, time.Duration) {}
func (nopObserver) ObserveStageFailure(model.Stage)         {}
