package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/bom-matcher/internal/config"
	"github.com/sells-group/bom-matcher/internal/knowledge"
	"github.com/sells-group/bom-matcher/internal/matcher"
	"github.com/sells-group/bom-matcher/internal/model"
	"github.com/sells-group/bom-matcher/internal/scorer"
)

var fixedNow = time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

type fixture struct {
	tr  *mockTranslator
	ex  *mockExtractor
	bom *mockBOMParser
	kb  *knowledge.KnowledgeBase
	obs *stageObserver
	cfg config.PipelineConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kb := knowledge.New(knowledge.NewMemory(), zap.NewNop())
	return &fixture{
		tr:  &mockTranslator{},
		ex:  &mockExtractor{},
		bom: &mockBOMParser{},
		kb:  kb,
		obs: &stageObserver{},
		cfg: config.PipelineConfig{
			ResultsDir:        t.TempDir(),
			SourceLanguage:    "ja",
			TargetLanguage:    "en",
			ProgressTimeoutMS: 500,
		},
	}
}

func (f *fixture) pipeline() *Pipeline {
	m := matcher.New(scorer.Default(), f.kb, matcher.WithLogger(zap.NewNop()), matcher.WithClock(func() time.Time { return fixedNow }))
	return New(f.cfg, f.tr, f.ex, f.bom, m,
		WithStats(f.kb),
		WithObserver(f.obs),
		WithLogger(zap.NewNop()),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func (f *fixture) happyStages() {
	f.tr.On("Process", mock.Anything, "qa.md", "ja", "en").Return(&model.TranslationResult{
		OriginalContent:   "ボルト M6",
		TranslatedContent: "Bolt M6, part B-100",
		Confidence:        0.95,
	}, nil)
	f.ex.On("Extract", mock.Anything, "Bolt M6, part B-100").Return(&model.ExtractionResult{
		Materials: []model.ExtractedMaterial{
			{MaterialName: "Bolt M6", PartNumber: "B-100", QAClassificationLabel: 2, QAConfidenceLevel: model.ConfidenceHigh},
			{MaterialName: "Hydraulic pump", PartNumber: "HP-9", QAClassificationLabel: 5, QAConfidenceLevel: model.ConfidenceMedium},
		},
		Confidence:     0.9,
		TotalExtracted: 2,
	}, nil)
	f.bom.On("Parse", mock.Anything, "bom.csv").Return(&model.SupplierBOMResult{
		Items: []model.SupplierItem{
			{ItemName: "Bolt M6x20", PartNumber: "B-100", Quantity: 100},
			{ItemName: "Nut M6", PartNumber: "N-50", Quantity: 200},
		},
		SourceFile: "bom.csv",
		RowsRead:   2,
	}, nil)
}

var happyInput = Input{WorkflowID: "wf-1", QADocumentPath: "qa.md", SupplierBOMPath: "bom.csv"}

func TestRun_HappyPath(t *testing.T) {
	f := newFixture(t)
	f.happyStages()
	progress := &progressLog{}

	res, err := f.pipeline().Run(context.Background(), happyInput, progress.callback)
	require.NoError(t, err)

	require.Len(t, res.Matches, 2)
	bolt := res.Matches[0]
	require.NotNil(t, bolt.SupplierItem)
	assert.Equal(t, "Bolt M6x20", bolt.SupplierItem.ItemName)
	assert.GreaterOrEqual(t, bolt.ConfidenceScore, 0.8)
	assert.Nil(t, res.Matches[1].SupplierItem, "pump has no supplier counterpart")

	assert.Equal(t, "wf-1", res.WorkflowID)
	assert.Equal(t, 2, res.Summary.TotalMaterials)
	assert.Equal(t, 2, res.Summary.TotalSupplierItems)
	assert.Equal(t, 1, res.Summary.SuccessfulMatches)
	assert.Equal(t, 1, res.Summary.Unmatched)
	assert.True(t, res.Summary.EnhancedMatching)
	assert.Equal(t, fixedNow, res.Summary.ProcessingDate)
	assert.Equal(t, 1, res.KnowledgeBaseStats.TotalEntries)
	assert.Equal(t, 1, res.KnowledgeBaseStats.EntriesThisWorkflow)
	assert.Equal(t, map[int]int{2: 1, 5: 1}, res.QAClassificationSummary.ClassificationCounts)

	assert.Equal(t, []float64{5, 30, 35, 60, 65, 80, 85, 95, 100}, progress.progress())
	stages := progress.stages()
	assert.Equal(t, model.StageTranslation, stages[0])
	assert.Equal(t, model.StageCompleted, stages[len(stages)-1])

	assert.Equal(t, []model.Stage{model.StageTranslation, model.StageExtraction, model.StageSupplierBOM, model.StageComparison}, f.obs.observed)
	assert.Empty(t, f.obs.failed)
}

func TestRun_WritesStageArtifacts(t *testing.T) {
	f := newFixture(t)
	f.cfg.Report = true
	f.happyStages()

	_, err := f.pipeline().Run(context.Background(), happyInput, nil)
	require.NoError(t, err)

	for _, stage := range []model.Stage{model.StageTranslation, model.StageExtraction, model.StageSupplierBOM, model.StageFinal} {
		path := StageResultPath(f.cfg.ResultsDir, "wf-1", stage)
		assert.FileExists(t, path)
	}
	assert.FileExists(t, ReportPath(f.cfg.ResultsDir, "wf-1"))

	data, err := os.ReadFile(StageResultPath(f.cfg.ResultsDir, "wf-1", model.StageFinal))
	require.NoError(t, err)
	var final model.WorkflowResult
	require.NoError(t, json.Unmarshal(data, &final))
	assert.Equal(t, "wf-1", final.WorkflowID)
	assert.Len(t, final.Matches, 2)

	data, err = os.ReadFile(StageResultPath(f.cfg.ResultsDir, "wf-1", model.StageTranslation))
	require.NoError(t, err)
	assert.Contains(t, string(data), "ボルト M6", "non-ASCII text is written as-is")
}

func TestRun_ArtifactFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	f.cfg.ResultsDir = blocker
	f.happyStages()

	res, err := f.pipeline().Run(context.Background(), happyInput, nil)
	require.NoError(t, err)
	assert.Len(t, res.Matches, 2)
}

func TestRun_SecondRunUsesKnowledgeBase(t *testing.T) {
	f := newFixture(t)
	f.happyStages()
	p := f.pipeline()

	_, err := p.Run(context.Background(), happyInput, nil)
	require.NoError(t, err)

	second := happyInput
	second.WorkflowID = "wf-2"
	res, err := p.Run(context.Background(), second, nil)
	require.NoError(t, err)

	assert.True(t, res.Matches[0].HasPreviousMatch)
	assert.Equal(t, model.MatchSourceKnowledgeBase, res.Matches[0].MatchSource)
	assert.Equal(t, 1, res.Summary.KnowledgeBaseMatches)
	assert.Equal(t, 1, res.KnowledgeBaseStats.TotalEntries, "re-learning the same fact does not add entries")
}

func TestRun_StageFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		stage model.Stage
	}{
		{
			name: "translation error",
			setup: func(f *fixture) {
				f.tr.On("Process", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("unreadable"))
			},
			stage: model.StageTranslation,
		},
		{
			name: "empty translation",
			setup: func(f *fixture) {
				f.tr.On("Process", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(&model.TranslationResult{TranslatedContent: "  "}, nil)
			},
			stage: model.StageTranslation,
		},
		{
			name: "no materials",
			setup: func(f *fixture) {
				f.tr.On("Process", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(&model.TranslationResult{TranslatedContent: "text"}, nil)
				f.ex.On("Extract", mock.Anything, "text").Return(&model.ExtractionResult{}, nil)
			},
			stage: model.StageExtraction,
		},
		{
			name: "bom parse error",
			setup: func(f *fixture) {
				f.tr.On("Process", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(&model.TranslationResult{TranslatedContent: "text"}, nil)
				f.ex.On("Extract", mock.Anything, "text").Return(&model.ExtractionResult{Materials: []model.ExtractedMaterial{{MaterialName: "Bolt"}}}, nil)
				f.bom.On("Parse", mock.Anything, mock.Anything).Return(nil, errors.New("bad file"))
			},
			stage: model.StageSupplierBOM,
		},
		{
			name: "no supplier items",
			setup: func(f *fixture) {
				f.tr.On("Process", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(&model.TranslationResult{TranslatedContent: "text"}, nil)
				f.ex.On("Extract", mock.Anything, "text").Return(&model.ExtractionResult{Materials: []model.ExtractedMaterial{{MaterialName: "Bolt"}}}, nil)
				f.bom.On("Parse", mock.Anything, mock.Anything).Return(&model.SupplierBOMResult{}, nil)
			},
			stage: model.StageSupplierBOM,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)
			progress := &progressLog{}

			res, err := f.pipeline().Run(context.Background(), happyInput, progress.callback)
			require.Error(t, err)
			assert.Nil(t, res)

			var sf *StageFailure
			require.ErrorAs(t, err, &sf)
			assert.Equal(t, tt.stage, sf.Stage)
			stage, ok := FailedStage(err)
			assert.True(t, ok)
			assert.Equal(t, tt.stage, stage)

			stages := progress.stages()
			require.NotEmpty(t, stages)
			assert.Equal(t, model.StageError, stages[len(stages)-1])
			assert.Equal(t, []model.Stage{tt.stage}, f.obs.failed)
		})
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline().Run(ctx, happyInput, nil)
	stage, ok := FailedStage(err)
	require.True(t, ok)
	assert.Equal(t, model.StageTranslation, stage)
	assert.ErrorIs(t, err, context.Canceled)
	f.tr.AssertNotCalled(t, "Process", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_FailingProgressCallbackDoesNotAbort(t *testing.T) {
	f := newFixture(t)
	f.happyStages()

	res, err := f.pipeline().Run(context.Background(), happyInput, func(context.Context, model.ProgressUpdate) error {
		return errors.New("client disconnected")
	})
	require.NoError(t, err)
	assert.Len(t, res.Matches, 2)
}

func TestRun_SlowProgressCallbackDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	f.cfg.ProgressTimeoutMS = 20
	f.happyStages()

	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	res, err := f.pipeline().Run(context.Background(), happyInput, func(context.Context, model.ProgressUpdate) error {
		<-release
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, res.Matches, 2)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRun_PanickingProgressCallback(t *testing.T) {
	f := newFixture(t)
	f.happyStages()

	assert.NotPanics(t, func() {
		_, err := f.pipeline().Run(context.Background(), happyInput, func(context.Context, model.ProgressUpdate) error {
			panic("boom")
		})
		assert.NoError(t, err)
	})
}

func TestFormatReport(t *testing.T) {
	f := newFixture(t)
	f.happyStages()
	res, err := f.pipeline().Run(context.Background(), happyInput, nil)
	require.NoError(t, err)

	out := FormatReport(res)
	assert.Contains(t, out, "# Matching Report: wf-1")
	assert.Contains(t, out, "- Successful matches: 1")
	assert.Contains(t, out, "- Bolt M6 -> Bolt M6x20 [B-100]")
	assert.Contains(t, out, "- Hydraulic pump -> (unmatched)")
	assert.Contains(t, out, "- label 2: 1")
}

func TestStageFailure_Error(t *testing.T) {
	err := &StageFailure{Stage: model.StageExtraction, Err: errors.New("boom")}
	assert.Equal(t, "pipeline: stage extraction failed: boom", err.Error())
	_, ok := FailedStage(errors.New("other"))
	assert.False(t, ok)
}
