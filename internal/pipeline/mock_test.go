package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/bom-matcher/internal/model"
)

// --- Stage Mocks ---

type mockTranslator struct {
	mock.Mock
}

func (m *mockTranslator) Process(ctx context.Context, path, src, tgt string) (*model.TranslationResult, error) {
	args := m.Called(ctx, path, src, tgt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TranslationResult), args.Error(1)
}

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, text string) (*model.ExtractionResult, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ExtractionResult), args.Error(1)
}

type mockBOMParser struct {
	mock.Mock
}

func (m *mockBOMParser) Parse(ctx context.Context, path string) (*model.SupplierBOMResult, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SupplierBOMResult), args.Error(1)
}

// --- Recorders ---

type progressLog struct {
	mu      sync.Mutex
	updates []model.ProgressUpdate
}

func (p *progressLog) callback(_ context.Context, u model.ProgressUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, u)
	return nil
}

func (p *progressLog) stages() []model.Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.Stage, len(p.updates))
	for i, u := range p.updates {
		out[i] = u.Stage
	}
	return out
}

func (p *progressLog) progress() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]float64, len(p.updates))
	for i, u := range p.updates {
		out[i] = u.Progress
	}
	return out
}

type stageObserver struct {
	mu       sync.Mutex
	observed []model.Stage
	failed   []model.Stage
}

func (o *stageObserver) ObserveStage(s model.Stage, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observed = append(o.observed, s)
}

func (o *stageObserver) ObserveStageFailure(s model.Stage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed = append(o.failed, s)
}
