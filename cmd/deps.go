package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bom-matcher/internal/config"
	"github.com/sells-group/bom-matcher/internal/knowledge"
	"github.com/sells-group/bom-matcher/internal/matcher"
	"github.com/sells-group/bom-matcher/internal/metrics"
	"github.com/sells-group/bom-matcher/internal/scorer"
	"github.com/sells-group/bom-matcher/internal/stage"
	anthropicpkg "github.com/sells-group/bom-matcher/pkg/anthropic"
)

// openKnowledge opens the configured store. A store that cannot be opened
// is not fatal: the caller matches with fresh scores only.
func openKnowledge(ctx context.Context, c config.StoreConfig, disabled bool) *knowledge.KnowledgeBase {
	if disabled {
		return nil
	}
	st, err := knowledge.Open(ctx, c)
	if err != nil {
		zap.L().Warn("knowledge base unavailable, matching with fresh scores only",
			zap.String("driver", c.Driver),
			zap.Error(err),
		)
		return nil
	}
	return knowledge.New(st, zap.L())
}

// newMatcher builds a matcher. kb may be nil.
func newMatcher(c config.MatcherConfig, kb *knowledge.KnowledgeBase, collector *metrics.Collector) (*matcher.Matcher, error) {
	sc, err := scorer.New(c.Weights)
	if err != nil {
		return nil, eris.Wrap(err, "matcher weights")
	}
	// A nil *KnowledgeBase must not become a non-nil interface.
	var k matcher.Knowledge
	if kb != nil {
		k = kb
	}
	return matcher.New(sc, k,
		matcher.WithMinConfidence(c.MinConfidence),
		matcher.WithWorkers(c.Workers),
		matcher.WithLogger(zap.L()),
		matcher.WithObserver(collector),
	), nil
}

// newLLM returns nil when no API key is configured.
func newLLM(c config.AnthropicConfig, collector *metrics.Collector) *stage.LLM {
	if c.Key == "" {
		zap.L().Info("no anthropic key configured, stages run without LLM")
		return nil
	}
	return stage.NewLLM(anthropicpkg.NewClient(c.Key), c,
		stage.WithLLMObserver(collector),
		stage.WithLLMLogger(zap.L()),
	)
}

func flushMetrics(collector *metrics.Collector) {
	if err := collector.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
		zap.L().Warn("write metrics failed", zap.Error(err))
	}
}

// checkWorkflowID rejects IDs that would escape the results directory when
// used as a path element.
func checkWorkflowID(id string) error {
	if id == "" || id == "." || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return eris.Errorf("invalid workflow id %q", id)
	}
	return nil
}
