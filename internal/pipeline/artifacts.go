package pipeline

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bom-matcher/internal/model"
)

// StageResultPath returns where the artifact of a stage is written.
func StageResultPath(resultsDir, workflowID string, stage model.Stage) string {
	return filepath.Join(resultsDir, workflowID, string(stage)+"_result.json")
}

// saveStageResult writes v as indented JSON. Failures are logged and never
// returned to the workflow.
func (p *Pipeline) saveStageResult(workflowID string, stage model.Stage, v any) {
	if p.cfg.ResultsDir == "" {
		return
	}
	path := StageResultPath(p.cfg.ResultsDir, workflowID, stage)
	if err := writeJSON(path, v); err != nil {
		p.log.Warn("pipeline: save stage result failed",
			zap.String("workflow_id", workflowID),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
		return
	}
	p.log.Debug("pipeline: saved stage result", zap.String("stage", string(stage)), zap.String("path", path))
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "create results dir")
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return eris.Wrap(err, "write")
	}
	return nil
}
