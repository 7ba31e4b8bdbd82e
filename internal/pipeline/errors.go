package pipeline

import (
	"errors"
	"fmt"

	"github.com/sells-group/bom-matcher/internal/model"
)

// StageFailure reports that a stage produced no usable output. It aborts
// the workflow.
type StageFailure struct {
	Stage model.Stage
	Err   error
}

func (e *StageFailure) Error() string {
	return fmt.Sprintf("pipeline: stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageFailure) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage of the StageFailure in err's chain.
func FailedStage(err error) (model.Stage, bool) {
	var sf *StageFailure
	if errors.As(err, &sf) {
		return sf.Stage, true
	}
	return "", false
}
