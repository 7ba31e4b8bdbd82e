package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bom-matcher/internal/model"
)

// ProgressFunc receives progress updates. It runs off the pipeline
// goroutine and its context expires after the configured progress timeout.
type ProgressFunc func(ctx context.Context, update model.ProgressUpdate) error

const progressBuffer = 32

// progressReporter delivers updates in order on a dedicated goroutine.
// Sending never blocks the pipeline: updates are dropped when the buffer is
// full and a callback that outlives its timeout is abandoned.
type progressReporter struct {
	fn         ProgressFunc
	workflowID string
	timeout    time.Duration
	now        func() time.Time
	log        *zap.Logger
	updates    chan model.ProgressUpdate
	done       chan struct{}
}

func newProgressReporter(ctx context.Context, fn ProgressFunc, workflowID string, timeout time.Duration, now func() time.Time, log *zap.Logger) *progressReporter {
	r := &progressReporter{
		fn:         fn,
		workflowID: workflowID,
		timeout:    timeout,
		now:        now,
		log:        log,
	}
	if fn == nil {
		return r
	}
	r.updates = make(chan model.ProgressUpdate, progressBuffer)
	r.done = make(chan struct{})
	go r.loop(context.WithoutCancel(ctx))
	return r
}

func (r *progressReporter) report(stage model.Stage, progress float64, msg string) {
	if r.updates == nil {
		return
	}
	u := model.ProgressUpdate{
		WorkflowID: r.workflowID,
		Stage:      stage,
		Progress:   progress,
		Message:    msg,
		Timestamp:  r.now().UTC(),
	}
	select {
	case r.updates <- u:
	default:
		r.log.Warn("pipeline: progress update dropped", zap.String("stage", string(stage)), zap.Float64("progress", progress))
	}
}

// close stops accepting updates and waits, at most one timeout, for queued
// updates to be delivered.
func (r *progressReporter) close() {
	if r.updates == nil {
		return
	}
	close(r.updates)
	timer := time.NewTimer(r.timeout)
	defer timer.Stop()
	select {
	case <-r.done:
	case <-timer.C:
		r.log.Warn("pipeline: progress delivery still pending at workflow end")
	}
}

func (r *progressReporter) loop(ctx context.Context) {
	defer close(r.done)
	for u := range r.updates {
		r.deliver(ctx, u)
	}
}

func (r *progressReporter) deliver(ctx context.Context, u model.ProgressUpdate) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				errc <- eris.Errorf("progress callback panicked: %v", p)
			}
		}()
		errc <- r.fn(ctx, u)
	}()

	select {
	case err := <-errc:
		if err != nil {
			r.log.Warn("pipeline: progress callback failed", zap.String("stage", string(u.Stage)), zap.Error(err))
		}
	case <-ctx.Done():
		r.log.Warn("pipeline: progress callback timed out", zap.String("stage", string(u.Stage)), zap.Duration("timeout", r.timeout))
	}
}
