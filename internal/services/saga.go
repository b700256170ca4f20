package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"orgmanager/internal/common"
	"orgmanager/internal/metrics"
)

type sagaStep struct {
	name       string
	run        func(ctx context.Context) error
	compensate func(ctx context.Context) error
	// undoOnFailure also compensates the step when its own run fails,
	// for steps that can leave partial state behind.
	undoOnFailure bool
}

// saga runs storage steps in order. When a step fails, the compensations of
// the completed steps run in reverse order and the step's error is
// returned. Each step and each compensation gets its own timeout.
type saga struct {
	operation string
	timeout   time.Duration
	log       *zap.Logger
	metrics   *metrics.Metrics
	steps     []sagaStep
}

func newSaga(operation string, timeout time.Duration, log *zap.Logger, m *metrics.Metrics) *saga {
	return &saga{operation: operation, timeout: timeout, log: log, metrics: m}
}

func (s *saga) step(name string, run, compensate func(ctx context.Context) error) *saga {
	s.steps = append(s.steps, sagaStep{name: name, run: run, compensate: compensate})
	return s
}

func (s *saga) stepUndoOnFailure(name string, run, compensate func(ctx context.Context) error) *saga {
	s.steps = append(s.steps, sagaStep{name: name, run: run, compensate: compensate, undoOnFailure: true})
	return s
}

func (s *saga) execute(ctx context.Context) error {
	completed := make([]sagaStep, 0, len(s.steps))

	for _, st := range s.steps {
		stepCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := common.StorageError(st.run(stepCtx))
		cancel()

		if err != nil {
			if st.undoOnFailure {
				completed = append(completed, st)
			}
			s.log.Warn("saga step failed",
				zap.String("operation", s.operation),
				zap.String("step", st.name),
				zap.Error(err))
			s.rollback(completed)
			return err
		}
		completed = append(completed, st)
	}
	return nil
}

// rollback uses a fresh context: the caller's may be the one that expired.
func (s *saga) rollback(completed []sagaStep) {
	var errs error
	ran := 0
	for i := len(completed) - 1; i >= 0; i-- {
		st := completed[i]
		if st.compensate == nil {
			continue
		}
		ran++

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := st.compensate(ctx)
		cancel()

		s.metrics.RecordCompensation(s.operation)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("undo %s: %w", st.name, err))
		}
	}

	if errs != nil {
		s.log.Error("saga compensation incomplete, reconciliation required",
			zap.String("operation", s.operation),
			zap.Errors("errors", multierr.Errors(errs)))
		return
	}
	if ran > 0 {
		s.log.Info("saga compensated", zap.String("operation", s.operation), zap.Int("compensations", ran))
	}
}
