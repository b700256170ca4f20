package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"orgmanager/internal/common"
	"orgmanager/internal/metrics"
)

func TestSaga_RunsStepsInOrder(t *testing.T) {
	var trace []string
	step := func(name string) func(context.Context) error {
		return func(context.Context) error {
			trace = append(trace, name)
			return nil
		}
	}

	err := newSaga("test", time.Second, zaptest.NewLogger(t), metrics.NewNoop()).
		step("a", step("a"), step("undo a")).
		step("b", step("b"), step("undo b")).
		execute(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, trace)
}

func TestSaga_CompensatesInReverse(t *testing.T) {
	var trace []string
	record := func(name string, err error) func(context.Context) error {
		return func(context.Context) error {
			trace = append(trace, name)
			return err
		}
	}
	boom := errors.New("boom")

	err := newSaga("test", time.Second, zaptest.NewLogger(t), metrics.NewNoop()).
		step("a", record("a", nil), record("undo a", nil)).
		step("b", record("b", nil), nil).
		step("c", record("c", nil), record("undo c", errors.New("undo failed"))).
		step("d", record("d", boom), record("undo d", nil)).
		execute(context.Background())

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b", "c", "d", "undo c", "undo a"}, trace)
}

func TestSaga_UndoOnFailureIncludesFailedStep(t *testing.T) {
	var undone bool
	err := newSaga("test", time.Second, zaptest.NewLogger(t), metrics.NewNoop()).
		stepUndoOnFailure("a",
			func(context.Context) error { return errors.New("half done") },
			func(context.Context) error { undone = true; return nil }).
		execute(context.Background())

	assert.Error(t, err)
	assert.True(t, undone)
}

func TestSaga_StepTimeoutIsUnavailable(t *testing.T) {
	var compensationCtxErr error
	err := newSaga("test", 10*time.Millisecond, zaptest.NewLogger(t), metrics.NewNoop()).
		step("a",
			func(context.Context) error { return nil },
			func(ctx context.Context) error { compensationCtxErr = ctx.Err(); return nil }).
		step("slow",
			func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			}, nil).
		execute(context.Background())

	assert.ErrorIs(t, err, common.ErrUnavailable)
	assert.NoError(t, compensationCtxErr, "compensation must get a fresh context")
}

func TestSaga_CountsCompensations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	_ = newSaga("create", time.Second, zaptest.NewLogger(t), m).
		step("a", func(context.Context) error { return nil }, func(context.Context) error { return nil }).
		step("b", func(context.Context) error { return errors.New("boom") }, nil).
		execute(context.Background())

	families, err := reg.Gather()
	assert.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "orgmanager_saga_compensations_total" {
			found = true
			assert.Equal(t, 1.0, f.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}
