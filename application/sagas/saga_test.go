package sagas

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSagaExecutesStepsInOrderAndPipesData(t *testing.T) {
	saga := NewBuilder("pipeline", zaptest.NewLogger(t)).
		WithStep("double", func(_ context.Context, data interface{}) (interface{}, error) {
			return data.(int) * 2, nil
		}).
		WithStep("increment", func(_ context.Context, data interface{}) (interface{}, error) {
			return data.(int) + 1, nil
		}).
		Build()

	result, err := saga.Execute(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, 41, result)
	assert.Equal(t, StateCompleted, saga.GetState())
}

func TestSagaCompensatesInReverseOrder(t *testing.T) {
	var undone []string

	saga := NewBuilder("rollback", zaptest.NewLogger(t)).
		WithCompensableStep("first",
			func(_ context.Context, data interface{}) (interface{}, error) { return data, nil },
			func(_ context.Context, _ interface{}) error {
				undone = append(undone, "first")
				return nil
			}).
		WithCompensableStep("second",
			func(_ context.Context, data interface{}) (interface{}, error) { return data, nil },
			func(_ context.Context, _ interface{}) error {
				undone = append(undone, "second")
				return nil
			}).
		WithStep("boom", func(_ context.Context, _ interface{}) (interface{}, error) {
			return nil, errors.New("step exploded")
		}).
		Build()

	_, err := saga.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed at step boom")
	assert.Equal(t, []string{"second", "first"}, undone)
	assert.Equal(t, StateCompensated, saga.GetState())
}

func TestSagaCompensationFailureDoesNotStopOthers(t *testing.T) {
	var undone []string

	saga := NewBuilder("partial-rollback", zaptest.NewLogger(t)).
		WithCompensableStep("first",
			func(_ context.Context, data interface{}) (interface{}, error) { return data, nil },
			func(_ context.Context, _ interface{}) error {
				undone = append(undone, "first")
				return nil
			}).
		WithCompensableStep("second",
			func(_ context.Context, data interface{}) (interface{}, error) { return data, nil },
			func(_ context.Context, _ interface{}) error {
				return errors.New("undo failed")
			}).
		WithStep("boom", func(_ context.Context, _ interface{}) (interface{}, error) {
			return nil, errors.New("step exploded")
		}).
		Build()

	_, err := saga.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, []string{"first"}, undone)
	assert.Equal(t, StateCompensated, saga.GetState())
}

func TestSagaFailedStepCompensationDoesNotRun(t *testing.T) {
	compensated := false

	saga := NewBuilder("no-self-undo", zaptest.NewLogger(t)).
		WithCompensableStep("boom",
			func(_ context.Context, _ interface{}) (interface{}, error) {
				return nil, errors.New("never committed")
			},
			func(_ context.Context, _ interface{}) error {
				compensated = true
				return nil
			}).
		Build()

	_, err := saga.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.False(t, compensated, "a step that never succeeded must not be compensated")
}

func TestRetryableStepRetriesUntilSuccess(t *testing.T) {
	attempts := 0

	saga := NewBuilder("flaky", zaptest.NewLogger(t)).
		WithRetryableStep("eventually-ok",
			func(_ context.Context, _ interface{}) (interface{}, error) {
				attempts++
				if attempts < 3 {
					return nil, errors.New("transient")
				}
				return "done", nil
			}, 5, time.Millisecond).
		Build()

	result, err := saga.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, 3, attempts)
}

func TestRetryableStepExhaustsRetries(t *testing.T) {
	attempts := 0

	saga := NewBuilder("hopeless", zaptest.NewLogger(t)).
		WithRetryableStep("always-fails",
			func(_ context.Context, _ interface{}) (interface{}, error) {
				attempts++
				return nil, errors.New("permanent")
			}, 3, time.Millisecond).
		Build()

	_, err := saga.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "after 3 attempts")
	assert.Equal(t, 3, attempts)
}

func TestRetryableStepStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	saga := NewBuilder("cancelled", zaptest.NewLogger(t)).
		WithRetryableStep("slow",
			func(_ context.Context, _ interface{}) (interface{}, error) {
				attempts++
				cancel()
				return nil, errors.New("transient")
			}, 10, time.Minute).
		Build()

	_, err := saga.Execute(ctx, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
