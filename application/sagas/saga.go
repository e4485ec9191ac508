package sagas

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Step is a single forward action in a saga, optionally paired with a
// compensation that undoes it if a later step fails.
type Step struct {
	Name       string
	Execute    func(ctx context.Context, data interface{}) (interface{}, error)
	Compensate func(ctx context.Context, data interface{}) error
	MaxRetries int
	RetryDelay time.Duration
}

// State represents the current state of a saga execution
type State string

const (
	StatePending      State = "PENDING"
	StateRunning      State = "RUNNING"
	StateCompleted    State = "COMPLETED"
	StateFailed       State = "FAILED"
	StateCompensating State = "COMPENSATING"
	StateCompensated  State = "COMPENSATED"
)

// Saga orchestrates a series of steps with compensation logic. Compensations
// run in reverse order of registration; a failing compensation is logged and
// the remaining compensations still run.
type Saga struct {
	id            string
	name          string
	steps         []Step
	compensations []func(ctx context.Context) error
	state         State
	logger        *zap.Logger
}

// New creates a saga with the given name
func New(name string, logger *zap.Logger) *Saga {
	return &Saga{
		id:     uuid.New().String(),
		name:   name,
		state:  StatePending,
		logger: logger,
	}
}

// AddStep appends a step to the saga
func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Execute runs the saga. On step failure the registered compensations run in
// reverse order and the originating step error is returned.
func (s *Saga) Execute(ctx context.Context, initialData interface{}) (interface{}, error) {
	s.state = StateRunning
	s.logger.Debug("starting saga",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
		zap.Int("total_steps", len(s.steps)),
	)

	data := initialData

	for i, step := range s.steps {
		result, err := s.executeStepWithRetry(ctx, step, data)
		if err != nil {
			s.state = StateFailed
			s.logger.Error("saga step failed",
				zap.String("saga_id", s.id),
				zap.String("saga_name", s.name),
				zap.String("step", step.Name),
				zap.Int("step_number", i+1),
				zap.Error(err),
			)

			s.compensate(ctx)
			s.state = StateCompensated
			return nil, fmt.Errorf("saga %s failed at step %s: %w", s.name, step.Name, err)
		}

		data = result

		if step.Compensate != nil {
			stepData := data
			compensate := step.Compensate
			s.compensations = append(s.compensations, func(ctx context.Context) error {
				return compensate(ctx, stepData)
			})
		}
	}

	s.state = StateCompleted
	s.logger.Debug("saga completed",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
	)

	return data, nil
}

func (s *Saga) executeStepWithRetry(ctx context.Context, step Step, data interface{}) (interface{}, error) {
	attempts := step.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	delay := step.RetryDelay
	if delay == 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			s.logger.Warn("retrying saga step",
				zap.String("saga_id", s.id),
				zap.String("step", step.Name),
				zap.Int("attempt", attempt+1),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := step.Execute(ctx, data)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	if attempts > 1 {
		return nil, fmt.Errorf("step %s failed after %d attempts: %w", step.Name, attempts, lastErr)
	}
	return nil, lastErr
}

// compensate runs compensations LIFO. Compensation errors are logged, never
// propagated.
func (s *Saga) compensate(ctx context.Context) {
	s.state = StateCompensating
	s.logger.Info("running saga compensations",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
		zap.Int("count", len(s.compensations)),
	)

	for i := len(s.compensations) - 1; i >= 0; i-- {
		if err := s.compensations[i](ctx); err != nil {
			s.logger.Warn("saga compensation failed",
				zap.String("saga_id", s.id),
				zap.String("saga_name", s.name),
				zap.Int("compensation", i),
				zap.Error(err),
			)
		}
	}
}

// GetState returns the current state of the saga
func (s *Saga) GetState() State {
	return s.state
}

// GetID returns the saga ID
func (s *Saga) GetID() string {
	return s.id
}

// Builder provides a fluent interface for assembling sagas
type Builder struct {
	saga *Saga
}

// NewBuilder creates a saga builder
func NewBuilder(name string, logger *zap.Logger) *Builder {
	return &Builder{saga: New(name, logger)}
}

// WithStep adds a plain forward step
func (b *Builder) WithStep(name string, execute func(context.Context, interface{}) (interface{}, error)) *Builder {
	b.saga.AddStep(Step{Name: name, Execute: execute})
	return b
}

// WithCompensableStep adds a forward step paired with its undo
func (b *Builder) WithCompensableStep(
	name string,
	execute func(context.Context, interface{}) (interface{}, error),
	compensate func(context.Context, interface{}) error,
) *Builder {
	b.saga.AddStep(Step{Name: name, Execute: execute, Compensate: compensate})
	return b
}

// WithRetryableStep adds a forward step retried on failure
func (b *Builder) WithRetryableStep(
	name string,
	execute func(context.Context, interface{}) (interface{}, error),
	maxRetries int,
	retryDelay time.Duration,
) *Builder {
	b.saga.AddStep(Step{Name: name, Execute: execute, MaxRetries: maxRetries, RetryDelay: retryDelay})
	return b
}

// Build returns the assembled saga
func (b *Builder) Build() *Saga {
	return b.saga
}
