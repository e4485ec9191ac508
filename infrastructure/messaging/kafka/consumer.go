package kafka

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"catalog/infrastructure/messaging"
	pkgerrors "catalog/pkg/errors"
	"catalog/pkg/observability"
)

// Consumer runs the at-least-once poll loop: deserialize, reconstitute
// metadata from headers, dispatch, commit on success. Handler failures go
// to the dead-letter subsystem; the offset is committed once the event is
// disposed of (retried successfully, parked, or dropped) and stays
// uncommitted only when the dead-letter write itself fails, so the broker
// redelivers and parking gets another chance. Per-partition order is
// preserved; commits are monotonic because processing stops at the first
// undisposed record of a partition batch.
type Consumer struct {
	cfg        ConsumerConfig
	dispatcher *messaging.Dispatcher
	dlq        *DLQ
	logger     *zap.Logger
	metrics    *observability.Metrics

	client    *kgo.Client
	committer offsetCommitter
	cancel    context.CancelFunc
	done      chan struct{}
	once      sync.Once
}

// offsetCommitter is the slice of the kafka client the record pipeline
// commits through
type offsetCommitter interface {
	CommitRecords(ctx context.Context, records ...*kgo.Record) error
}

// NewConsumer creates a consumer bound to a dispatcher and a dead-letter
// subsystem
func NewConsumer(cfg ConsumerConfig, dispatcher *messaging.Dispatcher, dlq *DLQ, logger *zap.Logger, metrics *observability.Metrics) *Consumer {
	return &Consumer{
		cfg:        cfg,
		dispatcher: dispatcher,
		dlq:        dlq,
		logger:     logger,
		metrics:    metrics,
		done:       make(chan struct{}),
	}
}

// Start subscribes to the topics and launches the poll loop in the
// background
func (c *Consumer) Start(ctx context.Context, topics []string) error {
	if len(topics) == 0 {
		return pkgerrors.NewInvalid("at least one topic is required")
	}

	opts, err := consumerOpts(c.cfg, topics)
	if err != nil {
		return err
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return pkgerrors.NewUnavailable("creating kafka consumer", err)
	}
	c.client = client
	c.committer = client

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.logger.Info("starting consumer",
		zap.Strings("topics", topics),
		zap.String("group", c.cfg.GroupID),
	)

	go c.pollLoop(loopCtx)
	return nil
}

// Stop signals cancellation, waits for the poll loop to drain and closes
// the client
func (c *Consumer) Stop() {
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
			<-c.done
		}
		if c.client != nil {
			c.client.Close()
		}
		c.logger.Info("consumer stopped", zap.String("group", c.cfg.GroupID))
	})
}

func (c *Consumer) pollLoop(ctx context.Context) {
	defer close(c.done)

	for {
		fetches := c.client.PollRecords(ctx, c.cfg.MaxPollRecords)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}

		for _, fetchErr := range fetches.Errors() {
			c.logger.Error("fetch error",
				zap.String("topic", fetchErr.Topic),
				zap.Int32("partition", fetchErr.Partition),
				zap.Error(fetchErr.Err),
			)
		}

		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			for _, record := range p.Records {
				if ctx.Err() != nil {
					return
				}
				if !c.processRecord(ctx, record) {
					// Leave the failed record and everything after it
					// uncommitted so redelivery starts there.
					return
				}
			}
		})
	}
}

// processRecord handles one record; the return value reports whether the
// partition batch may continue
func (c *Consumer) processRecord(ctx context.Context, record *kgo.Record) bool {
	env, err := messaging.Deserialize(record.Value)
	if err != nil {
		// A malformed envelope will never deserialize on redelivery
		// either; park it straight away and move on.
		c.logger.Error("malformed envelope",
			zap.String("topic", record.Topic),
			zap.Int32("partition", record.Partition),
			zap.Int64("offset", record.Offset),
			zap.Error(err),
		)
		c.count("unknown", "malformed")
		if c.dlq.Park(ctx, c.deadLetter(record, err, 1)) == DispositionFailed {
			return false
		}
		c.commit(ctx, record)
		return true
	}

	reconstituteMetadata(env, record.Headers)

	err = c.dispatcher.Dispatch(ctx, env)
	switch {
	case err == nil:
		c.count(env.Event.Type, "ok")
		c.commit(ctx, record)
		return true

	case err == messaging.ErrNoHandler:
		c.logger.Warn("no handler registered, skipping",
			zap.String("event_type", env.Event.Type),
			zap.String("topic", record.Topic),
			zap.Int64("offset", record.Offset),
		)
		c.count(env.Event.Type, "skipped")
		c.commit(ctx, record)
		return true

	default:
		c.logger.Error("handler failed",
			zap.String("event_type", env.Event.Type),
			zap.String("topic", record.Topic),
			zap.Int32("partition", record.Partition),
			zap.Int64("offset", record.Offset),
			zap.Error(err),
		)
		c.count(env.Event.Type, "error")
		if c.dlq.HandleFailed(ctx, c.deadLetter(record, err, 1)) == DispositionFailed {
			return false
		}
		c.commit(ctx, record)
		return true
	}
}

func (c *Consumer) deadLetter(record *kgo.Record, err error, attemptCount int) *messaging.DeadLetterEvent {
	return &messaging.DeadLetterEvent{
		OriginalTopic:   record.Topic,
		Partition:       record.Partition,
		Offset:          record.Offset,
		Payload:         record.Value,
		ErrorMessage:    err.Error(),
		ExceptionDetail: fmt.Sprintf("%+v", err),
		ConsumerGroup:   c.cfg.GroupID,
		AttemptCount:    attemptCount,
		FirstFailureAt:  time.Now().UTC(),
	}
}

func (c *Consumer) commit(ctx context.Context, record *kgo.Record) {
	if err := c.committer.CommitRecords(ctx, record); err != nil {
		c.logger.Warn("commit failed",
			zap.String("topic", record.Topic),
			zap.Int32("partition", record.Partition),
			zap.Int64("offset", record.Offset),
			zap.Error(err),
		)
	}
}

func (c *Consumer) count(eventType, result string) {
	if c.metrics != nil {
		c.metrics.EventsConsumed.WithLabelValues(eventType, result).Inc()
	}
}

// reconstituteMetadata lifts wire headers back onto the envelope. Headers
// win over the serialized metadata for the identity fields; unknown headers
// are appended to the free-form header map.
func reconstituteMetadata(env *messaging.Envelope, headers []kgo.RecordHeader) {
	for _, h := range headers {
		value := string(h.Value)
		switch h.Key {
		case messaging.HeaderCorrelationID:
			env.Metadata.CorrelationID = value
		case messaging.HeaderCausationID:
			env.Metadata.CausationID = value
		case messaging.HeaderTenantID:
			env.Metadata.TenantID = value
		case messaging.HeaderUserID:
			env.Metadata.UserID = value
		case messaging.HeaderPriority:
			if priority, err := strconv.Atoi(value); err == nil {
				env.Metadata.Priority = priority
			}
		case messaging.HeaderSchemaVersion:
			env.SchemaVersion = value
		default:
			if env.Metadata.Headers == nil {
				env.Metadata.Headers = make(map[string]string)
			}
			env.Metadata.Headers[h.Key] = value
		}
	}
}
