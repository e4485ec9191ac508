package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"catalog/infrastructure/messaging"
	pkgerrors "catalog/pkg/errors"
	"catalog/pkg/observability"
)

// RetryFunc re-processes a failed event through the original handler path
type RetryFunc func(ctx context.Context, event *messaging.DeadLetterEvent) error

// Disposition reports how the dead-letter subsystem disposed of a failed
// event. Anything but DispositionFailed means the event needs no redelivery
// and its offset may be committed.
type Disposition int

const (
	// DispositionRetried means a retry attempt succeeded
	DispositionRetried Disposition = iota

	// DispositionParked means the event was written to the dead-letter topic
	DispositionParked

	// DispositionDropped means dead-letter handling is disabled and the
	// event was logged and discarded
	DispositionDropped

	// DispositionFailed means the event was not disposed of: the retry
	// budget is spent and the dead-letter write failed, or the context was
	// cancelled mid-retry. The offset must stay uncommitted so the broker
	// redelivers.
	DispositionFailed
)

// DLQ retries failed events on an exponential backoff schedule and parks
// exhausted ones on the dead-letter topic of the original topic. It keeps
// its own idempotent acks=all producer so parking does not contend with the
// main publish path.
type DLQ struct {
	cfg     DLQConfig
	client  *kgo.Client
	retry   RetryFunc
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewDLQ creates the dead-letter subsystem. producerCfg is used for the
// parking producer; idempotence and acks=all are forced regardless of the
// caller's settings.
func NewDLQ(cfg DLQConfig, producerCfg ProducerConfig, retry RetryFunc, logger *zap.Logger, metrics *observability.Metrics) (*DLQ, error) {
	d := &DLQ{
		cfg:     cfg,
		retry:   retry,
		logger:  logger,
		metrics: metrics,
	}

	if cfg.EnableDLQ {
		producerCfg.Acks = "all"
		producerCfg.EnableIdempotence = true
		producerCfg.ClientID = producerCfg.ClientID + "-dlq"

		opts, err := producerOpts(producerCfg)
		if err != nil {
			return nil, err
		}
		client, err := kgo.NewClient(opts...)
		if err != nil {
			return nil, pkgerrors.NewUnavailable("creating dead-letter producer", err)
		}
		d.client = client
	}

	return d, nil
}

// Close releases the parking producer
func (d *DLQ) Close() {
	if d.client != nil {
		d.client.Close()
	}
}

// HandleFailed retries the event until it succeeds or the retry budget is
// spent, then parks it. The returned disposition tells the consumer whether
// the event is fully disposed of and its offset may be committed.
func (d *DLQ) HandleFailed(ctx context.Context, event *messaging.DeadLetterEvent) Disposition {
	if !d.cfg.EnableDLQ {
		d.drop(event)
		return DispositionDropped
	}

	schedule := d.schedule()
	for event.AttemptCount < d.cfg.MaxRetries {
		delay := schedule.NextBackOff()
		d.logger.Info("retrying failed event",
			zap.String("topic", event.OriginalTopic),
			zap.Int64("offset", event.Offset),
			zap.Int("attempt", event.AttemptCount+1),
			zap.Duration("delay", delay),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return DispositionFailed
		}

		event.AttemptCount++
		err := d.retry(ctx, event)
		if err == nil {
			return DispositionRetried
		}
		event.ErrorMessage = err.Error()
		event.LastFailureAt = time.Now().UTC()
	}

	return d.park(ctx, event)
}

// Park sends the event straight to the dead-letter topic, skipping the
// retry schedule. Used for messages that can never succeed, such as
// malformed envelopes.
func (d *DLQ) Park(ctx context.Context, event *messaging.DeadLetterEvent) Disposition {
	if !d.cfg.EnableDLQ {
		d.drop(event)
		return DispositionDropped
	}
	return d.park(ctx, event)
}

func (d *DLQ) drop(event *messaging.DeadLetterEvent) {
	d.logger.Warn("dead-letter handling disabled, dropping failed event",
		zap.String("topic", event.OriginalTopic),
		zap.Int64("offset", event.Offset),
		zap.String("error", event.ErrorMessage),
	)
}

// schedule builds the deterministic backoff sequence
// min(initial * multiplier^n, max)
func (d *DLQ) schedule() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.InitialRetryDelay
	b.Multiplier = d.cfg.RetryBackoffMultiplier
	b.MaxInterval = d.cfg.MaxRetryDelay
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// park publishes the exhausted event to <originalTopic><suffix>
func (d *DLQ) park(ctx context.Context, event *messaging.DeadLetterEvent) Disposition {
	topic := event.OriginalTopic + d.cfg.TopicSuffix

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(event.OriginalTopic + "/" + strconv.FormatInt(event.Offset, 10)),
		Value: event.Payload,
		Headers: []kgo.RecordHeader{
			{Key: messaging.HeaderOriginalTopic, Value: []byte(event.OriginalTopic)},
			{Key: messaging.HeaderErrorMessage, Value: []byte(event.ErrorMessage)},
			{Key: messaging.HeaderAttemptCount, Value: []byte(strconv.Itoa(event.AttemptCount))},
			{Key: messaging.HeaderConsumerGroup, Value: []byte(event.ConsumerGroup)},
		},
	}

	if err := d.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		d.logger.Error("publishing to dead-letter topic failed",
			zap.String("topic", topic),
			zap.Int64("offset", event.Offset),
			zap.Error(err),
		)
		if d.metrics != nil {
			d.metrics.EventsPublished.WithLabelValues("dead-letter", "error").Inc()
		}
		return DispositionFailed
	}

	d.logger.Warn("event parked on dead-letter topic",
		zap.String("topic", topic),
		zap.String("original_topic", event.OriginalTopic),
		zap.Int64("offset", event.Offset),
		zap.Int("attempts", event.AttemptCount),
		zap.String("error", event.ErrorMessage),
	)
	if d.metrics != nil {
		d.metrics.DLQEmitted.WithLabelValues(topic).Inc()
	}
	return DispositionParked
}
