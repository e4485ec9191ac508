package kafka

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"catalog/infrastructure/messaging"
	pkgerrors "catalog/pkg/errors"
	"catalog/pkg/observability"
)

// maxBatchConcurrency bounds the parallel produce calls of PublishBatch
const maxBatchConcurrency = 16

// flushTimeout bounds the final flush during Close
const flushTimeout = 10 * time.Second

// Producer writes envelopes to the broker. One long-lived producer is
// shared by all publishers; with idempotence and acks=all each message is
// written once per partition within the producer session.
type Producer struct {
	client    *kgo.Client
	source    string
	logger    *zap.Logger
	metrics   *observability.Metrics
	closeOnce sync.Once
}

// NewProducer creates a connected producer. source stamps the CloudEvents
// source attribute of everything published through it.
func NewProducer(cfg ProducerConfig, source string, logger *zap.Logger, metrics *observability.Metrics) (*Producer, error) {
	opts, err := producerOpts(cfg)
	if err != nil {
		return nil, err
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, pkgerrors.NewUnavailable("creating kafka producer", err)
	}

	return &Producer{
		client:  client,
		source:  source,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Publish wraps data in an envelope and produces it synchronously. The
// returned id is the envelope's event id; the partition key defaults to it.
func (p *Producer) Publish(ctx context.Context, topic string, data interface{}, eventType string, opts ...messaging.Option) (string, error) {
	env, err := messaging.New(data, eventType, p.source, opts...)
	if err != nil {
		return "", err
	}
	if err := p.publishEnvelope(ctx, topic, env); err != nil {
		return "", err
	}
	return env.Event.ID, nil
}

// PublishEnvelope produces an already built envelope
func (p *Producer) PublishEnvelope(ctx context.Context, topic string, env *messaging.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	return p.publishEnvelope(ctx, topic, env)
}

func (p *Producer) publishEnvelope(ctx context.Context, topic string, env *messaging.Envelope) error {
	value, err := env.Serialize()
	if err != nil {
		return err
	}

	record := &kgo.Record{
		Topic:   topic,
		Key:     []byte(env.PartitionKey()),
		Value:   value,
		Headers: wireHeaders(env),
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		p.count(env.Event.Type, "error")
		return pkgerrors.NewPublish("producing to "+topic, err)
	}

	p.count(env.Event.Type, "ok")
	p.logger.Debug("published event",
		zap.String("topic", topic),
		zap.String("event_id", env.Event.ID),
		zap.String("event_type", env.Event.Type),
		zap.String("partition_key", env.PartitionKey()),
	)
	return nil
}

// BatchItem is one entry of a PublishBatch call
type BatchItem struct {
	Data      interface{}
	EventType string
	Opts      []messaging.Option
}

// PublishBatch fans out Publish calls concurrently. It returns the event
// ids of the items that succeeded; partial failure does not stop the rest.
func (p *Producer) PublishBatch(ctx context.Context, topic string, items []BatchItem) ([]string, error) {
	ids := make([]string, len(items))
	errs := make([]error, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxBatchConcurrency)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			id, err := p.Publish(ctx, topic, item.Data, item.EventType, item.Opts...)
			ids[i], errs[i] = id, err
			return nil
		})
	}
	_ = g.Wait()

	var succeeded []string
	var failed error
	for i := range items {
		if errs[i] != nil {
			p.logger.Warn("batch publish item failed",
				zap.String("topic", topic),
				zap.Int("item", i),
				zap.Error(errs[i]),
			)
			if failed == nil {
				failed = errs[i]
			}
			continue
		}
		succeeded = append(succeeded, ids[i])
	}

	if failed != nil {
		return succeeded, pkgerrors.Wrap(failed,
			"batch publish completed with failures ("+strconv.Itoa(len(succeeded))+"/"+strconv.Itoa(len(items))+" succeeded)")
	}
	return succeeded, nil
}

// Flush blocks until outstanding batches are acknowledged or the context
// expires
func (p *Producer) Flush(ctx context.Context) error {
	if err := p.client.Flush(ctx); err != nil {
		return pkgerrors.NewPublish("flushing producer", err)
	}
	return nil
}

// Close flushes and releases the client
func (p *Producer) Close() {
	p.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		_ = p.client.Flush(ctx)
		p.client.Close()
	})
}

func (p *Producer) count(eventType, result string) {
	if p.metrics != nil {
		p.metrics.EventsPublished.WithLabelValues(eventType, result).Inc()
	}
}

// wireHeaders lifts selected envelope metadata onto the wire, then appends
// the free-form headers
func wireHeaders(env *messaging.Envelope) []kgo.RecordHeader {
	headers := []kgo.RecordHeader{
		{Key: messaging.HeaderCorrelationID, Value: []byte(env.Metadata.CorrelationID)},
		{Key: messaging.HeaderPriority, Value: []byte(strconv.Itoa(env.Metadata.Priority))},
		{Key: messaging.HeaderSchemaVersion, Value: []byte(env.SchemaVersion)},
	}
	if env.Metadata.CausationID != "" {
		headers = append(headers, kgo.RecordHeader{Key: messaging.HeaderCausationID, Value: []byte(env.Metadata.CausationID)})
	}
	if env.Metadata.TenantID != "" {
		headers = append(headers, kgo.RecordHeader{Key: messaging.HeaderTenantID, Value: []byte(env.Metadata.TenantID)})
	}
	if env.Metadata.UserID != "" {
		headers = append(headers, kgo.RecordHeader{Key: messaging.HeaderUserID, Value: []byte(env.Metadata.UserID)})
	}
	for k, v := range env.Metadata.Headers {
		headers = append(headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return headers
}
