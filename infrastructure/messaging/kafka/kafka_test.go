package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"catalog/infrastructure/messaging"
)

func TestReconstituteMetadataHeadersWin(t *testing.T) {
	env, err := messaging.New(map[string]string{"k": "v"}, "ResourceCreated", "catalog.core",
		messaging.WithCorrelationID("from-body"),
	)
	require.NoError(t, err)

	reconstituteMetadata(env, []kgo.RecordHeader{
		{Key: messaging.HeaderCorrelationID, Value: []byte("from-wire")},
		{Key: messaging.HeaderCausationID, Value: []byte("cause-9")},
		{Key: messaging.HeaderTenantID, Value: []byte("acme")},
		{Key: messaging.HeaderUserID, Value: []byte("u-1")},
		{Key: messaging.HeaderPriority, Value: []byte("8")},
		{Key: messaging.HeaderSchemaVersion, Value: []byte("1.1.0")},
		{Key: "x-region", Value: []byte("eu-west-1")},
	})

	assert.Equal(t, "from-wire", env.Metadata.CorrelationID)
	assert.Equal(t, "cause-9", env.Metadata.CausationID)
	assert.Equal(t, "acme", env.Metadata.TenantID)
	assert.Equal(t, "u-1", env.Metadata.UserID)
	assert.Equal(t, 8, env.Metadata.Priority)
	assert.Equal(t, "1.1.0", env.SchemaVersion)
	assert.Equal(t, "eu-west-1", env.Metadata.Headers["x-region"])
}

func TestReconstituteMetadataIgnoresBadPriority(t *testing.T) {
	env, err := messaging.New(nil, "ResourceCreated", "catalog.core")
	require.NoError(t, err)

	reconstituteMetadata(env, []kgo.RecordHeader{
		{Key: messaging.HeaderPriority, Value: []byte("not-a-number")},
	})
	assert.Equal(t, messaging.DefaultPriority, env.Metadata.Priority)
}

func TestDLQScheduleIsCappedExponential(t *testing.T) {
	d := &DLQ{cfg: DLQConfig{
		InitialRetryDelay:      time.Second,
		RetryBackoffMultiplier: 2.0,
		MaxRetryDelay:          60 * time.Second,
	}}

	schedule := d.schedule()
	want := []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 32 * time.Second, 60 * time.Second, 60 * time.Second,
	}
	for i, expected := range want {
		assert.Equal(t, expected, schedule.NextBackOff(), "delay %d", i)
	}
}

func TestHandleFailedRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	d := &DLQ{
		cfg: DLQConfig{
			EnableDLQ:              true,
			MaxRetries:             5,
			InitialRetryDelay:      time.Millisecond,
			RetryBackoffMultiplier: 2.0,
			MaxRetryDelay:          5 * time.Millisecond,
		},
		retry: func(ctx context.Context, event *messaging.DeadLetterEvent) error {
			attempts++
			if attempts < 3 {
				return errors.New("still failing")
			}
			return nil
		},
		logger: zap.NewNop(),
	}

	event := &messaging.DeadLetterEvent{
		OriginalTopic:  "catalog.resources",
		AttemptCount:   1,
		FirstFailureAt: time.Now().UTC(),
		ErrorMessage:   "boom",
	}
	disposition := d.HandleFailed(context.Background(), event)

	assert.Equal(t, DispositionRetried, disposition)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 4, event.AttemptCount)
	assert.False(t, event.LastFailureAt.IsZero())
}

func TestHandleFailedDisabledDropsEvent(t *testing.T) {
	retried := false
	d := &DLQ{
		cfg:    DLQConfig{EnableDLQ: false},
		retry:  func(context.Context, *messaging.DeadLetterEvent) error { retried = true; return nil },
		logger: zap.NewNop(),
	}

	disposition := d.HandleFailed(context.Background(), &messaging.DeadLetterEvent{OriginalTopic: "t"})
	assert.Equal(t, DispositionDropped, disposition)
	assert.False(t, retried)
}

func TestParkDisabledDropsEvent(t *testing.T) {
	d := &DLQ{cfg: DLQConfig{EnableDLQ: false}, logger: zap.NewNop()}

	disposition := d.Park(context.Background(), &messaging.DeadLetterEvent{OriginalTopic: "t"})
	assert.Equal(t, DispositionDropped, disposition)
}

func TestHandleFailedStopsOnCancelledContext(t *testing.T) {
	d := &DLQ{
		cfg: DLQConfig{
			EnableDLQ:              true,
			MaxRetries:             5,
			InitialRetryDelay:      time.Hour,
			RetryBackoffMultiplier: 2.0,
			MaxRetryDelay:          time.Hour,
		},
		retry:  func(context.Context, *messaging.DeadLetterEvent) error { return errors.New("nope") },
		logger: zap.NewNop(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan Disposition, 1)
	go func() {
		done <- d.HandleFailed(ctx, &messaging.DeadLetterEvent{OriginalTopic: "t", AttemptCount: 0})
	}()

	select {
	case disposition := <-done:
		// Undisposed: the offset must stay uncommitted for redelivery.
		assert.Equal(t, DispositionFailed, disposition)
	case <-time.After(2 * time.Second):
		t.Fatal("HandleFailed did not honour cancellation")
	}
}

type recordingCommitter struct {
	committed []*kgo.Record
}

func (r *recordingCommitter) CommitRecords(_ context.Context, records ...*kgo.Record) error {
	r.committed = append(r.committed, records...)
	return nil
}

// newFailingConsumer wires a consumer whose only handler always fails, with
// commits captured instead of sent to a broker
func newFailingConsumer(t *testing.T, dlq *DLQ) (*Consumer, *recordingCommitter) {
	t.Helper()

	dispatcher := messaging.NewDispatcher()
	require.NoError(t, dispatcher.Register("ResourceCreated", messaging.Registration{
		NewPayload: func() interface{} { return &map[string]string{} },
		Handle: func(context.Context, interface{}, *messaging.Envelope) error {
			return errors.New("handler always fails")
		},
	}))

	committer := &recordingCommitter{}
	c := NewConsumer(DefaultConsumerConfig(), dispatcher, dlq, zap.NewNop(), nil)
	c.committer = committer
	return c, committer
}

func lifecycleRecord(t *testing.T, offset int64) *kgo.Record {
	t.Helper()
	env, err := messaging.New(map[string]string{"k": "v"}, "ResourceCreated", "catalog.core")
	require.NoError(t, err)
	value, err := env.Serialize()
	require.NoError(t, err)
	return &kgo.Record{Topic: "catalog.lifecycle", Offset: offset, Value: value}
}

func TestProcessRecordCommitsDroppedPoisonMessage(t *testing.T) {
	d := &DLQ{cfg: DLQConfig{EnableDLQ: false}, logger: zap.NewNop()}
	c, committer := newFailingConsumer(t, d)

	record := lifecycleRecord(t, 7)

	// The partition must advance past a message that will fail on every
	// redelivery once the dead-letter subsystem has disposed of it.
	assert.True(t, c.processRecord(context.Background(), record))
	require.Len(t, committer.committed, 1)
	assert.Same(t, record, committer.committed[0])

	assert.True(t, c.processRecord(context.Background(), record))
	assert.Len(t, committer.committed, 2)
}

func TestProcessRecordCommitsAfterSuccessfulRetry(t *testing.T) {
	d := &DLQ{
		cfg: DLQConfig{
			EnableDLQ:              true,
			MaxRetries:             5,
			InitialRetryDelay:      time.Millisecond,
			RetryBackoffMultiplier: 2.0,
			MaxRetryDelay:          5 * time.Millisecond,
		},
		retry:  func(context.Context, *messaging.DeadLetterEvent) error { return nil },
		logger: zap.NewNop(),
	}
	c, committer := newFailingConsumer(t, d)

	assert.True(t, c.processRecord(context.Background(), lifecycleRecord(t, 3)))
	assert.Len(t, committer.committed, 1)
}

func TestProcessRecordCommitsMalformedEnvelope(t *testing.T) {
	d := &DLQ{cfg: DLQConfig{EnableDLQ: false}, logger: zap.NewNop()}
	c, committer := newFailingConsumer(t, d)

	record := &kgo.Record{Topic: "catalog.lifecycle", Offset: 8, Value: []byte("not an envelope")}
	assert.True(t, c.processRecord(context.Background(), record))
	assert.Len(t, committer.committed, 1)
}

func TestProducerConfigValidation(t *testing.T) {
	cfg := DefaultProducerConfig()
	cfg.Acks = "maybe"
	_, err := producerOpts(cfg)
	assert.Error(t, err)

	cfg = DefaultProducerConfig()
	cfg.CompressionType = "brotli"
	_, err = producerOpts(cfg)
	assert.Error(t, err)

	cfg = DefaultProducerConfig()
	_, err = producerOpts(cfg)
	assert.NoError(t, err)
}

func TestSecurityOptsRejectsUnknownSettings(t *testing.T) {
	_, err := securityOpts(SecurityConfig{Protocol: "quantum"})
	assert.Error(t, err)

	_, err = securityOpts(SecurityConfig{Protocol: "sasl_plaintext", SASLMechanism: "GSSAPI"})
	assert.Error(t, err)

	opts, err := securityOpts(SecurityConfig{Protocol: "sasl_plaintext", SASLMechanism: "PLAIN", SASLUsername: "u", SASLPassword: "p"})
	require.NoError(t, err)
	assert.NotEmpty(t, opts)
}
