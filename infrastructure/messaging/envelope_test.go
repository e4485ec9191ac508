package messaging

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderPlaced struct {
	OrderID string `json:"orderId"`
	Amount  int    `json:"amount"`
}

func TestNewFillsDefaults(t *testing.T) {
	env, err := New(orderPlaced{OrderID: "o-1", Amount: 42}, "OrderPlaced", "orders.api")
	require.NoError(t, err)

	_, err = uuid.Parse(env.Event.ID)
	assert.NoError(t, err, "event id should be a uuid")
	_, err = uuid.Parse(env.Metadata.CorrelationID)
	assert.NoError(t, err, "correlation id should default to a uuid")

	assert.Equal(t, SpecVersion, env.Event.SpecVersion)
	assert.Equal(t, "OrderPlaced", env.Event.Type)
	assert.Equal(t, "orders.api", env.Event.Source)
	assert.Equal(t, ContentTypeJSON, env.Event.DataContentType)
	assert.False(t, env.Event.Time.IsZero())

	assert.Equal(t, 0, env.Metadata.RetryCount)
	assert.Equal(t, DefaultMaxRetries, env.Metadata.MaxRetries)
	assert.Equal(t, DefaultPriority, env.Metadata.Priority)
	assert.Equal(t, SchemaVersion, env.SchemaVersion)

	// the partition key falls back to the event id
	assert.Equal(t, env.Event.ID, env.PartitionKey())
}

func TestNewAppliesOptions(t *testing.T) {
	env, err := New(orderPlaced{}, "OrderPlaced", "orders.api",
		WithSubject("order/o-1"),
		WithCorrelationID("corr-1"),
		WithCausationID("cause-1"),
		WithTenant("acme", "u-7"),
		WithPartitionKey("o-1"),
		WithPriority(9),
		WithHeader("region", "eu-west-1"),
	)
	require.NoError(t, err)

	assert.Equal(t, "order/o-1", env.Event.Subject)
	assert.Equal(t, "corr-1", env.Metadata.CorrelationID)
	assert.Equal(t, "cause-1", env.Metadata.CausationID)
	assert.Equal(t, "acme", env.Metadata.TenantID)
	assert.Equal(t, "u-7", env.Metadata.UserID)
	assert.Equal(t, "o-1", env.PartitionKey())
	assert.Equal(t, 9, env.Metadata.Priority)
	assert.Equal(t, "eu-west-1", env.Metadata.Headers["region"])
}

func TestNewRejectsInvalidPriority(t *testing.T) {
	_, err := New(orderPlaced{}, "OrderPlaced", "orders.api", WithPriority(11))
	assert.Error(t, err)

	_, err = New(orderPlaced{}, "OrderPlaced", "orders.api", WithPriority(-1))
	assert.Error(t, err)
}

func TestNewRejectsUnserialisableData(t *testing.T) {
	_, err := New(func() {}, "OrderPlaced", "orders.api")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Envelope)
	}{
		{"wrong specversion", func(e *Envelope) { e.Event.SpecVersion = "0.3" }},
		{"missing id", func(e *Envelope) { e.Event.ID = "" }},
		{"missing type", func(e *Envelope) { e.Event.Type = "" }},
		{"missing source", func(e *Envelope) { e.Event.Source = "" }},
		{"missing schema version", func(e *Envelope) { e.SchemaVersion = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := New(orderPlaced{}, "OrderPlaced", "orders.api")
			require.NoError(t, err)
			tt.mutate(env)
			assert.Error(t, env.Validate())
		})
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	env, err := New(orderPlaced{OrderID: "o-1", Amount: 42}, "OrderPlaced", "orders.api",
		WithSubject("order/o-1"),
		WithHeader("region", "eu-west-1"),
	)
	require.NoError(t, err)

	raw, err := env.Serialize()
	require.NoError(t, err)

	got, err := Deserialize(raw)
	require.NoError(t, err)

	assert.Equal(t, env.Event.ID, got.Event.ID)
	assert.Equal(t, env.Event.Type, got.Event.Type)
	assert.Equal(t, env.Event.Subject, got.Event.Subject)
	assert.Equal(t, env.Metadata.CorrelationID, got.Metadata.CorrelationID)
	assert.Equal(t, env.Metadata.Headers, got.Metadata.Headers)
	assert.Equal(t, env.SchemaVersion, got.SchemaVersion)
	assert.True(t, env.Event.Time.Equal(got.Event.Time))

	var payload orderPlaced
	require.NoError(t, json.Unmarshal(got.Event.Data, &payload))
	assert.Equal(t, "o-1", payload.OrderID)
	assert.Equal(t, 42, payload.Amount)
}

func TestDeserializeRejectsMalformedJSON(t *testing.T) {
	_, err := Deserialize([]byte("{not json"))
	assert.Error(t, err)
}
