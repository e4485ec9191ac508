package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	pkgerrors "catalog/pkg/errors"
)

const (
	// SpecVersion is the CloudEvents version carried by every envelope
	SpecVersion = "1.0"

	// SchemaVersion stamps the envelope schema for evolution
	SchemaVersion = "1.0.0"

	// ContentTypeJSON is the only data content type the bus produces
	ContentTypeJSON = "application/json"

	DefaultMaxRetries = 5
	DefaultPriority   = 5
	MaxPriority       = 10
)

// Event carries the CloudEvents 1.0 attributes of a bus message. Data stays
// raw so consumers can re-deserialize it into the handler's payload type.
type Event struct {
	ID              string          `json:"id"`
	Source          string          `json:"source"`
	SpecVersion     string          `json:"specversion"`
	Type            string          `json:"type"`
	DataContentType string          `json:"datacontenttype,omitempty"`
	DataSchema      string          `json:"dataschema,omitempty"`
	Subject         string          `json:"subject,omitempty"`
	Time            time.Time       `json:"time"`
	Data            json.RawMessage `json:"data,omitempty"`
}

// Metadata carries the processing attributes riding alongside the event
type Metadata struct {
	CorrelationID string            `json:"correlationId"`
	CausationID   string            `json:"causationId,omitempty"`
	TenantID      string            `json:"tenantId,omitempty"`
	UserID        string            `json:"userId,omitempty"`
	RetryCount    int               `json:"retryCount"`
	MaxRetries    int               `json:"maxRetries"`
	PublishedAt   time.Time         `json:"publishedAt"`
	Priority      int               `json:"priority"`
	PartitionKey  string            `json:"partitionKey,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
}

// Envelope is the on-wire unit of bus traffic
type Envelope struct {
	Event         Event    `json:"event"`
	Metadata      Metadata `json:"metadata"`
	SchemaVersion string   `json:"schemaVersion"`
}

// Option customises an envelope at construction time
type Option func(*Envelope)

// WithSubject sets the CloudEvents subject
func WithSubject(subject string) Option {
	return func(e *Envelope) { e.Event.Subject = subject }
}

// WithCorrelationID overrides the generated correlation ID
func WithCorrelationID(id string) Option {
	return func(e *Envelope) { e.Metadata.CorrelationID = id }
}

// WithCausationID records the event that caused this one
func WithCausationID(id string) Option {
	return func(e *Envelope) { e.Metadata.CausationID = id }
}

// WithTenant attributes the event to a tenant and user
func WithTenant(tenantID, userID string) Option {
	return func(e *Envelope) {
		e.Metadata.TenantID = tenantID
		e.Metadata.UserID = userID
	}
}

// WithPartitionKey pins the event to a partition key
func WithPartitionKey(key string) Option {
	return func(e *Envelope) { e.Metadata.PartitionKey = key }
}

// WithPriority sets the processing priority, 0..10
func WithPriority(priority int) Option {
	return func(e *Envelope) { e.Metadata.Priority = priority }
}

// WithHeader attaches a free-form string header
func WithHeader(key, value string) Option {
	return func(e *Envelope) {
		if e.Metadata.Headers == nil {
			e.Metadata.Headers = make(map[string]string)
		}
		e.Metadata.Headers[key] = value
	}
}

// New wraps data in a fresh envelope: new event ID, current time, defaulted
// correlation ID, retry count zero.
func New(data interface{}, eventType, source string, opts ...Option) (*Envelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, pkgerrors.NewInvalidf("event data is not JSON-serialisable: %v", err)
	}

	now := time.Now().UTC()
	env := &Envelope{
		Event: Event{
			ID:              uuid.New().String(),
			Source:          source,
			SpecVersion:     SpecVersion,
			Type:            eventType,
			DataContentType: ContentTypeJSON,
			Time:            now,
			Data:            payload,
		},
		Metadata: Metadata{
			CorrelationID: uuid.New().String(),
			RetryCount:    0,
			MaxRetries:    DefaultMaxRetries,
			PublishedAt:   now,
			Priority:      DefaultPriority,
		},
		SchemaVersion: SchemaVersion,
	}

	for _, opt := range opts {
		opt(env)
	}

	if err := env.Validate(); err != nil {
		return nil, err
	}
	return env, nil
}

// Validate checks the structural invariants of the envelope
func (e *Envelope) Validate() error {
	if e.Event.SpecVersion != SpecVersion {
		return pkgerrors.NewInvalidf("unsupported specversion %q", e.Event.SpecVersion)
	}
	if e.Event.ID == "" {
		return pkgerrors.NewInvalid("envelope event id is required")
	}
	if e.Event.Type == "" {
		return pkgerrors.NewInvalid("envelope event type is required")
	}
	if e.Event.Source == "" {
		return pkgerrors.NewInvalid("envelope event source is required")
	}
	if e.Metadata.Priority < 0 || e.Metadata.Priority > MaxPriority {
		return pkgerrors.NewInvalidf("priority %d outside 0..%d", e.Metadata.Priority, MaxPriority)
	}
	if e.SchemaVersion == "" {
		return pkgerrors.NewInvalid("envelope schema version is required")
	}
	return nil
}

// PartitionKey returns the explicit partition key, falling back to the
// event ID
func (e *Envelope) PartitionKey() string {
	if e.Metadata.PartitionKey != "" {
		return e.Metadata.PartitionKey
	}
	return e.Event.ID
}

// Serialize renders the envelope as JSON
func (e *Envelope) Serialize() ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, pkgerrors.NewInternal("serialising envelope", err)
	}
	return raw, nil
}

// Deserialize parses a JSON envelope
func Deserialize(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, pkgerrors.NewInvalidf("malformed envelope: %v", err)
	}
	return &env, nil
}
