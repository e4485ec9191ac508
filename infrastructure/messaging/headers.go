package messaging

// Wire header keys lifted from envelope metadata
const (
	HeaderCorrelationID = "correlation-id"
	HeaderCausationID   = "causation-id"
	HeaderTenantID      = "tenant-id"
	HeaderUserID        = "user-id"
	HeaderPriority      = "priority"
	HeaderSchemaVersion = "schema-version"
)

// Dead-letter topic header keys
const (
	HeaderOriginalTopic = "original-topic"
	HeaderErrorMessage  = "error-message"
	HeaderAttemptCount  = "attempt-count"
	HeaderConsumerGroup = "consumer-group"
)
