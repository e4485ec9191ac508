package messaging

import "time"

// DeadLetterEvent captures a message whose handler failed, with enough
// context to retry it and, when retries are exhausted, park it on a
// dead-letter topic.
type DeadLetterEvent struct {
	OriginalTopic   string    `json:"originalTopic"`
	Partition       int32     `json:"partition"`
	Offset          int64     `json:"offset"`
	Payload         []byte    `json:"payload"`
	ErrorMessage    string    `json:"errorMessage"`
	ExceptionDetail string    `json:"exceptionDetail,omitempty"`
	ConsumerGroup   string    `json:"consumerGroup"`
	AttemptCount    int       `json:"attemptCount"`
	FirstFailureAt  time.Time `json:"firstFailureAt"`
	LastFailureAt   time.Time `json:"lastFailureAt,omitempty"`
}
