package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"

	pkgerrors "catalog/pkg/errors"
)

// SecurityConfig holds the transport security settings shared by producer
// and consumer clients
type SecurityConfig struct {
	Protocol      string `koanf:"protocol" validate:"omitempty,oneof=plaintext ssl sasl_plaintext sasl_ssl"`
	SASLMechanism string `koanf:"saslMechanism" validate:"omitempty,oneof=PLAIN SCRAM-SHA-256 SCRAM-SHA-512"`
	SASLUsername  string `koanf:"saslUsername"`
	SASLPassword  string `koanf:"saslPassword"`
	CACertPath    string `koanf:"caCertPath"`
}

// ProducerConfig holds producer settings
type ProducerConfig struct {
	BootstrapServers  []string       `koanf:"bootstrapServers" validate:"required,min=1"`
	ClientID          string         `koanf:"clientId"`
	Acks              string         `koanf:"acks" validate:"oneof=all 1 0"`
	EnableIdempotence bool           `koanf:"enableIdempotence"`
	MaxInFlight       int            `koanf:"maxInFlight"`
	MessageTimeout    time.Duration  `koanf:"messageTimeout"`
	Retries           int            `koanf:"retries"`
	RetryBackoff      time.Duration  `koanf:"retryBackoff"`
	Linger            time.Duration  `koanf:"linger"`
	BatchSize         int32          `koanf:"batchSize"`
	CompressionType   string         `koanf:"compressionType" validate:"oneof=gzip snappy lz4 zstd none"`
	MessageMaxBytes   int32          `koanf:"messageMaxBytes"`
	Security          SecurityConfig `koanf:"security"`
}

// DefaultProducerConfig returns producer defaults
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		BootstrapServers:  []string{"localhost:9092"},
		ClientID:          "catalog-producer",
		Acks:              "all",
		EnableIdempotence: true,
		MaxInFlight:       5,
		MessageTimeout:    30 * time.Second,
		Retries:           10,
		RetryBackoff:      100 * time.Millisecond,
		Linger:            5 * time.Millisecond,
		BatchSize:         1 << 20,
		CompressionType:   "snappy",
		MessageMaxBytes:   1 << 20,
	}
}

// ConsumerConfig holds consumer group settings. Auto-commit stays off;
// manual commit after successful handling is the contract.
type ConsumerConfig struct {
	BootstrapServers      []string       `koanf:"bootstrapServers" validate:"required,min=1"`
	GroupID               string         `koanf:"groupId" validate:"required"`
	ClientID              string         `koanf:"clientId"`
	AutoOffsetReset       string         `koanf:"autoOffsetReset" validate:"oneof=earliest latest"`
	SessionTimeout        time.Duration  `koanf:"sessionTimeout"`
	HeartbeatInterval     time.Duration  `koanf:"heartbeatInterval"`
	MaxPollInterval       time.Duration  `koanf:"maxPollInterval"`
	MaxPollRecords        int            `koanf:"maxPollRecords"`
	FetchMinBytes         int32          `koanf:"fetchMinBytes"`
	FetchMaxWait          time.Duration  `koanf:"fetchMaxWait"`
	MaxPartitionFetchMiB  int32          `koanf:"maxPartitionFetchMiB"`
	Security              SecurityConfig `koanf:"security"`
}

// DefaultConsumerConfig returns consumer defaults
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		BootstrapServers:     []string{"localhost:9092"},
		GroupID:              "catalog-consumers",
		ClientID:             "catalog-consumer",
		AutoOffsetReset:      "earliest",
		SessionTimeout:       10 * time.Second,
		HeartbeatInterval:    3 * time.Second,
		MaxPollInterval:      5 * time.Minute,
		MaxPollRecords:       500,
		FetchMinBytes:        1,
		FetchMaxWait:         500 * time.Millisecond,
		MaxPartitionFetchMiB: 5,
	}
}

// DLQConfig holds the dead-letter subsystem settings
type DLQConfig struct {
	TopicSuffix            string        `koanf:"topicSuffix"`
	MaxRetries             int           `koanf:"maxRetries" validate:"min=0"`
	InitialRetryDelay      time.Duration `koanf:"initialRetryDelay"`
	RetryBackoffMultiplier float64       `koanf:"retryBackoffMultiplier" validate:"omitempty,gte=1"`
	MaxRetryDelay          time.Duration `koanf:"maxRetryDelay"`
	EnableDLQ              bool          `koanf:"enableDlq"`
}

// DefaultDLQConfig returns dead-letter defaults
func DefaultDLQConfig() DLQConfig {
	return DLQConfig{
		TopicSuffix:            ".dlq",
		MaxRetries:             5,
		InitialRetryDelay:      time.Second,
		RetryBackoffMultiplier: 2.0,
		MaxRetryDelay:          60 * time.Second,
		EnableDLQ:              true,
	}
}

func producerOpts(cfg ProducerConfig) ([]kgo.Opt, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.BootstrapServers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ProducerLinger(cfg.Linger),
		kgo.ProducerBatchMaxBytes(cfg.BatchSize),
		kgo.MaxBufferedRecords(10_000),
		kgo.RecordRetries(cfg.Retries),
		kgo.RecordDeliveryTimeout(cfg.MessageTimeout),
		kgo.MaxProduceRequestsInflightPerBroker(cfg.MaxInFlight),
	}

	switch cfg.Acks {
	case "all":
		opts = append(opts, kgo.RequiredAcks(kgo.AllISRAcks()))
	case "1":
		opts = append(opts, kgo.RequiredAcks(kgo.LeaderAck()))
	case "0":
		opts = append(opts, kgo.RequiredAcks(kgo.NoAck()))
	default:
		return nil, pkgerrors.NewInvalidf("unknown acks setting %q", cfg.Acks)
	}

	// Idempotent production requires acks=all; kgo enforces this pairing.
	if !cfg.EnableIdempotence || cfg.Acks != "all" {
		opts = append(opts, kgo.DisableIdempotentWrite())
	}

	switch cfg.CompressionType {
	case "gzip":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.GzipCompression()))
	case "snappy":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.SnappyCompression()))
	case "lz4":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.Lz4Compression()))
	case "zstd":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.ZstdCompression()))
	case "none", "":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.NoCompression()))
	default:
		return nil, pkgerrors.NewInvalidf("unknown compression type %q", cfg.CompressionType)
	}

	security, err := securityOpts(cfg.Security)
	if err != nil {
		return nil, err
	}
	return append(opts, security...), nil
}

func consumerOpts(cfg ConsumerConfig, topics []string) ([]kgo.Opt, error) {
	offset := kgo.NewOffset().AtStart()
	if cfg.AutoOffsetReset == "latest" {
		offset = kgo.NewOffset().AtEnd()
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.BootstrapServers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(topics...),
		kgo.ConsumeResetOffset(offset),
		kgo.DisableAutoCommit(),
		kgo.SessionTimeout(cfg.SessionTimeout),
		kgo.HeartbeatInterval(cfg.HeartbeatInterval),
		kgo.RebalanceTimeout(cfg.MaxPollInterval),
		kgo.FetchMinBytes(cfg.FetchMinBytes),
		kgo.FetchMaxWait(cfg.FetchMaxWait),
		kgo.FetchMaxPartitionBytes(cfg.MaxPartitionFetchMiB << 20),
	}

	security, err := securityOpts(cfg.Security)
	if err != nil {
		return nil, err
	}
	return append(opts, security...), nil
}

func securityOpts(cfg SecurityConfig) ([]kgo.Opt, error) {
	var opts []kgo.Opt

	switch cfg.Protocol {
	case "", "plaintext":
		return nil, nil
	case "ssl", "sasl_ssl":
		tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
		if cfg.CACertPath != "" {
			pem, err := os.ReadFile(cfg.CACertPath)
			if err != nil {
				return nil, pkgerrors.NewInvalidf("reading CA certificate: %v", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return nil, pkgerrors.NewInvalid("CA certificate file contains no certificates")
			}
			tlsCfg.RootCAs = pool
		}
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	case "sasl_plaintext":
	default:
		return nil, pkgerrors.NewInvalidf("unknown security protocol %q", cfg.Protocol)
	}

	if cfg.Protocol == "sasl_plaintext" || cfg.Protocol == "sasl_ssl" {
		mechanism, err := saslMechanism(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kgo.SASL(mechanism))
	}

	return opts, nil
}

func saslMechanism(cfg SecurityConfig) (sasl.Mechanism, error) {
	switch cfg.SASLMechanism {
	case "PLAIN":
		return plain.Auth{User: cfg.SASLUsername, Pass: cfg.SASLPassword}.AsMechanism(), nil
	case "SCRAM-SHA-256":
		return scram.Auth{User: cfg.SASLUsername, Pass: cfg.SASLPassword}.AsSha256Mechanism(), nil
	case "SCRAM-SHA-512":
		return scram.Auth{User: cfg.SASLUsername, Pass: cfg.SASLPassword}.AsSha512Mechanism(), nil
	default:
		return nil, pkgerrors.NewInvalidf("unknown SASL mechanism %q", cfg.SASLMechanism)
	}
}
