package kafka

import (
	"time"

	"github.com/IBM/sarama"
)

const StatsTopic = "library-stats"

type Config struct {
	Addrs []string `envconfig:"KAFKA_ADDRS"`
}

// Enabled reports whether brokers are configured; event logging is a no-op
// otherwise.
func (c Config) Enabled() bool {
	return len(c.Addrs) > 0
}

// EventStats is one state-changing API operation, as published to the
// stats topic.
type EventStats struct {
	EventID   string    `json:"eventId"`
	Entity    string    `json:"entity"`
	Action    string    `json:"action"`
	EntityID  int       `json:"entityId"`
	UserID    int       `json:"userId,omitempty"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewAsyncProducer(cfg Config) (sarama.AsyncProducer, error) {
	defaultCfg := sarama.NewConfig()

	defaultCfg.Producer.RequiredAcks = sarama.WaitForLocal
	defaultCfg.Producer.Return.Successes = false

	return sarama.NewAsyncProducer(cfg.Addrs, defaultCfg)
}
