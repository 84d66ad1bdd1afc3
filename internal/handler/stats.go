package handler

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/openshelf/library-service/pkg/kafka"
)

// StatsLog publishes state-changing operations to the stats topic,
// fire-and-forget.
type StatsLog interface {
	Log(sl kafka.EventStats) error
}

type statsLog struct {
	producer sarama.AsyncProducer
	topic    string
}

func NewStatsLog(producer sarama.AsyncProducer, topic string) *statsLog {
	return &statsLog{
		producer: producer,
		topic:    topic,
	}
}

func (l *statsLog) Log(sl kafka.EventStats) error {
	data, err := json.Marshal(sl)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{Topic: l.topic, Value: sarama.StringEncoder(data)}
	l.producer.Input() <- msg
	return nil
}

// NopStatsLog is used when no brokers are configured.
type NopStatsLog struct{}

func (NopStatsLog) Log(kafka.EventStats) error { return nil }

func (h *Handler) logEvent(entity, action string, entityID, userID int, status string) {
	_ = h.stats.Log(kafka.EventStats{
		EventID:   uuid.NewString(),
		Entity:    entity,
		Action:    action,
		EntityID:  entityID,
		UserID:    userID,
		Status:    status,
		Timestamp: time.Now().UTC(),
	})
}
