package kafka

import (
	"encoding/json"
	"time"

	basekafka "ms-booking/internal/kafka"
	"ms-booking/internal/models"
)

// Publisher streams booking lifecycle events to the CRM event topic.
type Publisher struct {
	Producer *basekafka.Producer
	Topic    string
}

func NewPublisher(producer *basekafka.Producer, topic string) *Publisher {
	return &Publisher{Producer: producer, Topic: topic}
}

func (p *Publisher) PublishBookingEvent(eventType string, b models.BookingRequest) error {
	event := models.BookingEvent{
		Type:      eventType,
		BookingID: b.ID,
		Status:    string(b.Status),
		Price:     b.EffectivePrice(),
		Deposit:   b.DepositAmount,
		Timestamp: time.Now(),
	}
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.Producer.Publish(p.Topic, b.ID, value)
}

// NoopPublisher satisfies the event publisher contract when Kafka is
// disabled or mocked in local runs.
type NoopPublisher struct{}

func (NoopPublisher) PublishBookingEvent(string, models.BookingRequest) error { return nil }
