package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	kafkago "github.com/segmentio/kafka-go"
)

type noopEventPublisher struct{}

// NewNoopEventPublisher is used when no brokers are configured.
func NewNoopEventPublisher() payroll.EventPublisher {
	return noopEventPublisher{}
}

func (noopEventPublisher) PublishRunStatusChanged(context.Context, payroll.RunStatusChangedEvent) error {
	return nil
}

// MessageWriter is the subset of *kafkago.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
}

type kafkaEventPublisher struct {
	writer MessageWriter
	topic  string
}

func NewKafkaEventPublisher(writer MessageWriter, topic string) payroll.EventPublisher {
	if topic == "" {
		topic = payroll.RunStatusChangedTopic
	}
	return &kafkaEventPublisher{writer: writer, topic: topic}
}

func (p *kafkaEventPublisher) PublishRunStatusChanged(ctx context.Context, event payroll.RunStatusChangedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafkago.Message{
		Topic: p.topic,
		Key:   []byte(event.RunID),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(payroll.RunStatusChangedTopic)},
			{Key: "aggregate_type", Value: []byte("payroll_run")},
		},
	})
}

// NewWriter builds a writer for the comma separated broker list.
// Topic is left unset on the writer since every message carries one.
func NewWriter(brokers string, timeout time.Duration) *kafkago.Writer {
	var addrs []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &kafkago.Writer{
		Addr:         kafkago.TCP(addrs...),
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: timeout,
	}
}
