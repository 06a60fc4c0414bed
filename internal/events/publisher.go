package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const EventTypeHeader = "event-type"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes link events to a single topic keyed by link id, so
// all events of one link land on the same partition in order.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic, clientID string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Transport:              &kafka.Transport{ClientID: clientID},
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaPublisher) PublishVisited(ctx context.Context, ev LinkVisited) error {
	return p.publish(ctx, ev.LinkID, TypeLinkVisited, ev)
}

func (p *KafkaPublisher) PublishChanged(ctx context.Context, ev LinkChanged) error {
	return p.publish(ctx, ev.LinkID, TypeLinkChanged, ev)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) publish(ctx context.Context, key, eventType string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	headers := append(carrierToKafkaHeaders(carrier), kafka.Header{
		Key:   EventTypeHeader,
		Value: []byte(eventType),
	})

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   value,
		Time:    time.Now().UTC(),
		Headers: headers,
	})
}

func carrierToKafkaHeaders(carrier propagation.MapCarrier) []kafka.Header {
	headers := make([]kafka.Header, 0, len(carrier)+1)
	for key, value := range carrier {
		if strings.TrimSpace(value) == "" {
			continue
		}
		headers = append(headers, kafka.Header{
			Key:   key,
			Value: []byte(value),
		})
	}
	return headers
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishVisited(context.Context, LinkVisited) error { return nil }
func (NopPublisher) PublishChanged(context.Context, LinkChanged) error { return nil }
