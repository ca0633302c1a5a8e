package notify

import (
	"context"
	"fmt"

	"github.com/SergeyBogomolovv/checkout-service/internal/config"
	"github.com/SergeyBogomolovv/checkout-service/internal/entities"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("notify/publisher")

const jobHeader = "job"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher enqueues jobs on Kafka. Email jobs and order processing jobs go
// to separate topics so they can be scaled independently.
type Publisher struct {
	writer     messageWriter
	emailTopic string
	orderTopic string
}

func NewPublisher(cfg config.Kafka) *Publisher {
	return newPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}, cfg.EmailTopic, cfg.OrderTopic)
}

func newPublisher(w messageWriter, emailTopic, orderTopic string) *Publisher {
	return &Publisher{writer: w, emailTopic: emailTopic, orderTopic: orderTopic}
}

// Enqueue writes the job keyed by order id, so jobs of one order keep their order.
func (p *Publisher) Enqueue(ctx context.Context, n entities.Notification) error {
	if !n.Topic.Valid() {
		return fmt.Errorf("unknown job %q", n.Topic)
	}

	value, err := Encode(n)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	msg := kafka.Message{
		Topic:   p.topicFor(n.Topic),
		Key:     []byte(n.OrderID),
		Value:   value,
		Headers: []kafka.Header{{Key: jobHeader, Value: []byte(n.Topic)}},
	}

	ctx, span := tracer.Start(ctx, "send "+msg.Topic, trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	otel.GetTextMapPropagator().Inject(ctx, NewHeaderCarrier(&msg))

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to write job %s: %w", n.Topic, err)
	}
	return nil
}

func (p *Publisher) topicFor(t entities.Topic) string {
	if t.IsEmail() {
		return p.emailTopic
	}
	return p.orderTopic
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
