package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/config"
	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/internal/notify"
	"github.com/go-playground/validator/v10"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var consumerTracer = otel.Tracer("handler/kafka")

type JobProcessor interface {
	Process(ctx context.Context, n entities.Notification) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaHandler is the notification worker. It reads jobs from the email and
// order topics and parks the ones it could not handle in <topic>-dlq.
type kafkaHandler struct {
	dlq       messageWriter
	reader    messageReader
	logger    *slog.Logger
	validate  *validator.Validate
	processor JobProcessor
}

func NewKafkaHandler(logger *slog.Logger, cfg config.Kafka, processor JobProcessor) *kafkaHandler {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: []string{cfg.EmailTopic, cfg.OrderTopic},
		MaxWait:     cfg.ReaderMaxWait,
	})
	dlq := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}
	return newKafkaHandler(logger, reader, dlq, processor)
}

func newKafkaHandler(logger *slog.Logger, reader messageReader, dlq messageWriter, processor JobProcessor) *kafkaHandler {
	return &kafkaHandler{
		logger:    logger.With(slog.String("handler", "kafka")),
		reader:    reader,
		dlq:       dlq,
		validate:  validator.New(),
		processor: processor,
	}
}

func (h *kafkaHandler) Consume(ctx context.Context) {
	for {
		m, err := h.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			h.logger.Error("failed to fetch message", slog.Any("error", err))
			continue
		}

		// Left uncommitted, the message is fetched again after a restart.
		if !h.handle(ctx, m) {
			continue
		}

		if err := h.reader.CommitMessages(ctx, m); err != nil {
			commitErrors.Inc()
			h.logger.Error("failed to commit message", slog.Any("error", err))
		}
	}
}

// handle processes one message and reports whether it may be committed. A
// failed job is written to the DLQ so one bad job does not block the
// partition. If the DLQ write fails too the message must not be committed.
func (h *kafkaHandler) handle(ctx context.Context, m kafka.Message) bool {
	jobsInProgress.Inc()
	defer jobsInProgress.Dec()

	start := time.Now()
	job := headerValue(m, "job")
	defer func() {
		jobDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
	}()

	ctx = otel.GetTextMapPropagator().Extract(ctx, notify.NewHeaderCarrier(&m))
	ctx, span := consumerTracer.Start(ctx, "process "+m.Topic, trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	if err := h.processJob(ctx, m); err != nil {
		jobsFailed.WithLabelValues(job).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger.ErrorContext(ctx, "failed to handle job",
			slog.String("topic", m.Topic),
			slog.String("job", job),
			slog.Any("error", err),
		)

		if err := h.WriteToDLQ(ctx, m); err != nil {
			h.logger.ErrorContext(ctx, "failed to write message to DLQ",
				slog.String("topic", m.Topic),
				slog.Int64("offset", m.Offset),
				slog.Any("error", err),
			)
			return false
		}
		jobsDLQ.WithLabelValues(job).Inc()
		return true
	}

	jobsProcessed.WithLabelValues(job).Inc()
	return true
}

func (h *kafkaHandler) processJob(ctx context.Context, m kafka.Message) error {
	var msg notify.Message
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if err := h.validate.Struct(msg); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}

	n, err := notify.MessageToEntity(msg)
	if err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}
	return h.processor.Process(ctx, n)
}

func (h *kafkaHandler) WriteToDLQ(ctx context.Context, m kafka.Message) error {
	return h.dlq.WriteMessages(ctx, kafka.Message{
		Topic:   fmt.Sprintf("%s-dlq", m.Topic),
		Key:     m.Key,
		Value:   m.Value,
		Headers: m.Headers,
	})
}

func (h *kafkaHandler) Close() error {
	return errors.Join(h.reader.Close(), h.dlq.Close())
}

func headerValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return "unknown"
}
