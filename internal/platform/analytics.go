package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"expertene/internal/config"
)

// AnalyticsEvent is one product analytics record.
type AnalyticsEvent struct {
	Name       string         `json:"event"`
	UserID     int64          `json:"user_id,omitempty"`
	DocumentID int64          `json:"document_id,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// AnalyticsSink receives analytics events.
type AnalyticsSink interface {
	Track(ctx context.Context, event AnalyticsEvent) error
	Close() error
}

// KafkaAnalyticsSink mirrors analytics events onto a Kafka topic keyed by
// document id.
type KafkaAnalyticsSink struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaAnalyticsSink creates a writer for cfg.KafkaTopic.
func NewKafkaAnalyticsSink(cfg config.AnalyticsConfig, logger *zap.Logger) *KafkaAnalyticsSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}
	return &KafkaAnalyticsSink{writer: writer, logger: logger}
}

func (s *KafkaAnalyticsSink) Track(ctx context.Context, event AnalyticsEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode analytics event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.DocumentID, 10)),
		Value: value,
		Time:  event.Timestamp,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.logger.Error("Failed to publish analytics event", zap.String("event", event.Name), zap.Error(err))
		return err
	}
	return nil
}

func (s *KafkaAnalyticsSink) Close() error {
	return s.writer.Close()
}

// MultiSink fans an event out to every sink and joins their errors.
type MultiSink []AnalyticsSink

func (m MultiSink) Track(ctx context.Context, event AnalyticsEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	var errs []error
	for _, s := range m {
		if err := s.Track(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewAnalyticsSink combines the edge-function tracker with the Kafka mirror
// when brokers are configured.
func NewAnalyticsSink(functions *FunctionsClient, cfg config.AnalyticsConfig, logger *zap.Logger) AnalyticsSink {
	sinks := MultiSink{}
	if functions != nil && functions.enabled {
		sinks = append(sinks, functions)
	}
	if len(cfg.KafkaBrokers) > 0 {
		logger.Info("Mirroring analytics to Kafka",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic),
		)
		sinks = append(sinks, NewKafkaAnalyticsSink(cfg, logger))
	}
	return sinks
}
