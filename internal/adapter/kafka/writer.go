package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/roadmetrics/defect-analytics/internal/analytics"
	"github.com/roadmetrics/defect-analytics/internal/config"
)

// Writer publishes aggregation reports to the report topic. The topic is the
// durable sink consumed by dashboards and archival jobs.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a producer for the configured report topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaReportTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishReport serializes and publishes one aggregation report. Messages are
// keyed by report date so reruns for the same date land on the same partition
// in order.
func (w *Writer) PublishReport(ctx context.Context, report analytics.Report) error {
	msg, err := serializeReport(report)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish report %s: %w", report.Date, err)
	}
	w.logger.Info("report published", "date", report.Date, "total", report.Statistics.TotalCount)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeReport marshals a report into a Kafka message.
func serializeReport(report analytics.Report) (kafkago.Message, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize report: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(report.Date),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "report_date", Value: []byte(report.Date)},
			{Key: "generated_at", Value: []byte(report.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
