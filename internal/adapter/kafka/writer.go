package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/sensor-dashboard-service/internal/config"
	"github.com/couchcryptid/sensor-dashboard-service/internal/domain"
	"github.com/couchcryptid/sensor-dashboard-service/internal/pipeline"
	"github.com/couchcryptid/storm-data-shared/retry"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	maxAttempts    = 3
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 2 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes poll snapshots to a Kafka topic.
// It implements pipeline.SnapshotSink.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured snapshot topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSnapshotTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes one message per source and one per group of the snapshot in
// a single WriteMessages call, retrying transient failures with backoff.
func (w *Writer) Publish(ctx context.Context, snap *pipeline.Snapshot) error {
	msgs, err := serializeSnapshot(snap)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		err = w.writer.WriteMessages(ctx, msgs...)
		if err == nil {
			w.logger.Debug("snapshot published", "messages", len(msgs))
			return nil
		}
		if attempt == maxAttempts || ctx.Err() != nil {
			return fmt.Errorf("publish snapshot: %w", err)
		}
		w.logger.Warn("snapshot publish failed, retrying", "attempt", attempt, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return fmt.Errorf("publish snapshot: %w", ctx.Err())
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

type sourceMessage struct {
	Source      string           `json:"source"`
	Kind        string           `json:"kind"`
	Rows        int              `json:"rows"`
	Skipped     int              `json:"skipped"`
	Series      domain.SeriesMap `json:"series,omitempty"`
	Error       string           `json:"error,omitempty"`
	FetchedAt   time.Time        `json:"fetched_at"`
	CompletedAt time.Time        `json:"completed_at"`
}

type groupMessage struct {
	Group       string             `json:"group"`
	View        domain.AlignedView `json:"view"`
	Error       string             `json:"error,omitempty"`
	CompletedAt time.Time          `json:"completed_at"`
}

// serializeSnapshot maps a snapshot to Kafka messages, sources first, each
// block sorted by name. Sources are keyed by name, groups by "group:<name>".
func serializeSnapshot(snap *pipeline.Snapshot) ([]kafkago.Message, error) {
	if snap == nil {
		return nil, nil
	}
	completed := []byte(snap.CompletedAt.UTC().Format(time.RFC3339))
	msgs := make([]kafkago.Message, 0, len(snap.Sources)+len(snap.Groups))

	for _, name := range sortedKeys(snap.Sources) {
		res := snap.Sources[name]
		m := sourceMessage{
			Source:      res.Source,
			Kind:        res.Kind,
			Rows:        res.Rows,
			Skipped:     res.Skipped,
			Series:      res.Series,
			FetchedAt:   res.FetchedAt,
			CompletedAt: snap.CompletedAt,
		}
		if res.Err != nil {
			m.Error = res.Err.Error()
		}
		data, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("serialize source %s: %w", name, err)
		}
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(name),
			Value: data,
			Headers: []kafkago.Header{
				{Key: "kind", Value: []byte(res.Kind)},
				{Key: "completed_at", Value: completed},
			},
		})
	}

	for _, name := range sortedKeys(snap.Groups) {
		res := snap.Groups[name]
		m := groupMessage{Group: name, View: res.View, CompletedAt: snap.CompletedAt}
		if res.Err != nil {
			m.Error = res.Err.Error()
		}
		data, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("serialize group %s: %w", name, err)
		}
		msgs = append(msgs, kafkago.Message{
			Key:   []byte("group:" + name),
			Value: data,
			Headers: []kafkago.Header{
				{Key: "kind", Value: []byte("group")},
				{Key: "completed_at", Value: completed},
			},
		})
	}
	return msgs, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
