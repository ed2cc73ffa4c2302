//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/sensor-dashboard-service/internal/adapter/kafka"
	"github.com/couchcryptid/sensor-dashboard-service/internal/adapter/postgrest"
	"github.com/couchcryptid/sensor-dashboard-service/internal/config"
	"github.com/couchcryptid/sensor-dashboard-service/internal/observability"
	"github.com/couchcryptid/sensor-dashboard-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testSnapshotTopic = "test-sensor-snapshots"

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("sensor-dash-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
}

// fakeStoreServer serves a single band table the way a PostgREST endpoint does.
func fakeStoreServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ku" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"message":"relation does not exist"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[
			{"id":2,"year":2024,"month":1,"day":5,"time":"10:01:00","marker1":"13.0"},
			{"id":1,"year":2024,"month":1,"day":5,"time":"10:00:00","marker1":12.5}
		]`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestSnapshotPublishedToKafka runs one poll cycle against a fake store and
// reads the published source message back from Kafka.
func TestSnapshotPublishedToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSnapshotTopic)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()

	store := postgrest.NewClient(fakeStoreServer(t).URL, "anon-key", 5*time.Second, logger)
	catalog := &config.Catalog{Sources: []config.Source{{
		Name: "ku", Table: "ku", Shape: "fragmented", OrderField: "id", Descending: true,
		Mode: config.ModeLatest, Limit: 20, Kind: config.KindMarkers, SeriesPrefix: "marker",
	}}}
	svc := pipeline.NewService(catalog, store, pipeline.Options{PageSize: 1000}, logger, metrics)

	writer := kafka.NewWriter(&config.Config{KafkaBrokers: []string{broker}, KafkaSnapshotTopic: testSnapshotTopic}, logger)
	defer writer.Close()

	poller := pipeline.NewPoller(svc, time.Hour, clockwork.NewFakeClock(), logger, metrics, writer)
	go func() { _ = poller.Run(ctx) }()
	defer poller.Stop()

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testSnapshotTopic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  1 << 20,
	})
	defer consumer.Close()

	readCtx, readCancel := context.WithTimeout(ctx, 60*time.Second)
	defer readCancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read snapshot message")

	assert.Equal(t, "ku", string(msg.Key))

	var payload struct {
		Source string `json:"source"`
		Rows   int    `json:"rows"`
		Series map[string][]struct {
			Timestamp time.Time `json:"timestamp"`
			Value     float64   `json:"value"`
		} `json:"series"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, "ku", payload.Source)
	assert.Equal(t, 2, payload.Rows)
	require.Len(t, payload.Series["marker1"], 2)
	assert.InDelta(t, 12.5, payload.Series["marker1"][0].Value, 0, "series are oldest first")
	assert.InDelta(t, 13.0, payload.Series["marker1"][1].Value, 0)

	require.NoError(t, poller.CheckReadiness(ctx))
}
