//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/hazard-forecast-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("hazard-forecast-test"),
	)
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = container.Terminate(stopCtx)
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrlConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrlConn.Close()

	require.NoError(t, ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// calmProvider answers every descriptor with a full horizon of mild
// weather at the given temperature.
type calmProvider struct {
	temperature float64
}

func (p calmProvider) Fetch(_ context.Context, req domain.FetchRequest) (domain.FetchResult, error) {
	start := domain.HourKey(req.Now)
	records := make([]domain.NormalizedHourlyForecast, req.Hours+1)
	for i := range records {
		records[i] = domain.NormalizedHourlyForecast{
			Offset:             i,
			Time:               start.Add(time.Duration(i) * time.Hour),
			Temperature:        domain.Float(p.temperature),
			WindSpeed:          domain.Float(10),
			ReferenceElevation: domain.Float(1500),
		}
		records[i].StampNative()
	}
	return domain.FetchResult{Provider: req.Descriptor.ID, Records: records, Missing: domain.NewFieldSet()}, nil
}
