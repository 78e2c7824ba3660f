package kafka_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/admitflow/admitflow/pkg/channels/kafka"
	"github.com/admitflow/admitflow/pkg/eventbus"
	"github.com/admitflow/admitflow/pkg/events"
	"github.com/admitflow/admitflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkaTc "github.com/testcontainers/testcontainers-go/modules/kafka"
)

var (
	kafkaContainer *kafkaTc.KafkaContainer
	brokers        string
	logger         *slog.Logger
)

func TestMain(m *testing.M) {
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx := context.Background()

	var err error

	kafkaContainer, err = kafkaTc.Run(ctx, "confluentinc/confluent-local:7.7.0", testcontainers.WithEnv(map[string]string{
		"KAFKA_CREATE_TOPICS": "true",
	}))
	if err != nil {
		panic("Failed to start Kafka container: " + err.Error())
	}

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	if err != nil {
		panic("Failed to get Kafka brokers: " + err.Error())
	}

	brokers = kafkaBrokers[0]

	createTopic(brokers)

	code := m.Run()

	if err := kafkaContainer.Terminate(ctx); err != nil {
		panic("Failed to terminate Kafka container: " + err.Error())
	}

	os.Exit(code)
}

func createTopic(brokers string) {
	admin, err := sarama.NewClusterAdmin([]string{brokers}, sarama.NewConfig())
	if err != nil {
		panic(err.Error())
	}

	defer func() {
		if err := admin.Close(); err != nil {
			panic(err.Error())
		}
	}()

	err = admin.CreateTopic(events.Topic, &sarama.TopicDetail{
		NumPartitions:     1,
		ReplicationFactor: 1,
	}, false)
	if err != nil {
		panic(err.Error())
	}
}

func TestCreateChannel(t *testing.T) {
	tests := []struct {
		name        string
		brokers     string
		expectError bool
	}{
		{
			name:        "valid brokers",
			brokers:     brokers,
			expectError: false,
		},
		{
			name:        "empty brokers",
			brokers:     "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("KAFKA_BROKERS", tt.brokers)

			publisher, subscriber, err := kafka.CreateChannel(watermill.NopLogger{}, "test")

			if tt.expectError {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.NoError(t, publisher.Close())
			assert.NoError(t, subscriber.Close())
		})
	}
}

func TestKafkaChannel_PublishAndSubscribe(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", brokers)

	publisher, subscriber, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "test")
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(publisher, subscriber)

	defer func() {
		assert.NoError(t, bus.Close())
	}()

	received := make(chan *events.StageChanged, 1)

	err = bus.Handle(events.StageChangedEvent, func(ctx context.Context, event any) error {
		if changed, ok := event.(*events.StageChanged); ok {
			received <- changed
		}

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// Give the consumer group time to join before publishing.
	time.Sleep(2 * time.Second)

	event := events.StageChanged{
		BaseEvent:   events.NewBaseEvent(events.StageChangedEvent, "app-1"),
		WorkflowID:  "wf-1",
		FromStageID: "s-submitted",
		ToStageID:   "s-docs-verified",
		Actor:       models.SystemActor(),
	}

	require.NoError(t, bus.Publish(ctx, "app-1", event))

	select {
	case got := <-received:
		assert.Equal(t, "wf-1", got.WorkflowID)
		assert.Equal(t, "s-docs-verified", got.ToStageID)
	case <-time.After(10 * time.Second):
		t.Fatal("Did not receive event within timeout")
	}
}
