//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/Custodian/internal/domain/outbox"
	"github.com/NordCoder/Custodian/internal/repository/kafka"
)

func TestAccountEvents_PublishedToKafka(t *testing.T) {
	cfg := LoadCfg()
	WaitTCP(t, "kafka", cfg.KafkaBootstrap, 60*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	topic := fmt.Sprintf("account-events-it-%d", RandID())
	require.NoError(t, kafka.EnsureTopic(ctx, []string{cfg.KafkaBootstrap}, kafka.TopicSpec{
		Name:          topic,
		NumPartitions: 1,
		MaxWait:       20 * time.Second,
	}, nil))

	producer := kafka.NewProducer([]string{cfg.KafkaBootstrap}, topic)
	defer producer.Close()

	ev := outbox.AccountEvent{AccountID: 42, Email: "new@example.com", OldEmail: "old@example.com", At: time.Now().UTC()}
	require.NoError(t, kafka.NewAccountEventsKafka(producer).Publish(ctx, outbox.KindEmailTransferred, ev))

	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{cfg.KafkaBootstrap},
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  1 << 20,
	})
	defer r.Close()

	msg, err := r.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "42", string(msg.Key))

	var got outbox.AccountEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, ev.AccountID, got.AccountID)
	assert.Equal(t, ev.Email, got.Email)
	assert.Equal(t, ev.OldEmail, got.OldEmail)

	var eventType string
	for _, h := range msg.Headers {
		if h.Key == "event-type" {
			eventType = string(h.Value)
		}
	}
	assert.Equal(t, outbox.KindEmailTransferred.String(), eventType)
}
