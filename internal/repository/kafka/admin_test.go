package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllHaveLeader(t *testing.T) {
	assert.True(t, allHaveLeader([]kafka.Partition{{Leader: kafka.Broker{ID: 1}}, {Leader: kafka.Broker{ID: 2}}}))
	assert.False(t, allHaveLeader([]kafka.Partition{{Leader: kafka.Broker{ID: 1}}, {Leader: kafka.Broker{ID: -1}}}))
}

func TestEnsureTopic_NoBrokers(t *testing.T) {
	err := EnsureTopic(context.Background(), nil, TopicSpec{Name: "account-events"}, nil)
	require.Error(t, err)
}
