package events

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKeepsOrder(t *testing.T) {
	m := &Memory{}
	ctx := context.Background()

	require.NoError(t, m.Publish(ctx, KeyPayoutRequested, PayoutChanged{PayoutID: 1}))
	require.NoError(t, m.Publish(ctx, KeyPayoutRejected, PayoutChanged{PayoutID: 1}))

	assert.Equal(t, []string{KeyPayoutRequested, KeyPayoutRejected}, m.Keys())
	assert.Equal(t, uint(1), m.Messages()[1].Body.(PayoutChanged).PayoutID)
}

func TestRabbitPublish(t *testing.T) {
	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		t.Skip("RABBITMQ_URL not set")
	}

	p, err := DialRabbit(url, "finance.events.test")
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, p.Publish(ctx, KeyPaymentVerified, PaymentVerified{PaymentID: 1, OccurredAt: time.Now()}))
}
