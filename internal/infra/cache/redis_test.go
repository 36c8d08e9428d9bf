package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyStoreRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	ctx := context.Background()
	rdb, err := Connect(ctx, url)
	require.NoError(t, err)
	defer rdb.Close()

	s := NewVerifyStore(rdb, time.Minute)
	key := "test:" + uuid.NewString()

	_, ok, err := s.Recall(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Remember(ctx, key, "42"))
	val, ok, err := s.Recall(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "42", val)
}
