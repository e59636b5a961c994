package repository

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInflightGate_Key(t *testing.T) {
	g := NewInflightGate(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), 0)
	assert.Equal(t, "kitchen-sync:inflight:42", g.Key(42))
	assert.Equal(t, time.Minute, g.ttl)
}

func TestInflightGate_Unreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	g := NewInflightGate(rdb, time.Second)

	ok, err := g.Acquire(context.Background(), 7, "m-1")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "order 7")
	assert.Error(t, g.Release(context.Background(), 7, "m-1"))
}

func TestNew_OptionalBackends(t *testing.T) {
	r := New(nil, nil, 0)
	assert.NotNil(t, r.Store)
	assert.Nil(t, r.Journal)
	assert.Nil(t, r.Gate)
}
