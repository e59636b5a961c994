package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/microservices/board/models"
)

func TestBoardService_Load(t *testing.T) {
	f := newFixture(t)
	b := NewBoardService(f.client, f.c, f.metrics, logger.NewWithWriter("test", io.Discard))

	f.client.fetch = []models.Order{kitchenOrder(1, models.StatusPending), kitchenOrder(2, models.StatusReady)}
	require.NoError(t, b.Load(context.Background()))
	assert.Len(t, f.store.List(), 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.ActiveOrders))

	t.Run("fetch failure keeps the board", func(t *testing.T) {
		before := f.store.List()
		down := errors.New("dial tcp: connection refused")
		f.client.fetch, f.client.fetchErr = nil, down

		err := b.Load(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrFetchFailure))
		assert.True(t, errors.Is(err, down))
		assert.Equal(t, before, f.store.List())
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Fetches.WithLabelValues("error")))
	})

	t.Run("empty fetch clears the board", func(t *testing.T) {
		f.client.fetch, f.client.fetchErr = []models.Order{}, nil
		require.NoError(t, b.Load(context.Background()))
		assert.Empty(t, f.store.List())
	})
}

func TestBoardService_RunRefresher(t *testing.T) {
	f := newFixture(t)
	b := NewBoardService(f.client, f.c, nil, logger.NewWithWriter("test", io.Discard))
	f.client.fetch = []models.Order{kitchenOrder(3, models.StatusPending)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.RunRefresher(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, ok := f.store.Get(3)
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop")
	}
}
