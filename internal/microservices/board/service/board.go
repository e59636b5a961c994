package service

import (
	"context"
	"time"

	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/microservices/board/metrics"
)

type BoardServiceInterface interface {
	Load(ctx context.Context) error
	RunRefresher(ctx context.Context, every time.Duration)
}

// BoardService fills the store from the backend.
type BoardService struct {
	client      SyncClient
	coordinator CoordinatorInterface
	metrics     *metrics.Metrics
	lg          *logger.Logger
}

func NewBoardService(client SyncClient, coordinator CoordinatorInterface, m *metrics.Metrics, lg *logger.Logger) *BoardService {
	if lg == nil {
		lg = logger.New("board")
	}
	return &BoardService{client: client, coordinator: coordinator, metrics: m, lg: lg}
}

// Load fetches the active orders and replaces the store content. On failure
// the store keeps its previous state and a *FetchFailure is returned.
func (s *BoardService) Load(ctx context.Context) error {
	orders, err := s.client.FetchActiveOrders(ctx)
	if err != nil {
		s.count("error")
		s.lg.Error("active_orders_fetch_failed", err, nil)
		return &FetchFailure{Err: err}
	}
	s.coordinator.ReplaceAll(orders)
	s.count("ok")
	s.lg.Info("active_orders_loaded", map[string]any{"count": len(orders)})
	return nil
}

// RunRefresher reloads the board every interval until ctx is done. Failures
// are logged and the next tick tries again.
func (s *BoardService) RunRefresher(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = s.Load(ctx)
		}
	}
}

func (s *BoardService) count(result string) {
	if s.metrics != nil {
		s.metrics.Fetches.WithLabelValues(result).Inc()
	}
}
