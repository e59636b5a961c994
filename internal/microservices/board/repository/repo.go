package repository

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Repository groups the board's storage. Journal and Gate are nil when their
// backing service is not configured.
type Repository struct {
	Store   OrderStoreInterface
	Journal JournalRepoInterface
	Gate    *InflightGate
}

func New(pool *pgxpool.Pool, rdb *redis.Client, gateTTL time.Duration) *Repository {
	r := &Repository{Store: NewOrderStore()}
	if pool != nil {
		r.Journal = NewJournalRepo(pool)
	}
	if rdb != nil {
		r.Gate = NewInflightGate(rdb, gateTTL)
	}
	return r
}
