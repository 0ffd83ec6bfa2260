package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Health describes the outcome of a database health probe.
type Health struct {
	OK      bool   `json:"ok"`
	Latency string `json:"latency"`
	Error   string `json:"error,omitempty"`
}

// CheckHealth pings the pool with a short deadline and reports the result.
func CheckHealth(ctx context.Context, pool *pgxpool.Pool) Health {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := pool.Ping(ctx)
	h := Health{
		OK:      err == nil,
		Latency: time.Since(start).String(),
	}
	if err != nil {
		h.Error = err.Error()
	}
	return h
}
