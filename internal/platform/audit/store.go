// Package audit persists the audit trail written by the audit middleware.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trialdesk/trialdesk/internal/platform/middleware"
)

// Store writes audit entries to the audit_trail table.
type Store struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, timeout: 5 * time.Second}
}

// RecordAccess implements middleware.AuditRecorder.
func (s *Store) RecordAccess(entry middleware.AuditEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_trail (
			user_id, user_roles, resource, resource_id, action,
			ip_address, user_agent, path, method, request_id,
			status_code, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		entry.UserID, entry.UserRoles, entry.Resource, entry.ResourceID,
		entry.Action, entry.IPAddress, entry.UserAgent, entry.Path,
		entry.Method, entry.RequestID, entry.StatusCode, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// Recent returns the most recent audit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]middleware.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, user_roles, resource, resource_id, action,
		       ip_address, user_agent, path, method, request_id,
		       status_code, occurred_at
		FROM audit_trail
		ORDER BY occurred_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying audit trail: %w", err)
	}
	defer rows.Close()

	var entries []middleware.AuditEntry
	for rows.Next() {
		var e middleware.AuditEntry
		if err := rows.Scan(
			&e.UserID, &e.UserRoles, &e.Resource, &e.ResourceID, &e.Action,
			&e.IPAddress, &e.UserAgent, &e.Path, &e.Method, &e.RequestID,
			&e.StatusCode, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
