package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEntry records a transaction status change applied by the settlement
// worker or the fraud monitor.
type AuditEntry struct {
	ID            int64     `json:"id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	PrevStatus    string    `json:"prev_status"`
	NextStatus    string    `json:"next_status"`
	Reason        string    `json:"reason"`
	CreatedAt     time.Time `json:"created_at"`
}

// RecordStatusChange appends to the transaction audit trail. Audit writes
// are advisory: callers log failures but do not roll back money movement.
func (r *Repository) RecordStatusChange(ctx context.Context, transactionID uuid.UUID, prev, next, reason string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO transaction_audit (transaction_id, prev_status, next_status, reason, created_at)
		 VALUES ($1, $2, $3, $4, NOW())`,
		transactionID, prev, next, reason)
	if err != nil {
		return fmt.Errorf("failed to record status change: %w", err)
	}
	return nil
}

// ListStatusChanges returns the audit trail for a transaction, oldest first.
func (r *Repository) ListStatusChanges(ctx context.Context, transactionID uuid.UUID) ([]AuditEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, transaction_id, prev_status, next_status, reason, created_at
		 FROM transaction_audit WHERE transaction_id = $1 ORDER BY id`,
		transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list status changes: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.PrevStatus, &e.NextStatus, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
