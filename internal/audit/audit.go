// Package audit keeps an append-only trail of security-relevant events:
// delegate lifecycle changes, token rotations, denied accesses, and claim
// outcomes. The trail is size-capped; when it grows past the configured
// bound, the oldest slice is purged.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"casgate/internal/logger"
)

// purgeCheckInterval is how many records pass between size checks, so the
// hot path rarely pays for the aggregate query.
const purgeCheckInterval = 256

// Event is one recorded audit entry.
type Event struct {
	ID         int64                  `json:"id"`
	Timestamp  int64                  `json:"timestamp"` // unix ms
	Action     string                 `json:"action"`
	Realm      string                 `json:"realm,omitempty"`
	DelegateID string                 `json:"delegate_id,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// Trail records and queries audit events.
type Trail struct {
	db              *sql.DB
	maxSizeBytes    int64
	purgePercentage int
	logger          *logger.Logger
	writesSinceScan atomic.Int64
}

// NewTrail creates an audit trail. maxSizeBytes bounds the stored payload
// size; purgePercentage is how much of the oldest history one purge drops.
func NewTrail(db *sql.DB, maxSizeBytes int64, purgePercentage int, log *logger.Logger) *Trail {
	return &Trail{
		db:              db,
		maxSizeBytes:    maxSizeBytes,
		purgePercentage: purgePercentage,
		logger:          log,
	}
}

// Record appends one event. Recording failures are logged, never
// propagated: the audit trail must not break the operation it observes.
func (t *Trail) Record(action, realm, delegateID string, details map[string]interface{}) {
	var detailsJSON *string
	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err != nil {
			t.logger.Error("audit: failed to encode details for %s: %v", action, err)
		} else {
			enc := string(raw)
			detailsJSON = &enc
		}
	}

	_, err := t.db.Exec(`
		INSERT INTO audit_log (timestamp, action, realm, delegate_id, details_json)
		VALUES (?, ?, ?, ?, ?)
	`, time.Now().UnixMilli(), action, realm, delegateID, detailsJSON)
	if err != nil {
		t.logger.Error("audit: failed to record %s: %v", action, err)
		return
	}

	if t.writesSinceScan.Add(1)%purgeCheckInterval == 0 {
		t.purgeIfOversized()
	}
}

// Query returns the newest events, optionally filtered by action and
// realm, newest first.
func (t *Trail) Query(action, realm string, limit int) ([]*Event, error) {
	query := `SELECT id, timestamp, action, realm, delegate_id, details_json FROM audit_log WHERE 1=1`
	var args []interface{}
	if action != "" {
		query += ` AND action = ?`
		args = append(args, action)
	}
	if realm != "" {
		query += ` AND realm = ?`
		args = append(args, realm)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := t.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var detailsJSON sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Action, &e.Realm, &e.DelegateID, &detailsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if detailsJSON.Valid {
			if err := json.Unmarshal([]byte(detailsJSON.String), &e.Details); err != nil {
				t.logger.Warn("audit: corrupt details on event %d: %v", e.ID, err)
			}
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// purgeIfOversized drops the oldest purgePercentage of rows once the
// stored payload exceeds the size bound.
func (t *Trail) purgeIfOversized() {
	var size sql.NullInt64
	err := t.db.QueryRow(`
		SELECT SUM(LENGTH(action) + LENGTH(COALESCE(details_json, ''))) FROM audit_log
	`).Scan(&size)
	if err != nil {
		t.logger.Error("audit: size check failed: %v", err)
		return
	}
	if !size.Valid || size.Int64 <= t.maxSizeBytes {
		return
	}

	var count int64
	if err := t.db.QueryRow(`SELECT COUNT(*) FROM audit_log`).Scan(&count); err != nil {
		t.logger.Error("audit: count failed: %v", err)
		return
	}
	toDrop := count * int64(t.purgePercentage) / 100
	if toDrop == 0 {
		toDrop = 1
	}

	_, err = t.db.Exec(`
		DELETE FROM audit_log WHERE id IN (
			SELECT id FROM audit_log ORDER BY id ASC LIMIT ?
		)
	`, toDrop)
	if err != nil {
		t.logger.Error("audit: purge failed: %v", err)
		return
	}
	t.logger.Info("audit: purged %d oldest events (trail exceeded %d bytes)", toDrop, t.maxSizeBytes)
}
