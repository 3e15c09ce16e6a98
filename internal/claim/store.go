package claim

import (
	"database/sql"
	"fmt"
	"time"
)

// Store provides database operations for ownership rows.
type Store struct {
	db *sql.DB
}

// NewStore creates an ownership store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record inserts an ownership row. Re-recording is a no-op: the first
// acquisition path wins and its timestamp is kept.
func (s *Store) Record(realm, nodeHash, delegateID, via string) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO ownership (node_hash, delegate_id, realm, via, claimed_at)
		VALUES (?, ?, ?, ?, ?)
	`, nodeHash, delegateID, realm, via, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record ownership: %w", err)
	}
	return nil
}

// Owns reports whether the delegate holds an ownership row for the node.
func (s *Store) Owns(realm, nodeHash, delegateID string) (bool, error) {
	var one int
	err := s.db.QueryRow(`
		SELECT 1 FROM ownership WHERE realm = ? AND node_hash = ? AND delegate_id = ?
	`, realm, nodeHash, delegateID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check ownership: %w", err)
	}
	return true, nil
}

// CountOwned returns how many nodes a delegate owns in a realm.
func (s *Store) CountOwned(realm, delegateID string) (int64, error) {
	var count int64
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM ownership WHERE realm = ? AND delegate_id = ?
	`, realm, delegateID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count ownership: %w", err)
	}
	return count, nil
}
