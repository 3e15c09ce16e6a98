package depot

import (
	"database/sql"
	"fmt"
	"time"
)

// Store provides database operations for depots, versions, and grants.
type Store struct {
	db *sql.DB
}

// NewStore creates a depot store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new depot row.
func (s *Store) Create(realm, depotID, name, createdBy string) (*Depot, error) {
	d := &Depot{
		Realm:     realm,
		DepotID:   depotID,
		Name:      name,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UnixMilli(),
	}
	_, err := s.db.Exec(`
		INSERT INTO depots (realm, depot_id, name, created_by, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, d.Realm, d.DepotID, d.Name, d.CreatedBy, d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create depot: %w", err)
	}
	return d, nil
}

// Get retrieves a depot. Returns nil when absent.
func (s *Store) Get(realm, depotID string) (*Depot, error) {
	var d Depot
	err := s.db.QueryRow(`
		SELECT realm, depot_id, name, created_by, created_at
		FROM depots WHERE realm = ? AND depot_id = ?
	`, realm, depotID).Scan(&d.Realm, &d.DepotID, &d.Name, &d.CreatedBy, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get depot: %w", err)
	}
	return &d, nil
}

// PublishVersion appends the next version of a depot inside one
// transaction, so concurrent publishes cannot collide on a number.
func (s *Store) PublishVersion(realm, depotID, rootHash, publishedBy string) (*Version, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin publish: %w", err)
	}
	defer tx.Rollback()

	var next int64
	err = tx.QueryRow(`
		SELECT COALESCE(MAX(version), 0) + 1 FROM depot_versions
		WHERE realm = ? AND depot_id = ?
	`, realm, depotID).Scan(&next)
	if err != nil {
		return nil, fmt.Errorf("failed to number version: %w", err)
	}

	v := &Version{
		Realm:       realm,
		DepotID:     depotID,
		Version:     next,
		RootHash:    rootHash,
		PublishedBy: publishedBy,
		PublishedAt: time.Now().UnixMilli(),
	}
	_, err = tx.Exec(`
		INSERT INTO depot_versions (realm, depot_id, version, root_hash, published_by, published_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, v.Realm, v.DepotID, v.Version, v.RootHash, v.PublishedBy, v.PublishedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to publish version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit publish: %w", err)
	}
	return v, nil
}

// VersionRoot resolves the pinned root of one published version.
func (s *Store) VersionRoot(realm, depotID string, version int64) (string, bool, error) {
	var rootHash string
	err := s.db.QueryRow(`
		SELECT root_hash FROM depot_versions
		WHERE realm = ? AND depot_id = ? AND version = ?
	`, realm, depotID, version).Scan(&rootHash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve version: %w", err)
	}
	return rootHash, true, nil
}

// Grant records a proof-level access grant. Re-granting is a no-op.
func (s *Store) Grant(depotID, delegateID, grantedBy string) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO depot_access (depot_id, delegate_id, granted_by, granted_at)
		VALUES (?, ?, ?, ?)
	`, depotID, delegateID, grantedBy, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to grant access: %w", err)
	}
	return nil
}

// HasAccess reports whether a delegate holds a grant on the depot.
func (s *Store) HasAccess(depotID, delegateID string) (bool, error) {
	var one int
	err := s.db.QueryRow(`
		SELECT 1 FROM depot_access WHERE depot_id = ? AND delegate_id = ?
	`, depotID, delegateID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check access: %w", err)
	}
	return true, nil
}
