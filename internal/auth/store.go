package auth

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"casgate/internal/constants"
)

// Store provides database operations for delegates and bootstrap roles.
type Store struct {
	db *sql.DB
}

// NewStore creates a store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const delegateColumns = `delegate_id, realm, parent_id, chain_json, depth,
       can_upload, can_manage_depot, delegated_depots_json, scope_roots_json,
       is_revoked, revoked_at, created_at, expires_at,
       current_rt_hash, current_at_hash, at_expires_at`

// ============================================================================
// Delegate Operations
// ============================================================================

// Create inserts a new delegate row. Delegates are append-only: no update
// path exists besides Revoke and RotateTokens.
func (s *Store) Create(d *Delegate) error {
	chainJSON, err := json.Marshal(d.Chain)
	if err != nil {
		return fmt.Errorf("failed to encode chain: %w", err)
	}
	scopeJSON, err := json.Marshal(d.ScopeRoots)
	if err != nil {
		return fmt.Errorf("failed to encode scope roots: %w", err)
	}

	var depotsJSON *string
	if d.DelegatedDepots != nil {
		raw, err := json.Marshal(d.DelegatedDepots)
		if err != nil {
			return fmt.Errorf("failed to encode delegated depots: %w", err)
		}
		enc := string(raw)
		depotsJSON = &enc
	}

	idHash := hex.EncodeToString(ComputeDelegateIDHash(d.DelegateID))

	_, err = s.db.Exec(`
		INSERT INTO delegates (delegate_id, id_hash, realm, parent_id, chain_json, depth,
		                       can_upload, can_manage_depot, delegated_depots_json, scope_roots_json,
		                       is_revoked, revoked_at, created_at, expires_at,
		                       current_rt_hash, current_at_hash, at_expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, ?, ?, ?, ?, ?)
	`, d.DelegateID, idHash, d.Realm, d.ParentID, string(chainJSON), d.Depth,
		d.CanUpload, d.CanManageDepot, depotsJSON, string(scopeJSON),
		d.CreatedAt, d.ExpiresAt, d.CurrentRTHash, d.CurrentATHash, d.ATExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create delegate: %w", err)
	}
	return nil
}

// Get retrieves a delegate by realm and id. Returns nil when absent.
func (s *Store) Get(realm, delegateID string) (*Delegate, error) {
	return s.scanDelegate(s.db.QueryRow(`
		SELECT `+delegateColumns+` FROM delegates WHERE realm = ? AND delegate_id = ?
	`, realm, delegateID))
}

// GetByID retrieves a delegate by id alone. Returns nil when absent.
func (s *Store) GetByID(delegateID string) (*Delegate, error) {
	return s.scanDelegate(s.db.QueryRow(`
		SELECT `+delegateColumns+` FROM delegates WHERE delegate_id = ?
	`, delegateID))
}

// GetByIDHash retrieves a delegate by the hex hash of its id, the form
// embedded in token issuer fields. Returns nil when absent.
func (s *Store) GetByIDHash(idHashHex string) (*Delegate, error) {
	return s.scanDelegate(s.db.QueryRow(`
		SELECT `+delegateColumns+` FROM delegates WHERE id_hash = ?
	`, idHashHex))
}

// GetRootByRealm retrieves the realm's root delegate. Returns nil when the
// realm has never been bootstrapped.
func (s *Store) GetRootByRealm(realm string) (*Delegate, error) {
	return s.scanDelegate(s.db.QueryRow(`
		SELECT `+delegateColumns+` FROM delegates WHERE realm = ? AND parent_id IS NULL
	`, realm))
}

// ListChildren returns the direct children of a delegate.
func (s *Store) ListChildren(realm, parentID string) ([]*Delegate, error) {
	rows, err := s.db.Query(`
		SELECT `+delegateColumns+` FROM delegates
		WHERE realm = ? AND parent_id = ? ORDER BY created_at ASC
	`, realm, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	defer rows.Close()

	var out []*Delegate
	for rows.Next() {
		d, err := s.scanDelegateRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Revoke flips the revocation flag. Idempotent: re-revoking keeps the
// original revoked_at.
func (s *Store) Revoke(delegateID string) error {
	now := time.Now().UnixMilli()
	_, err := s.db.Exec(`
		UPDATE delegates SET is_revoked = 1, revoked_at = COALESCE(revoked_at, ?)
		WHERE delegate_id = ?
	`, now, delegateID)
	if err != nil {
		return fmt.Errorf("failed to revoke delegate: %w", err)
	}
	return nil
}

// RotateTokens replaces the recorded token hashes and access-token expiry,
// invalidating all previously issued bytes for both roles.
func (s *Store) RotateTokens(delegateID, rtHash, atHash string, atExpiresAt int64) error {
	_, err := s.db.Exec(`
		UPDATE delegates SET current_rt_hash = ?, current_at_hash = ?, at_expires_at = ?
		WHERE delegate_id = ?
	`, rtHash, atHash, atExpiresAt, delegateID)
	if err != nil {
		return fmt.Errorf("failed to rotate tokens: %w", err)
	}
	return nil
}

func (s *Store) scanDelegate(row *sql.Row) (*Delegate, error) {
	d, err := scanDelegateFrom(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (s *Store) scanDelegateRows(rows *sql.Rows) (*Delegate, error) {
	return scanDelegateFrom(rows.Scan)
}

// scanDelegateFrom decodes one delegate row through any Scan function.
func scanDelegateFrom(scan func(dest ...interface{}) error) (*Delegate, error) {
	var d Delegate
	var parentID sql.NullString
	var chainJSON, scopeJSON string
	var depotsJSON sql.NullString
	var revokedAt, expiresAt sql.NullInt64

	err := scan(
		&d.DelegateID, &d.Realm, &parentID, &chainJSON, &d.Depth,
		&d.CanUpload, &d.CanManageDepot, &depotsJSON, &scopeJSON,
		&d.IsRevoked, &revokedAt, &d.CreatedAt, &expiresAt,
		&d.CurrentRTHash, &d.CurrentATHash, &d.ATExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	if parentID.Valid {
		d.ParentID = &parentID.String
	}
	if revokedAt.Valid {
		d.RevokedAt = &revokedAt.Int64
	}
	if expiresAt.Valid {
		d.ExpiresAt = &expiresAt.Int64
	}
	if err := json.Unmarshal([]byte(chainJSON), &d.Chain); err != nil {
		return nil, fmt.Errorf("corrupt chain for delegate %s: %w", d.DelegateID, err)
	}
	if err := json.Unmarshal([]byte(scopeJSON), &d.ScopeRoots); err != nil {
		return nil, fmt.Errorf("corrupt scope roots for delegate %s: %w", d.DelegateID, err)
	}
	if depotsJSON.Valid {
		if err := json.Unmarshal([]byte(depotsJSON.String), &d.DelegatedDepots); err != nil {
			return nil, fmt.Errorf("corrupt delegated depots for delegate %s: %w", d.DelegateID, err)
		}
	}
	return &d, nil
}

// ============================================================================
// Role Operations
// ============================================================================

// GetRole returns the authorization role of a bootstrap identity subject.
// Unknown subjects are unauthorized.
func (s *Store) GetRole(subject string) (string, error) {
	var role string
	err := s.db.QueryRow(`SELECT role FROM realm_roles WHERE subject = ?`, subject).Scan(&role)
	if err == sql.ErrNoRows {
		return constants.RoleUnauthorized, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// SetRole upserts the role of a subject.
func (s *Store) SetRole(subject, role string) error {
	now := time.Now().UnixMilli()
	_, err := s.db.Exec(`
		INSERT INTO realm_roles (subject, role, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(subject) DO UPDATE SET role = ?, updated_at = ?
	`, subject, role, now, role, now)
	if err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	return nil
}
