package database

import (
	"database/sql"

	"casgate/internal/constants"
)

// GetSchema returns the full SQL schema for the store database.
// All timestamps are unix milliseconds.
func GetSchema() string {
	return `
-- Delegates: capability principals, append-only. Never deleted, never
-- re-parented; mutated only by revocation and token rotation.
CREATE TABLE IF NOT EXISTS delegates (
    delegate_id TEXT PRIMARY KEY,          -- dlt_ + 26-char base32 (128-bit random)
    id_hash TEXT NOT NULL UNIQUE,          -- hex BLAKE3("delegate:"+id), token issuer lookup
    realm TEXT NOT NULL,
    parent_id TEXT,                        -- NULL only for the realm root
    chain_json TEXT NOT NULL,              -- ordered ancestor ids, self included
    depth INTEGER NOT NULL,                -- len(chain)-1, 0..15
    can_upload INTEGER NOT NULL DEFAULT 0,
    can_manage_depot INTEGER NOT NULL DEFAULT 0,
    delegated_depots_json TEXT,            -- NULL = no constraint narrower than parent
    scope_roots_json TEXT NOT NULL,        -- ordered DAG root hashes this delegate may walk
    is_revoked INTEGER NOT NULL DEFAULT 0,
    revoked_at INTEGER,
    created_at INTEGER NOT NULL,
    expires_at INTEGER,                    -- NULL = unbounded
    current_rt_hash TEXT NOT NULL,         -- hex BLAKE3 of the valid refresh-token bytes
    current_at_hash TEXT NOT NULL,         -- hex BLAKE3 of the valid access-token bytes
    at_expires_at INTEGER NOT NULL,
    FOREIGN KEY (parent_id) REFERENCES delegates(delegate_id)
);

CREATE INDEX IF NOT EXISTS idx_delegates_realm ON delegates(realm);
CREATE UNIQUE INDEX IF NOT EXISTS idx_delegates_realm_root
    ON delegates(realm) WHERE parent_id IS NULL;

-- Roles for bootstrap identities. Absent subject = unauthorized.
CREATE TABLE IF NOT EXISTS realm_roles (
    subject TEXT PRIMARY KEY,
    role TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

-- DAG nodes: immutable, hash-addressed, ordered child references.
CREATE TABLE IF NOT EXISTS nodes (
    realm TEXT NOT NULL,
    hash TEXT NOT NULL,                    -- BLAKE3 hex of content
    content BLOB NOT NULL,
    children_json TEXT NOT NULL,           -- ordered child hashes ('[]' for leaves)
    size INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (realm, hash)
);

-- Ownership rows: delegate legitimately possesses a node.
CREATE TABLE IF NOT EXISTS ownership (
    node_hash TEXT NOT NULL,
    delegate_id TEXT NOT NULL,
    realm TEXT NOT NULL,
    via TEXT NOT NULL,                     -- 'upload' | 'claim'
    claimed_at INTEGER NOT NULL,
    PRIMARY KEY (node_hash, delegate_id)
);

CREATE INDEX IF NOT EXISTS idx_ownership_delegate ON ownership(delegate_id);

-- Depots: named collections whose versions pin DAG roots.
CREATE TABLE IF NOT EXISTS depots (
    realm TEXT NOT NULL,
    depot_id TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    created_by TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (realm, depot_id)
);

-- Depot versions: immutable once published.
CREATE TABLE IF NOT EXISTS depot_versions (
    realm TEXT NOT NULL,
    depot_id TEXT NOT NULL,
    version INTEGER NOT NULL,
    root_hash TEXT NOT NULL,
    published_by TEXT NOT NULL,
    published_at INTEGER NOT NULL,
    PRIMARY KEY (realm, depot_id, version)
);

-- Depot ACL: per-delegate depot access grants.
CREATE TABLE IF NOT EXISTS depot_access (
    depot_id TEXT NOT NULL,
    delegate_id TEXT NOT NULL,
    granted_by TEXT NOT NULL,
    granted_at INTEGER NOT NULL,
    PRIMARY KEY (depot_id, delegate_id)
);

-- Audit log (append-only for immutability)
CREATE TABLE IF NOT EXISTS audit_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp INTEGER NOT NULL,
    action TEXT NOT NULL,
    realm TEXT NOT NULL DEFAULT '',
    delegate_id TEXT NOT NULL DEFAULT '',
    details_json TEXT
);

CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_log(action);
CREATE INDEX IF NOT EXISTS idx_audit_realm ON audit_log(realm);
`
}

// ApplyPragmas applies all SQLite pragmas from constants.SQLitePragmas.
// Must be called immediately after opening any database connection.
func ApplyPragmas(db *sql.DB) error {
	for _, pragma := range constants.SQLitePragmas {
		if _, err := db.Exec(pragma); err != nil {
			return err
		}
	}
	return nil
}
