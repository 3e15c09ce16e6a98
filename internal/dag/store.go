package dag

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Store provides database operations for DAG nodes.
type Store struct {
	db *sql.DB
}

// NewStore creates a node store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Put inserts a node, computing its hash from the content. Re-inserting
// identical content is a no-op; the node graph is append-only.
func (s *Store) Put(realm string, content []byte, children []string) (*Node, error) {
	if err := ValidateNodeInput(content, children); err != nil {
		return nil, err
	}
	if children == nil {
		children = []string{}
	}

	node := &Node{
		Realm:     realm,
		Hash:      ComputeNodeHash(content),
		Children:  children,
		Size:      int64(len(content)),
		CreatedAt: time.Now().UnixMilli(),
		Content:   content,
	}

	childrenJSON, err := json.Marshal(children)
	if err != nil {
		return nil, fmt.Errorf("failed to encode children: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR IGNORE INTO nodes (realm, hash, content, children_json, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, realm, node.Hash, content, string(childrenJSON), node.Size, node.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to store node: %w", err)
	}
	return node, nil
}

// Get retrieves a node with its content. Returns nil when absent.
func (s *Store) Get(realm, hash string) (*Node, error) {
	var node Node
	var childrenJSON string

	err := s.db.QueryRow(`
		SELECT realm, hash, content, children_json, size, created_at
		FROM nodes WHERE realm = ? AND hash = ?
	`, realm, hash).Scan(&node.Realm, &node.Hash, &node.Content, &childrenJSON, &node.Size, &node.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	if err := json.Unmarshal([]byte(childrenJSON), &node.Children); err != nil {
		return nil, fmt.Errorf("corrupt children for node %s: %w", hash, err)
	}
	return &node, nil
}

// Exists reports whether a node is present in the realm.
func (s *Store) Exists(realm, hash string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM nodes WHERE realm = ? AND hash = ?`, realm, hash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check node: %w", err)
	}
	return true, nil
}

// ResolveChildren returns the ordered child list of a node without
// loading its content.
func (s *Store) ResolveChildren(realm, hash string) ([]string, bool, error) {
	var childrenJSON string
	err := s.db.QueryRow(`
		SELECT children_json FROM nodes WHERE realm = ? AND hash = ?
	`, realm, hash).Scan(&childrenJSON)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve node: %w", err)
	}

	var children []string
	if err := json.Unmarshal([]byte(childrenJSON), &children); err != nil {
		return nil, false, fmt.Errorf("corrupt children for node %s: %w", hash, err)
	}
	return children, true, nil
}
