// Package database opens the SQLite store and owns its schema.
package database

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// OpenDatabase opens a SQLite database at the given path and applies pragmas.
// Uses _txlock=immediate so transactions acquire write locks up front,
// which serializes read-then-write sequences like token rotation.
func OpenDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_txlock=immediate")
	if err != nil {
		return nil, err
	}

	if err := ApplyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// InitStore opens or creates the store database and initializes the schema.
func InitStore(path string) (*sql.DB, error) {
	db, err := OpenDatabase(path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(GetSchema()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
