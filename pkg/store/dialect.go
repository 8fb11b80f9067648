package store

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Dialect captures the few SQL differences between the supported drivers.
//
// Queries use $n placeholders on both drivers. SQLite binds them in order of
// first appearance, so every query references $1, $2, ... in ascending order.
type Dialect struct {
	Name string
	// Driver is the database/sql driver name
	Driver string
	// IDColumn is the DDL for an auto-incrementing primary key
	IDColumn string
	// Timestamp is the DDL type for timestamps
	Timestamp string
	// ForUpdate is appended to SELECTs that lock rows for the rest of a transaction
	ForUpdate string
}

var (
	// Postgres is the production dialect
	Postgres = Dialect{
		Name:      "postgres",
		Driver:    "postgres",
		IDColumn:  "BIGSERIAL PRIMARY KEY",
		Timestamp: "TIMESTAMPTZ",
		ForUpdate: " FOR UPDATE",
	}

	// SQLite is used for local development and tests. Writers are serialized by
	// limiting the pool to one connection, which stands in for row locks.
	SQLite = Dialect{
		Name:      "sqlite",
		Driver:    "sqlite3",
		IDColumn:  "INTEGER PRIMARY KEY AUTOINCREMENT",
		Timestamp: "TIMESTAMP",
		ForUpdate: "",
	}
)

// DialectFor returns the dialect registered under name
func DialectFor(name string) (Dialect, error) {
	switch name {
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", name)
	}
}

// ErrDuplicate is returned when an insert violates a unique constraint
var ErrDuplicate = errors.New("duplicate record")

// IsUniqueViolation reports whether err is a unique constraint violation on either driver
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
