// Package sqlstore implements the state store on database/sql. The same
// queries serve SQLite and Postgres; a Dialect adapts placeholders.
package sqlstore

import (
	"database/sql"
	"strconv"
	"strings"
)

// Dialect describes the differences between supported SQL engines.
type Dialect struct {
	Name   string
	dollar bool // $1, $2 placeholders instead of ?

	// readTx begins a transaction whose statements all see one committed
	// state. nil means the engine's default transaction already does.
	readTx *sql.TxOptions
}

var (
	// SQLite transactions are serializable.
	SQLite   = Dialect{Name: "sqlite"}
	Postgres = Dialect{
		Name:   "postgres",
		dollar: true,
		readTx: &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true},
	}
)

// ReadTx returns the options for a consistent multi-statement read.
func (d Dialect) ReadTx() *sql.TxOptions {
	return d.readTx
}

// Rebind rewrites ? placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.dollar {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
