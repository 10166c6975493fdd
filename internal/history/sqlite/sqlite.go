package sqlite

import (
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/flowcap/internal/history/sqlsink"
)

// a single connection keeps ":memory:" one database
var dialect = sqlsink.Dialect{
	Driver:       "sqlite",
	TimeType:     "TIMESTAMP",
	Bind:         func(int) string { return "?" },
	MaxOpenConns: 1,
}

// New opens a SQLite history sink. Accepted DSNs:
//   - "sqlite:///path/to/file.db" or "sqlite://:memory:"
//   - "/path/to/file.db" or ":memory:"
func New(dsn string) (*sqlsink.Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = dsn[len("sqlite://"):]
	}
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}
	return sqlsink.Open(dialect, dsn)
}
