// Package factory opens the session store named by a DSN.
package factory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/loykin/flowcap/internal/store"
	pg "github.com/loykin/flowcap/internal/store/postgres"
	sq "github.com/loykin/flowcap/internal/store/sqlite"
)

// NewFromDSN picks the driver from the DSN scheme:
//   - "postgres://..." or "postgresql://..."
//   - "sqlite://<path>", "sqlite://:memory:" or a bare path
func NewFromDSN(dsn string) (store.Store, error) {
	dsn = strings.TrimSpace(dsn)
	scheme, rest, hasScheme := strings.Cut(dsn, "://")
	switch {
	case dsn == "":
		return nil, errors.New("empty DSN")
	case !hasScheme:
		return sq.New(dsn)
	}
	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return pg.New(dsn)
	case "sqlite":
		return sq.New(rest)
	}
	return nil, fmt.Errorf("unsupported store DSN scheme %q", scheme)
}

// Open is NewFromDSN followed by EnsureSchema.
func Open(ctx context.Context, dsn string) (store.Store, error) {
	s, err := NewFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("ensure store schema: %w", err)
	}
	return s, nil
}
