package z3950

import (
	"context"

	"bibliobridge/internal/dialect"
)

// Target addresses one remote catalog.
type Target struct {
	Name        string
	Address     string // host:port
	Databases   []string
	Syntax      dialect.Dialect
	Credentials *Credentials
}

type Credentials struct {
	User     string
	Password string
}

// Dialer opens protocol connections. Implementations must honour ctx.
type Dialer interface {
	Dial(ctx context.Context, t Target) (Conn, error)
}

// Conn is one open protocol association. Present returns raw ISO 2709
// records for the 1-based window start..start+count-1 of the last search.
type Conn interface {
	Search(ctx context.Context, databases []string, query string) (int, error)
	Present(ctx context.Context, start, count int) ([][]byte, error)
	Close() error
}
