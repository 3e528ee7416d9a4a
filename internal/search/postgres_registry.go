package search

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"bibliobridge/internal/dialect"
)

type PostgresRegistry struct {
	db *pgxpool.Pool
}

func NewPostgresRegistry(db *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

func (r *PostgresRegistry) Active(ctx context.Context) ([]Server, error) {
	const query = `
		SELECT id, name, host, port, databases, syntax, login, password
		FROM z3950_servers
		WHERE active
		ORDER BY position, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list z3950 servers: %w", err)
	}
	defer rows.Close()

	var out []Server
	for rows.Next() {
		var (
			s      Server
			syntax string
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Host, &s.Port, &s.Databases, &syntax, &s.Login, &s.Password); err != nil {
			return nil, fmt.Errorf("scan z3950 server: %w", err)
		}
		if s.Syntax, err = dialect.Parse(syntax); err != nil {
			return nil, fmt.Errorf("z3950 server %s: %w", s.Name, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Upsert inserts or updates a server by name, keeping the file order as the
// search order.
func (r *PostgresRegistry) Upsert(ctx context.Context, s Server, position int) error {
	const query = `
		INSERT INTO z3950_servers (name, host, port, databases, syntax, login, password, active, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (name) DO UPDATE SET
			host = EXCLUDED.host,
			port = EXCLUDED.port,
			databases = EXCLUDED.databases,
			syntax = EXCLUDED.syntax,
			login = EXCLUDED.login,
			password = EXCLUDED.password,
			active = EXCLUDED.active,
			position = EXCLUDED.position`

	_, err := r.db.Exec(ctx, query, s.Name, s.Host, s.port(), s.Databases, s.Syntax.Syntax(),
		s.Login, s.Password, !s.Disabled, position)
	if err != nil {
		return fmt.Errorf("upsert z3950 server %s: %w", s.Name, err)
	}
	return nil
}
