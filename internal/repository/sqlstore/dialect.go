package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/sandeepkv93/sitedeck/internal/config"
)

// dialect captures the few statements that differ between databases.
type dialect struct {
	name      string
	driver    string
	returning bool
}

func dialectFor(name string) (dialect, error) {
	switch name {
	case config.DialectPostgres:
		return dialect{name: name, driver: "pgx", returning: true}, nil
	case config.DialectMySQL:
		return dialect{name: name, driver: "mysql"}, nil
	case config.DialectSQLite:
		return dialect{name: name, driver: "sqlite3"}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported database dialect %q", name)
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// insertIgnore builds an insert that silently skips rows colliding on a unique key.
func (d dialect) insertIgnore(table string, cols []string) string {
	list := strings.Join(cols, ", ")
	if d.name == config.DialectMySQL {
		return "INSERT IGNORE INTO " + table + " (" + list + ") VALUES (" + placeholders(len(cols)) + ")"
	}
	return "INSERT INTO " + table + " (" + list + ") VALUES (" + placeholders(len(cols)) + ") ON CONFLICT DO NOTHING"
}

// upsert builds an insert that overwrites update columns on a conflict over key.
func (d dialect) upsert(table string, cols []string, key string, update []string) string {
	base := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders(len(cols)) + ")"
	sets := make([]string, 0, len(update))
	for _, c := range update {
		if d.name == config.DialectMySQL {
			sets = append(sets, c+" = VALUES("+c+")")
		} else {
			sets = append(sets, c+" = excluded."+c)
		}
	}
	if d.name == config.DialectMySQL {
		return base + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	return base + " ON CONFLICT (" + key + ") DO UPDATE SET " + strings.Join(sets, ", ")
}

// insert runs an INSERT and returns the generated id.
func (s *Store) insert(ctx context.Context, e sqlx.ExtContext, table string, cols []string, args ...any) (uint, error) {
	query := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders(len(cols)) + ")"
	if s.d.returning {
		var id uint
		err := sqlx.GetContext(ctx, e, &id, s.q(query+" RETURNING id"), args...)
		return id, err
	}
	res, err := e.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint(id), err
}
