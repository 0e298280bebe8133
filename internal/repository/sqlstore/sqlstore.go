// Package sqlstore implements repository.Store with hand-written SQL on
// sqlx. The schema is owned by the gorm migrations in internal/database;
// both adapters read and write the same tables.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sandeepkv93/sitedeck/internal/config"
	"github.com/sandeepkv93/sitedeck/internal/observability"
	"github.com/sandeepkv93/sitedeck/internal/repository"
)

type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store is the sqlx-backed repository.Store.
type Store struct {
	db *sqlx.DB
	d  dialect

	users          *userRepo
	categories     *categoryRepo
	websites       *websiteRepo
	tags           *tagRepo
	favorites      *favoriteRepo
	settings       *settingRepo
	sessions       *sessionRepo
	passwordResets *passwordResetRepo
}

// Open connects with the driver matching dialectName (postgres, mysql or sqlite).
func Open(ctx context.Context, dialectName, dsn string, pool PoolOptions) (*Store, error) {
	d, err := dialectFor(dialectName)
	if err != nil {
		return nil, err
	}
	if d.name == config.DialectMySQL {
		cfg, err := mysqldriver.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		dsn = cfg.FormatDSN()
	}
	db, err := sqlx.ConnectContext(ctx, d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", d.name, err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if d.name == config.DialectSQLite {
		db.SetMaxOpenConns(1)
	}
	return New(db, d.name)
}

// New wraps an existing connection. dialectName must match the driver behind db.
func New(db *sqlx.DB, dialectName string) (*Store, error) {
	d, err := dialectFor(dialectName)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, d: d}
	s.users = &userRepo{s}
	s.categories = &categoryRepo{s}
	s.websites = &websiteRepo{s}
	s.tags = &tagRepo{s}
	s.favorites = &favoriteRepo{s}
	s.settings = &settingRepo{s}
	s.sessions = &sessionRepo{s}
	s.passwordResets = &passwordResetRepo{s}
	return s, nil
}

func (s *Store) Users() repository.UserRepository                   { return s.users }
func (s *Store) Categories() repository.CategoryRepository          { return s.categories }
func (s *Store) Websites() repository.WebsiteRepository             { return s.websites }
func (s *Store) Tags() repository.TagRepository                     { return s.tags }
func (s *Store) Favorites() repository.FavoriteRepository           { return s.favorites }
func (s *Store) Settings() repository.SettingRepository             { return s.settings }
func (s *Store) Sessions() repository.SessionRepository             { return s.sessions }
func (s *Store) PasswordResets() repository.PasswordResetRepository { return s.passwordResets }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

// withTx runs fn in a transaction, rolling back on error or panic.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) q(query string) string { return s.db.Rebind(query) }

// exec runs a statement and returns the affected row count.
func exec(ctx context.Context, e sqlx.ExecerContext, query string, args ...any) (int64, error) {
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// existsByID confirms a row after an update that touched nothing, since
// MySQL reports zero affected rows when values are unchanged.
func (s *Store) existsByID(ctx context.Context, q sqlx.QueryerContext, table string, id uint) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, s.q("SELECT COUNT(*) FROM "+table+" WHERE id = ?"), id)
	return n > 0, err
}

func (s *Store) updateByID(ctx context.Context, e sqlx.ExtContext, table string, id uint, notFound error, set string, args ...any) error {
	n, err := exec(ctx, e, s.q("UPDATE "+table+" SET "+set+" WHERE id = ?"), append(args, id)...)
	if err != nil {
		return mapError(err, notFound)
	}
	if n > 0 {
		return nil
	}
	ok, err := s.existsByID(ctx, e, table, id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound
	}
	return nil
}

// mapError converts driver errors into repository sentinels.
func mapError(err, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		if notFound != nil {
			return notFound
		}
		return err
	case repository.IsUniqueViolation(err):
		return repository.ErrDuplicate
	default:
		return err
	}
}

func observe(ctx context.Context, entity, op string, err error) error {
	observability.RecordRepositoryOperation(ctx, entity, op, repository.Outcome(err))
	return err
}

func now() time.Time { return time.Now().UTC() }
