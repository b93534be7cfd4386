package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/rl1809/library-lending/internal/port"
)

const (
	defaultMaxOpenConns    = 50
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	sqliteBusyTimeout      = "_pragma=busy_timeout(5000)"
)

// SQLStore implements port.Store on a relational database.
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
	logger  zerolog.Logger
}

var _ port.Store = (*SQLStore)(nil)

type Option func(*SQLStore) error

func WithLogger(logger zerolog.Logger) Option {
	return func(s *SQLStore) error {
		s.logger = logger
		return nil
	}
}

// WithPool tunes the connection pool. It is ignored for SQLite, which
// always uses a single connection.
func WithPool(maxOpen, maxIdle int, maxLifetime time.Duration) Option {
	return func(s *SQLStore) error {
		if maxOpen <= 0 || maxIdle < 0 {
			return fmt.Errorf("invalid pool size %d/%d", maxOpen, maxIdle)
		}
		if s.dialect.driver == DriverSQLite {
			return nil
		}
		s.db.SetMaxOpenConns(maxOpen)
		s.db.SetMaxIdleConns(maxIdle)
		s.db.SetConnMaxLifetime(maxLifetime)
		return nil
	}
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, driver, dsn string, options ...Option) (*SQLStore, error) {
	if driver == DriverSQLite {
		dsn = withSQLitePragmas(dsn)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver != DriverSQLite {
		db.SetMaxOpenConns(defaultMaxOpenConns)
		db.SetMaxIdleConns(defaultMaxIdleConns)
		db.SetConnMaxLifetime(defaultConnMaxLifetime)
	}

	store, err := NewSQLStore(db, options...)
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return store, nil
}

// NewSQLStore wraps an open handle. The driver name of db selects the dialect.
func NewSQLStore(db *sqlx.DB, options ...Option) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("nil database handle")
	}

	d, err := dialectFor(db.DriverName())
	if err != nil {
		return nil, err
	}

	s := &SQLStore{db: db, dialect: d, logger: zerolog.Nop()}
	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	if d.driver == DriverSQLite {
		// One connection: transactions queue up instead of racing, which is
		// what gives SQLite serializable check-then-write sequences.
		db.SetMaxOpenConns(1)
	}
	return s, nil
}

// Migrate creates the tables when they do not exist yet.
func (s *SQLStore) Migrate(ctx context.Context) error {
	statements, err := s.dialect.statements()
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	s.logger.Debug().Str("driver", s.dialect.driver).Int("statements", len(statements)).Msg("schema migrated")
	return nil
}

// InTx runs fn in one transaction. Any error from fn, and any panic, rolls
// back every write fn made.
func (s *SQLStore) InTx(ctx context.Context, fn func(ctx context.Context, tx port.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, s.dialect.txOptions)
	if err != nil {
		return storageError("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			s.rollback(tx)
			panic(p)
		}
	}()

	if err := fn(ctx, &sqlTx{tx: tx, d: s.dialect}); err != nil {
		s.rollback(tx)
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageError("commit", err)
	}
	return nil
}

func (s *SQLStore) rollback(tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logger.Error().Err(err).Msg("rollback failed")
	}
}

func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func withSQLitePragmas(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqliteBusyTimeout
	}
	return dsn + "?" + sqliteBusyTimeout
}

// sqlTx is the port.Tx handed to engine callbacks.
type sqlTx struct {
	tx *sqlx.Tx
	d  dialect
}

func (t *sqlTx) Books() port.BookRepository {
	return bookRepository{t}
}

func (t *sqlTx) Borrowers() port.BorrowerRepository {
	return borrowerRepository{t}
}

func (t *sqlTx) Borrowings() port.BorrowingRepository {
	return borrowingRepository{t}
}

type sqlBuilder interface {
	ToSQL() (string, []interface{}, error)
}

func (t *sqlTx) get(ctx context.Context, op string, dest any, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return storageError("build "+op, err)
	}
	if err := t.tx.GetContext(ctx, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return storageError(op, err)
	}
	return nil
}

func (t *sqlTx) selectAll(ctx context.Context, op string, dest any, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return storageError("build "+op, err)
	}
	if err := t.tx.SelectContext(ctx, dest, query, args...); err != nil {
		return storageError(op, err)
	}
	return nil
}

// exec runs a write and returns the number of affected rows. Unique
// violations come back as errUniqueViolation for the caller to name.
func (t *sqlTx) exec(ctx context.Context, op string, b sqlBuilder) (int64, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return 0, storageError("build "+op, err)
	}
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageError(op, err)
	}
	return n, nil
}

func (t *sqlTx) insert(ctx context.Context, op string, ds *goqu.InsertDataset) (int64, error) {
	if t.d.returningID {
		query, args, err := ds.Returning(colID).Prepared(true).ToSQL()
		if err != nil {
			return 0, storageError("build "+op, err)
		}
		var id int64
		if err := t.tx.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, classify(op, err)
		}
		return id, nil
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return 0, storageError("build "+op, err)
	}
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageError(op, err)
	}
	return id, nil
}
