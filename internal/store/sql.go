package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"drinksmenu/internal/model"
)

// Dialect names the SQL flavour behind a SQL store.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// PoolOptions tunes the database/sql connection pool.
type PoolOptions struct {
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
}

// SQL is a Store backed by database/sql, either Postgres (pgx) or SQLite.
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

// ParseDSN works out the dialect and driver source for a DATABASE_URL value.
func ParseDSN(dsn string) (Dialect, string, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return "", "", errors.New("empty database url")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return Postgres, dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return SQLite, strings.TrimPrefix(dsn, "sqlite://"), nil
	case strings.HasPrefix(dsn, "file:"), strings.HasSuffix(dsn, ".db"), strings.HasSuffix(dsn, ".sqlite"):
		return SQLite, dsn, nil
	}
	return "", "", fmt.Errorf("unsupported database url %q", dsn)
}

// OpenSQL opens and pings the database named by dsn.
func OpenSQL(ctx context.Context, dsn string, opts PoolOptions) (*SQL, error) {
	dialect, source, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	var db *sql.DB
	switch dialect {
	case Postgres:
		db, err = sql.Open("pgx", source)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(opts.MaxOpenConns)
		db.SetMaxIdleConns(opts.MaxIdleConns)
		db.SetConnMaxIdleTime(opts.MaxIdleTime)
	case SQLite:
		db, err = sql.Open("sqlite", sqliteSource(source))
		if err != nil {
			return nil, err
		}
		// one writer at a time; WAL lets readers proceed
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQL{db: db, dialect: dialect}, nil
}

func sqliteSource(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// Dialect reports which SQL flavour the store talks to.
func (s *SQL) Dialect() Dialect { return s.dialect }

func (s *SQL) ListDrinks(ctx context.Context) ([]model.Drink, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, recipe FROM drinks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Drink{}
	for rows.Next() {
		var d model.Drink
		if err := rows.Scan(&d.ID, &d.Title, &d.Recipe); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQL) GetDrink(ctx context.Context, id int64) (model.Drink, error) {
	return getDrink(ctx, s.db, s.rebind(`SELECT id, title, recipe FROM drinks WHERE id = ?`), id)
}

func (s *SQL) CreateDrink(ctx context.Context, title, recipe string) (model.Drink, error) {
	if err := checkTitle(title); err != nil {
		return model.Drink{}, err
	}
	d := model.Drink{Title: title, Recipe: recipe}
	err := s.db.QueryRowContext(ctx, s.rebind(`INSERT INTO drinks (title, recipe) VALUES (?, ?) RETURNING id`), title, recipe).Scan(&d.ID)
	if err != nil {
		return model.Drink{}, s.mapErr(err)
	}
	return d, nil
}

func (s *SQL) UpdateDrink(ctx context.Context, id int64, patch model.DrinkPatch) (model.Drink, error) {
	if patch.Title != nil {
		if err := checkTitle(*patch.Title); err != nil {
			return model.Drink{}, err
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Drink{}, err
	}
	defer func() { _ = tx.Rollback() }()

	d, err := getDrink(ctx, tx, s.rebind(`SELECT id, title, recipe FROM drinks WHERE id = ?`), id)
	if err != nil {
		return model.Drink{}, err
	}
	if patch.Title != nil {
		d.Title = *patch.Title
	}
	if patch.Recipe != nil {
		d.Recipe = *patch.Recipe
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`UPDATE drinks SET title = ?, recipe = ? WHERE id = ?`), d.Title, d.Recipe, id); err != nil {
		return model.Drink{}, s.mapErr(err)
	}
	if err := tx.Commit(); err != nil {
		return model.Drink{}, err
	}
	return d, nil
}

func (s *SQL) DeleteDrink(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM drinks WHERE id = ?`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQL) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQL) Close() error { return s.db.Close() }

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getDrink(ctx context.Context, q queryRower, query string, id int64) (model.Drink, error) {
	var d model.Drink
	if err := q.QueryRowContext(ctx, query, id).Scan(&d.ID, &d.Title, &d.Recipe); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return d, ErrNotFound
		}
		return d, err
	}
	return d, nil
}

// rebind turns ? placeholders into $n for Postgres.
func (s *SQL) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// mapErr translates unique violations into ErrDuplicateTitle and title
// length violations into ErrTitleTooLong.
func (s *SQL) mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", ErrDuplicateTitle, pgErr.Detail)
		case "22001": // string_data_right_truncation
			return fmt.Errorf("%w: %s", ErrTitleTooLong, pgErr.Message)
		}
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return fmt.Errorf("%w: %s", ErrDuplicateTitle, liteErr.Error())
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return fmt.Errorf("%w: %s", ErrTitleTooLong, liteErr.Error())
		}
	}
	return err
}
