package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

type dialect struct {
	name   string
	driver string
	// forUpdate is appended to reads that must lock the selected row until
	// the surrounding transaction ends. SQLite has no row locks; its writers
	// are serialized by an immediate transaction on a single connection.
	forUpdate string
}

var (
	postgresDialect = dialect{name: "postgres", driver: "postgres", forUpdate: " FOR UPDATE"}
	sqliteDialect   = dialect{name: "sqlite3", driver: "sqlite3"}
)

// sqliteParams are appended to every SQLite DSN.
const sqliteParams = "_fk=1&_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL"

func parseDatabaseURL(databaseURL string) (dialect, string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return dialect{}, "", fmt.Errorf("parse database url: %w", err)
	}

	switch u.Scheme {
	case "postgres", "postgresql":
		return postgresDialect, databaseURL, nil
	case "sqlite3":
		dsn := strings.TrimPrefix(databaseURL, "sqlite3://")
		if dsn == "" {
			return dialect{}, "", fmt.Errorf("sqlite3 url has no path")
		}
		if strings.Contains(dsn, "?") {
			dsn += "&" + sqliteParams
		} else {
			dsn += "?" + sqliteParams
		}
		return sqliteDialect, dsn, nil
	default:
		return dialect{}, "", fmt.Errorf("unsupported database scheme %q", u.Scheme)
	}
}

type SQLRepository struct {
	*Queries
	conn    *sql.DB
	dialect dialect
}

// Open connects to the database named by databaseURL. Supported schemes are
// postgres://, postgresql:// and sqlite3://.
func Open(ctx context.Context, databaseURL string) (*SQLRepository, error) {
	d, dsn, err := parseDatabaseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if d == sqliteDialect {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetConnMaxIdleTime(5 * time.Minute)
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetMaxIdleConns(10)
		db.SetMaxOpenConns(20)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &SQLRepository{
		Queries: &Queries{db: db, dialect: d},
		conn:    db,
		dialect: d,
	}, nil
}

func (r *SQLRepository) DB() *sql.DB {
	return r.conn
}

func (r *SQLRepository) Dialect() string {
	return r.dialect.name
}

func (r *SQLRepository) WithTx(ctx context.Context, fn func(q Querier) error) (err error) {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(&Queries{db: tx, dialect: r.dialect}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.conn.PingContext(ctx)
}

func (r *SQLRepository) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
