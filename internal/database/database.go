package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"

	"ms-boxoffice/internal/config"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Open connects to the configured database, retrying the way the service
// does on container start-up, and wraps it in bun with the matching dialect.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	var (
		sqldb *sql.DB
		err   error
	)
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Connecting to %s (attempt %d/%d)", cfg.Driver, i+1, maxRetries))
		sqldb, err = openSQL(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, err
		}

		err = sqldb.PingContext(ctx)
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to %s: %v", cfg.Driver, err))
		sqldb.Close()
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s after %d attempts: %w", cfg.Driver, maxRetries, err)
	}

	if cfg.Driver == DriverSQLite {
		sqldb.SetMaxOpenConns(1)
	} else {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
		sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	log.Info("DATABASE", fmt.Sprintf("%s connection successful", cfg.Driver))
	return bun.NewDB(sqldb, dialectFor(cfg.Driver)), nil
}

func openSQL(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverPostgres:
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn))), nil
	case DriverMySQL:
		mcfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		mcfg.ParseTime = true
		// Affected() counts matched rows, not changed ones.
		mcfg.ClientFoundRows = true
		connector, err := mysql.NewConnector(mcfg)
		if err != nil {
			return nil, err
		}
		return sql.OpenDB(connector), nil
	case DriverSQLite:
		return sql.Open(sqliteshim.ShimName, dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
}

func dialectFor(driver string) schema.Dialect {
	switch driver {
	case DriverMySQL:
		return mysqldialect.New()
	case DriverSQLite:
		return sqlitedialect.New()
	default:
		return pgdialect.New()
	}
}

// OpenSQLite opens an in-memory database with the schema in place.
// A single connection keeps every query on the same memory store.
func OpenSQLite(ctx context.Context) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if err := CreateSchema(ctx, bunDB); err != nil {
		bunDB.Close()
		return nil, err
	}
	return bunDB, nil
}

var tables = []interface{}{
	(*models.Show)(nil),
	(*models.Member)(nil),
	(*models.Participation)(nil),
	(*models.LayoutConfig)(nil),
	(*models.InvitationToken)(nil),
	(*models.Reservation)(nil),
}

// CreateSchema creates the tables straight from the bun models. Postgres
// deployments use the versioned migrations instead.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	indexes := []struct {
		model   interface{}
		name    string
		columns []string
	}{
		{(*models.Reservation)(nil), "idx_reservations_session", []string{"show_id", "session_id"}},
		{(*models.Reservation)(nil), "idx_reservations_group", []string{"group_id"}},
		{(*models.Reservation)(nil), "idx_reservations_email", []string{"holder_email"}},
		{(*models.InvitationToken)(nil), "idx_tokens_show", []string{"show_id"}},
		{(*models.Participation)(nil), "idx_participations_show", []string{"show_id"}},
	}
	mysql := db.Dialect().Name() == dialect.MySQL
	for _, idx := range indexes {
		q := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.columns...)
		// MySQL has no CREATE INDEX IF NOT EXISTS.
		if !mysql {
			q = q.IfNotExists()
		}
		if _, err := q.Exec(ctx); err != nil {
			if mysql && strings.Contains(err.Error(), "Duplicate key name") {
				continue
			}
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

func DropSchema(ctx context.Context, db bun.IDB) error {
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(tables[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", tables[i], err)
		}
	}
	return nil
}

// Wrap maps driver errors onto the ledger's error kinds: a missing row
// becomes notFound, anything else is a retryable storage failure.
func Wrap(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
}

// Affected wraps an update or delete result, reporting notFound when no
// row matched.
func Affected(res sql.Result, err error, notFound error) error {
	if err != nil {
		return Wrap(err, notFound)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Wrap(err, notFound)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
