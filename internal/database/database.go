package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-lunch/internal/config"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/models"
)

const (
	maxConnectAttempts = 5
	connectBackoff     = 2 * time.Second
)

// Open connects using the configured driver.
func Open(cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	switch cfg.Driver {
	case "sqlite":
		return OpenSQLite(cfg.DSN)
	case "postgres", "":
		return OpenPostgres(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// OpenPostgres retries the initial ping so the service can start alongside its database container.
func OpenPostgres(cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	var sqldb *sql.DB
	var err error

	for i := 0; i < maxConnectAttempts; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxConnectAttempts))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(connectBackoff)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		_ = sqldb.Close()
		if i < maxConnectAttempts-1 {
			time.Sleep(connectBackoff)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to postgres after %d attempts: %w", maxConnectAttempts, err)
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// OpenSQLite opens a sqlite database. In-memory databases are pinned to one
// connection so every query sees the same schema.
func OpenSQLite(dsn string) (*bun.DB, error) {
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if strings.Contains(dsn, ":memory:") {
		sqldb.SetMaxOpenConns(1)
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// Models lists every table in dependency order.
func Models() []interface{} {
	return []interface{}{
		(*models.User)(nil),
		(*models.Restaurant)(nil),
		(*models.MenuItem)(nil),
		(*models.DailyRestaurant)(nil),
		(*models.VotingPeriod)(nil),
		(*models.Vote)(nil),
		(*models.Order)(nil),
		(*models.OrderItem)(nil),
		(*models.Group)(nil),
		(*models.GroupMember)(nil),
		(*models.Cart)(nil),
		(*models.CartItem)(nil),
		(*models.Payment)(nil),
	}
}

// CreateSchema creates tables from the bun models. Used for sqlite, where the
// postgres migrations do not apply.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range Models() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	_, err := db.NewCreateIndex().
		Model((*models.Order)(nil)).
		Unique().
		IfNotExists().
		Index("uq_orders_live").
		Column("user_id", "voting_period_id").
		Where("status <> 'cancelled'").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create live order index: %w", err)
	}
	return nil
}

// NewTestDB returns an in-memory sqlite database with the full schema.
func NewTestDB() (*bun.DB, error) {
	db, err := OpenSQLite(":memory:")
	if err != nil {
		return nil, err
	}
	if err := CreateSchema(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
