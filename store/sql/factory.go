package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/migrations"
)

const defaultPingTimeout = 5 * time.Second

type persistenceConfig struct {
	driver string
	server string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool {
	return c.debug
}

func (c persistenceConfig) GetDriver() string {
	return c.driver
}

func (c persistenceConfig) GetServer() string {
	return c.server
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return defaultPingTimeout
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return "supasoka-client"
}

// Open connects to the configured SQL database and applies the embedded
// migrations for its dialect. The caller owns the returned client.
func Open(ctx context.Context, cfg core.StoreConfig) (*persistence.Client, error) {
	driver, dsn, dialect, err := resolveDriver(cfg)
	if err != nil {
		return nil, err
	}
	source, err := migrations.SourceFor(driver)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if source.Dialect == migrations.DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{driver: driver, server: dsn}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}

	client.RegisterSQLMigrations(source.FS)
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return client, nil
}

// NewCredentialStoreFromPersistence builds a CredentialStore over a
// persistence client or a bare *bun.DB.
func NewCredentialStoreFromPersistence(
	persistenceClient any,
	credentialKey string,
	opts ...CredentialStoreOption,
) (*CredentialStore, error) {
	db, err := resolveBunDB(persistenceClient)
	if err != nil {
		return nil, err
	}
	return NewCredentialStore(db, credentialKey, opts...)
}

func resolveDriver(cfg core.StoreConfig) (string, string, schema.Dialect, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	dsn := strings.TrimSpace(cfg.DSN)
	switch driver {
	case "sqlite", "sqlite3":
		if dsn == "" {
			path := strings.TrimSpace(cfg.Path)
			if path == "" {
				return "", "", nil, core.NewBadInputError("sqlstore: sqlite store requires a dsn or path", nil)
			}
			dsn = fmt.Sprintf("file:%s?_foreign_keys=on", path)
		}
		return "sqlite3", dsn, sqlitedialect.New(), nil
	case "postgres":
		if dsn == "" {
			return "", "", nil, core.NewBadInputError("sqlstore: postgres store requires a dsn", nil)
		}
		return "postgres", dsn, pgdialect.New(), nil
	default:
		return "", "", nil, core.NewBadInputError(
			fmt.Sprintf("sqlstore: unsupported driver %q", cfg.Driver),
			map[string]any{"driver": cfg.Driver},
		)
	}
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
