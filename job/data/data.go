// Package data opens the job service storage: the SQLite job repository
// database and the optional Redis status cache.
package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ncobase/jobpanel/config"
	"github.com/ncobase/jobpanel/logging/logger"
	"github.com/redis/go-redis/v9"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Data holds the opened connections.
type Data struct {
	db     *sql.DB
	rc     *redis.Client
	logger *logger.Logger
}

// New opens SQLite and, when an address is configured, Redis. The returned
// Data must be closed.
func New(ctx context.Context, cfg *config.Data, log *logger.Logger) (*Data, error) {
	if cfg == nil || cfg.SQLite == nil {
		return nil, fmt.Errorf("sqlite: configuration is missing")
	}

	db, err := openSQLite(ctx, cfg.SQLite)
	if err != nil {
		return nil, err
	}

	d := &Data{db: db, logger: log}

	if cfg.Redis != nil && cfg.Redis.Addr != "" {
		rc, err := openRedis(ctx, cfg.Redis)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		d.rc = rc
		log.Info(ctx, "Redis status cache enabled", "addr", cfg.Redis.Addr)
	}

	return d, nil
}

// DB returns the SQLite handle.
func (d *Data) DB() *sql.DB {
	return d.db
}

// Redis returns the Redis client, nil when the cache is disabled.
func (d *Data) Redis() *redis.Client {
	return d.rc
}

// Close closes every connection.
func (d *Data) Close() error {
	var firstErr error
	if d.rc != nil {
		if err := d.rc.Close(); err != nil {
			firstErr = fmt.Errorf("redis: failed to close connection: %w", err)
		}
	}
	if err := d.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("sqlite: failed to close connection: %w", err)
	}
	return firstErr
}

func openSQLite(ctx context.Context, cfg *config.SQLite) (*sql.DB, error) {
	if cfg.Source == "" {
		return nil, fmt.Errorf("sqlite: connection source is empty")
	}

	db, err := sql.Open("sqlite3", cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open connection: %w", err)
	}

	if cfg.MaxIdleConn > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConn)
	} else {
		db.SetMaxIdleConns(2)
	}

	// SQLite serializes writers; one open connection avoids SQLITE_BUSY.
	if cfg.MaxOpenConn > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConn)
	} else {
		db.SetMaxOpenConns(1)
	}

	if cfg.ConnMaxLifeTime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifeTime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: failed to ping database: %w", err)
	}

	return db, nil
}

func openRedis(ctx context.Context, cfg *config.Redis) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.Db,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		DialTimeout:  cfg.DialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: failed to ping server: %w", err)
	}

	return client, nil
}
