package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hsmeta/pkg/config"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const migrationsLockKey = "hsmeta_migrations_lock"

// RunMigrations applies all pending migrations to the database.
func RunMigrations(cfg *config.Config, db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cfg.Database.MigrationsPath),
		cfg.Database.Name,
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	// The advisory lock belongs to a session, lock and unlock must share one connection.
	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("could not get a connection for the migration lock: %w", err)
	}
	defer conn.Close()

	// Acquire an advisory lock to prevent concurrent migrations between services.
	var lockAcquired bool
	err = conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", migrationsLockKey).Scan(&lockAcquired)
	if err != nil {
		return err
	}

	if !lockAcquired {
		slog.Info("another process is already running migrations, skipping")
		return nil
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		if unlockErr := releaseLock(ctx, conn); unlockErr != nil {
			slog.Error("could not release advisory lock after a failed migration", "error", unlockErr)
		}
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return releaseLock(ctx, conn)
}

func releaseLock(ctx context.Context, conn *sql.Conn) error {
	var lockReleased bool
	err := conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock(hashtext($1))", migrationsLockKey).Scan(&lockReleased)
	if err != nil {
		return fmt.Errorf("could not release advisory lock: %w", err)
	}
	if !lockReleased {
		return errors.New("could not release advisory lock: not held by this session")
	}
	return nil
}
