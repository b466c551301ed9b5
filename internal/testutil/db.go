package testutil

import (
	"context"
	"hsmeta/pkg/config"
	"hsmeta/pkg/database"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

// Path of the migrations, relative to this file.
func migrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "pkg", "database", "migrations")
}

// SetupTestDB starts a postgres container with the full schema migrated.
// Skipped on short runs.
func SetupTestDB(t *testing.T) (*gorm.DB, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable", "TimeZone=UTC")
	if err != nil {
		testcontainers.CleanupContainer(t, container)
		t.Fatalf("Failed to get the connection string: %v", err)
	}

	db, err := database.NewConnection(dsn)
	if err != nil {
		testcontainers.CleanupContainer(t, container)
		t.Fatalf("Failed to open the connection: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get SQL DB: %v", err)
	}

	// Run the migrations to replicate the full schema.
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			DSN:            dsn,
			Name:           "testdb",
			MigrationsPath: migrationsPath(),
		},
	}
	if err := database.RunMigrations(cfg, sqlDB); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		sqlDB.Close()
		testcontainers.CleanupContainer(t, container)
	}

	return db, cleanup
}
