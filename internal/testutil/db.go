package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// SetupPool connects to the integration database named by TEST_DATABASE_URL
// and skips the test when it is not set.
func SetupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	_ = godotenv.Load("../../.env")

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Fatalf("ping %s: %v", RedactDSN(dsn), err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

// RedactDSN hides the password of a postgres URL for log output.
func RedactDSN(dsn string) string {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return "<invalid dsn>"
	}
	c := cfg.ConnConfig
	return "postgres://" + c.User + ":***@" + c.Host + "/" + c.Database
}
