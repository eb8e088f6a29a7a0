// Package storetest opens the shared integration-test database. Tests that
// need real Postgres call Open and are skipped unless ECOM_TEST_DATABASE_URL
// is set.
package storetest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ragavivenugopal/ecom-app/internal/store"
)

const EnvDatabaseURL = "ECOM_TEST_DATABASE_URL"

func Open(t *testing.T) *store.Store {
	t.Helper()

	databaseURL := os.Getenv(EnvDatabaseURL)
	if databaseURL == "" {
		t.Skipf("%s not set, skipping integration test", EnvDatabaseURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	st, err := store.Open(ctx, databaseURL)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		t.Fatalf("migrate test database: %v", err)
	}
	t.Cleanup(st.Close)
	return st
}
