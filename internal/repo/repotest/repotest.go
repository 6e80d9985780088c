// Package repotest opens migrated on-disk SQLite stores for tests.
package repotest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/LeventeLantos/sms-questionnaire/internal/repo"
)

// DSN builds a SQLite DSN that serializes writers with BEGIN IMMEDIATE and
// waits on locks instead of failing fast.
func DSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

func NewSQLite(t testing.TB, opts ...repo.Option) *repo.SQLStore {
	t.Helper()

	dsn := DSN(filepath.Join(t.TempDir(), "test.db"))
	s, err := repo.Open(context.Background(), repo.SQLite, dsn, opts...)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}
