package db

import (
	"strings"
	"testing"
)

func TestMigrationsAreIdempotent(t *testing.T) {
	for i, stmt := range migrationStatements {
		s := strings.ToUpper(stmt)
		switch {
		case strings.HasPrefix(s, "CREATE TABLE"), strings.HasPrefix(s, "CREATE INDEX"):
			if !strings.Contains(s, "IF NOT EXISTS") {
				t.Errorf("statement %d is not guarded: %s", i+1, stmt)
			}
		case strings.HasPrefix(s, "DO $$"):
			if !strings.Contains(s, "IF NOT EXISTS") {
				t.Errorf("block %d is not guarded", i+1)
			}
		default:
			t.Errorf("unexpected statement %d: %s", i+1, stmt)
		}
	}
}

func TestMigrationsCreateStores(t *testing.T) {
	joined := strings.Join(migrationStatements, "\n")
	for _, table := range []string{"challans", "captures"} {
		if !strings.Contains(joined, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("missing table %s", table)
		}
	}
}
