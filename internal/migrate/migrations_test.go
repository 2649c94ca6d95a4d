package migrate

import (
	"strings"
	"testing"
)

func TestLoadMigrationsParsesAndOrders(t *testing.T) {
	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatalf("expected at least one embedded migration")
	}
	for i, m := range migrations {
		if m.Version <= 0 {
			t.Fatalf("migration %s has non-positive version %d", m.Name, m.Version)
		}
		if i > 0 && migrations[i-1].Version >= m.Version {
			t.Fatalf("migrations out of order: %s before %s", migrations[i-1].Name, m.Name)
		}
		if strings.TrimSpace(m.UpSQL) == "" {
			t.Fatalf("migration %s is empty", m.Name)
		}
	}
}

func TestInitMigrationCoversAllTables(t *testing.T) {
	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tables := []string{
		"properties", "units", "tenants", "leases", "applications",
		"work_orders", "onboarding_checklists", "transition_records",
		"bulk_actions", "documents", "audit_log_entries",
	}
	for _, table := range tables {
		if !strings.Contains(migrations[0].UpSQL, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Fatalf("initial migration missing table %s", table)
		}
	}
}
