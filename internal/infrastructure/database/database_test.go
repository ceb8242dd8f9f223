package database

import (
	"strings"
	"testing"
)

func TestMigrations_Ordered(t *testing.T) {
	names, err := Migrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) == 0 {
		t.Fatal("expected embedded migrations")
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("migrations out of order: %s before %s", names[i-1], names[i])
		}
	}
	for _, name := range names {
		data, err := migrationsFS.ReadFile(name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(string(data), "IF NOT EXISTS") {
			t.Errorf("%s must be re-runnable", name)
		}
	}
}

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, Database: "saft", User: "u", Password: "p", SSLMode: "disable"}
	want := "host=db port=5432 dbname=saft user=u password=p sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
