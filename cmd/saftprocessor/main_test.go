package main

import (
	"sort"
	"strings"
	"testing"

	"3tcapital/saftprocessor/internal/infrastructure/config"
)

func TestRootCommand_Subcommands(t *testing.T) {
	var names []string
	for _, c := range newRootCommand().Commands() {
		names = append(names, c.Name())
	}
	sort.Strings(names)
	if got := strings.Join(names, ","); got != "migrate,opengcs,run-once,serve" {
		t.Errorf("subcommands = %s", got)
	}
}

func TestDatabaseConfig(t *testing.T) {
	got := databaseConfig(config.DatabaseSettings{
		Host: "db", Port: 5433, Database: "saft", User: "u", Password: "p", SSLMode: "require", MaxOpenConns: 7,
	})
	if got.DSN() != "host=db port=5433 dbname=saft user=u password=p sslmode=require" {
		t.Errorf("DSN = %q", got.DSN())
	}
	if got.MaxOpenConns != 7 {
		t.Errorf("MaxOpenConns = %d", got.MaxOpenConns)
	}
}
