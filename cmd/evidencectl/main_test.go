package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"evidencevault/internal/config"
	"evidencevault/internal/db"
	"evidencevault/internal/store"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ctl.db")
	t.Setenv("APP_DB_DRIVER", config.DriverSQLite)
	t.Setenv("APP_DB_PATH", path)
	t.Setenv("JWT_SECRET", strings.Repeat("x", 32))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("CONFIG_FILE", "")
	return path
}

func TestCreateAdminPrompted(t *testing.T) {
	path := setupEnv(t)
	answers := [][]byte{[]byte("CtlAdmin123!"), []byte("CtlAdmin123!")}
	old := readPassword
	t.Cleanup(func() { readPassword = old })
	readPassword = func() ([]byte, error) {
		next := answers[0]
		answers = answers[1:]
		return next, nil
	}

	var out bytes.Buffer
	err := run(context.Background(), []string{"create-admin", "-email", "Root@Example.com"}, strings.NewReader(""), &out)
	if err != nil {
		t.Fatalf("create-admin: %v", err)
	}
	if !strings.Contains(out.String(), "created admin root@example.com") {
		t.Fatalf("unexpected output: %s", out.String())
	}

	conn, err := db.OpenSQLite(path, 1, 1, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	u, err := store.New(conn, db.DialectSQLite).GetUserByEmail(context.Background(), "root@example.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if u.Role != "admin" {
		t.Fatalf("expected admin role, got %s", u.Role)
	}
}

func TestResetAdminFromStdin(t *testing.T) {
	setupEnv(t)
	var out bytes.Buffer
	if err := run(context.Background(), []string{"create-admin", "-email", "root@example.com", "-password-stdin"}, strings.NewReader("FirstPass123!\n"), &out); err != nil {
		t.Fatalf("create-admin: %v", err)
	}
	out.Reset()
	if err := run(context.Background(), []string{"reset-admin", "-email", "root@example.com", "-password-stdin"}, strings.NewReader("SecondPass123!"), &out); err != nil {
		t.Fatalf("reset-admin: %v", err)
	}
	if !strings.Contains(out.String(), "restored admin access") {
		t.Fatalf("unexpected output: %s", out.String())
	}
}

func TestCommandErrors(t *testing.T) {
	setupEnv(t)
	var out bytes.Buffer
	if err := run(context.Background(), nil, strings.NewReader(""), &out); err == nil {
		t.Fatalf("expected error without a command")
	}
	if err := run(context.Background(), []string{"bogus"}, strings.NewReader(""), &out); err == nil {
		t.Fatalf("expected error for unknown command")
	}
	if err := run(context.Background(), []string{"create-admin"}, strings.NewReader(""), &out); err == nil {
		t.Fatalf("expected error without -email")
	}
	err := run(context.Background(), []string{"create-admin", "-email", "a@example.com", "-password-stdin"}, strings.NewReader("weak\n"), &out)
	if err == nil {
		t.Fatalf("expected weak password to be rejected")
	}
	if err := run(context.Background(), []string{"migrate"}, strings.NewReader(""), &out); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}
