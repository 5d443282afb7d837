package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseFlagsValidatesCommand(t *testing.T) {
	cases := map[string][]string{
		"unknown command": {"-cmd", "drop"},
		"create no name":  {"-cmd", "create"},
		"version no arg":  {"-cmd", "version"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := parseFlags(args, io.Discard); err == nil {
				t.Fatalf("expected error for %v", args)
			}
		})
	}

	opts, err := parseFlags([]string{"-cmd", "status", "-dir", "db"}, io.Discard)
	if err != nil || opts.cmd != "status" || opts.dir != "db" {
		t.Fatalf("unexpected options %+v, %v", opts, err)
	}
}

func TestRunCreateThenValidateWithoutConfig(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-cmd", "create", "-dir", dir, "-name", "add cart index"}, &out); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(out.String(), "_add_cart_index.sql") {
		t.Fatalf("unexpected output %q", out.String())
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one migration file, got %v, %v", entries, err)
	}

	out.Reset()
	if err := run(context.Background(), []string{"-cmd", "validate", "-dir", dir}, &out); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "broken.sql"), []byte("SELECT 1;"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := run(context.Background(), []string{"-cmd", "validate", "-dir", dir}, io.Discard); err == nil {
		t.Fatal("expected validation failure")
	}
}
