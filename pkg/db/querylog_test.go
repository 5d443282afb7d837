package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
)

func TestQueryLoggerReportsSlowAndFailedStatements(t *testing.T) {
	var buf bytes.Buffer
	q := newQueryLogger(logger.New(logger.Options{ServiceName: "test", Output: &buf}), 10*time.Millisecond)
	sql := func() (string, int64) { return "SELECT 1", 1 }

	q.Trace(context.Background(), time.Now(), sql, nil)
	if buf.Len() != 0 {
		t.Fatalf("fast query should not log, got %s", buf.String())
	}

	q.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("missing rows should not log, got %s", buf.String())
	}

	q.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
	if !strings.Contains(buf.String(), "db.slow_query") {
		t.Fatalf("expected slow query entry, got %s", buf.String())
	}

	buf.Reset()
	q.Trace(context.Background(), time.Now(), sql, errors.New("syntax error"))
	if !strings.Contains(buf.String(), "db.query_failed") || !strings.Contains(buf.String(), "SELECT 1") {
		t.Fatalf("expected failed query entry, got %s", buf.String())
	}
}

func TestQueryLoggerSilentWithoutLogger(t *testing.T) {
	q := newQueryLogger(nil, time.Millisecond)
	called := false
	q.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		called = true
		return "", 0
	}, errors.New("boom"))
	if called {
		t.Fatal("silent logger should not render SQL")
	}
}
