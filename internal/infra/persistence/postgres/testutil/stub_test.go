package testutil

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"testing"
)

func TestStubUpsertReplacesByFirstColumn(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	upsert := "INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload"
	for _, payload := range []string{"[1]", "[1,2]"} {
		if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: "todos"}, {Value: []byte(payload)}}); err != nil {
			t.Fatalf("exec: %v", err)
		}
	}
	if rows := conn.Tables["state"]; len(rows) != 1 || string(rows[0]["payload"].([]byte)) != "[1,2]" {
		t.Fatalf("expected single replaced row, got %v", rows)
	}

	rows, err := conn.QueryContext(ctx, "SELECT bucket, payload FROM state", nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer func() { _ = rows.Close() }()
	if cols := rows.Columns(); len(cols) != 2 || cols[0] != "bucket" {
		t.Fatalf("unexpected columns %v", cols)
	}
	dest := make([]driver.Value, 2)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("next: %v", err)
	}
	if dest[0] != "todos" {
		t.Fatalf("unexpected row %v", dest)
	}
	if err := rows.Next(dest); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestStubFailureSwitches(t *testing.T) {
	ctx := context.Background()
	db, conn := NewStubDB()
	defer db.Close()

	conn.FailPing = true
	if err := db.PingContext(ctx); err == nil {
		t.Fatalf("expected ping failure")
	}
	conn.FailPing = false

	conn.FailExec = true
	if _, err := conn.ExecContext(ctx, "CREATE TABLE x (a TEXT)", nil); err == nil {
		t.Fatalf("expected exec failure")
	}
	conn.FailExec = false

	conn.FailQuery = true
	if _, err := conn.QueryContext(ctx, "SELECT a FROM x", nil); err == nil {
		t.Fatalf("expected query failure")
	}
	conn.FailQuery = false

	conn.FailBegin = true
	if _, err := db.BeginTx(ctx, nil); err == nil {
		t.Fatalf("expected begin failure")
	}
	conn.FailBegin = false

	conn.FailCommit = true
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.Commit(); err == nil {
		t.Fatalf("expected commit failure")
	}

	if _, err := conn.ExecContext(ctx, "INSERT INTO x(a,b) VALUES($1)", []driver.NamedValue{{Value: 1}}); err == nil {
		t.Fatalf("expected column mismatch error")
	}
	if _, err := conn.QueryContext(ctx, "DELETE FROM x", nil); err == nil {
		t.Fatalf("expected parse error for non-select")
	}
}
