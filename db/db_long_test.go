package db

// This file contains tests that take a long time to run due to the tests
// testing the ability to operate on millions of records.

import (
	"fmt"
	"os"
	"strings"
	"testing"
)

func TestInsertAndSelectMillions(t *testing.T) {
	if os.Getenv("LONG_TEST") == "" {
		t.Skip("skipped long test")
	}
	db := New()
	mustExecute(t, db, "CREATE TABLE test (id INTEGER PRIMARY KEY, junk TEXT)")
	inserts := 10_000
	recordsPerInsert := 100
	t.Log("inserting millions")
	for i := 0; i < inserts; i += 1 {
		values := make([]string, 0, recordsPerInsert)
		for j := range recordsPerInsert {
			values = append(values, fmt.Sprintf("(%d, 'asdf')", i*recordsPerInsert+j+1))
		}
		mustExecute(t, db, "INSERT INTO test (id, junk) VALUES "+strings.Join(values, ","))
	}
	t.Log("inserted millions")
	total := int64(inserts * recordsPerInsert)
	selectRes := mustExecute(t, db, "SELECT id FROM test WHERE id > ? ORDER BY id", total-5)
	if len(selectRes.Rows) != 5 {
		t.Fatalf("got %d rows want 5", len(selectRes.Rows))
	}
	for i, r := range selectRes.Rows {
		if want := total - 4 + int64(i); r[0].Int() != want {
			t.Fatalf("select failed got: %d want: %d", r[0].Int(), want)
		}
	}
	t.Log("counting millions")
	countRes := mustExecute(t, db, "SELECT COUNT(*) FROM test")
	if got := countRes.Rows[0][0].Int(); got != total {
		t.Fatalf("got count %d want %d", got, total)
	}
}
