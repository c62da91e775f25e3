package planner

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Lava-10/queryCraft/catalog"
	"github.com/Lava-10/queryCraft/compiler"
)

// assertExplainMatch is a helper for tests in the planner package.
func assertExplainMatch(gotLines, expectedLines []string) error {
	didMatch := true
	errOutput := "\n"
	green := "\033[32m"
	red := "\033[31m"
	resetColor := "\033[0m"
	for i, l := range expectedLines {
		if i >= len(gotLines) {
			continue
		}
		color := green
		if l != gotLines[i] {
			didMatch = false
			color = red
		}
		errOutput += fmt.Sprintf(
			"%s%3d got  %s%s\n    want %s\n\n",
			color, i, gotLines[i], resetColor, l,
		)
	}
	gl := len(gotLines)
	wl := len(expectedLines)
	if gl != wl {
		errOutput += red
		errOutput += fmt.Sprintf("got %d want %d lines\n", gl, wl)
		errOutput += resetColor
		didMatch = false
	}
	// This helper returns an error instead of making the assertion so a fatal
	// error will raise at the test site instead of the helper.
	if !didMatch {
		return errors.New(errOutput)
	}
	return nil
}

// newTestCatalog has dummy_table (id INTEGER PRIMARY KEY, name TEXT, score
// REAL, active BOOLEAN).
func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New()
	_, err := c.CreateTable("dummy_table", []catalog.Column{
		{Name: "id", Type: catalog.TypeInteger, PrimaryKey: true},
		{Name: "name", Type: catalog.TypeText},
		{Name: "score", Type: catalog.TypeReal},
		{Name: "active", Type: catalog.TypeBoolean},
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func mustParse(t *testing.T, sql string) compiler.Stmt {
	t.Helper()
	stmt, err := compiler.Parse(compiler.Tokenize(sql))
	if err != nil {
		t.Fatalf("parse %s: %s", sql, err)
	}
	return stmt
}

func mustAnalyze(t *testing.T, c Catalog, sql string) Statement {
	t.Helper()
	s, err := Analyze(mustParse(t, sql), c)
	if err != nil {
		t.Fatalf("analyze %s: %s", sql, err)
	}
	return s
}
