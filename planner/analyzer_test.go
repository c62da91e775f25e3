package planner

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Lava-10/queryCraft/catalog"
	"github.com/Lava-10/queryCraft/compiler"
)

func TestAnalyzeErrors(t *testing.T) {
	cases := []struct {
		sql  string
		kind error
	}{
		{"SELECT * FROM missing_table", ErrUnknownTable},
		{"SELECT * FROM Dummy_Table", ErrUnknownTable},
		{"SELECT ID FROM dummy_table", ErrUnknownColumn},
		{"SELECT foo.id FROM dummy_table", ErrUnknownTable},
		{"SELECT foo.* FROM dummy_table", ErrUnknownTable},
		{"SELECT id FROM dummy_table WHERE missing = 1", ErrUnknownColumn},
		{"SELECT id FROM dummy_table ORDER BY missing", ErrUnknownColumn},
		{"SELECT id AS x, name AS x FROM dummy_table ORDER BY x", ErrAmbiguousColumn},
		{"SELECT id + name FROM dummy_table", ErrTypeMismatch},
		{"SELECT * FROM dummy_table WHERE id", ErrTypeMismatch},
		{"SELECT * FROM dummy_table WHERE name = 1", ErrTypeMismatch},
		{"SELECT * FROM dummy_table WHERE active AND id", ErrTypeMismatch},
		{"SELECT NOT id FROM dummy_table", ErrTypeMismatch},
		{"SELECT -name FROM dummy_table", ErrTypeMismatch},
		{"SELECT upper(id) FROM dummy_table", ErrTypeMismatch},
		{"SELECT upper(*) FROM dummy_table", ErrTypeMismatch},
		{"SELECT abs(1, 2)", ErrTypeMismatch},
		{"SELECT coalesce(1, 'a')", ErrTypeMismatch},
		{"SELECT *", ErrWildcardWithoutFrom},
		{"SELECT id", ErrUnknownColumn},
		{"SELECT nope(id) FROM dummy_table", ErrUnknownFunction},
		{"SELECT count(*), id FROM dummy_table", ErrMisusedAggregate},
		{"SELECT count(id) FROM dummy_table", ErrMisusedAggregate},
		{"SELECT * FROM dummy_table WHERE count(*) = 1", ErrMisusedAggregate},
		{"CREATE TABLE dummy_table (id INTEGER)", ErrTableExists},
		{"CREATE TABLE foo (id INTEGER, id TEXT)", ErrDuplicateColumn},
		{"CREATE TABLE foo (a INTEGER PRIMARY KEY, b INTEGER PRIMARY KEY)", ErrMultiplePrimaryKeys},
		{"INSERT INTO missing_table VALUES (1)", ErrUnknownTable},
		{"INSERT INTO dummy_table (id, id) VALUES (1, 2)", ErrDuplicateColumn},
		{"INSERT INTO dummy_table (id, nope) VALUES (1, 2)", ErrUnknownColumn},
		{"INSERT INTO dummy_table (id, name) VALUES (1)", ErrValueCount},
		{"INSERT INTO dummy_table VALUES (1, 'a', 1.5)", ErrValueCount},
		{"INSERT INTO dummy_table (id) VALUES ('a')", ErrTypeMismatch},
		{"INSERT INTO dummy_table (score) VALUES (id)", ErrUnknownColumn},
		{"DROP TABLE missing_table", ErrUnknownTable},
	}
	for _, c := range cases {
		t.Run(c.sql, func(t *testing.T) {
			_, err := Analyze(mustParse(t, c.sql), newTestCatalog(t))
			var ae *AnalysisError
			if !errors.As(err, &ae) {
				t.Fatalf("want AnalysisError got %v", err)
			}
			if !errors.Is(err, c.kind) {
				t.Fatalf("want %s got %s", c.kind, err)
			}
		})
	}
}

func TestAnalyzeUnknownTableNamesTheTable(t *testing.T) {
	_, err := Analyze(mustParse(t, "SELECT * FROM missing_table"), newTestCatalog(t))
	var ae *AnalysisError
	if !errors.As(err, &ae) {
		t.Fatalf("want AnalysisError got %v", err)
	}
	if ae.Name != "missing_table" {
		t.Fatalf("got name %s want missing_table", ae.Name)
	}
	if err.Error() != "unknown table missing_table" {
		t.Fatalf("got message %s", err)
	}
}

func TestAnalyzeSelectStar(t *testing.T) {
	s := mustAnalyze(t, newTestCatalog(t), "SELECT * FROM dummy_table").(*SelectStatement)
	expect := []OutputColumn{
		{Name: "id", Expr: &compiler.ColumnRef{Column: "id", ColIdx: 0, ResultType: catalog.TypeInteger}},
		{Name: "name", Expr: &compiler.ColumnRef{Column: "name", ColIdx: 1, ResultType: catalog.TypeText}},
		{Name: "score", Expr: &compiler.ColumnRef{Column: "score", ColIdx: 2, ResultType: catalog.TypeReal}},
		{Name: "active", Expr: &compiler.ColumnRef{Column: "active", ColIdx: 3, ResultType: catalog.TypeBoolean}},
	}
	if !reflect.DeepEqual(s.Columns, expect) {
		t.Fatalf("got %#v want %#v", s.Columns, expect)
	}
	if s.Table == nil || s.Table.Name != "dummy_table" {
		t.Fatalf("want bound table got %#v", s.Table)
	}
}

func TestAnalyzeOutputColumns(t *testing.T) {
	cases := []struct {
		sql   string
		names []string
		types []catalog.Type
	}{
		{
			sql:   "SELECT id, name AS n, id + 1, dummy_table.score FROM dummy_table",
			names: []string{"id", "n", "id + 1", "score"},
			types: []catalog.Type{catalog.TypeInteger, catalog.TypeText, catalog.TypeInteger, catalog.TypeReal},
		},
		{
			sql:   "SELECT 1 + 2.5, 'a', NULL, 7 / 2, TRUE AND NULL, id IS NULL FROM dummy_table",
			names: []string{"1 + 2.5", "'a'", "NULL", "7 / 2", "TRUE AND NULL", "id IS NULL"},
			types: []catalog.Type{catalog.TypeReal, catalog.TypeText, catalog.TypeNull, catalog.TypeInteger, catalog.TypeBoolean, catalog.TypeBoolean},
		},
		{
			sql:   "SELECT count(*) FROM dummy_table",
			names: []string{"COUNT(*)"},
			types: []catalog.Type{catalog.TypeInteger},
		},
		{
			sql:   "SELECT length(name), abs(score), coalesce(NULL, id, score), lower(name) AS l FROM dummy_table",
			names: []string{"LENGTH(name)", "ABS(score)", "COALESCE(NULL, id, score)", "l"},
			types: []catalog.Type{catalog.TypeInteger, catalog.TypeReal, catalog.TypeReal, catalog.TypeText},
		},
	}
	for _, c := range cases {
		t.Run(c.sql, func(t *testing.T) {
			s := mustAnalyze(t, newTestCatalog(t), c.sql).(*SelectStatement)
			names := []string{}
			types := []catalog.Type{}
			for _, col := range s.Columns {
				names = append(names, col.Name)
				types = append(types, col.Expr.Type())
			}
			if !reflect.DeepEqual(names, c.names) {
				t.Errorf("got names %#v want %#v", names, c.names)
			}
			if !reflect.DeepEqual(types, c.types) {
				t.Errorf("got types %v want %v", types, c.types)
			}
		})
	}
}

func TestAnalyzeCount(t *testing.T) {
	s := mustAnalyze(t, newTestCatalog(t), "SELECT count(*) AS total FROM dummy_table").(*SelectStatement)
	if !s.Count {
		t.Fatal("want count statement")
	}
	if s.Columns[0].Name != "total" {
		t.Fatalf("got name %s want total", s.Columns[0].Name)
	}
}

func TestAnalyzePlaceholderTypes(t *testing.T) {
	cases := []struct {
		sql    string
		expect []catalog.Type
	}{
		{
			sql:    "SELECT * FROM dummy_table WHERE id = ? AND ? <> name AND ?",
			expect: []catalog.Type{catalog.TypeInteger, catalog.TypeText, catalog.TypeBoolean},
		},
		{
			sql:    "SELECT ? FROM dummy_table WHERE score > ? + 1",
			expect: []catalog.Type{catalog.TypeUnknown, catalog.TypeInteger},
		},
		{
			sql:    "INSERT INTO dummy_table (active, id) VALUES (?, ?)",
			expect: []catalog.Type{catalog.TypeBoolean, catalog.TypeInteger},
		},
	}
	for _, c := range cases {
		t.Run(c.sql, func(t *testing.T) {
			var got []catalog.Type
			switch s := mustAnalyze(t, newTestCatalog(t), c.sql).(type) {
			case *SelectStatement:
				got = s.ParamTypes
			case *InsertStatement:
				got = s.ParamTypes
			}
			if !reflect.DeepEqual(got, c.expect) {
				t.Fatalf("got %v want %v", got, c.expect)
			}
		})
	}
}

func TestAnalyzeInsertFillsOmittedColumns(t *testing.T) {
	s := mustAnalyze(t, newTestCatalog(t), "INSERT INTO dummy_table (name, id) VALUES ('a', 1)").(*InsertStatement)
	expect := [][]compiler.Expr{{
		&compiler.Literal{Value: catalog.Int(1), ResultType: catalog.TypeInteger},
		&compiler.Literal{Value: catalog.Text("a"), ResultType: catalog.TypeText},
		&compiler.Literal{Value: catalog.Null(), ResultType: catalog.TypeNull},
		&compiler.Literal{Value: catalog.Null(), ResultType: catalog.TypeNull},
	}}
	if !reflect.DeepEqual(s.Rows, expect) {
		t.Fatalf("got %#v want %#v", s.Rows, expect)
	}
}

func TestAnalyzeInsertWidensIntegerIntoReal(t *testing.T) {
	mustAnalyze(t, newTestCatalog(t), "INSERT INTO dummy_table (id, score) VALUES (1, 2)")
}

func TestAnalyzeOrderBy(t *testing.T) {
	c := newTestCatalog(t)
	t.Run("alias wins over table column", func(t *testing.T) {
		s := mustAnalyze(t, c, "SELECT name AS id FROM dummy_table ORDER BY id").(*SelectStatement)
		if s.OrderBy[0].Output != 0 {
			t.Fatalf("got output %d want 0", s.OrderBy[0].Output)
		}
		cr := s.OrderBy[0].Expr.(*compiler.ColumnRef)
		if cr.ColIdx != 1 {
			t.Fatalf("got col idx %d want 1", cr.ColIdx)
		}
	})
	t.Run("table column", func(t *testing.T) {
		s := mustAnalyze(t, c, "SELECT name FROM dummy_table ORDER BY score DESC").(*SelectStatement)
		term := s.OrderBy[0]
		if term.Output != -1 || !term.Desc {
			t.Fatalf("got %#v", term)
		}
		if term.Expr.(*compiler.ColumnRef).ColIdx != 2 {
			t.Fatalf("want score bound got %#v", term.Expr)
		}
	})
}

func TestAnalyzeDoesNotModifyAST(t *testing.T) {
	sql := "SELECT id, name FROM dummy_table WHERE score > 1 AND id = ? ORDER BY name"
	stmt := mustParse(t, sql)
	mustAnalyze(t, newTestCatalog(t), sql)
	if _, err := Analyze(stmt, newTestCatalog(t)); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(stmt, mustParse(t, sql)) {
		t.Fatal("want AST untouched by analysis")
	}
}

func TestAnalyzeCreateAndDrop(t *testing.T) {
	c := newTestCatalog(t)
	before := c.GetVersion()
	create := mustAnalyze(t, c, "CREATE TABLE foo (id INTEGER PRIMARY KEY, name TEXT NOT NULL)").(*CreateStatement)
	expect := []catalog.Column{
		{Name: "id", Type: catalog.TypeInteger, PrimaryKey: true},
		{Name: "name", Type: catalog.TypeText, NotNull: true},
	}
	if create.Noop || !reflect.DeepEqual(create.Columns, expect) {
		t.Fatalf("got %#v", create)
	}
	if c.TableExists("foo") || c.GetVersion() != before {
		t.Fatal("want the catalog untouched by analysis")
	}
	noop := mustAnalyze(t, c, "CREATE TABLE IF NOT EXISTS dummy_table (x INTEGER)").(*CreateStatement)
	if !noop.Noop {
		t.Fatal("want noop create")
	}
	drop := mustAnalyze(t, c, "DROP TABLE IF EXISTS missing_table").(*DropStatement)
	if !drop.Noop || drop.Table != nil {
		t.Fatalf("want noop drop got %#v", drop)
	}
}
