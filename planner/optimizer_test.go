package planner

import (
	"reflect"
	"testing"

	"github.com/Lava-10/queryCraft/catalog"
	"github.com/Lava-10/queryCraft/compiler"
)

type optimizerTestCase struct {
	sql string
	// where is the formatted predicate after optimizing or empty when the
	// predicate is removed.
	where    string
	columns  []string
	scan     []int
	rewrites []Rewrite
}

func TestOptimizeSelect(t *testing.T) {
	cases := []optimizerTestCase{
		{
			sql:      "SELECT * FROM dummy_table WHERE 1 = 1",
			columns:  []string{"id", "name", "score", "active"},
			rewrites: []Rewrite{RewriteFoldConstant, RewriteRemoveTruePredicate},
		},
		{
			sql:      "SELECT id FROM dummy_table WHERE TRUE AND (id > 1 AND (name = 'a' AND score < 2))",
			where:    "id > 1 AND name = 'a' AND score < 2",
			columns:  []string{"id"},
			scan:     []int{0, 1, 2},
			rewrites: []Rewrite{RewriteFlattenAnd, RewriteRemoveTruePredicate, RewritePruneScanColumns},
		},
		{
			sql:      "SELECT id + (2 * 3) FROM dummy_table",
			columns:  []string{"id + 6"},
			scan:     []int{0},
			rewrites: []Rewrite{RewriteFoldConstant, RewritePruneScanColumns},
		},
		{
			sql:     "SELECT 1 / 0",
			columns: []string{"1 / 0"},
		},
		{
			sql:      "SELECT upper('a'), -(1 + 1), NULL IS NULL, coalesce(NULL, 2)",
			columns:  []string{"'A'", "-2", "TRUE", "2"},
			rewrites: []Rewrite{RewriteFoldConstant},
		},
		{
			sql:      "SELECT count(*) FROM dummy_table",
			columns:  []string{"COUNT(*)"},
			scan:     []int{},
			rewrites: []Rewrite{RewritePruneScanColumns},
		},
		{
			sql:     "SELECT * FROM dummy_table WHERE id = 1 AND name = 'a'",
			where:   "id = 1 AND name = 'a'",
			columns: []string{"id", "name", "score", "active"},
		},
		{
			sql:      "SELECT name FROM dummy_table WHERE id = ? AND 2 > 1 ORDER BY score",
			where:    "id = ?",
			columns:  []string{"name"},
			scan:     []int{0, 1, 2},
			rewrites: []Rewrite{RewriteFoldConstant, RewriteRemoveTruePredicate, RewritePruneScanColumns},
		},
	}
	for _, c := range cases {
		t.Run(c.sql, func(t *testing.T) {
			s, rewrites := Optimize(mustAnalyze(t, newTestCatalog(t), c.sql))
			ss := s.(*SelectStatement)
			where := ""
			if ss.Where != nil {
				where = compiler.FormatExpr(ss.Where)
			}
			if where != c.where {
				t.Errorf("got where %q want %q", where, c.where)
			}
			columns := []string{}
			for _, col := range ss.Columns {
				columns = append(columns, compiler.FormatExpr(col.Expr))
			}
			if !reflect.DeepEqual(columns, c.columns) {
				t.Errorf("got columns %#v want %#v", columns, c.columns)
			}
			if !reflect.DeepEqual(ss.ScanColumns, c.scan) {
				t.Errorf("got scan %#v want %#v", ss.ScanColumns, c.scan)
			}
			if !reflect.DeepEqual(rewrites, c.rewrites) {
				t.Errorf("got rewrites %v want %v", rewrites, c.rewrites)
			}
		})
	}
}

func TestOptimizeIsIdempotent(t *testing.T) {
	sqls := []string{
		"SELECT * FROM dummy_table WHERE 1 = 1",
		"SELECT id FROM dummy_table WHERE TRUE AND (id > 1 AND (name = 'a' AND score < 2))",
		"SELECT id + (2 * 3) AS x FROM dummy_table ORDER BY x DESC LIMIT 3",
		"SELECT 1 / 0, NULL + 1",
		"SELECT count(*) FROM dummy_table WHERE active",
		"SELECT name FROM dummy_table WHERE (1 = 1 AND id = ?) AND (score > 1 OR 1 > 2)",
		"INSERT INTO dummy_table (id, score) VALUES (1 + 1, 2 * 1.5), (?, NULL)",
		"CREATE TABLE foo (id INTEGER)",
		"DROP TABLE dummy_table",
	}
	for _, sql := range sqls {
		t.Run(sql, func(t *testing.T) {
			once, _ := Optimize(mustAnalyze(t, newTestCatalog(t), sql))
			twice, rewrites := Optimize(once)
			if len(rewrites) != 0 {
				t.Errorf("want no rewrites on second pass got %v", rewrites)
			}
			if !reflect.DeepEqual(once, twice) {
				t.Errorf("want second pass to equal first\n got %#v\nwant %#v", twice, once)
			}
		})
	}
}

func TestOptimizeLeavesInputUntouched(t *testing.T) {
	s := mustAnalyze(t, newTestCatalog(t), "SELECT id + 1 FROM dummy_table WHERE TRUE AND (id > 1 + 1 AND name = 'a')")
	before := Statement(cloneSelect(s.(*SelectStatement)))
	Optimize(s)
	if !reflect.DeepEqual(s, before) {
		t.Fatal("want input statement untouched")
	}
}

func TestOptimizeInsert(t *testing.T) {
	s, rewrites := Optimize(mustAnalyze(t, newTestCatalog(t), "INSERT INTO dummy_table (id) VALUES (1 + 1)"))
	if !reflect.DeepEqual(rewrites, []Rewrite{RewriteFoldConstant}) {
		t.Fatalf("got rewrites %v", rewrites)
	}
	got := s.(*InsertStatement).Rows[0][0]
	expect := &compiler.Literal{Value: catalog.Int(2), ResultType: catalog.TypeInteger}
	if !reflect.DeepEqual(got, expect) {
		t.Fatalf("got %#v want %#v", got, expect)
	}
}
