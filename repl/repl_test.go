package repl

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/Lava-10/queryCraft/catalog"
	"github.com/Lava-10/queryCraft/db"
	"github.com/Lava-10/queryCraft/vm"
)

// fakeTerminal feeds input to the repl and collects what it writes.
type fakeTerminal struct {
	in  io.Reader
	out bytes.Buffer
}

func (f *fakeTerminal) Read(p []byte) (int, error) {
	return f.in.Read(p)
}

func (f *fakeTerminal) Write(p []byte) (int, error) {
	return f.out.Write(p)
}

// runLines runs the repl over lines and returns the output.
func runLines(t *testing.T, d *db.DB, historyPath string, lines ...string) string {
	t.Helper()
	ft := &fakeTerminal{in: strings.NewReader(strings.Join(lines, "\r") + "\r")}
	if err := New(d, ft, historyPath).Run(); err != nil {
		t.Fatal(err)
	}
	return ft.out.String()
}

func TestPrintResult(t *testing.T) {
	res := &vm.Result{
		Columns: []string{"id", "name"},
		Rows: [][]catalog.Value{
			{catalog.Int(1), catalog.Text("gud name")},
			{catalog.Int(2), catalog.Text("gudder name")},
			{catalog.Int(3), catalog.Text("guddest name")},
			{catalog.Int(4), catalog.Null()},
		},
	}
	sb := &strings.Builder{}
	PrintResult(sb, res)
	got := sb.String()
	for _, e := range []string{
		"| 1  | gud name     |",
		"| 2  | gudder name  |",
		"| 3  | guddest name |",
		"| 4  | NULL         |",
	} {
		if !strings.Contains(got, e) {
			t.Errorf("want %q in\n%s", e, got)
		}
	}
	if !strings.Contains(got, "id") || !strings.Contains(got, "name") {
		t.Errorf("want header in\n%s", got)
	}
}

func TestPrintResultWithoutRows(t *testing.T) {
	sb := &strings.Builder{}
	PrintResult(sb, &vm.Result{Columns: []string{"id"}})
	if !strings.Contains(sb.String(), "(0 rows)") {
		t.Errorf("want empty marker got\n%s", sb.String())
	}
	sb.Reset()
	PrintResult(sb, &vm.Result{RowsAffected: 2})
	if sb.String() != "(2 rows affected)\n" {
		t.Errorf("got %q", sb.String())
	}
}

func TestSplitStatements(t *testing.T) {
	cases := []struct {
		input      string
		statements []string
		rest       string
	}{
		{input: "SELECT 1;", statements: []string{"SELECT 1;"}},
		{input: "SELECT 1", rest: "SELECT 1"},
		{input: "SELECT 1;\nSELECT 2;", statements: []string{"SELECT 1;", "SELECT 2;"}},
		{input: "SELECT 1; SELECT", statements: []string{"SELECT 1;"}, rest: "SELECT"},
		{input: "SELECT ';'", rest: "SELECT ';'"},
		{input: "SELECT ';';", statements: []string{"SELECT ';';"}},
		{input: "SELECT 1; -- trailing ;", statements: []string{"SELECT 1;"}},
		{input: "SELECT 1; SELECT 'abc;", statements: []string{"SELECT 1;"}, rest: "SELECT 'abc;"},
		{input: ";;"},
	}
	for _, c := range cases {
		t.Run(c.input, func(t *testing.T) {
			statements, rest := SplitStatements(c.input)
			if !reflect.DeepEqual(statements, c.statements) {
				t.Errorf("got statements %#v want %#v", statements, c.statements)
			}
			if rest != c.rest {
				t.Errorf("got rest %q want %q", rest, c.rest)
			}
		})
	}
}

func TestRun(t *testing.T) {
	d := db.New()
	out := runLines(
		t,
		d,
		"",
		"CREATE TABLE foo (id INTEGER, name TEXT);",
		"INSERT INTO foo VALUES",
		"(1, 'gud name');",
		"SELECT * FROM foo;",
		"SELECT * FROM missing_table;",
		".tables",
		".nope",
		".exit",
		"SELECT 'not reached';",
	)
	for _, e := range []string{
		"(1 rows affected)",
		"| 1  | gud name |",
		"Err: analyze: unknown table missing_table",
		"\r\nfoo\r\n",
		"Command not supported",
		"Time: ",
	} {
		if !strings.Contains(out, e) {
			t.Errorf("want %q in\n%s", e, out)
		}
	}
	if strings.Contains(out, "| not reached") {
		t.Errorf("want statements after .exit skipped\n%s", out)
	}
}

func TestRunStopsAtEndOfInput(t *testing.T) {
	d := db.New()
	runLines(t, d, "", "CREATE TABLE foo (id INTEGER);")
	if got := d.TableNames(); !reflect.DeepEqual(got, []string{"foo"}) {
		t.Fatalf("got tables %v", got)
	}
}

func TestHistoryPersists(t *testing.T) {
	p := filepath.Join(t.TempDir(), "history")
	runLines(t, db.New(), p, "SELECT 1;", "SELECT 2;")
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "SELECT 1;") || !strings.Contains(string(b), "SELECT 2;") {
		t.Fatalf("got history %q", b)
	}
}
