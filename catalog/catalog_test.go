package catalog

import (
	"errors"
	"reflect"
	"testing"
)

func TestCreateTable(t *testing.T) {
	c := New()
	v0 := c.GetVersion()
	cols := []Column{
		{Name: "id", Type: TypeInteger, PrimaryKey: true},
		{Name: "name", Type: TypeText},
	}
	tbl, err := c.CreateTable("foo", cols)
	if err != nil {
		t.Fatalf("want no err got %s", err)
	}
	if tbl.ID != 1 {
		t.Fatalf("want id 1 got %d", tbl.ID)
	}
	if v := c.GetVersion(); v == v0 || v.Epoch != v0.Epoch+1 || v.ID != v0.ID {
		t.Fatalf("want epoch bump got %s from %s", v, v0)
	}
	got, ok := c.GetTable("foo")
	if !ok || !reflect.DeepEqual(got.Columns, cols) {
		t.Fatalf("got %#v want %#v", got, cols)
	}
	if i := got.ColumnIndex("name"); i != 1 {
		t.Fatalf("want 1 got %d", i)
	}
	if i := got.PrimaryKeyIndex(); i != 0 {
		t.Fatalf("want 0 got %d", i)
	}
	if _, err := c.CreateTable("foo", cols); !errors.Is(err, ErrTableExists) {
		t.Fatalf("want ErrTableExists got %v", err)
	}
}

func TestTableNamesAreCaseSensitive(t *testing.T) {
	c := New()
	if _, err := c.CreateTable("foo", []Column{{Name: "id", Type: TypeInteger}}); err != nil {
		t.Fatal(err)
	}
	if c.TableExists("FOO") {
		t.Fatal("want FOO to not resolve to foo")
	}
	if _, err := c.CreateTable("FOO", []Column{{Name: "id", Type: TypeInteger}}); err != nil {
		t.Fatalf("want distinct table FOO got %s", err)
	}
	if got := c.TableNames(); !reflect.DeepEqual(got, []string{"foo", "FOO"}) {
		t.Fatalf("got %v", got)
	}
}

func TestDropTable(t *testing.T) {
	c := New()
	first, _ := c.CreateTable("foo", []Column{{Name: "id", Type: TypeInteger}})
	if _, err := c.DropTable("foo"); err != nil {
		t.Fatal(err)
	}
	if c.TableExists("foo") {
		t.Fatal("want foo dropped")
	}
	if _, err := c.DropTable("foo"); !errors.Is(err, ErrTableNotExist) {
		t.Fatalf("want ErrTableNotExist got %v", err)
	}
	second, _ := c.CreateTable("foo", []Column{{Name: "id", Type: TypeInteger}})
	if first.ID == second.ID {
		t.Fatal("want a new id for a recreated table")
	}
	if !first.SameShape(second) {
		t.Fatal("want same shape")
	}
	if _, ok := c.GetTableByID(first.ID); ok {
		t.Fatal("want old id gone")
	}
}

func TestIndependentCatalogs(t *testing.T) {
	a, b := New(), New()
	if a.GetVersion() == b.GetVersion() {
		t.Fatal("want distinct versions for distinct catalogs")
	}
}

func TestAssignable(t *testing.T) {
	cases := []struct {
		to, from Type
		want     bool
	}{
		{TypeInteger, TypeInteger, true},
		{TypeReal, TypeInteger, true},
		{TypeInteger, TypeReal, false},
		{TypeText, TypeInteger, false},
		{TypeBoolean, TypeNull, true},
		{TypeText, TypeUnknown, true},
	}
	for _, c := range cases {
		if got := Assignable(c.to, c.from); got != c.want {
			t.Errorf("Assignable(%s, %s) got %v want %v", c.to, c.from, got, c.want)
		}
	}
}

func TestValueSQL(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Int(-3), "-3"},
		{Real(2), "2.0"},
		{Real(1.25), "1.25"},
		{Text("it's"), "'it''s'"},
		{Bool(true), "TRUE"},
		{Null(), "NULL"},
	}
	for _, c := range cases {
		if got := c.v.SQL(); got != c.want {
			t.Errorf("got %s want %s", got, c.want)
		}
	}
}

func TestConvert(t *testing.T) {
	if v, ok := Convert(Int(2), TypeReal); !ok || v != Real(2) {
		t.Fatalf("got %v %v", v, ok)
	}
	if _, ok := Convert(Text("a"), TypeInteger); ok {
		t.Fatal("want text not convertible to integer")
	}
	if v, ok := Convert(Null(), TypeText); !ok || !v.IsNull() {
		t.Fatalf("got %v %v", v, ok)
	}
}

func TestFromAny(t *testing.T) {
	cases := []struct {
		in   any
		want Value
	}{
		{nil, Null()},
		{1, Int(1)},
		{int64(2), Int(2)},
		{1.5, Real(1.5)},
		{"a", Text("a")},
		{true, Bool(true)},
	}
	for _, c := range cases {
		got, err := FromAny(c.in)
		if err != nil {
			t.Fatalf("want no err got %s", err)
		}
		if got != c.want {
			t.Errorf("FromAny(%v) got %#v want %#v", c.in, got, c.want)
		}
	}
	if _, err := FromAny(struct{}{}); err == nil {
		t.Fatal("want err for unsupported type")
	}
}
