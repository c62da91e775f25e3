// vm (virtual machine) runs plans prepared by the planner against the catalog
// and the storage layer. A plan is a single command whose expressions refer to
// columns by index.
package vm

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Lava-10/queryCraft/catalog"
	"github.com/Lava-10/queryCraft/storage"
)

// Machine executes plans. Machine is not safe for concurrent use; the db
// package serializes access.
type Machine struct {
	catalog *catalog.Catalog
	store   *storage.Store
}

func New(c *catalog.Catalog, s *storage.Store) *Machine {
	return &Machine{
		catalog: c,
		store:   s,
	}
}

// Plan is a prepared statement ready for execution.
type Plan struct {
	// Version is the catalog version used to compile this plan. If the version
	// is not the same during execution the plan must be recompiled.
	Version catalog.Version
	// ResultHeader is the names of columns in the result.
	ResultHeader []string
	ResultTypes  []catalog.Type
	// NumParams is the number of ? placeholders. ParamTypes holds the type
	// each argument is converted to. TypeUnknown accepts any value.
	NumParams  int
	ParamTypes []catalog.Type
	Command    Command
}

// Command is one of *SelectCmd, *InsertCmd, *CreateCmd or *DropCmd.
type Command interface {
	commandNode()
}

// SelectCmd scans a table, filters, projects, sorts and limits.
type SelectCmd struct {
	// TableID is 0 for a select without a table which produces a single empty
	// row.
	TableID int
	// ScanColumns are the table column ordinals copied into each scanned row.
	// Nil copies every column. ColumnExpr indexes the scanned row.
	ScanColumns []int
	// Filter is a list of conjuncts. A row is kept only when every conjunct is
	// TRUE.
	Filter      []Expr
	Projections []Expr
	// Count replaces the projections with the number of kept rows.
	Count   bool
	OrderBy []SortKey
	// Limit is negative when there is no limit.
	Limit int64
}

type SortKey struct {
	// Expr is evaluated against the scanned row.
	Expr Expr
	Desc bool
}

// InsertCmd appends rows. Each row has one expression per table column.
type InsertCmd struct {
	TableID int
	Rows    [][]Expr
}

type CreateCmd struct {
	Name    string
	Columns []catalog.Column
	// Noop is set for CREATE TABLE IF NOT EXISTS on an existing table.
	Noop bool
}

type DropCmd struct {
	TableID int
	Name    string
	// Noop is set for DROP TABLE IF EXISTS on a missing table.
	Noop bool
}

func (*SelectCmd) commandNode() {}
func (*InsertCmd) commandNode() {}
func (*CreateCmd) commandNode() {}
func (*DropCmd) commandNode()   {}

// Result is the output of a plan. Rows are copies owned by the caller.
type Result struct {
	Columns []string
	Types   []catalog.Type
	Rows    [][]catalog.Value
	// RowsAffected is the number of rows inserted. It is 0 for other
	// statements.
	RowsAffected int
	// Duration is the overall execution time
	Duration time.Duration
}

// Execute performs the plan with the given arguments bound to its
// placeholders. If the plan is out of date with the catalog Execute returns an
// error matching ErrVersionChanged so the plan can be recompiled.
func (m *Machine) Execute(plan *Plan, args []any) (*Result, error) {
	start := time.Now()
	if plan.Version != m.catalog.GetVersion() {
		return nil, &ExecutionError{
			Kind:   ErrVersionChanged,
			Detail: fmt.Sprintf("plan %s catalog %s", plan.Version, m.catalog.GetVersion()),
		}
	}
	params, err := bind(plan, args)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Columns: slices.Clone(plan.ResultHeader),
		Types:   slices.Clone(plan.ResultTypes),
		Rows:    [][]catalog.Value{},
	}
	switch c := plan.Command.(type) {
	case *SelectCmd:
		err = m.execSelect(c, params, res)
	case *InsertCmd:
		err = m.execInsert(c, params, res)
	case *CreateCmd:
		err = m.execCreate(c)
	case *DropCmd:
		err = m.execDrop(c)
	default:
		panic("unhandled command")
	}
	if err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)
	return res, nil
}

func bind(plan *Plan, args []any) ([]catalog.Value, error) {
	if len(args) != plan.NumParams {
		return nil, execErr(ErrBindParameter, "statement has %d placeholders but got %d arguments", plan.NumParams, len(args))
	}
	params := make([]catalog.Value, 0, len(args))
	for i, a := range args {
		v, err := catalog.FromAny(a)
		if err != nil {
			return nil, execErr(ErrBindParameter, "argument %d: %s", i+1, err)
		}
		if i < len(plan.ParamTypes) {
			cv, ok := catalog.Convert(v, plan.ParamTypes[i])
			if !ok {
				return nil, execErr(ErrRuntimeType, "argument %d expects %s but got %s", i+1, plan.ParamTypes[i], v.Type())
			}
			v = cv
		}
		params = append(params, v)
	}
	return params, nil
}

type sortableRow struct {
	keys []catalog.Value
	out  []catalog.Value
}

func (m *Machine) execSelect(c *SelectCmd, params []catalog.Value, res *Result) error {
	scanned, err := m.scan(c, params)
	if err != nil {
		return err
	}
	if c.Count {
		if c.Limit != 0 {
			res.Rows = append(res.Rows, []catalog.Value{catalog.Int(int64(len(scanned)))})
		}
		return nil
	}
	rows := make([]sortableRow, 0, len(scanned))
	for _, row := range scanned {
		sr := sortableRow{}
		for _, k := range c.OrderBy {
			v, err := eval(k.Expr, row, params)
			if err != nil {
				return err
			}
			sr.keys = append(sr.keys, v)
		}
		sr.out = make([]catalog.Value, 0, len(c.Projections))
		for _, p := range c.Projections {
			v, err := eval(p, row, params)
			if err != nil {
				return err
			}
			sr.out = append(sr.out, v)
		}
		rows = append(rows, sr)
	}
	if len(c.OrderBy) > 0 {
		slices.SortStableFunc(rows, func(a, b sortableRow) int {
			for i, k := range c.OrderBy {
				r := Compare(a.keys[i], b.keys[i])
				if k.Desc {
					r = -r
				}
				if r != 0 {
					return r
				}
			}
			return 0
		})
	}
	if c.Limit >= 0 && int64(len(rows)) > c.Limit {
		rows = rows[:c.Limit]
	}
	for _, r := range rows {
		res.Rows = append(res.Rows, r.out)
	}
	return nil
}

// scan returns the rows passing the filter. Each returned row is a copy of
// the scan columns.
func (m *Machine) scan(c *SelectCmd, params []catalog.Value) ([][]catalog.Value, error) {
	if c.TableID == 0 {
		ok, err := m.filter(c.Filter, nil, params)
		if err != nil || !ok {
			return nil, err
		}
		return [][]catalog.Value{{}}, nil
	}
	if _, ok := m.catalog.GetTableByID(c.TableID); !ok {
		return nil, execErr(ErrTableNotFound, "table id %d", c.TableID)
	}
	cursor, err := m.store.NewCursor(c.TableID)
	if err != nil {
		return nil, &ExecutionError{Kind: ErrTableNotFound, Detail: err.Error()}
	}
	ret := [][]catalog.Value{}
	for ok := cursor.GotoFirstRecord(); ok; ok = cursor.GotoNext() {
		row := cursor.Row()
		var scanned []catalog.Value
		if c.ScanColumns == nil {
			scanned = slices.Clone([]catalog.Value(row))
		} else {
			scanned = make([]catalog.Value, len(c.ScanColumns))
			for i, ci := range c.ScanColumns {
				scanned[i] = row[ci]
			}
		}
		keep, err := m.filter(c.Filter, scanned, params)
		if err != nil {
			return nil, err
		}
		if keep {
			ret = append(ret, scanned)
		}
	}
	return ret, nil
}

// filter reports if every conjunct is TRUE. FALSE and NULL both reject the
// row.
func (*Machine) filter(conjuncts []Expr, row []catalog.Value, params []catalog.Value) (bool, error) {
	for _, f := range conjuncts {
		v, err := eval(f, row, params)
		if err != nil {
			return false, err
		}
		if v.IsNull() {
			return false, nil
		}
		if v.Type() != catalog.TypeBoolean {
			return false, execErr(ErrRuntimeType, "WHERE expects BOOLEAN but got %s", v.Type())
		}
		if !v.Bool() {
			return false, nil
		}
	}
	return true, nil
}

func (m *Machine) execInsert(c *InsertCmd, params []catalog.Value, res *Result) error {
	table, ok := m.catalog.GetTableByID(c.TableID)
	if !ok {
		return execErr(ErrTableNotFound, "table id %d", c.TableID)
	}
	rows := make([]storage.Row, 0, len(c.Rows))
	for _, exprs := range c.Rows {
		row := make(storage.Row, len(table.Columns))
		for i, col := range table.Columns {
			v, err := eval(exprs[i], nil, params)
			if err != nil {
				return err
			}
			cv, ok := catalog.Convert(v, col.Type)
			if !ok {
				return execErr(ErrRuntimeType, "column %s expects %s but got %s", col.Name, col.Type, v.Type())
			}
			if cv.IsNull() && (col.NotNull || col.PrimaryKey) {
				return execErr(ErrConstraintViolation, "NOT NULL constraint failed: %s.%s", table.Name, col.Name)
			}
			row[i] = cv
		}
		rows = append(rows, row)
	}
	if err := m.store.Append(table.ID, rows...); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return &ExecutionError{Kind: ErrConstraintViolation, Detail: err.Error()}
		}
		return &ExecutionError{Kind: ErrTableNotFound, Detail: err.Error()}
	}
	res.RowsAffected = len(rows)
	return nil
}

func (m *Machine) execCreate(c *CreateCmd) error {
	if c.Noop {
		return nil
	}
	t, err := m.catalog.CreateTable(c.Name, c.Columns)
	if err != nil {
		return &ExecutionError{Kind: ErrConstraintViolation, Detail: err.Error()}
	}
	if err := m.store.Create(t.ID, t.PrimaryKeyIndex()); err != nil {
		return &ExecutionError{Kind: ErrConstraintViolation, Detail: err.Error()}
	}
	return nil
}

func (m *Machine) execDrop(c *DropCmd) error {
	if c.Noop {
		return nil
	}
	if _, err := m.catalog.DropTable(c.Name); err != nil {
		return &ExecutionError{Kind: ErrTableNotFound, Detail: err.Error()}
	}
	if err := m.store.Drop(c.TableID); err != nil {
		return &ExecutionError{Kind: ErrTableNotFound, Detail: err.Error()}
	}
	return nil
}

// Explain describes the plan one line per step.
func (p *Plan) Explain() []string {
	ret := []string{}
	switch c := p.Command.(type) {
	case *SelectCmd:
		if c.TableID == 0 {
			ret = append(ret, "Single row")
		} else if c.ScanColumns == nil {
			ret = append(ret, fmt.Sprintf("Scan table %d", c.TableID))
		} else {
			ret = append(ret, fmt.Sprintf("Scan table %d columns %v", c.TableID, c.ScanColumns))
		}
		for _, f := range c.Filter {
			ret = append(ret, "Filter "+f.String())
		}
		if c.Count {
			ret = append(ret, "Count")
		} else {
			ret = append(ret, "Project "+joinExprs(c.Projections))
		}
		for _, k := range c.OrderBy {
			dir := "ASC"
			if k.Desc {
				dir = "DESC"
			}
			ret = append(ret, fmt.Sprintf("Sort %s %s", k.Expr, dir))
		}
		if c.Limit >= 0 {
			ret = append(ret, fmt.Sprintf("Limit %d", c.Limit))
		}
	case *InsertCmd:
		for _, r := range c.Rows {
			ret = append(ret, fmt.Sprintf("Insert table %d values (%s)", c.TableID, joinExprs(r)))
		}
	case *CreateCmd:
		if c.Noop {
			ret = append(ret, fmt.Sprintf("Create table %s skipped", c.Name))
		} else {
			ret = append(ret, fmt.Sprintf("Create table %s", c.Name))
		}
	case *DropCmd:
		if c.Noop {
			ret = append(ret, fmt.Sprintf("Drop table %s skipped", c.Name))
		} else {
			ret = append(ret, fmt.Sprintf("Drop table %s id %d", c.Name, c.TableID))
		}
	}
	return ret
}

func joinExprs(es []Expr) string {
	parts := make([]string, 0, len(es))
	for _, e := range es {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, ", ")
}
