package planner

import (
	"slices"

	"github.com/Lava-10/queryCraft/catalog"
	"github.com/Lava-10/queryCraft/compiler"
	"github.com/Lava-10/queryCraft/vm"
)

// Rewrite names a rule applied by the optimizer.
type Rewrite string

const (
	// RewriteFoldConstant evaluates sub-expressions made only of literals.
	RewriteFoldConstant Rewrite = "fold-constant"
	// RewriteRemoveTruePredicate drops TRUE conjuncts from WHERE.
	RewriteRemoveTruePredicate Rewrite = "remove-true-predicate"
	// RewriteFlattenAnd turns nested ANDs into one left deep chain of
	// conjuncts.
	RewriteFlattenAnd Rewrite = "flatten-and"
	// RewritePruneScanColumns limits the scan to the columns the statement
	// reads.
	RewritePruneScanColumns Rewrite = "prune-scan-columns"
)

type optimizer struct {
	applied []Rewrite
}

// Optimize returns a rewritten copy of s and the rewrites that changed it. It
// never fails and leaves s untouched. Optimizing an optimized statement
// reports no rewrites.
func Optimize(s Statement) (Statement, []Rewrite) {
	o := &optimizer{}
	switch t := s.(type) {
	case *SelectStatement:
		return o.optimizeSelect(cloneSelect(t)), o.applied
	case *InsertStatement:
		c := *t
		c.Rows = make([][]compiler.Expr, len(t.Rows))
		for i, row := range t.Rows {
			c.Rows[i] = compiler.CloneExprs(row)
			for j := range c.Rows[i] {
				c.Rows[i][j] = o.fold(c.Rows[i][j])
			}
		}
		c.ParamTypes = slices.Clone(t.ParamTypes)
		return &c, o.applied
	case *CreateStatement:
		c := *t
		c.Columns = slices.Clone(t.Columns)
		return &c, nil
	case *DropStatement:
		c := *t
		return &c, nil
	}
	panic("unhandled statement")
}

func (o *optimizer) record(r Rewrite) {
	if !slices.Contains(o.applied, r) {
		o.applied = append(o.applied, r)
	}
}

func cloneSelect(s *SelectStatement) *SelectStatement {
	c := *s
	c.Columns = make([]OutputColumn, len(s.Columns))
	for i, col := range s.Columns {
		c.Columns[i] = OutputColumn{Name: col.Name, Expr: compiler.CloneExpr(col.Expr)}
	}
	c.Where = compiler.CloneExpr(s.Where)
	c.OrderBy = nil
	for _, ot := range s.OrderBy {
		c.OrderBy = append(c.OrderBy, OrderTerm{
			Expr:   compiler.CloneExpr(ot.Expr),
			Output: ot.Output,
			Desc:   ot.Desc,
		})
	}
	if s.Limit != nil {
		l := *s.Limit
		c.Limit = &l
	}
	c.ScanColumns = slices.Clone(s.ScanColumns)
	c.ParamTypes = slices.Clone(s.ParamTypes)
	return &c
}

func (o *optimizer) optimizeSelect(s *SelectStatement) *SelectStatement {
	for i := range s.Columns {
		if !s.Count {
			s.Columns[i].Expr = o.fold(s.Columns[i].Expr)
		}
	}
	for i := range s.OrderBy {
		s.OrderBy[i].Expr = o.fold(s.OrderBy[i].Expr)
	}
	if s.Where != nil {
		s.Where = o.simplifyPredicate(o.fold(s.Where))
	}
	if s.Table != nil {
		o.pruneScanColumns(s)
	}
	return s
}

// simplifyPredicate removes TRUE conjuncts and rebuilds the conjuncts as a left
// deep chain. It returns nil when nothing is left to filter.
func (o *optimizer) simplifyPredicate(e compiler.Expr) compiler.Expr {
	if !isLeftDeep(e) {
		o.record(RewriteFlattenAnd)
	}
	kept := []compiler.Expr{}
	for _, c := range Conjuncts(e) {
		if isTrue(c) {
			o.record(RewriteRemoveTruePredicate)
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return nil
	}
	ret := kept[0]
	for _, c := range kept[1:] {
		ret = &compiler.BinaryExpr{
			Left:       ret,
			Operator:   compiler.OpAnd,
			Right:      c,
			ResultType: catalog.TypeBoolean,
		}
	}
	return ret
}

// Conjuncts splits a predicate on AND.
func Conjuncts(e compiler.Expr) []compiler.Expr {
	if be, ok := e.(*compiler.BinaryExpr); ok && be.Operator == compiler.OpAnd {
		return append(Conjuncts(be.Left), Conjuncts(be.Right)...)
	}
	return []compiler.Expr{e}
}

func isAnd(e compiler.Expr) bool {
	be, ok := e.(*compiler.BinaryExpr)
	return ok && be.Operator == compiler.OpAnd
}

func isLeftDeep(e compiler.Expr) bool {
	for isAnd(e) {
		be := e.(*compiler.BinaryExpr)
		if isAnd(be.Right) {
			return false
		}
		e = be.Left
	}
	return true
}

func isTrue(e compiler.Expr) bool {
	l, ok := e.(*compiler.Literal)
	return ok && l.Value.Type() == catalog.TypeBoolean && l.Value.Bool()
}

// fold replaces literal only sub-expressions with their value. Expressions
// that fail to evaluate, such as a division by zero, are kept so the error is
// raised at execution.
func (o *optimizer) fold(e compiler.Expr) compiler.Expr {
	switch t := e.(type) {
	case *compiler.BinaryExpr:
		t.Left = o.fold(t.Left)
		t.Right = o.fold(t.Right)
		l, lok := t.Left.(*compiler.Literal)
		r, rok := t.Right.(*compiler.Literal)
		if !lok || !rok {
			return t
		}
		v, err := vm.Binary(t.Operator, l.Value, r.Value)
		if err != nil {
			return t
		}
		return o.folded(v, t.ResultType)
	case *compiler.UnaryExpr:
		t.Operand = o.fold(t.Operand)
		l, ok := t.Operand.(*compiler.Literal)
		if !ok {
			return t
		}
		v, err := vm.Unary(t.Operator, l.Value)
		if err != nil {
			return t
		}
		return o.folded(v, t.ResultType)
	case *compiler.IsNullExpr:
		t.Operand = o.fold(t.Operand)
		l, ok := t.Operand.(*compiler.Literal)
		if !ok {
			return t
		}
		return o.folded(catalog.Bool(l.Value.IsNull() != t.Not), t.ResultType)
	case *compiler.FunctionExpr:
		args := make([]catalog.Value, 0, len(t.Args))
		for i := range t.Args {
			t.Args[i] = o.fold(t.Args[i])
			if l, ok := t.Args[i].(*compiler.Literal); ok {
				args = append(args, l.Value)
			}
		}
		if t.Name == compiler.FnCount || len(args) != len(t.Args) {
			return t
		}
		v, err := vm.Call(t.Name, args)
		if err != nil {
			return t
		}
		return o.folded(v, t.ResultType)
	}
	return e
}

// folded builds the literal for a folded expression. The literal keeps the
// static type of the expression it replaces so result types do not change.
func (o *optimizer) folded(v catalog.Value, t catalog.Type) compiler.Expr {
	o.record(RewriteFoldConstant)
	return &compiler.Literal{Value: v, ResultType: t}
}

func (o *optimizer) pruneScanColumns(s *SelectStatement) {
	used := map[int]bool{}
	visit := func(e compiler.Expr) bool {
		if cr, ok := e.(*compiler.ColumnRef); ok {
			used[cr.ColIdx] = true
		}
		return true
	}
	if !s.Count {
		for _, c := range s.Columns {
			compiler.Walk(c.Expr, visit)
		}
	}
	compiler.Walk(s.Where, visit)
	for _, ot := range s.OrderBy {
		compiler.Walk(ot.Expr, visit)
	}
	if len(used) == len(s.Table.Columns) {
		return
	}
	cols := make([]int, 0, len(used))
	for i := range used {
		cols = append(cols, i)
	}
	slices.Sort(cols)
	if s.ScanColumns != nil && slices.Equal(cols, s.ScanColumns) {
		return
	}
	s.ScanColumns = cols
	o.record(RewritePruneScanColumns)
}
