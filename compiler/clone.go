package compiler

import "slices"

// CloneStmt returns a deep copy of s. The analyzer annotates a copy so the
// parser's output is never modified.
func CloneStmt(s Stmt) Stmt {
	switch t := s.(type) {
	case *SelectStmt:
		c := &SelectStmt{
			ResultColumns: make([]ResultColumn, len(t.ResultColumns)),
			Where:         CloneExpr(t.Where),
		}
		for i, rc := range t.ResultColumns {
			c.ResultColumns[i] = ResultColumn{
				Expression: CloneExpr(rc.Expression),
				Alias:      rc.Alias,
			}
		}
		if t.From != nil {
			c.From = &From{TableName: t.From.TableName}
		}
		for _, ot := range t.OrderBy {
			c.OrderBy = append(c.OrderBy, OrderingTerm{
				Expression: CloneExpr(ot.Expression),
				Desc:       ot.Desc,
			})
		}
		if t.Limit != nil {
			l := *t.Limit
			c.Limit = &l
		}
		return c
	case *InsertStmt:
		c := &InsertStmt{
			TableName: t.TableName,
			ColNames:  slices.Clone(t.ColNames),
		}
		for _, row := range t.ColValues {
			c.ColValues = append(c.ColValues, CloneExprs(row))
		}
		return c
	case *CreateStmt:
		return &CreateStmt{
			IfNotExists: t.IfNotExists,
			TableName:   t.TableName,
			ColDefs:     slices.Clone(t.ColDefs),
		}
	case *DropStmt:
		c := *t
		return &c
	}
	panic("unhandled statement")
}

// CloneExpr returns a deep copy of e. It returns nil for a nil e.
func CloneExpr(e Expr) Expr {
	switch t := e.(type) {
	case nil:
		return nil
	case *BinaryExpr:
		return &BinaryExpr{
			Left:       CloneExpr(t.Left),
			Operator:   t.Operator,
			Right:      CloneExpr(t.Right),
			ResultType: t.ResultType,
		}
	case *UnaryExpr:
		return &UnaryExpr{
			Operator:   t.Operator,
			Operand:    CloneExpr(t.Operand),
			ResultType: t.ResultType,
		}
	case *IsNullExpr:
		return &IsNullExpr{
			Operand:    CloneExpr(t.Operand),
			Not:        t.Not,
			ResultType: t.ResultType,
		}
	case *FunctionExpr:
		return &FunctionExpr{
			Name:       t.Name,
			Args:       CloneExprs(t.Args),
			ResultType: t.ResultType,
		}
	case *ColumnRef:
		c := *t
		return &c
	case *Literal:
		c := *t
		return &c
	case *Wildcard:
		c := *t
		return &c
	case *Variable:
		c := *t
		return &c
	}
	panic("unhandled expression")
}

func CloneExprs(es []Expr) []Expr {
	if es == nil {
		return nil
	}
	ret := make([]Expr, len(es))
	for i, e := range es {
		ret[i] = CloneExpr(e)
	}
	return ret
}
