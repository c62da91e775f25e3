package planner

import (
	"github.com/Lava-10/queryCraft/catalog"
	"github.com/Lava-10/queryCraft/compiler"
	"github.com/Lava-10/queryCraft/vm"
)

// Prepare compiles an analyzed statement into a plan for the vm. The catalog
// may have changed since analysis. That is only an error when a table the
// statement is bound to is gone or no longer has the same columns. Errors are
// *PrepareError.
func Prepare(s Statement, c Catalog) (*vm.Plan, error) {
	plan := &vm.Plan{
		Version:      c.GetVersion(),
		ResultHeader: []string{},
		ResultTypes:  []catalog.Type{},
	}
	switch t := s.(type) {
	case *SelectStatement:
		if err := prepareSelect(t, c, plan); err != nil {
			return nil, err
		}
	case *InsertStatement:
		table, err := rebind(t.Table, c)
		if err != nil {
			return nil, err
		}
		cmd := &vm.InsertCmd{TableID: table.ID}
		for _, row := range t.Rows {
			cmd.Rows = append(cmd.Rows, compileExprs(row, nil))
		}
		plan.Command = cmd
		plan.ParamTypes = t.ParamTypes
		plan.NumParams = len(t.ParamTypes)
	case *CreateStatement:
		_, exists := c.GetTable(t.Name)
		if exists != t.Noop {
			return nil, &PrepareError{Kind: ErrSchemaChanged, Table: t.Name}
		}
		plan.Command = &vm.CreateCmd{
			Name:    t.Name,
			Columns: t.Columns,
			Noop:    t.Noop,
		}
	case *DropStatement:
		cmd := &vm.DropCmd{Name: t.Name, Noop: t.Noop}
		current, exists := c.GetTable(t.Name)
		if t.Noop && exists {
			return nil, &PrepareError{Kind: ErrSchemaChanged, Table: t.Name}
		}
		if !t.Noop {
			if !exists {
				return nil, &PrepareError{Kind: ErrUnresolvedReference, Table: t.Name}
			}
			cmd.TableID = current.ID
		}
		plan.Command = cmd
	default:
		panic("unhandled statement")
	}
	return plan, nil
}

// rebind returns the current definition of a table bound during analysis. A
// table dropped and created again with identical columns is accepted.
func rebind(bound *catalog.Table, c Catalog) (*catalog.Table, error) {
	current, ok := c.GetTable(bound.Name)
	if !ok {
		return nil, &PrepareError{Kind: ErrUnresolvedReference, Table: bound.Name}
	}
	if current.ID != bound.ID && !current.SameShape(bound) {
		return nil, &PrepareError{Kind: ErrSchemaChanged, Table: bound.Name}
	}
	return current, nil
}

func prepareSelect(s *SelectStatement, c Catalog, plan *vm.Plan) error {
	cmd := &vm.SelectCmd{
		ScanColumns: s.ScanColumns,
		Count:       s.Count,
		Limit:       -1,
	}
	if s.Table != nil {
		table, err := rebind(s.Table, c)
		if err != nil {
			return err
		}
		cmd.TableID = table.ID
	}
	// positions maps table column ordinals to their index in the scanned row
	// when the scan is pruned.
	var positions map[int]int
	if s.ScanColumns != nil {
		positions = map[int]int{}
		for i, ci := range s.ScanColumns {
			positions[ci] = i
		}
	}
	if s.Where != nil {
		cmd.Filter = compileExprs(Conjuncts(s.Where), positions)
	}
	for _, col := range s.Columns {
		plan.ResultHeader = append(plan.ResultHeader, col.Name)
		plan.ResultTypes = append(plan.ResultTypes, col.Expr.Type())
		if !s.Count {
			cmd.Projections = append(cmd.Projections, compileExpr(col.Expr, positions))
		}
	}
	if !s.Count {
		for _, ot := range s.OrderBy {
			cmd.OrderBy = append(cmd.OrderBy, vm.SortKey{
				Expr: compileExpr(ot.Expr, positions),
				Desc: ot.Desc,
			})
		}
	}
	if s.Limit != nil {
		cmd.Limit = *s.Limit
	}
	plan.Command = cmd
	plan.ParamTypes = s.ParamTypes
	plan.NumParams = len(s.ParamTypes)
	return nil
}

func compileExprs(es []compiler.Expr, positions map[int]int) []vm.Expr {
	ret := make([]vm.Expr, 0, len(es))
	for _, e := range es {
		ret = append(ret, compileExpr(e, positions))
	}
	return ret
}

// compileExpr converts an analyzed expression to a vm expression. Column
// references become indices into the scanned row. A nil positions means the
// scan holds every column in table order.
func compileExpr(e compiler.Expr, positions map[int]int) vm.Expr {
	switch t := e.(type) {
	case *compiler.Literal:
		return &vm.ConstExpr{Value: t.Value}
	case *compiler.Variable:
		return &vm.ParamExpr{Position: t.Position}
	case *compiler.ColumnRef:
		if positions == nil {
			return &vm.ColumnExpr{Index: t.ColIdx}
		}
		i, ok := positions[t.ColIdx]
		if !ok {
			panic("column not in scan")
		}
		return &vm.ColumnExpr{Index: i}
	case *compiler.BinaryExpr:
		return &vm.BinaryExpr{
			Operator: t.Operator,
			Left:     compileExpr(t.Left, positions),
			Right:    compileExpr(t.Right, positions),
		}
	case *compiler.UnaryExpr:
		return &vm.UnaryExpr{
			Operator: t.Operator,
			Operand:  compileExpr(t.Operand, positions),
		}
	case *compiler.IsNullExpr:
		return &vm.IsNullExpr{
			Operand: compileExpr(t.Operand, positions),
			Not:     t.Not,
		}
	case *compiler.FunctionExpr:
		return &vm.FuncExpr{
			Name: t.Name,
			Args: compileExprs(t.Args, positions),
		}
	}
	panic("unhandled expression")
}
