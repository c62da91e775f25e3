package planner

// analyzer binds the names in an AST to the catalog and assigns a type to
// every expression. It works on a deep copy of the AST so the parser's output
// can be analyzed again, for example after the catalog changed.

import (
	"fmt"

	"github.com/Lava-10/queryCraft/catalog"
	"github.com/Lava-10/queryCraft/compiler"
)

type analyzer struct {
	catalog Catalog
	// table is the table in scope for column references. It is nil when the
	// statement has no table.
	table *catalog.Table
	// params holds the type of each placeholder by position.
	params []catalog.Type
}

// Analyze validates stmt against the catalog and returns the analyzed
// statement. Errors are *AnalysisError.
func Analyze(stmt compiler.Stmt, c Catalog) (Statement, error) {
	a := &analyzer{catalog: c}
	switch s := compiler.CloneStmt(stmt).(type) {
	case *compiler.SelectStmt:
		return a.analyzeSelect(s)
	case *compiler.InsertStmt:
		return a.analyzeInsert(s)
	case *compiler.CreateStmt:
		return a.analyzeCreate(s)
	case *compiler.DropStmt:
		return a.analyzeDrop(s)
	}
	panic("unhandled statement")
}

func (a *analyzer) analyzeSelect(s *compiler.SelectStmt) (*SelectStatement, error) {
	ret := &SelectStatement{
		Version: a.catalog.GetVersion(),
		Limit:   s.Limit,
	}
	if s.From != nil {
		t, ok := a.catalog.GetTable(s.From.TableName)
		if !ok {
			return nil, &AnalysisError{Kind: ErrUnknownTable, Name: s.From.TableName}
		}
		a.table = t
		ret.Table = t
	}
	for _, rc := range s.ResultColumns {
		cols, err := a.analyzeResultColumn(rc, len(s.ResultColumns))
		if err != nil {
			return nil, err
		}
		ret.Columns = append(ret.Columns, cols...)
	}
	if fn, ok := ret.Columns[0].Expr.(*compiler.FunctionExpr); ok && fn.Name == compiler.FnCount {
		ret.Count = true
	}
	if s.Where != nil {
		if err := a.analyzeExpr(s.Where); err != nil {
			return nil, err
		}
		if err := a.expectBoolean("WHERE", s.Where); err != nil {
			return nil, err
		}
		ret.Where = s.Where
	}
	for _, ot := range s.OrderBy {
		term, err := a.analyzeOrderingTerm(ot, ret.Columns)
		if err != nil {
			return nil, err
		}
		ret.OrderBy = append(ret.OrderBy, term)
	}
	ret.ParamTypes = a.params
	return ret, nil
}

// analyzeResultColumn expands wildcards and names each output column by its
// alias, its column name or the text of its expression.
func (a *analyzer) analyzeResultColumn(rc compiler.ResultColumn, numResultColumns int) ([]OutputColumn, error) {
	if w, ok := rc.Expression.(*compiler.Wildcard); ok {
		if a.table == nil {
			return nil, &AnalysisError{Kind: ErrWildcardWithoutFrom, Name: compiler.FormatExpr(w)}
		}
		if w.Table != "" && w.Table != a.table.Name {
			return nil, &AnalysisError{Kind: ErrUnknownTable, Name: w.Table}
		}
		ret := make([]OutputColumn, 0, len(a.table.Columns))
		for i, col := range a.table.Columns {
			ret = append(ret, OutputColumn{
				Name: col.Name,
				Expr: &compiler.ColumnRef{
					Column:     col.Name,
					ColIdx:     i,
					ResultType: col.Type,
				},
			})
		}
		return ret, nil
	}
	name := rc.Alias
	if name == "" {
		if cr, ok := rc.Expression.(*compiler.ColumnRef); ok {
			name = cr.Column
		} else {
			name = compiler.FormatExpr(rc.Expression)
		}
	}
	if fn, ok := rc.Expression.(*compiler.FunctionExpr); ok && fn.Name == compiler.FnCount {
		if err := a.analyzeCount(fn, numResultColumns); err != nil {
			return nil, err
		}
		return []OutputColumn{{Name: name, Expr: fn}}, nil
	}
	if err := a.analyzeExpr(rc.Expression); err != nil {
		return nil, err
	}
	return []OutputColumn{{Name: name, Expr: rc.Expression}}, nil
}

// analyzeCount accepts COUNT(*) as the only result column.
func (a *analyzer) analyzeCount(fn *compiler.FunctionExpr, numResultColumns int) error {
	if numResultColumns != 1 {
		return &AnalysisError{Kind: ErrMisusedAggregate, Name: compiler.FormatExpr(fn)}
	}
	if len(fn.Args) != 1 {
		return &AnalysisError{
			Kind:     ErrMisusedAggregate,
			Name:     fn.Name,
			Expected: "*",
			Found:    fmt.Sprintf("%d arguments", len(fn.Args)),
		}
	}
	if _, ok := fn.Args[0].(*compiler.Wildcard); !ok {
		return &AnalysisError{
			Kind:     ErrMisusedAggregate,
			Name:     fn.Name,
			Expected: "*",
			Found:    compiler.FormatExpr(fn.Args[0]),
		}
	}
	fn.ResultType = catalog.TypeInteger
	return nil
}

// analyzeOrderingTerm resolves a bare name to an output column first and then
// to a table column.
func (a *analyzer) analyzeOrderingTerm(ot compiler.OrderingTerm, cols []OutputColumn) (OrderTerm, error) {
	if cr, ok := ot.Expression.(*compiler.ColumnRef); ok && cr.Table == "" {
		match := -1
		for i, c := range cols {
			if c.Name != cr.Column {
				continue
			}
			if match != -1 {
				return OrderTerm{}, &AnalysisError{Kind: ErrAmbiguousColumn, Name: cr.Column}
			}
			match = i
		}
		if match != -1 {
			return OrderTerm{
				Expr:   compiler.CloneExpr(cols[match].Expr),
				Output: match,
				Desc:   ot.Desc,
			}, nil
		}
	}
	if err := a.analyzeExpr(ot.Expression); err != nil {
		return OrderTerm{}, err
	}
	return OrderTerm{Expr: ot.Expression, Output: -1, Desc: ot.Desc}, nil
}

func (a *analyzer) analyzeInsert(s *compiler.InsertStmt) (*InsertStatement, error) {
	t, ok := a.catalog.GetTable(s.TableName)
	if !ok {
		return nil, &AnalysisError{Kind: ErrUnknownTable, Name: s.TableName}
	}
	// ordinals maps each listed column to its ordinal in the table.
	ordinals := make([]int, 0, len(t.Columns))
	if len(s.ColNames) == 0 {
		for i := range t.Columns {
			ordinals = append(ordinals, i)
		}
	}
	seen := map[string]bool{}
	for _, name := range s.ColNames {
		i := t.ColumnIndex(name)
		if i == -1 {
			return nil, &AnalysisError{Kind: ErrUnknownColumn, Name: name, Table: t.Name}
		}
		if seen[name] {
			return nil, &AnalysisError{Kind: ErrDuplicateColumn, Name: name, Table: t.Name}
		}
		seen[name] = true
		ordinals = append(ordinals, i)
	}
	ret := &InsertStatement{
		Version: a.catalog.GetVersion(),
		Table:   t,
	}
	for _, values := range s.ColValues {
		if len(values) != len(ordinals) {
			return nil, &AnalysisError{
				Kind:     ErrValueCount,
				Name:     t.Name,
				Expected: fmt.Sprintf("%d values", len(ordinals)),
				Found:    fmt.Sprintf("%d values", len(values)),
			}
		}
		row := make([]compiler.Expr, len(t.Columns))
		for i, v := range values {
			col := t.Columns[ordinals[i]]
			// Values cannot reference columns, so no table is in scope.
			if err := a.analyzeExpr(v); err != nil {
				return nil, err
			}
			a.hint(v, col.Type)
			if !catalog.Assignable(col.Type, v.Type()) {
				return nil, &AnalysisError{
					Kind:     ErrTypeMismatch,
					Name:     col.Name,
					Table:    t.Name,
					Expected: col.Type.String(),
					Found:    v.Type().String(),
				}
			}
			row[ordinals[i]] = v
		}
		for i := range row {
			if row[i] == nil {
				row[i] = &compiler.Literal{Value: catalog.Null(), ResultType: catalog.TypeNull}
			}
		}
		ret.Rows = append(ret.Rows, row)
	}
	ret.ParamTypes = a.params
	return ret, nil
}

func (a *analyzer) analyzeCreate(s *compiler.CreateStmt) (*CreateStatement, error) {
	ret := &CreateStatement{
		Version: a.catalog.GetVersion(),
		Name:    s.TableName,
	}
	if _, ok := a.catalog.GetTable(s.TableName); ok {
		if s.IfNotExists {
			ret.Noop = true
			return ret, nil
		}
		return nil, &AnalysisError{Kind: ErrTableExists, Name: s.TableName}
	}
	seen := map[string]bool{}
	hasPK := false
	for _, cd := range s.ColDefs {
		if seen[cd.ColName] {
			return nil, &AnalysisError{Kind: ErrDuplicateColumn, Name: cd.ColName, Table: s.TableName}
		}
		seen[cd.ColName] = true
		if cd.PrimaryKey {
			if hasPK {
				return nil, &AnalysisError{Kind: ErrMultiplePrimaryKeys, Name: cd.ColName, Table: s.TableName}
			}
			hasPK = true
		}
		typ, ok := catalog.ParseType(cd.ColType)
		if !ok {
			return nil, &AnalysisError{
				Kind:     ErrTypeMismatch,
				Name:     cd.ColName,
				Table:    s.TableName,
				Expected: "column type",
				Found:    cd.ColType,
			}
		}
		ret.Columns = append(ret.Columns, catalog.Column{
			Name:       cd.ColName,
			Type:       typ,
			PrimaryKey: cd.PrimaryKey,
			NotNull:    cd.NotNull,
		})
	}
	return ret, nil
}

func (a *analyzer) analyzeDrop(s *compiler.DropStmt) (*DropStatement, error) {
	ret := &DropStatement{
		Version: a.catalog.GetVersion(),
		Name:    s.TableName,
	}
	t, ok := a.catalog.GetTable(s.TableName)
	if !ok {
		if s.IfExists {
			ret.Noop = true
			return ret, nil
		}
		return nil, &AnalysisError{Kind: ErrUnknownTable, Name: s.TableName}
	}
	ret.Table = t
	return ret, nil
}

// analyzeExpr resolves column references and sets the ResultType of e and its
// descendants.
func (a *analyzer) analyzeExpr(e compiler.Expr) error {
	switch t := e.(type) {
	case *compiler.Literal:
		t.ResultType = t.Value.Type()
		if t.ResultType == catalog.TypeUnknown {
			t.ResultType = catalog.TypeNull
		}
	case *compiler.Variable:
		for len(a.params) <= t.Position {
			a.params = append(a.params, catalog.TypeUnknown)
		}
	case *compiler.ColumnRef:
		return a.resolveColumn(t)
	case *compiler.Wildcard:
		return &AnalysisError{Kind: ErrMisusedAggregate, Name: compiler.FormatExpr(t)}
	case *compiler.UnaryExpr:
		if err := a.analyzeExpr(t.Operand); err != nil {
			return err
		}
		if t.Operator == compiler.OpNot {
			if err := a.expectBoolean(t.Operator, t.Operand); err != nil {
				return err
			}
			t.ResultType = catalog.TypeBoolean
			return nil
		}
		if err := a.expectNumeric(t.Operator, t.Operand); err != nil {
			return err
		}
		t.ResultType = t.Operand.Type()
	case *compiler.IsNullExpr:
		if err := a.analyzeExpr(t.Operand); err != nil {
			return err
		}
		t.ResultType = catalog.TypeBoolean
	case *compiler.BinaryExpr:
		return a.analyzeBinary(t)
	case *compiler.FunctionExpr:
		return a.analyzeFunction(t)
	default:
		panic("unhandled expression")
	}
	return nil
}

func (a *analyzer) resolveColumn(cr *compiler.ColumnRef) error {
	if a.table == nil {
		return &AnalysisError{Kind: ErrUnknownColumn, Name: cr.Column, Table: cr.Table}
	}
	if cr.Table != "" && cr.Table != a.table.Name {
		return &AnalysisError{Kind: ErrUnknownTable, Name: cr.Table}
	}
	i := a.table.ColumnIndex(cr.Column)
	if i == -1 {
		return &AnalysisError{Kind: ErrUnknownColumn, Name: cr.Column, Table: a.table.Name}
	}
	cr.ColIdx = i
	cr.ResultType = a.table.Columns[i].Type
	return nil
}

func (a *analyzer) analyzeBinary(e *compiler.BinaryExpr) error {
	if err := a.analyzeExpr(e.Left); err != nil {
		return err
	}
	if err := a.analyzeExpr(e.Right); err != nil {
		return err
	}
	switch e.Operator {
	case compiler.OpAnd, compiler.OpOr:
		if err := a.expectBoolean(e.Operator, e.Left); err != nil {
			return err
		}
		if err := a.expectBoolean(e.Operator, e.Right); err != nil {
			return err
		}
		e.ResultType = catalog.TypeBoolean
	case compiler.OpAdd, compiler.OpSub, compiler.OpMul, compiler.OpDiv:
		a.hint(e.Left, e.Right.Type())
		a.hint(e.Right, e.Left.Type())
		if err := a.expectNumeric(e.Operator, e.Left); err != nil {
			return err
		}
		if err := a.expectNumeric(e.Operator, e.Right); err != nil {
			return err
		}
		e.ResultType = arithmeticType(e.Left.Type(), e.Right.Type())
	default:
		a.hint(e.Left, e.Right.Type())
		a.hint(e.Right, e.Left.Type())
		if !catalog.Comparable(e.Left.Type(), e.Right.Type()) {
			return &AnalysisError{
				Kind:     ErrTypeMismatch,
				Name:     e.Operator,
				Expected: e.Left.Type().String(),
				Found:    e.Right.Type().String(),
			}
		}
		e.ResultType = catalog.TypeBoolean
	}
	return nil
}

// arithmeticType is INTEGER when both operands are integers and REAL when
// either is real. NULL and unknown operands leave the result loose.
func arithmeticType(l, r catalog.Type) catalog.Type {
	switch {
	case l == catalog.TypeNull || r == catalog.TypeNull:
		return catalog.TypeNull
	case l == catalog.TypeUnknown || r == catalog.TypeUnknown:
		return catalog.TypeUnknown
	case l == catalog.TypeReal || r == catalog.TypeReal:
		return catalog.TypeReal
	}
	return catalog.TypeInteger
}

func (a *analyzer) analyzeFunction(fn *compiler.FunctionExpr) error {
	switch fn.Name {
	case compiler.FnCount:
		return &AnalysisError{Kind: ErrMisusedAggregate, Name: compiler.FormatExpr(fn)}
	case compiler.FnUpper, compiler.FnLower, compiler.FnLength, compiler.FnAbs, compiler.FnCoalesce:
	default:
		return &AnalysisError{Kind: ErrUnknownFunction, Name: fn.Name}
	}
	for _, arg := range fn.Args {
		if _, ok := arg.(*compiler.Wildcard); ok {
			return &AnalysisError{Kind: ErrTypeMismatch, Name: fn.Name, Expected: "expression", Found: "*"}
		}
		if err := a.analyzeExpr(arg); err != nil {
			return err
		}
	}
	if fn.Name == compiler.FnCoalesce {
		return a.analyzeCoalesce(fn)
	}
	if len(fn.Args) != 1 {
		return &AnalysisError{
			Kind:     ErrTypeMismatch,
			Name:     fn.Name,
			Expected: "1 argument",
			Found:    fmt.Sprintf("%d arguments", len(fn.Args)),
		}
	}
	arg := fn.Args[0]
	switch fn.Name {
	case compiler.FnUpper, compiler.FnLower:
		if err := a.expectType(fn.Name, arg, catalog.TypeText); err != nil {
			return err
		}
		fn.ResultType = catalog.TypeText
	case compiler.FnLength:
		if err := a.expectType(fn.Name, arg, catalog.TypeText); err != nil {
			return err
		}
		fn.ResultType = catalog.TypeInteger
	case compiler.FnAbs:
		if err := a.expectNumeric(fn.Name, arg); err != nil {
			return err
		}
		fn.ResultType = arg.Type()
	}
	return nil
}

// analyzeCoalesce requires every argument to be comparable with the others.
// The result has the type of the first typed argument, widened to REAL when
// integers and reals are mixed.
func (a *analyzer) analyzeCoalesce(fn *compiler.FunctionExpr) error {
	if len(fn.Args) == 0 {
		return &AnalysisError{
			Kind:     ErrTypeMismatch,
			Name:     fn.Name,
			Expected: "at least 1 argument",
			Found:    "0 arguments",
		}
	}
	result := catalog.TypeNull
	for _, arg := range fn.Args {
		t := arg.Type()
		if t == catalog.TypeNull || t == catalog.TypeUnknown {
			continue
		}
		if result == catalog.TypeNull {
			result = t
			continue
		}
		if !catalog.Comparable(result, t) {
			return &AnalysisError{
				Kind:     ErrTypeMismatch,
				Name:     fn.Name,
				Expected: result.String(),
				Found:    t.String(),
			}
		}
		if t == catalog.TypeReal {
			result = catalog.TypeReal
		}
	}
	for _, arg := range fn.Args {
		a.hint(arg, result)
	}
	fn.ResultType = result
	return nil
}

// hint gives a placeholder the type of its context. Expressions that already
// have a type are left alone.
func (a *analyzer) hint(e compiler.Expr, t catalog.Type) {
	v, ok := e.(*compiler.Variable)
	if !ok || v.ResultType != catalog.TypeUnknown {
		return
	}
	if t == catalog.TypeNull || t == catalog.TypeUnknown {
		return
	}
	v.ResultType = t
	a.params[v.Position] = t
}

func (a *analyzer) expectBoolean(context string, e compiler.Expr) error {
	return a.expectType(context, e, catalog.TypeBoolean)
}

func (a *analyzer) expectType(context string, e compiler.Expr, t catalog.Type) error {
	a.hint(e, t)
	switch e.Type() {
	case t, catalog.TypeNull, catalog.TypeUnknown:
		return nil
	}
	return &AnalysisError{
		Kind:     ErrTypeMismatch,
		Name:     context,
		Expected: t.String(),
		Found:    e.Type().String(),
	}
}

func (a *analyzer) expectNumeric(context string, e compiler.Expr) error {
	t := e.Type()
	if t.IsNumeric() || t == catalog.TypeNull || t == catalog.TypeUnknown {
		return nil
	}
	return &AnalysisError{
		Kind:     ErrTypeMismatch,
		Name:     context,
		Expected: "numeric",
		Found:    t.String(),
	}
}
