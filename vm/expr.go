package vm

import (
	"cmp"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/Lava-10/queryCraft/catalog"
	"github.com/Lava-10/queryCraft/compiler"
)

// Expr is a compiled expression. Columns are referenced by their index in the
// scanned row, never by name.
type Expr interface {
	exprNode()
	String() string
}

// ColumnExpr reads the value at Index of the scanned row.
type ColumnExpr struct {
	Index int
}

// ConstExpr is a constant value.
type ConstExpr struct {
	Value catalog.Value
}

// ParamExpr reads the argument bound to the placeholder at Position.
type ParamExpr struct {
	Position int
}

type BinaryExpr struct {
	Operator string
	Left     Expr
	Right    Expr
}

type UnaryExpr struct {
	Operator string
	Operand  Expr
}

type IsNullExpr struct {
	Operand Expr
	Not     bool
}

// FuncExpr is a scalar function call. COUNT is not a FuncExpr since it is
// computed over the rows of a SelectCmd.
type FuncExpr struct {
	Name string
	Args []Expr
}

func (*ColumnExpr) exprNode() {}
func (*ConstExpr) exprNode()  {}
func (*ParamExpr) exprNode()  {}
func (*BinaryExpr) exprNode() {}
func (*UnaryExpr) exprNode()  {}
func (*IsNullExpr) exprNode() {}
func (*FuncExpr) exprNode()   {}

func (e *ColumnExpr) String() string { return fmt.Sprintf("col[%d]", e.Index) }
func (e *ConstExpr) String() string  { return e.Value.SQL() }
func (e *ParamExpr) String() string  { return fmt.Sprintf("param[%d]", e.Position) }

func (e *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Operator, e.Right)
}

func (e *UnaryExpr) String() string {
	if e.Operator == compiler.OpNot {
		return fmt.Sprintf("(NOT %s)", e.Operand)
	}
	return fmt.Sprintf("(%s%s)", e.Operator, e.Operand)
}

func (e *IsNullExpr) String() string {
	if e.Not {
		return fmt.Sprintf("(%s IS NOT NULL)", e.Operand)
	}
	return fmt.Sprintf("(%s IS NULL)", e.Operand)
}

func (e *FuncExpr) String() string {
	args := make([]string, 0, len(e.Args))
	for _, a := range e.Args {
		args = append(args, a.String())
	}
	return e.Name + "(" + strings.Join(args, ", ") + ")"
}

// eval evaluates e against a scanned row and the bound parameters.
func eval(e Expr, row []catalog.Value, params []catalog.Value) (catalog.Value, error) {
	switch t := e.(type) {
	case *ColumnExpr:
		return row[t.Index], nil
	case *ConstExpr:
		return t.Value, nil
	case *ParamExpr:
		return params[t.Position], nil
	case *BinaryExpr:
		return evalBinary(t, row, params)
	case *UnaryExpr:
		v, err := eval(t.Operand, row, params)
		if err != nil {
			return catalog.Value{}, err
		}
		return Unary(t.Operator, v)
	case *IsNullExpr:
		v, err := eval(t.Operand, row, params)
		if err != nil {
			return catalog.Value{}, err
		}
		return catalog.Bool(v.IsNull() != t.Not), nil
	case *FuncExpr:
		args := make([]catalog.Value, 0, len(t.Args))
		for _, a := range t.Args {
			v, err := eval(a, row, params)
			if err != nil {
				return catalog.Value{}, err
			}
			args = append(args, v)
		}
		return Call(t.Name, args)
	}
	panic("unhandled expression")
}

// evalBinary short circuits AND and OR when the left operand decides the
// result.
func evalBinary(e *BinaryExpr, row []catalog.Value, params []catalog.Value) (catalog.Value, error) {
	left, err := eval(e.Left, row, params)
	if err != nil {
		return catalog.Value{}, err
	}
	if left.Type() == catalog.TypeBoolean {
		if e.Operator == compiler.OpAnd && !left.Bool() {
			return left, nil
		}
		if e.Operator == compiler.OpOr && left.Bool() {
			return left, nil
		}
	}
	right, err := eval(e.Right, row, params)
	if err != nil {
		return catalog.Value{}, err
	}
	return Binary(e.Operator, left, right)
}

// Binary applies a binary operator. Arithmetic and comparison with NULL yield
// NULL. AND and OR use three valued logic.
func Binary(op string, a, b catalog.Value) (catalog.Value, error) {
	switch op {
	case compiler.OpAnd, compiler.OpOr:
		return logical(op, a, b)
	case compiler.OpAdd, compiler.OpSub, compiler.OpMul, compiler.OpDiv:
		return arithmetic(op, a, b)
	case compiler.OpEq, compiler.OpNe, compiler.OpLt, compiler.OpLe, compiler.OpGt, compiler.OpGe:
		return comparison(op, a, b)
	}
	return catalog.Value{}, execErr(ErrRuntimeType, "unknown operator %s", op)
}

func logical(op string, a, b catalog.Value) (catalog.Value, error) {
	for _, v := range []catalog.Value{a, b} {
		if !v.IsNull() && v.Type() != catalog.TypeBoolean {
			return catalog.Value{}, execErr(ErrRuntimeType, "%s expects BOOLEAN operands but got %s", op, v.Type())
		}
	}
	// The deciding value wins over NULL: FALSE for AND, TRUE for OR.
	decider := op == compiler.OpOr
	if (!a.IsNull() && a.Bool() == decider) || (!b.IsNull() && b.Bool() == decider) {
		return catalog.Bool(decider), nil
	}
	if a.IsNull() || b.IsNull() {
		return catalog.Null(), nil
	}
	return catalog.Bool(!decider), nil
}

func arithmetic(op string, a, b catalog.Value) (catalog.Value, error) {
	if a.IsNull() || b.IsNull() {
		return catalog.Null(), nil
	}
	if !a.Type().IsNumeric() || !b.Type().IsNumeric() {
		return catalog.Value{}, execErr(ErrRuntimeType, "%s expects numeric operands but got %s and %s", op, a.Type(), b.Type())
	}
	if a.Type() == catalog.TypeInteger && b.Type() == catalog.TypeInteger {
		x, y := a.Int(), b.Int()
		var r int64
		ok := true
		switch op {
		case compiler.OpAdd:
			r = x + y
			ok = (y >= 0) == (r >= x)
		case compiler.OpSub:
			r = x - y
			ok = (y >= 0) == (r <= x)
		case compiler.OpMul:
			r = x * y
			ok = x == 0 || (r/x == y && !(x == -1 && y == math.MinInt64))
		default:
			if y == 0 {
				return catalog.Value{}, execErr(ErrDivisionByZero, "%d / 0", x)
			}
			ok = !(x == math.MinInt64 && y == -1)
			if ok {
				r = x / y
			}
		}
		if !ok {
			return catalog.Value{}, execErr(ErrIntegerOverflow, "%d %s %d", x, op, y)
		}
		return catalog.Int(r), nil
	}
	x, y := a.Float(), b.Float()
	switch op {
	case compiler.OpAdd:
		return catalog.Real(x + y), nil
	case compiler.OpSub:
		return catalog.Real(x - y), nil
	case compiler.OpMul:
		return catalog.Real(x * y), nil
	}
	if y == 0 {
		return catalog.Value{}, execErr(ErrDivisionByZero, "%s / 0", a.SQL())
	}
	return catalog.Real(x / y), nil
}

func comparison(op string, a, b catalog.Value) (catalog.Value, error) {
	if a.IsNull() || b.IsNull() {
		return catalog.Null(), nil
	}
	if !catalog.Comparable(a.Type(), b.Type()) {
		return catalog.Value{}, execErr(ErrRuntimeType, "cannot compare %s with %s", a.Type(), b.Type())
	}
	c := Compare(a, b)
	switch op {
	case compiler.OpEq:
		return catalog.Bool(c == 0), nil
	case compiler.OpNe:
		return catalog.Bool(c != 0), nil
	case compiler.OpLt:
		return catalog.Bool(c < 0), nil
	case compiler.OpLe:
		return catalog.Bool(c <= 0), nil
	case compiler.OpGt:
		return catalog.Bool(c > 0), nil
	}
	return catalog.Bool(c >= 0), nil
}

// Compare orders two values. NULL sorts before everything else. Integers and
// reals compare numerically. Values of unrelated types are ordered by type so
// sorting is total.
func Compare(a, b catalog.Value) int {
	switch {
	case a.IsNull() && b.IsNull():
		return 0
	case a.IsNull():
		return -1
	case b.IsNull():
		return 1
	}
	if a.Type() == catalog.TypeInteger && b.Type() == catalog.TypeInteger {
		return cmp.Compare(a.Int(), b.Int())
	}
	if a.Type().IsNumeric() && b.Type().IsNumeric() {
		return cmp.Compare(a.Float(), b.Float())
	}
	if a.Type() != b.Type() {
		return cmp.Compare(a.Type(), b.Type())
	}
	switch a.Type() {
	case catalog.TypeText:
		return strings.Compare(a.Text(), b.Text())
	case catalog.TypeBoolean:
		return cmp.Compare(a.Int(), b.Int())
	}
	return 0
}

// Unary applies NOT or unary minus.
func Unary(op string, v catalog.Value) (catalog.Value, error) {
	if v.IsNull() {
		return catalog.Null(), nil
	}
	switch op {
	case compiler.OpNot:
		if v.Type() != catalog.TypeBoolean {
			return catalog.Value{}, execErr(ErrRuntimeType, "NOT expects BOOLEAN but got %s", v.Type())
		}
		return catalog.Bool(!v.Bool()), nil
	case compiler.OpNeg:
		switch v.Type() {
		case catalog.TypeInteger:
			if v.Int() == math.MinInt64 {
				return catalog.Value{}, execErr(ErrIntegerOverflow, "-(%d)", v.Int())
			}
			return catalog.Int(-v.Int()), nil
		case catalog.TypeReal:
			return catalog.Real(-v.Real()), nil
		}
		return catalog.Value{}, execErr(ErrRuntimeType, "- expects a numeric operand but got %s", v.Type())
	}
	return catalog.Value{}, execErr(ErrRuntimeType, "unknown operator %s", op)
}

// Call evaluates a scalar function. Functions other than COALESCE return NULL
// for a NULL argument.
func Call(name string, args []catalog.Value) (catalog.Value, error) {
	if name == compiler.FnCoalesce {
		for _, a := range args {
			if !a.IsNull() {
				return a, nil
			}
		}
		return catalog.Null(), nil
	}
	if len(args) != 1 {
		return catalog.Value{}, execErr(ErrRuntimeType, "%s expects 1 argument but got %d", name, len(args))
	}
	v := args[0]
	if v.IsNull() {
		return catalog.Null(), nil
	}
	switch name {
	case compiler.FnUpper, compiler.FnLower, compiler.FnLength:
		if v.Type() != catalog.TypeText {
			return catalog.Value{}, execErr(ErrRuntimeType, "%s expects TEXT but got %s", name, v.Type())
		}
		switch name {
		case compiler.FnUpper:
			return catalog.Text(strings.ToUpper(v.Text())), nil
		case compiler.FnLower:
			return catalog.Text(strings.ToLower(v.Text())), nil
		}
		return catalog.Int(int64(utf8.RuneCountInString(v.Text()))), nil
	case compiler.FnAbs:
		switch v.Type() {
		case catalog.TypeInteger:
			if v.Int() == math.MinInt64 {
				return catalog.Value{}, execErr(ErrIntegerOverflow, "ABS(%d)", v.Int())
			}
			if v.Int() < 0 {
				return catalog.Int(-v.Int()), nil
			}
			return v, nil
		case catalog.TypeReal:
			if v.Real() < 0 {
				return catalog.Real(-v.Real()), nil
			}
			return v, nil
		}
		return catalog.Value{}, execErr(ErrRuntimeType, "ABS expects a numeric argument but got %s", v.Type())
	}
	return catalog.Value{}, execErr(ErrRuntimeType, "unknown function %s", name)
}
