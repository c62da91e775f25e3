package compiler

import "github.com/Lava-10/queryCraft/catalog"

// ast (Abstract Syntax Tree) defines a data structure representing a SQL
// program. This data structure is generated from the parser. This data
// structure is analyzed, optimized and prepared by the planner.
//
// Statements and expressions are closed sets. Consumers switch over the
// concrete types and panic on anything else, so adding a node means visiting
// every switch.

// Stmt is one of *SelectStmt, *InsertStmt, *CreateStmt or *DropStmt.
type Stmt interface {
	stmtNode()
}

type SelectStmt struct {
	ResultColumns []ResultColumn
	// From is nil for a statement like SELECT 1.
	From *From
	// Where is nil when there is no where clause.
	Where   Expr
	OrderBy []OrderingTerm
	// Limit is nil when there is no limit clause.
	Limit *int64
}

// ResultColumn is the column definitions in a select statement.
type ResultColumn struct {
	// Expression is a *Wildcard for SELECT * or SELECT foo.*.
	Expression Expr
	// Alias is the alias for an expression for example SELECT 1 AS bar
	Alias string
}

type From struct {
	TableName string
}

type OrderingTerm struct {
	Expression Expr
	Desc       bool
}

type InsertStmt struct {
	TableName string
	// ColNames is empty when the statement does not list columns, meaning all
	// columns in table order.
	ColNames []string
	// ColValues is a 2d list where the first dimension represents a row and the
	// second dimension represents a column value.
	ColValues [][]Expr
}

type CreateStmt struct {
	// IfNotExists is true when the create statement includes `CREATE TABLE IF
	// NOT EXISTS` meaning the statement should not throw if the table already
	// exists.
	IfNotExists bool
	TableName   string
	ColDefs     []ColDef
}

type ColDef struct {
	ColName    string
	ColType    string
	PrimaryKey bool
	NotNull    bool
}

type DropStmt struct {
	// IfExists is true for `DROP TABLE IF EXISTS` meaning the statement should
	// not throw if the table does not exist.
	IfExists  bool
	TableName string
}

func (*SelectStmt) stmtNode() {}
func (*InsertStmt) stmtNode() {}
func (*CreateStmt) stmtNode() {}
func (*DropStmt) stmtNode()   {}

// Operators found in BinaryExpr and UnaryExpr.
const (
	OpOr  = "OR"
	OpAnd = "AND"
	OpNot = "NOT"
	OpEq  = "="
	OpNe  = "<>"
	OpLt  = "<"
	OpLe  = "<="
	OpGt  = ">"
	OpGe  = ">="
	OpAdd = "+"
	OpSub = "-"
	OpMul = "*"
	OpDiv = "/"
	// OpNeg is unary minus.
	OpNeg = "-"
)

// Function names recognized by the analyzer. Function names are case
// insensitive and stored upper case.
const (
	FnCount    = "COUNT"
	FnUpper    = "UPPER"
	FnLower    = "LOWER"
	FnLength   = "LENGTH"
	FnAbs      = "ABS"
	FnCoalesce = "COALESCE"
)

// Expr defines the interface of an expression.
type Expr interface {
	exprNode()
	// Type is the static type of the expression. It is filled out by the
	// analyzer and is catalog.TypeUnknown before analysis.
	Type() catalog.Type
}

// BinaryExpr is for an expression with two operands.
type BinaryExpr struct {
	Left       Expr
	Operator   string
	Right      Expr
	ResultType catalog.Type
}

// UnaryExpr is an expression with one operand such as NOT or unary minus.
type UnaryExpr struct {
	Operator   string
	Operand    Expr
	ResultType catalog.Type
}

// IsNullExpr is `operand IS NULL` or `operand IS NOT NULL` when Not is set.
type IsNullExpr struct {
	Operand    Expr
	Not        bool
	ResultType catalog.Type
}

// ColumnRef is an expression with no operands. It references a column on a
// table.
type ColumnRef struct {
	// Table is the optional qualifier in foo.id.
	Table  string
	Column string
	// ColIdx is filled out by the analyzer. It is the ordinal position of the
	// column in its table.
	ColIdx     int
	ResultType catalog.Type
}

// Literal is a constant such as 1, 1.5, 'asdf', TRUE or NULL.
type Literal struct {
	Value      catalog.Value
	ResultType catalog.Type
}

// Wildcard is * or foo.* in a result column or the argument of COUNT(*).
type Wildcard struct {
	Table string
}

// FunctionExpr is an expression that represents a function call.
type FunctionExpr struct {
	Name       string
	Args       []Expr
	ResultType catalog.Type
}

// Variable is a ? placeholder.
type Variable struct {
	// Position is a unique integer defining what order the variable appeared in
	// the statement starting at 0.
	Position   int
	ResultType catalog.Type
}

func (*BinaryExpr) exprNode()   {}
func (*UnaryExpr) exprNode()    {}
func (*IsNullExpr) exprNode()   {}
func (*ColumnRef) exprNode()    {}
func (*Literal) exprNode()      {}
func (*Wildcard) exprNode()     {}
func (*FunctionExpr) exprNode() {}
func (*Variable) exprNode()     {}

func (e *BinaryExpr) Type() catalog.Type   { return e.ResultType }
func (e *UnaryExpr) Type() catalog.Type    { return e.ResultType }
func (e *IsNullExpr) Type() catalog.Type   { return e.ResultType }
func (e *ColumnRef) Type() catalog.Type    { return e.ResultType }
func (e *Literal) Type() catalog.Type      { return e.ResultType }
func (*Wildcard) Type() catalog.Type       { return catalog.TypeUnknown }
func (e *FunctionExpr) Type() catalog.Type { return e.ResultType }
func (e *Variable) Type() catalog.Type     { return e.ResultType }

// Walk calls fn for e and each of its descendants in pre-order. Children are
// skipped when fn returns false.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch t := e.(type) {
	case *BinaryExpr:
		Walk(t.Left, fn)
		Walk(t.Right, fn)
	case *UnaryExpr:
		Walk(t.Operand, fn)
	case *IsNullExpr:
		Walk(t.Operand, fn)
	case *FunctionExpr:
		for _, a := range t.Args {
			Walk(a, fn)
		}
	case *ColumnRef, *Literal, *Wildcard, *Variable:
	default:
		panic("unhandled expression")
	}
}
