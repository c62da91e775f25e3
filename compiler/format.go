package compiler

import (
	"strconv"
	"strings"
)

// Format converts a statement back to SQL text. Parsing the output produces a
// statement equal to s. Parentheses are only added where precedence requires
// them.
func Format(s Stmt) string {
	switch t := s.(type) {
	case *SelectStmt:
		return formatSelect(t)
	case *InsertStmt:
		return formatInsert(t)
	case *CreateStmt:
		return formatCreate(t)
	case *DropStmt:
		sb := strings.Builder{}
		sb.WriteString("DROP TABLE ")
		if t.IfExists {
			sb.WriteString("IF EXISTS ")
		}
		sb.WriteString(t.TableName)
		return sb.String()
	}
	panic("unhandled statement")
}

func formatSelect(s *SelectStmt) string {
	sb := strings.Builder{}
	sb.WriteString("SELECT ")
	for i, rc := range s.ResultColumns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(FormatExpr(rc.Expression))
		if rc.Alias != "" {
			sb.WriteString(" AS ")
			sb.WriteString(rc.Alias)
		}
	}
	if s.From != nil {
		sb.WriteString(" FROM ")
		sb.WriteString(s.From.TableName)
	}
	if s.Where != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(FormatExpr(s.Where))
	}
	for i, ot := range s.OrderBy {
		if i == 0 {
			sb.WriteString(" ORDER BY ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(FormatExpr(ot.Expression))
		if ot.Desc {
			sb.WriteString(" DESC")
		}
	}
	if s.Limit != nil {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.FormatInt(*s.Limit, 10))
	}
	return sb.String()
}

func formatInsert(s *InsertStmt) string {
	sb := strings.Builder{}
	sb.WriteString("INSERT INTO ")
	sb.WriteString(s.TableName)
	if len(s.ColNames) > 0 {
		sb.WriteString(" (")
		sb.WriteString(strings.Join(s.ColNames, ", "))
		sb.WriteString(")")
	}
	sb.WriteString(" VALUES ")
	for i, row := range s.ColValues {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		sb.WriteString(formatExprList(row))
		sb.WriteString(")")
	}
	return sb.String()
}

func formatCreate(s *CreateStmt) string {
	sb := strings.Builder{}
	sb.WriteString("CREATE TABLE ")
	if s.IfNotExists {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(s.TableName)
	sb.WriteString(" (")
	for i, cd := range s.ColDefs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(cd.ColName)
		sb.WriteString(" ")
		sb.WriteString(cd.ColType)
		if cd.PrimaryKey {
			sb.WriteString(" PRIMARY KEY")
		}
		if cd.NotNull {
			sb.WriteString(" NOT NULL")
		}
	}
	sb.WriteString(")")
	return sb.String()
}

// Binding power of each expression level. Higher binds tighter.
const (
	precOr = iota + 1
	precAnd
	precNot
	precComparison
	precAdditive
	precMultiplicative
	precUnary
	precPrimary
)

func precedence(e Expr) int {
	switch t := e.(type) {
	case *BinaryExpr:
		switch t.Operator {
		case OpOr:
			return precOr
		case OpAnd:
			return precAnd
		case OpAdd, OpSub:
			return precAdditive
		case OpMul, OpDiv:
			return precMultiplicative
		}
		return precComparison
	case *UnaryExpr:
		if t.Operator == OpNot {
			return precNot
		}
		return precUnary
	case *IsNullExpr:
		return precComparison
	}
	return precPrimary
}

// FormatExpr converts an expression to SQL text.
func FormatExpr(e Expr) string {
	switch t := e.(type) {
	case *BinaryExpr:
		p := precedence(t)
		// Operators are left associative so the right operand needs to bind
		// strictly tighter to keep its grouping.
		return formatOperand(t.Left, p) + " " + t.Operator + " " + formatOperand(t.Right, p+1)
	case *UnaryExpr:
		if t.Operator == OpNot {
			return "NOT " + formatOperand(t.Operand, precNot)
		}
		operand := formatOperand(t.Operand, precUnary)
		if strings.HasPrefix(operand, "-") {
			// "--" would start a comment.
			return t.Operator + " " + operand
		}
		return t.Operator + operand
	case *IsNullExpr:
		if t.Not {
			return formatOperand(t.Operand, precComparison) + " IS NOT NULL"
		}
		return formatOperand(t.Operand, precComparison) + " IS NULL"
	case *ColumnRef:
		if t.Table != "" {
			return t.Table + "." + t.Column
		}
		return t.Column
	case *Literal:
		return t.Value.SQL()
	case *Wildcard:
		if t.Table != "" {
			return t.Table + ".*"
		}
		return "*"
	case *FunctionExpr:
		return t.Name + "(" + formatExprList(t.Args) + ")"
	case *Variable:
		return "?"
	}
	panic("unhandled expression")
}

func formatOperand(e Expr, minPrec int) string {
	s := FormatExpr(e)
	if precedence(e) < minPrec {
		return "(" + s + ")"
	}
	return s
}

func formatExprList(es []Expr) string {
	parts := make([]string, 0, len(es))
	for _, e := range es {
		parts = append(parts, FormatExpr(e))
	}
	return strings.Join(parts, ", ")
}
