package compiler

// parser takes tokens from the lexer and produces an AST (Abstract Syntax
// Tree). The AST is consumed by the planner which analyzes it against the
// catalog and prepares a plan ran by the vm (Virtual Machine).

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Lava-10/queryCraft/catalog"
)

// ParseError reports a grammar violation. Expected describes what the parser
// was looking for and Found is the token it got instead.
type ParseError struct {
	Expected string
	Found    Token
	Offset   int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("expected %s but found %s at offset %d", e.Expected, describeToken(e.Found), e.Offset)
}

func describeToken(t Token) string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenUnknown:
		return fmt.Sprintf("unrecognized input %q", t.Value)
	case TokenLiteral:
		return fmt.Sprintf("'%s'", t.Value)
	}
	return fmt.Sprintf("%q", t.Value)
}

const (
	expectStatement  = "statement keyword"
	expectIdentifier = "identifier"
	expectExpression = "expression"
	expectColumnType = "column type"
	expectInteger    = "integer"
	expectEnd        = "end of input"
)

type parser struct {
	tokens []Token
	pos    int
	// nextVariable is the position given to the next ? placeholder.
	nextVariable int
}

// Parse parses exactly one statement. A trailing semicolon is optional but
// nothing may follow it.
func Parse(tokens []Token) (Stmt, error) {
	return NewParser(tokens).Parse()
}

func NewParser(tokens []Token) *parser {
	return &parser{tokens: tokens}
}

func (p *parser) Parse() (Stmt, error) {
	stmt, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	if p.isSeparator(";") {
		p.advance()
	}
	if p.current().Type != TokenEOF {
		return nil, p.errExpected(expectEnd)
	}
	return stmt, nil
}

func (p *parser) parseStmt() (Stmt, error) {
	t := p.current()
	if t.Type == TokenKeyword {
		switch t.Value {
		case kwSelect:
			return p.parseSelect()
		case kwInsert:
			return p.parseInsert()
		case kwCreate:
			return p.parseCreate()
		case kwDrop:
			return p.parseDrop()
		}
	}
	return nil, p.errExpected(expectStatement)
}

func (p *parser) parseSelect() (*SelectStmt, error) {
	stmt := &SelectStmt{}
	if err := p.expectKeyword(kwSelect); err != nil {
		return nil, err
	}
	for {
		rc, err := p.parseResultColumn()
		if err != nil {
			return nil, err
		}
		stmt.ResultColumns = append(stmt.ResultColumns, rc)
		if !p.isSeparator(",") {
			break
		}
		p.advance()
	}
	if p.isKeyword(kwFrom) {
		p.advance()
		tn, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		stmt.From = &From{TableName: tn}
	}
	if p.isKeyword(kwWhere) {
		p.advance()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	if p.isKeyword(kwOrder) {
		p.advance()
		if err := p.expectKeyword(kwBy); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			term := OrderingTerm{Expression: e}
			if p.isKeyword(kwDesc) {
				term.Desc = true
				p.advance()
			} else if p.isKeyword(kwAsc) {
				p.advance()
			}
			stmt.OrderBy = append(stmt.OrderBy, term)
			if !p.isSeparator(",") {
				break
			}
			p.advance()
		}
	}
	if p.isKeyword(kwLimit) {
		p.advance()
		t := p.current()
		if t.Type != TokenNumeric || strings.Contains(t.Value, ".") {
			return nil, p.errExpected(expectInteger)
		}
		l, err := strconv.ParseInt(t.Value, 10, 64)
		if err != nil {
			return nil, p.errExpected(expectInteger)
		}
		p.advance()
		stmt.Limit = &l
	}
	return stmt, nil
}

func (p *parser) parseResultColumn() (ResultColumn, error) {
	if p.isOperator("*") {
		p.advance()
		return ResultColumn{Expression: &Wildcard{}}, nil
	}
	if p.current().Type == TokenIdentifier &&
		p.peek(1).Type == TokenSeparator && p.peek(1).Value == "." &&
		p.peek(2).Type == TokenOperator && p.peek(2).Value == "*" {
		table := p.current().Value
		p.advance()
		p.advance()
		p.advance()
		return ResultColumn{Expression: &Wildcard{Table: table}}, nil
	}
	e, err := p.parseExpr()
	if err != nil {
		return ResultColumn{}, err
	}
	rc := ResultColumn{Expression: e}
	if p.isKeyword(kwAs) {
		p.advance()
		alias, err := p.expectIdentifier()
		if err != nil {
			return ResultColumn{}, err
		}
		rc.Alias = alias
	}
	return rc, nil
}

func (p *parser) parseInsert() (*InsertStmt, error) {
	stmt := &InsertStmt{}
	if err := p.expectKeyword(kwInsert); err != nil {
		return nil, err
	}
	if err := p.expectKeyword(kwInto); err != nil {
		return nil, err
	}
	tn, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	stmt.TableName = tn
	if p.isSeparator("(") {
		p.advance()
		for {
			cn, err := p.expectIdentifier()
			if err != nil {
				return nil, err
			}
			stmt.ColNames = append(stmt.ColNames, cn)
			if !p.isSeparator(",") {
				break
			}
			p.advance()
		}
		if err := p.expectSeparator(")"); err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword(kwValues); err != nil {
		return nil, err
	}
	for {
		row, err := p.parseValueList()
		if err != nil {
			return nil, err
		}
		stmt.ColValues = append(stmt.ColValues, row)
		if !p.isSeparator(",") {
			break
		}
		p.advance()
	}
	return stmt, nil
}

func (p *parser) parseValueList() ([]Expr, error) {
	if err := p.expectSeparator("("); err != nil {
		return nil, err
	}
	row := []Expr{}
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		row = append(row, e)
		if !p.isSeparator(",") {
			break
		}
		p.advance()
	}
	if err := p.expectSeparator(")"); err != nil {
		return nil, err
	}
	return row, nil
}

func (p *parser) parseCreate() (*CreateStmt, error) {
	stmt := &CreateStmt{}
	if err := p.expectKeyword(kwCreate); err != nil {
		return nil, err
	}
	if err := p.expectKeyword(kwTable); err != nil {
		return nil, err
	}
	if p.isKeyword(kwIf) {
		p.advance()
		if err := p.expectKeyword(kwNot); err != nil {
			return nil, err
		}
		if err := p.expectKeyword(kwExists); err != nil {
			return nil, err
		}
		stmt.IfNotExists = true
	}
	tn, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	stmt.TableName = tn
	if err := p.expectSeparator("("); err != nil {
		return nil, err
	}
	stmt.ColDefs = []ColDef{}
	for {
		cd, err := p.parseColDef()
		if err != nil {
			return nil, err
		}
		stmt.ColDefs = append(stmt.ColDefs, cd)
		if !p.isSeparator(",") {
			break
		}
		p.advance()
	}
	if err := p.expectSeparator(")"); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) parseColDef() (ColDef, error) {
	colName, err := p.expectIdentifier()
	if err != nil {
		return ColDef{}, err
	}
	// Type names are not reserved so they can also name columns.
	colType := p.current()
	if colType.Type != TokenIdentifier {
		return ColDef{}, p.errExpected(expectColumnType)
	}
	typeName := strings.ToUpper(colType.Value)
	if _, ok := catalog.ParseType(typeName); !ok {
		return ColDef{}, p.errExpected(expectColumnType)
	}
	p.advance()
	cd := ColDef{ColName: colName, ColType: typeName}
	for {
		switch {
		case p.isKeyword(kwPrimary):
			p.advance()
			if !p.isWord(kwKey) {
				return ColDef{}, p.errExpected(kwKey)
			}
			p.advance()
			cd.PrimaryKey = true
		case p.isKeyword(kwNot):
			p.advance()
			if err := p.expectKeyword(kwNull); err != nil {
				return ColDef{}, err
			}
			cd.NotNull = true
		default:
			return cd, nil
		}
	}
}

func (p *parser) parseDrop() (*DropStmt, error) {
	stmt := &DropStmt{}
	if err := p.expectKeyword(kwDrop); err != nil {
		return nil, err
	}
	if err := p.expectKeyword(kwTable); err != nil {
		return nil, err
	}
	if p.isKeyword(kwIf) {
		p.advance()
		if err := p.expectKeyword(kwExists); err != nil {
			return nil, err
		}
		stmt.IfExists = true
	}
	tn, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	stmt.TableName = tn
	return stmt, nil
}

// Expressions are parsed by precedence climbing. From weakest to tightest
// binding: OR, AND, NOT, comparison and IS NULL, additive, multiplicative,
// unary minus.

func (p *parser) parseExpr() (Expr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword(kwOr) {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Operator: OpOr, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword(kwAnd) {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Operator: OpAnd, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.isKeyword(kwNot) {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Operator: OpNot, Operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isComparisonOperator():
			op := p.current().Value
			p.advance()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &BinaryExpr{Left: left, Operator: op, Right: right}
		case p.isKeyword(kwIs):
			p.advance()
			not := false
			if p.isKeyword(kwNot) {
				not = true
				p.advance()
			}
			if err := p.expectKeyword(kwNull); err != nil {
				return nil, err
			}
			left = &IsNullExpr{Operand: left, Not: not}
		default:
			return left, nil
		}
	}
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isOperator(OpAdd) || p.isOperator(OpSub) {
		op := p.current().Value
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOperator(OpMul) || p.isOperator(OpDiv) {
		op := p.current().Value
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.isOperator(OpNeg) {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Operator: OpNeg, Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.current()
	switch t.Type {
	case TokenNumeric:
		v, err := p.parseNumber(t.Value)
		if err != nil {
			return nil, err
		}
		p.advance()
		return &Literal{Value: v}, nil
	case TokenLiteral:
		p.advance()
		return &Literal{Value: catalog.Text(t.Value)}, nil
	case TokenVariable:
		p.advance()
		v := &Variable{Position: p.nextVariable}
		p.nextVariable += 1
		return v, nil
	case TokenKeyword:
		switch t.Value {
		case kwNull:
			p.advance()
			return &Literal{Value: catalog.Null()}, nil
		case kwTrue:
			p.advance()
			return &Literal{Value: catalog.Bool(true)}, nil
		case kwFalse:
			p.advance()
			return &Literal{Value: catalog.Bool(false)}, nil
		}
	case TokenSeparator:
		if t.Value == "(" {
			p.advance()
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectSeparator(")"); err != nil {
				return nil, err
			}
			return e, nil
		}
	case TokenIdentifier:
		if p.peek(1).Type == TokenSeparator && p.peek(1).Value == "(" {
			return p.parseFunction()
		}
		p.advance()
		if p.isSeparator(".") {
			p.advance()
			col, err := p.expectIdentifier()
			if err != nil {
				return nil, err
			}
			return &ColumnRef{Table: t.Value, Column: col}, nil
		}
		return &ColumnRef{Column: t.Value}, nil
	}
	return nil, p.errExpected(expectExpression)
}

func (p *parser) parseNumber(s string) (catalog.Value, error) {
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return catalog.Value{}, p.errExpected("number within range")
		}
		return catalog.Real(f), nil
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return catalog.Value{}, p.errExpected("integer within range")
	}
	return catalog.Int(i), nil
}

func (p *parser) parseFunction() (Expr, error) {
	fn := &FunctionExpr{Name: strings.ToUpper(p.current().Value)}
	p.advance()
	if err := p.expectSeparator("("); err != nil {
		return nil, err
	}
	if p.isSeparator(")") {
		p.advance()
		return fn, nil
	}
	if p.isOperator("*") {
		p.advance()
		fn.Args = []Expr{&Wildcard{}}
		if err := p.expectSeparator(")"); err != nil {
			return nil, err
		}
		return fn, nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		fn.Args = append(fn.Args, arg)
		if !p.isSeparator(",") {
			break
		}
		p.advance()
	}
	if err := p.expectSeparator(")"); err != nil {
		return nil, err
	}
	return fn, nil
}

// current returns the token under the cursor. Running off the end of the
// tokens yields an EOF so hand built token lists without one are still safe.
func (p *parser) current() Token {
	return p.peek(0)
}

func (p *parser) peek(n int) Token {
	i := p.pos + n
	if i < len(p.tokens) {
		return p.tokens[i]
	}
	offset := 0
	if len(p.tokens) > 0 {
		last := p.tokens[len(p.tokens)-1]
		offset = last.Offset + len(last.Value)
	}
	return Token{Type: TokenEOF, Offset: offset}
}

func (p *parser) advance() {
	if p.pos < len(p.tokens) {
		p.pos += 1
	}
}

func (p *parser) isKeyword(kw string) bool {
	t := p.current()
	return t.Type == TokenKeyword && t.Value == kw
}

// isWord reports whether the current token is the identifier w in any case.
func (p *parser) isWord(w string) bool {
	t := p.current()
	return t.Type == TokenIdentifier && strings.EqualFold(t.Value, w)
}

func (p *parser) isSeparator(s string) bool {
	t := p.current()
	return t.Type == TokenSeparator && t.Value == s
}

func (p *parser) isOperator(o string) bool {
	t := p.current()
	return t.Type == TokenOperator && t.Value == o
}

func (p *parser) isComparisonOperator() bool {
	t := p.current()
	if t.Type != TokenOperator {
		return false
	}
	switch t.Value {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.isKeyword(kw) {
		return p.errExpected(kw)
	}
	p.advance()
	return nil
}

func (p *parser) expectSeparator(s string) error {
	if !p.isSeparator(s) {
		return p.errExpected(fmt.Sprintf("%q", s))
	}
	p.advance()
	return nil
}

func (p *parser) expectIdentifier() (string, error) {
	t := p.current()
	if t.Type != TokenIdentifier {
		return "", p.errExpected(expectIdentifier)
	}
	p.advance()
	return t.Value, nil
}

func (p *parser) errExpected(expected string) *ParseError {
	t := p.current()
	return &ParseError{Expected: expected, Found: t, Offset: t.Offset}
}
