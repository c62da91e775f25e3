// planner turns an AST (abstract syntax tree) generated by the compiler into
// a plan for the vm (virtual machine). Planning happens in three steps. The
// analyzer binds names against the catalog and checks types, the optimizer
// rewrites the analyzed statement, and Prepare compiles it to a vm.Plan.
package planner

import (
	"github.com/Lava-10/queryCraft/catalog"
	"github.com/Lava-10/queryCraft/compiler"
)

// Catalog defines the catalog methods needed by the planner. The planner never
// modifies the catalog.
type Catalog interface {
	GetTable(name string) (*catalog.Table, bool)
	GetVersion() catalog.Version
}

// Statement is an analyzed statement. It is one of *SelectStatement,
// *InsertStatement, *CreateStatement or *DropStatement. Statements own their
// expressions and never share nodes with the AST they were analyzed from.
type Statement interface {
	statementNode()
	// CatalogVersion is the catalog version the statement was analyzed with.
	CatalogVersion() catalog.Version
}

type SelectStatement struct {
	Version catalog.Version
	// Table is nil for a select without a FROM clause.
	Table *catalog.Table
	// Columns are the output columns with wildcards expanded.
	Columns []OutputColumn
	// Where is nil when there is no filter.
	Where   compiler.Expr
	OrderBy []OrderTerm
	// Limit is nil when there is no limit.
	Limit *int64
	// Count is set for SELECT COUNT(*). Columns then holds the single count
	// column.
	Count bool
	// ScanColumns are the table column ordinals the statement reads. It is nil
	// until the optimizer prunes the scan, meaning every column.
	ScanColumns []int
	// ParamTypes has the type inferred for each placeholder by position.
	ParamTypes []catalog.Type
}

// OutputColumn is a named column of the result.
type OutputColumn struct {
	Name string
	Expr compiler.Expr
}

type OrderTerm struct {
	Expr compiler.Expr
	// Output is the index of the output column the term refers to by name or
	// -1 when the term is an expression over the table.
	Output int
	Desc   bool
}

type InsertStatement struct {
	Version catalog.Version
	Table   *catalog.Table
	// Rows hold one expression per table column in column order. Columns left
	// out of the statement are NULL literals.
	Rows       [][]compiler.Expr
	ParamTypes []catalog.Type
}

type CreateStatement struct {
	Version catalog.Version
	Name    string
	Columns []catalog.Column
	// Noop is set when the table exists and the statement is CREATE TABLE IF
	// NOT EXISTS.
	Noop bool
}

type DropStatement struct {
	Version catalog.Version
	// Table is nil when Noop is set.
	Table *catalog.Table
	Name  string
	// Noop is set when the table is missing and the statement is DROP TABLE
	// IF EXISTS.
	Noop bool
}

func (*SelectStatement) statementNode() {}
func (*InsertStatement) statementNode() {}
func (*CreateStatement) statementNode() {}
func (*DropStatement) statementNode()   {}

func (s *SelectStatement) CatalogVersion() catalog.Version { return s.Version }
func (s *InsertStatement) CatalogVersion() catalog.Version { return s.Version }
func (s *CreateStatement) CatalogVersion() catalog.Version { return s.Version }
func (s *DropStatement) CatalogVersion() catalog.Version   { return s.Version }
