// Package driver enables queryCraft to be used with the go database/sql
// package.
package driver

// TODO transactions are not supported. Begin returns ErrTxNotSupported.

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"

	"github.com/Lava-10/queryCraft/catalog"
	"github.com/Lava-10/queryCraft/compiler"
	"github.com/Lava-10/queryCraft/db"
)

const DriverName = "querycraft"

var ErrTxNotSupported = errors.New("transactions are not supported")

func init() {
	sql.Register(DriverName, new())
}

func new() *qcDriver {
	return &qcDriver{databases: map[string]*db.DB{}}
}

type qcDriver struct {
	mu        sync.Mutex
	databases map[string]*db.DB
}

// Open implements driver.Driver. Name identifies an in memory database.
// Connections opened with the same name share the database for the life of
// the process.
func (d *qcDriver) Open(name string) (driver.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	qdb, ok := d.databases[name]
	if !ok {
		qdb = db.New()
		d.databases[name] = qdb
	}
	return &qcConn{qdb: qdb}, nil
}

type qcConn struct {
	qdb *db.DB
}

// Begin implements driver.Conn.
func (c *qcConn) Begin() (driver.Tx, error) {
	return nil, ErrTxNotSupported
}

// Close implements driver.Conn.
func (c *qcConn) Close() error {
	return nil
}

// Prepare implements driver.Conn. The statement is parsed to report syntax
// errors early. Binding to the catalog happens on every execution so a
// statement stays usable across schema changes.
func (c *qcConn) Prepare(query string) (driver.Stmt, error) {
	tokens := c.qdb.Tokenize(query)
	if _, err := c.qdb.Parse(tokens); err != nil {
		return nil, &db.PipelineError{Stage: db.StageParse, Err: err}
	}
	numInput := 0
	for _, t := range tokens {
		if t.Type == compiler.TokenVariable {
			numInput += 1
		}
	}
	return &qcStmt{qdb: c.qdb, query: query, numInput: numInput}, nil
}

type qcStmt struct {
	qdb      *db.DB
	query    string
	numInput int
}

// Close implements driver.Stmt.
func (s *qcStmt) Close() error {
	return nil
}

// NumInput implements driver.Stmt.
func (s *qcStmt) NumInput() int {
	return s.numInput
}

// Exec implements driver.Stmt.
func (s *qcStmt) Exec(args []driver.Value) (driver.Result, error) {
	res, err := s.qdb.Run(s.query, toAny(args)...)
	if err != nil {
		return nil, err
	}
	return &qcResult{rowsAffected: int64(res.RowsAffected)}, nil
}

// Query implements driver.Stmt.
func (s *qcStmt) Query(args []driver.Value) (driver.Rows, error) {
	res, err := s.qdb.Run(s.query, toAny(args)...)
	if err != nil {
		return nil, err
	}
	return &qcRows{
		cols:  res.Columns,
		types: res.Types,
		rows:  res.Rows,
	}, nil
}

func toAny(args []driver.Value) []any {
	aarg := []any{}
	for _, arg := range args {
		aarg = append(aarg, arg)
	}
	return aarg
}

type qcResult struct {
	rowsAffected int64
}

// LastInsertId implements driver.Result. Tables have no implicit row ids.
func (r *qcResult) LastInsertId() (int64, error) {
	return 0, nil
}

// RowsAffected implements driver.Result.
func (r *qcResult) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}

type qcRows struct {
	cols   []string
	types  []catalog.Type
	rows   [][]catalog.Value
	rowIdx int
}

// Close implements driver.Rows.
func (r *qcRows) Close() error {
	return nil
}

// Columns implements driver.Rows.
func (r *qcRows) Columns() []string {
	return r.cols
}

// ColumnTypeDatabaseTypeName implements driver.RowsColumnTypeDatabaseTypeName.
func (r *qcRows) ColumnTypeDatabaseTypeName(index int) string {
	return r.types[index].String()
}

// Next implements driver.Rows.
func (r *qcRows) Next(dest []driver.Value) error {
	if r.rowIdx == len(r.rows) {
		return io.EOF
	}
	for i, v := range r.rows[r.rowIdx] {
		dest[i] = v.Any()
	}
	r.rowIdx += 1
	return nil
}
