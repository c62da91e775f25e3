// storage holds table rows in memory. Rows are kept per table ID in insertion
// order. A table with a primary key also keeps a unique index on the key
// column.
package storage

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Lava-10/queryCraft/catalog"
)

var (
	ErrTableNotExist = errors.New("no storage for table")
	ErrTableExists   = errors.New("storage already exists for table")
	ErrDuplicateKey  = errors.New("duplicate primary key")
)

// Row is a list of values ordered like the columns of its table.
type Row []catalog.Value

type table struct {
	rows []Row
	// pkIdx is the ordinal of the primary key column or -1.
	pkIdx int
	keys  map[catalog.Value]struct{}
}

// Store owns the rows of every table. Store is not safe for concurrent use;
// callers serialize access.
type Store struct {
	tables map[int]*table
}

func New() *Store {
	return &Store{
		tables: map[int]*table{},
	}
}

// Create allocates storage for a table. pkIdx is the ordinal of the primary
// key column or -1 when the table has no primary key.
func (s *Store) Create(tableID, pkIdx int) error {
	if _, ok := s.tables[tableID]; ok {
		return fmt.Errorf("%w: %d", ErrTableExists, tableID)
	}
	t := &table{pkIdx: pkIdx}
	if pkIdx >= 0 {
		t.keys = map[catalog.Value]struct{}{}
	}
	s.tables[tableID] = t
	return nil
}

// Drop frees the storage of a table and every row in it.
func (s *Store) Drop(tableID int) error {
	if _, ok := s.tables[tableID]; !ok {
		return fmt.Errorf("%w: %d", ErrTableNotExist, tableID)
	}
	delete(s.tables, tableID)
	return nil
}

func (s *Store) Exists(tableID int) bool {
	_, ok := s.tables[tableID]
	return ok
}

// Append validates every row against the primary key index before storing any
// of them, so a failing batch leaves the table untouched. The rows are copied.
// Key values are compared as they are, so callers convert them to the column
// type first.
func (s *Store) Append(tableID int, rows ...Row) error {
	t, ok := s.tables[tableID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrTableNotExist, tableID)
	}
	if t.pkIdx >= 0 {
		batch := map[catalog.Value]struct{}{}
		for _, r := range rows {
			k := r[t.pkIdx]
			if _, ok := t.keys[k]; ok {
				return fmt.Errorf("%w: %s", ErrDuplicateKey, r[t.pkIdx].SQL())
			}
			if _, ok := batch[k]; ok {
				return fmt.Errorf("%w: %s", ErrDuplicateKey, r[t.pkIdx].SQL())
			}
			batch[k] = struct{}{}
		}
		for k := range batch {
			t.keys[k] = struct{}{}
		}
	}
	for _, r := range rows {
		t.rows = append(t.rows, slices.Clone(r))
	}
	return nil
}

// Count returns the number of rows in a table.
func (s *Store) Count(tableID int) (int, error) {
	t, ok := s.tables[tableID]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrTableNotExist, tableID)
	}
	return len(t.rows), nil
}

// Cursor is a forward iterator over the rows of a table in storage order. The
// rows returned by a cursor belong to the store and must not be modified.
type Cursor struct {
	rows []Row
	pos  int
}

// NewCursor returns a cursor positioned before the first row.
func (s *Store) NewCursor(tableID int) (*Cursor, error) {
	t, ok := s.tables[tableID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrTableNotExist, tableID)
	}
	return &Cursor{rows: t.rows, pos: -1}, nil
}

// GotoFirstRecord moves the cursor to the first row. It returns false when the
// table is empty.
func (c *Cursor) GotoFirstRecord() bool {
	c.pos = 0
	return len(c.rows) > 0
}

// GotoNext moves the cursor to the next row. It returns false when there are
// no more rows.
func (c *Cursor) GotoNext() bool {
	c.pos += 1
	return c.pos < len(c.rows)
}

// Row returns the row under the cursor.
func (c *Cursor) Row() Row {
	return c.rows[c.pos]
}

// Rows returns a copy of every row in a table.
func (s *Store) Rows(tableID int) ([]Row, error) {
	c, err := s.NewCursor(tableID)
	if err != nil {
		return nil, err
	}
	ret := []Row{}
	for ok := c.GotoFirstRecord(); ok; ok = c.GotoNext() {
		ret = append(ret, slices.Clone(c.Row()))
	}
	return ret, nil
}
