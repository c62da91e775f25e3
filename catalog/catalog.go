// catalog holds the database schema: the tables, their ordered columns and
// column types. It also defines the value and type system shared by the
// planner, the vm and the storage layer.
package catalog

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

var (
	ErrTableExists   = errors.New("table exists")
	ErrTableNotExist = errors.New("table does not exist")
)

// Version identifies a state of the catalog. Plans are compiled against a
// version and the vm refuses to run a plan whose version is no longer current.
// ID distinguishes catalogs of independent databases so a plan prepared for
// one database cannot run against another.
type Version struct {
	ID    uuid.UUID
	Epoch uint64
}

func (v Version) String() string {
	return fmt.Sprintf("%s@%d", v.ID, v.Epoch)
}

// Column is a column definition in a table.
type Column struct {
	Name string
	Type Type
	// PrimaryKey columns are unique and implicitly NOT NULL.
	PrimaryKey bool
	NotNull    bool
}

// Table is an immutable table definition. Tables are replaced, never modified,
// so a *Table handed out by the catalog is safe to keep.
type Table struct {
	// ID is unique for the lifetime of the catalog. A table that is dropped
	// and created again under the same name gets a new ID.
	ID      int
	Name    string
	Columns []Column
}

// ColumnIndex returns the ordinal position of the named column or -1.
func (t *Table) ColumnIndex(name string) int {
	return slices.IndexFunc(t.Columns, func(c Column) bool {
		return c.Name == name
	})
}

// PrimaryKeyIndex returns the ordinal position of the primary key column or -1
// when the table has no primary key.
func (t *Table) PrimaryKeyIndex() int {
	return slices.IndexFunc(t.Columns, func(c Column) bool {
		return c.PrimaryKey
	})
}

// ColumnNames returns the column names in ordinal order.
func (t *Table) ColumnNames() []string {
	ret := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		ret = append(ret, c.Name)
	}
	return ret
}

// SameShape reports if both tables have identical column definitions, meaning
// column indices bound against one are valid for the other.
func (t *Table) SameShape(o *Table) bool {
	return slices.Equal(t.Columns, o.Columns)
}

// Catalog holds information about the database schema. The catalog is only
// mutated by the vm while executing CREATE and DROP plans.
type Catalog struct {
	// tables are ordered by creation.
	tables []*Table
	nextID int
	// version is bumped on every schema change. Statements prepared by the
	// planner carry the version they were compiled with.
	version Version
}

func New() *Catalog {
	return &Catalog{
		nextID:  1,
		version: Version{ID: uuid.New()},
	}
}

// GetVersion returns the current version of the catalog.
func (c *Catalog) GetVersion() Version {
	return c.version
}

// GetTable looks a table up by exact, case-sensitive name.
func (c *Catalog) GetTable(name string) (*Table, bool) {
	i := slices.IndexFunc(c.tables, func(t *Table) bool {
		return t.Name == name
	})
	if i == -1 {
		return nil, false
	}
	return c.tables[i], true
}

func (c *Catalog) GetTableByID(id int) (*Table, bool) {
	i := slices.IndexFunc(c.tables, func(t *Table) bool {
		return t.ID == id
	})
	if i == -1 {
		return nil, false
	}
	return c.tables[i], true
}

func (c *Catalog) TableExists(name string) bool {
	_, ok := c.GetTable(name)
	return ok
}

// TableNames returns table names ordered by creation.
func (c *Catalog) TableNames() []string {
	ret := make([]string, 0, len(c.tables))
	for _, t := range c.tables {
		ret = append(ret, t.Name)
	}
	return ret
}

// CreateTable registers a new table and bumps the version.
func (c *Catalog) CreateTable(name string, columns []Column) (*Table, error) {
	if c.TableExists(name) {
		return nil, fmt.Errorf("%w: %s", ErrTableExists, name)
	}
	t := &Table{
		ID:      c.nextID,
		Name:    name,
		Columns: slices.Clone(columns),
	}
	c.nextID += 1
	c.tables = append(c.tables, t)
	c.bumpVersion()
	return t, nil
}

// DropTable removes a table and bumps the version.
func (c *Catalog) DropTable(name string) (*Table, error) {
	i := slices.IndexFunc(c.tables, func(t *Table) bool {
		return t.Name == name
	})
	if i == -1 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotExist, name)
	}
	t := c.tables[i]
	c.tables = slices.Delete(c.tables, i, i+1)
	c.bumpVersion()
	return t, nil
}

func (c *Catalog) bumpVersion() {
	c.version.Epoch += 1
}
