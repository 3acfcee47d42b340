// Package schema holds the physical table metadata consumed by the statement
// construction layer: tables, columns, key mappings, foreign keys and
// indexes. The dialect/sql package joins tables through the key mappings
// defined here; migration tooling exchanges the same model with atlas
// through the bridge in atlas.go.
package schema

import (
	"fmt"
	"strings"
)

// A Type is a database-neutral column type.
type Type string

// Column types.
const (
	TypeInt     Type = "int"
	TypeInt64   Type = "int64"
	TypeFloat64 Type = "float64"
	TypeString  Type = "string"
	TypeText    Type = "text"
	TypeBool    Type = "bool"
	TypeTime    Type = "time"
	TypeBytes   Type = "bytes"
	TypeUUID    Type = "uuid"
	TypeJSON    Type = "json"
)

// String returns the type name.
func (t Type) String() string { return string(t) }

// Valid reports whether the type is one of the declared constants.
func (t Type) Valid() bool {
	switch t {
	case TypeInt, TypeInt64, TypeFloat64, TypeString, TypeText,
		TypeBool, TypeTime, TypeBytes, TypeUUID, TypeJSON:
		return true
	}
	return false
}

// Column is a single table column.
type Column struct {
	Name      string
	Type      Type
	Nullable  bool
	Unique    bool
	Increment bool
	Size      int64
	Default   any
	Collation string
}

// NewColumn returns a column with the given name and type.
func NewColumn(name string, typ Type) *Column {
	return &Column{Name: name, Type: typ}
}

// SetNullable marks the column as nullable and returns it.
func (c *Column) SetNullable() *Column {
	c.Nullable = true
	return c
}

// SetUnique marks the column as unique and returns it.
func (c *Column) SetUnique() *Column {
	c.Unique = true
	return c
}

// SetSize sets the column size and returns it.
func (c *Column) SetSize(size int64) *Column {
	c.Size = size
	return c
}

// Table is the physical description of one database table. A table may carry
// a discriminator column when several entity classes persist into it; joins
// against such a table restrict rows by discriminator value.
type Table struct {
	Name          string
	Schema        string
	Columns       []*Column
	PrimaryKey    []*Column
	ForeignKeys   []*ForeignKey
	Indexes       []*Index
	Discriminator *Column

	columns map[string]*Column
}

// NewTable returns a table with the given name.
func NewTable(name string) *Table {
	return &Table{Name: name, columns: make(map[string]*Column)}
}

// QualifiedName returns the schema-qualified table name.
func (t *Table) QualifiedName() string {
	if t.Schema != "" {
		return t.Schema + "." + t.Name
	}
	return t.Name
}

// AddColumns appends columns to the table and returns it.
func (t *Table) AddColumns(cols ...*Column) *Table {
	if t.columns == nil {
		t.columns = make(map[string]*Column, len(cols))
	}
	for _, c := range cols {
		t.Columns = append(t.Columns, c)
		t.columns[c.Name] = c
	}
	return t
}

// SetPrimaryKey sets the primary key columns and returns the table. Columns
// not yet members of the table are added.
func (t *Table) SetPrimaryKey(cols ...*Column) *Table {
	for _, c := range cols {
		if t.Column(c.Name) == nil {
			t.AddColumns(c)
		}
	}
	t.PrimaryKey = cols
	return t
}

// SetDiscriminator sets the discriminator column and returns the table. The
// column is added to the table when not yet a member.
func (t *Table) SetDiscriminator(c *Column) *Table {
	if t.Column(c.Name) == nil {
		t.AddColumns(c)
	}
	t.Discriminator = c
	return t
}

// AddForeignKeys appends foreign keys to the table and returns it.
func (t *Table) AddForeignKeys(fks ...*ForeignKey) *Table {
	t.ForeignKeys = append(t.ForeignKeys, fks...)
	return t
}

// AddIndexes appends indexes to the table and returns it.
func (t *Table) AddIndexes(idxs ...*Index) *Table {
	t.Indexes = append(t.Indexes, idxs...)
	return t
}

// Column returns the column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	if t.columns != nil {
		return t.columns[name]
	}
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Key returns a mapping over the named columns, in the given order. It
// panics when a name does not resolve: table metadata is static and a
// missing column is a programming error, not a runtime condition.
func (t *Table) Key(names ...string) *Mapping {
	cols := make([]*Column, len(names))
	for i, name := range names {
		c := t.Column(name)
		if c == nil {
			panic(fmt.Sprintf("schema: table %q has no column %q", t.Name, name))
		}
		cols[i] = c
	}
	return &Mapping{Columns: cols}
}

// PrimaryKeyMapping returns the primary key as a mapping, or nil when the
// table declares none.
func (t *Table) PrimaryKeyMapping() *Mapping {
	if len(t.PrimaryKey) == 0 {
		return nil
	}
	return &Mapping{Columns: t.PrimaryKey}
}

// ForeignKey returns the foreign key with the given symbol, or nil.
func (t *Table) ForeignKey(symbol string) *ForeignKey {
	for _, fk := range t.ForeignKeys {
		if fk.Symbol == symbol {
			return fk
		}
	}
	return nil
}

// String returns the table name.
func (t *Table) String() string { return t.QualifiedName() }

// Mapping is an ordered list of key columns. Join conditions equate the
// columns of a source mapping with those of a target mapping pairwise, so
// both sides must agree on arity.
type Mapping struct {
	Columns []*Column
}

// NewMapping returns a mapping over the given columns.
func NewMapping(cols ...*Column) *Mapping {
	return &Mapping{Columns: cols}
}

// Arity returns the number of key columns.
func (m *Mapping) Arity() int {
	if m == nil {
		return 0
	}
	return len(m.Columns)
}

// Names returns the column names joined with commas, for diagnostics.
func (m *Mapping) Names() string {
	if m == nil {
		return ""
	}
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

// ReferenceAction is a foreign key ON UPDATE/ON DELETE action.
type ReferenceAction string

// Reference actions.
const (
	NoAction   ReferenceAction = "NO ACTION"
	Restrict   ReferenceAction = "RESTRICT"
	Cascade    ReferenceAction = "CASCADE"
	SetNull    ReferenceAction = "SET NULL"
	SetDefault ReferenceAction = "SET DEFAULT"
)

// ForeignKey is a reference from the columns of one table to the columns of
// another.
type ForeignKey struct {
	Symbol     string
	Columns    []*Column
	RefTable   *Table
	RefColumns []*Column
	OnUpdate   ReferenceAction
	OnDelete   ReferenceAction
}

// Mapping returns the owning-side columns as a mapping.
func (fk *ForeignKey) Mapping() *Mapping {
	return &Mapping{Columns: fk.Columns}
}

// RefMapping returns the referenced columns as a mapping.
func (fk *ForeignKey) RefMapping() *Mapping {
	return &Mapping{Columns: fk.RefColumns}
}

// Index is a table index over one or more columns.
type Index struct {
	Name    string
	Unique  bool
	Columns []*Column
}
