package sql

import (
	"slices"

	"github.com/fabrica-orm/fabrica/dialect/sql/schema"
)

// TableRef is one occurrence of a physical table within a statement, under an
// alias that is unique in that statement. References are owned by the
// statement that created them and are never shared across statements; a
// subquery referencing the "same" logical table gets its own reference.
type TableRef struct {
	stmt  *Statement
	table *schema.Table
	alias Identifier
	group string
}

// Table returns the physical table.
func (r *TableRef) Table() *schema.Table { return r.table }

// Alias returns the reference's alias in its original case.
func (r *TableRef) Alias() Identifier { return r.alias }

// GroupName returns the name of the table group the reference belongs to.
func (r *TableRef) GroupName() string { return r.group }

// Statement returns the owning statement.
func (r *TableRef) Statement() *Statement { return r.stmt }

// String renders the reference as it appears in a FROM clause.
func (r *TableRef) String() string {
	return r.table.QualifiedName() + " " + r.alias.Name()
}

// TableGroup is a named bucket of table references. A group records the join
// kind that created it; the primary group reports InnerJoin.
type TableGroup struct {
	name string
	kind JoinKind
	refs []*TableRef
}

// Name returns the group name.
func (g *TableGroup) Name() string { return g.name }

// JoinKind returns the kind of join that created the group.
func (g *TableGroup) JoinKind() JoinKind { return g.kind }

// Refs returns the group's table references in registration order.
func (g *TableGroup) Refs() []*TableRef {
	return slices.Clone(g.refs)
}

// NumTables returns the number of table references in the group.
func (g *TableGroup) NumTables() int { return len(g.refs) }

func (g *TableGroup) addRef(r *TableRef) {
	g.refs = append(g.refs, r)
}

func (g *TableGroup) removeRef(r *TableRef) {
	for i, ref := range g.refs {
		if ref == r {
			g.refs = append(g.refs[:i], g.refs[i+1:]...)
			return
		}
	}
}

// String lists the group and its member tables, for debug dumps.
func (g *TableGroup) String() string {
	s := "Group=" + g.name + " tables=["
	for i, ref := range g.refs {
		if i > 0 {
			s += ", "
		}
		s += ref.String()
	}
	return s + "]"
}
