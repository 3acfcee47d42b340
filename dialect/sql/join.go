package sql

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/fabrica-orm/fabrica"
	"github.com/fabrica-orm/fabrica/dialect"
	"github.com/fabrica-orm/fabrica/dialect/sql/schema"
)

// JoinKind is the type of a join edge.
type JoinKind int

// Join kinds. NonANSIJoin marks edges on statements whose dialect renders
// comma-separated FROM lists with the join conditions folded into WHERE.
const (
	InnerJoin JoinKind = iota
	LeftOuterJoin
	RightOuterJoin
	CrossJoin
	NonANSIJoin
)

// String returns the SQL keyword for the join kind.
func (k JoinKind) String() string {
	switch k {
	case InnerJoin:
		return "INNER JOIN"
	case LeftOuterJoin:
		return "LEFT OUTER JOIN"
	case RightOuterJoin:
		return "RIGHT OUTER JOIN"
	case CrossJoin:
		return "CROSS JOIN"
	case NonANSIJoin:
		return "NON-ANSI JOIN"
	default:
		return "JOIN"
	}
}

// Join is a directed edge from a source table reference to the target
// reference it introduces. A join owns at most one sub-join, representing a
// nested join clause rendered inside parentheses.
type Join struct {
	kind   JoinKind
	source *TableRef
	target *TableRef
	cond   *BoolExpr
	sub    *Join
}

// Kind returns the join kind.
func (j *Join) Kind() JoinKind { return j.kind }

// Source returns the reference the join starts from.
func (j *Join) Source() *TableRef { return j.source }

// Target returns the reference the join introduces.
func (j *Join) Target() *TableRef { return j.target }

// Condition returns the ON condition, or nil for condition-less joins.
func (j *Join) Condition() *BoolExpr { return j.cond }

// SubJoin returns the nested join, or nil.
func (j *Join) SubJoin() *Join { return j.sub }

// AndCondition ANDs the given predicate into the ON condition. Callers
// mutating a joined statement go through Statement.AddJoinCondition, which
// also drops the cached text.
func (j *Join) AndCondition(e *BoolExpr) {
	if e == nil {
		return
	}
	if j.cond == nil {
		j.cond = e
		return
	}
	j.cond = j.cond.And(e)
}

// String describes the join edge, for logs and errors.
func (j *Join) String() string {
	s := j.kind.String() + " " + j.target.String()
	if j.cond != nil {
		s += " ON " + j.cond.SQL()
	}
	return s
}

type joinOptions struct {
	alias  string
	group  string
	discs  []any
	parent *Join
	unions bool
}

// JoinOption refines a single join request.
type JoinOption func(*joinOptions)

func newJoinOptions(opts []JoinOption) joinOptions {
	o := joinOptions{unions: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithTargetAlias sets the alias of the new table reference instead of
// deriving one from the statement's table namer.
func WithTargetAlias(alias string) JoinOption {
	return func(o *joinOptions) { o.alias = alias }
}

// WithJoinGroup places the new table reference in the named group, creating
// the group when absent.
func WithJoinGroup(name string) JoinOption {
	return func(o *joinOptions) { o.group = name }
}

// WithDiscriminators ANDs a parenthesized OR-chain over the given values of
// the target table's discriminator column onto the join condition. It is
// ignored when the target table declares no discriminator.
func WithDiscriminators(values ...any) JoinOption {
	return func(o *joinOptions) { o.discs = values }
}

// WithParentJoin attaches the new join as the given join's sub-join instead
// of appending it to the statement's join list.
func WithParentJoin(j *Join) JoinOption {
	return func(o *joinOptions) { o.parent = j }
}

// WithoutUnions restricts the change to this statement. Statements carry no
// union branches here, so this is accepted for call-site compatibility and
// has no further effect.
func WithoutUnions() JoinOption {
	return func(o *joinOptions) { o.unions = false }
}

// Join adds a join edge from source (the primary table when nil) to a new
// reference over the target table, deriving the ON condition as pairwise
// equality over the key mappings. The returned reference identifies the
// joined table in later calls.
//
// Joining a target that is already present under the same alias is an
// idempotent no-op returning the existing reference. A key-arity mismatch
// fails before any graph mutation.
func (s *Statement) Join(kind JoinKind, source *TableRef, sourceKey *schema.Mapping, target *schema.Table, targetKey *schema.Mapping, opts ...JoinOption) (*TableRef, error) {
	if sourceKey.Arity() != targetKey.Arity() {
		return nil, fabrica.NewInternalError("join",
			fmt.Sprintf("key mappings have different column counts (%d and %d)", sourceKey.Arity(), targetKey.Arity()))
	}
	o := newJoinOptions(opts)
	return s.addJoin(kind, source, target, o, func(source, ref *TableRef) *BoolExpr {
		return joinConditionFor(source, sourceKey, ref, targetKey, o.discs)
	})
}

// JoinOn adds a join edge with an explicit ON condition.
func (s *Statement) JoinOn(kind JoinKind, source *TableRef, target *schema.Table, cond *BoolExpr, opts ...JoinOption) (*TableRef, error) {
	o := newJoinOptions(opts)
	return s.addJoin(kind, source, target, o, func(_, ref *TableRef) *BoolExpr {
		c := cond
		if disc := discriminatorChain(ref, o.discs); disc != nil {
			if c == nil {
				c = disc
			} else {
				c = c.And(disc)
			}
		}
		return c
	})
}

// JoinForeignKey adds a join edge following a foreign key from the source
// reference to the key's referenced table.
func (s *Statement) JoinForeignKey(kind JoinKind, source *TableRef, fk *schema.ForeignKey, opts ...JoinOption) (*TableRef, error) {
	if fk == nil {
		return nil, fabrica.NewInternalError("join", "nil foreign key")
	}
	return s.Join(kind, source, fk.Mapping(), fk.RefTable, fk.RefMapping(), opts...)
}

// addJoin runs every check before the first mutation, so a failed join
// leaves the statement untouched.
func (s *Statement) addJoin(kind JoinKind, source *TableRef, target *schema.Table, o joinOptions, condFor func(source, ref *TableRef) *BoolExpr) (*TableRef, error) {
	if target == nil {
		return nil, fabrica.NewInternalError("join", "nil target table")
	}
	if source == nil {
		source = s.primary
	}
	if source.stmt != s {
		return nil, fabrica.NewInternalError("join",
			fmt.Sprintf("source reference %s belongs to another statement", source))
	}
	group := o.group
	if group == "" {
		group = "Group" + strconv.Itoa(len(s.groups))
	}
	alias := o.alias
	if alias == "" {
		alias = s.namer.AliasForTable(s, target, group)
	}
	if !isValidIdentifier(alias) {
		return nil, fmt.Errorf("dialect/sql: invalid table alias %q", alias)
	}
	if existing := s.Table(alias); existing != nil {
		if existing.table == target {
			s.cfg.logger.Debug("join target already exists", "table", existing.String())
			return existing, nil
		}
		return nil, fmt.Errorf("dialect/sql: duplicate table alias %q", alias)
	}
	if kind == RightOuterJoin && !s.cfg.features.Supports(dialect.FeatureRightOuterJoin) {
		return nil, fabrica.NewUnsupportedFeatureError(s.cfg.dialect, "right outer join")
	}
	if o.parent != nil && o.parent.sub != nil {
		return nil, fabrica.NewInternalError("join",
			fmt.Sprintf("join %s already has a sub-join", o.parent))
	}

	s.invalidate()
	ref := &TableRef{stmt: s, table: target, alias: Identifier(alias), group: group}
	if s.tables == nil {
		s.tables = make(map[string]*TableRef)
	}
	s.tables[alias] = ref
	grp := s.groups[group]
	if grp == nil {
		grp = &TableGroup{name: group, kind: kind}
		s.groups[group] = grp
		s.groupOrder = append(s.groupOrder, group)
	}
	grp.addRef(ref)

	cond := condFor(source, ref)
	if s.ansiJoins {
		s.insertJoin(&Join{kind: kind, source: source, target: ref, cond: cond}, o.parent)
	} else {
		// Comma-list dialects take no ON clause; the condition moves to WHERE.
		s.joins = append(s.joins, &Join{kind: NonANSIJoin, source: source, target: ref})
		if cond != nil {
			s.WhereAnd(cond, false)
		}
	}
	return ref, nil
}

// insertJoin places an ANSI join edge. Joins are appended unless the
// statement is processing an ON clause, in which case the edge is positioned
// near the join it hangs from: a join off the primary table goes first, any
// other directly after the first join (or sub-join) sharing its source.
func (s *Statement) insertJoin(j *Join, parent *Join) {
	if parent != nil {
		parent.sub = j
		return
	}
	position := -1
	if s.qg != nil && s.qg.ProcessingOnClause() {
		if j.source == s.primary {
			if len(s.joins) > 0 {
				position = 0
			}
		} else {
			for i, ex := range s.joins {
				if ex.source == j.source || (ex.sub != nil && ex.sub.source == j.source) {
					position = i + 1
					break
				}
			}
		}
	}
	if position >= 0 {
		s.joins = slices.Insert(s.joins, position, j)
	} else {
		s.joins = append(s.joins, j)
	}
}

// joinConditionFor derives the ON condition for a key join: pairwise
// equality over the mappings, plus the discriminator chain when applicable.
// Cross joins pass nil mappings and get no condition.
func joinConditionFor(source *TableRef, sourceKey *schema.Mapping, target *TableRef, targetKey *schema.Mapping, discValues []any) *BoolExpr {
	if sourceKey == nil || targetKey == nil {
		return nil
	}
	var cond *BoolExpr
	for i, sc := range sourceKey.Columns {
		eq := Eq(&ColumnExpr{ref: source, col: sc}, &ColumnExpr{ref: target, col: targetKey.Columns[i]})
		if cond == nil {
			cond = eq
		} else {
			cond = cond.And(eq)
		}
	}
	if cond == nil {
		return nil
	}
	if disc := discriminatorChain(target, discValues); disc != nil {
		cond = cond.And(disc)
	}
	return cond
}

// discriminatorChain builds the parenthesized OR-chain over discriminator
// values, or nil when the target has no discriminator column or no values
// were given.
func discriminatorChain(target *TableRef, values []any) *BoolExpr {
	disc := target.table.Discriminator
	if disc == nil || len(values) == 0 {
		return nil
	}
	col := &ColumnExpr{ref: target, col: disc}
	var chain *BoolExpr
	for _, v := range values {
		eq := Eq(col, Literal(v))
		if chain == nil {
			chain = eq
		} else {
			chain = chain.Or(eq)
		}
	}
	return chain.Paren()
}

// RemoveCrossJoin removes the top-level cross join targeting the given
// reference, unregisters the reference from the table index and its group,
// and marks the statement for join reordering. It returns the freed alias
// name, or "" when no such join exists.
func (s *Statement) RemoveCrossJoin(target *TableRef) string {
	if target == nil {
		return ""
	}
	for i, j := range s.joins {
		if j.target != target || j.kind != CrossJoin {
			continue
		}
		s.invalidate()
		s.joins = append(s.joins[:i], s.joins[i+1:]...)
		s.reorder = true
		alias := target.alias.Name()
		delete(s.tables, alias)
		if grp := s.groups[target.group]; grp != nil {
			grp.removeRef(target)
		}
		return alias
	}
	return ""
}

// AddJoinCondition ANDs the given predicate into the ON condition of the
// join targeting ref, searching top-level joins and one sub-join level.
// applyToUnions is accepted for call-site compatibility; statements carry
// no union branches here.
func (s *Statement) AddJoinCondition(ref *TableRef, e *BoolExpr, applyToUnions bool) error {
	if ref == nil {
		return fabrica.NewInternalError("join-condition", "nil table reference")
	}
	j := s.JoinForTable(ref)
	if j == nil {
		return fabrica.NewInternalError("join-condition",
			fmt.Sprintf("no join found with target %s", ref))
	}
	s.invalidate()
	j.AndCondition(e)
	return nil
}

// JoinForTable returns the join introducing the given reference, searching
// top-level joins and one sub-join level, or nil.
func (s *Statement) JoinForTable(ref *TableRef) *Join {
	for _, j := range s.joins {
		if j.target == ref {
			return j
		}
		if j.sub != nil && j.sub.target == ref {
			return j.sub
		}
	}
	return nil
}

// JoinKindForTable returns the kind of the join introducing the given
// reference. The second result is false when the reference is not a join
// target.
func (s *Statement) JoinKindForTable(ref *TableRef) (JoinKind, bool) {
	j := s.JoinForTable(ref)
	if j == nil {
		return 0, false
	}
	return j.kind, true
}

// Joins returns the top-level join edges in clause order.
func (s *Statement) Joins() []*Join {
	return slices.Clone(s.joins)
}

// HasJoins reports whether the statement has any join edges.
func (s *Statement) HasJoins() bool {
	return len(s.joins) > 0
}
