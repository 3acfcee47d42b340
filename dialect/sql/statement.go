package sql

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/fabrica-orm/fabrica"
	"github.com/fabrica-orm/fabrica/config"
	"github.com/fabrica-orm/fabrica/dialect"
	"github.com/fabrica-orm/fabrica/dialect/sql/schema"
)

// Statement extension keys.
const (
	// ExtensionTableNamingStrategy selects the table namer. Setting it
	// re-resolves the namer instead of storing a value.
	ExtensionTableNamingStrategy = "table-naming-strategy"
	// ExtensionLockForUpdate makes rendered statements end in FOR UPDATE on
	// dialects that support it.
	ExtensionLockForUpdate = "lock-for-update"
	// ExtensionLockForUpdateNowait adds NOWAIT to the FOR UPDATE suffix.
	ExtensionLockForUpdateNowait = "for-update-nowait"
)

// QueryGenerator is the parse-context collaborator consulted while joins are
// added. While it reports that an ON clause is being processed, new joins
// are positioned relative to the join they hang from instead of appended.
type QueryGenerator interface {
	ProcessingOnClause() bool
}

// Config is the construction environment shared by the statements of one
// store: dialect, capability set, default naming strategy, logger and the
// resolver for plugin extensions.
type Config struct {
	dialect  string
	features dialect.Features
	naming   string
	logger   *slog.Logger
	resolver ExtensionResolver
	exts     map[string]string
}

// ConfigOption configures a Config.
type ConfigOption func(*Config)

// NewConfig returns a Config for the given dialect. The capability set
// defaults to the dialect's known features, the naming strategy to
// alpha-scheme and the logger to slog.Default.
func NewConfig(dialectName string, opts ...ConfigOption) *Config {
	c := &Config{
		dialect:  dialectName,
		features: dialect.For(dialectName),
		naming:   NamingAlphaScheme,
		logger:   slog.Default(),
		exts:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithFeatures replaces the capability set.
func WithFeatures(f dialect.Features) ConfigOption {
	return func(c *Config) { c.features = f }
}

// WithNamingStrategy sets the default table naming strategy.
func WithNamingStrategy(name string) ConfigOption {
	return func(c *Config) { c.naming = name }
}

// WithLogger sets the logger statements report through.
func WithLogger(l *slog.Logger) ConfigOption {
	return func(c *Config) { c.logger = l }
}

// WithExtensionResolver sets the resolver consulted for naming strategies
// and other extensions that are not built in.
func WithExtensionResolver(r ExtensionResolver) ConfigOption {
	return func(c *Config) { c.resolver = r }
}

// WithSettings applies loaded project settings: the naming strategy,
// per-feature overrides and default statement extensions. Feature names use
// underscores in configuration keys; they map onto the hyphenated Feature
// constants here.
func WithSettings(st *config.Settings) ConfigOption {
	return func(c *Config) {
		if st == nil {
			return
		}
		if st.TableNaming != "" {
			c.naming = st.TableNaming
		}
		for name, on := range st.Features {
			feat := dialect.Feature(strings.ReplaceAll(name, "_", "-"))
			if on {
				c.features = c.features.With(feat)
			} else {
				c.features = c.features.Without(feat)
			}
		}
		for k, v := range st.Options {
			c.exts[k] = v
		}
	}
}

// Dialect returns the configured dialect name.
func (c *Config) Dialect() string { return c.dialect }

// Features returns the configured capability set.
func (c *Config) Features() dialect.Features { return c.features }

// Logger returns the configured logger.
func (c *Config) Logger() *slog.Logger { return c.logger }

// orderTerm is one ORDER BY entry.
type orderTerm struct {
	e    Expr
	desc bool
}

// Statement is a mutable SQL statement under construction. It owns its table
// references, groups and join edges; everything else points into those
// collections. Statements are built by a single goroutine; the rendered text
// is published through an atomic slot so concurrent readers of a finished
// statement are safe.
type Statement struct {
	cfg       *Config
	qg        QueryGenerator
	parent    *Statement
	candidate string

	primary    *TableRef
	joins      []*Join
	tables     map[string]*TableRef
	groups     map[string]*TableGroup
	groupOrder []string
	where      *BoolExpr
	exts       map[string]any
	namer      TableNamer
	ansiJoins  bool
	reorder    bool

	selects  []Expr
	orders   []orderTerm
	groupBys []Expr
	having   *BoolExpr
	distinct bool
	limit    *int
	offset   *int

	text atomic.Pointer[Text]
}

type stmtOptions struct {
	parent    *Statement
	alias     string
	group     string
	exts      map[string]any
	qg        QueryGenerator
	candidate string
}

// StatementOption configures statement construction.
type StatementOption func(*stmtOptions)

// WithParent makes the new statement a correlated subquery of the given
// statement. The child inherits the parent's query generator when none is
// set explicitly.
func WithParent(parent *Statement) StatementOption {
	return func(o *stmtOptions) { o.parent = parent }
}

// WithAlias sets the primary table's alias instead of deriving one from the
// table namer.
func WithAlias(alias string) StatementOption {
	return func(o *stmtOptions) { o.alias = alias }
}

// WithGroupName sets the primary table group's name. It defaults to
// "Group0".
func WithGroupName(name string) StatementOption {
	return func(o *stmtOptions) { o.group = name }
}

// WithExtensions seeds the statement's extension map. A
// table-naming-strategy entry selects the namer for the whole statement,
// including the primary alias.
func WithExtensions(exts map[string]any) StatementOption {
	return func(o *stmtOptions) { o.exts = exts }
}

// WithQueryGenerator sets the parse-context collaborator.
func WithQueryGenerator(qg QueryGenerator) StatementOption {
	return func(o *stmtOptions) { o.qg = qg }
}

// WithCandidate records the candidate entity name the statement selects,
// carried for diagnostics and cache keys.
func WithCandidate(name string) StatementOption {
	return func(o *stmtOptions) { o.candidate = name }
}

// NewStatement returns a statement selecting from the given table. The
// primary table reference is registered into its group before the statement
// is returned; the ANSI-or-not join style is fixed here from the config's
// capability set and never re-examined.
func NewStatement(cfg *Config, table *schema.Table, opts ...StatementOption) (*Statement, error) {
	if cfg == nil {
		return nil, fabrica.NewInternalError("statement", "nil config")
	}
	if table == nil {
		return nil, fabrica.NewInternalError("statement", "nil table")
	}
	var o stmtOptions
	for _, opt := range opts {
		opt(&o)
	}
	s := &Statement{
		cfg:       cfg,
		qg:        o.qg,
		parent:    o.parent,
		candidate: o.candidate,
		groups:    make(map[string]*TableGroup),
		ansiJoins: cfg.features.Supports(dialect.FeatureANSIJoinSyntax),
	}
	if s.qg == nil && s.parent != nil {
		s.qg = s.parent.qg
	}

	exts := make(map[string]any, len(cfg.exts)+len(o.exts))
	for k, v := range cfg.exts {
		exts[k] = v
	}
	for k, v := range o.exts {
		exts[k] = v
	}
	naming := cfg.naming
	if v, ok := exts[ExtensionTableNamingStrategy]; ok {
		name, err := extString(v)
		if err != nil {
			return nil, err
		}
		naming = name
		delete(exts, ExtensionTableNamingStrategy)
	}
	if naming == "" {
		naming = NamingAlphaScheme
	}
	namer, err := namerFor(naming, cfg.resolver)
	if err != nil {
		return nil, err
	}
	s.namer = namer
	s.exts = exts

	group := o.group
	if group == "" {
		group = "Group0"
	}
	alias := o.alias
	if alias == "" {
		alias = s.namer.AliasForTable(s, table, group)
	}
	if !isValidIdentifier(alias) {
		return nil, fmt.Errorf("dialect/sql: invalid table alias %q", alias)
	}
	s.primary = &TableRef{stmt: s, table: table, alias: Identifier(alias), group: group}
	s.groups[group] = &TableGroup{name: group, refs: []*TableRef{s.primary}}
	s.groupOrder = []string{group}
	return s, nil
}

// extString asserts a string-valued extension.
func extString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("dialect/sql: invalid type %T. expect string for %s", v, ExtensionTableNamingStrategy)
	}
	return s, nil
}

// invalidate drops the cached rendered text. Every mutator calls it before
// changing the statement, and only after its checks have passed.
func (s *Statement) invalidate() {
	s.text.Store(nil)
}

// WhereAnd ANDs a predicate into the WHERE tree. A plain (non-parameter)
// literal TRUE operand changes nothing and is skipped before invalidation;
// so is nil.
func (s *Statement) WhereAnd(e *BoolExpr, applyToUnions bool) {
	if e == nil {
		return
	}
	if v, ok := e.Literal(); ok && v {
		return
	}
	s.invalidate()
	if s.where == nil {
		s.where = e
		return
	}
	s.where = s.where.And(e)
}

// WhereOr ORs a predicate into the WHERE tree. The existing tree and the
// new operand are both parenthesized, so earlier AND structure keeps its
// grouping.
func (s *Statement) WhereOr(e *BoolExpr, applyToUnions bool) {
	if e == nil {
		return
	}
	s.invalidate()
	if s.where == nil {
		s.where = e
		return
	}
	s.where = s.where.Paren().Or(e.Paren())
}

// SetExtension records a statement extension. The table-naming-strategy key
// re-resolves the statement's namer instead of being stored; other keys are
// stored opaquely and readable by the renderer and callers.
func (s *Statement) SetExtension(key string, value any) error {
	if key == ExtensionTableNamingStrategy {
		name, err := extString(value)
		if err != nil {
			return err
		}
		n, err := namerFor(name, s.cfg.resolver)
		if err != nil {
			return err
		}
		s.invalidate()
		s.namer = n
		return nil
	}
	s.invalidate()
	if s.exts == nil {
		s.exts = make(map[string]any)
	}
	s.exts[key] = value
	return nil
}

// Extension returns the value stored under the given key.
func (s *Statement) Extension(key string) (any, bool) {
	v, ok := s.exts[key]
	return v, ok
}

// SetQueryGenerator sets the parse-context collaborator for joins added
// from now on.
func (s *Statement) SetQueryGenerator(qg QueryGenerator) {
	s.invalidate()
	s.qg = qg
}

// PrimaryTable returns the statement's primary table reference.
func (s *Statement) PrimaryTable() *TableRef { return s.primary }

// Dialect returns the statement's dialect name.
func (s *Statement) Dialect() string { return s.cfg.dialect }

// Candidate returns the candidate entity name, or "".
func (s *Statement) Candidate() string { return s.candidate }

// Table returns the reference under the given alias, or nil. Lookup is
// case-sensitive: aliases keep the case they were created with.
func (s *Statement) Table(alias string) *TableRef {
	if s.primary != nil && s.primary.alias.Name() == alias {
		return s.primary
	}
	return s.tables[alias]
}

// TableFor returns the first reference over the given physical table, the
// primary table taking precedence, or nil.
func (s *Statement) TableFor(t *schema.Table) *TableRef {
	if s.primary != nil && s.primary.table == t {
		return s.primary
	}
	for _, name := range s.groupOrder {
		for _, ref := range s.groups[name].refs {
			if ref.table == t {
				return ref
			}
		}
	}
	return nil
}

// TableInGroup returns the reference over the given physical table within
// the named group, or nil.
func (s *Statement) TableInGroup(t *schema.Table, group string) *TableRef {
	grp := s.groups[group]
	if grp == nil {
		return nil
	}
	for _, ref := range grp.refs {
		if ref.table == t {
			return ref
		}
	}
	return nil
}

// Group returns the named table group, or nil.
func (s *Statement) Group(name string) *TableGroup { return s.groups[name] }

// NumGroups returns the number of table groups.
func (s *Statement) NumGroups() int { return len(s.groups) }

// NumTables returns the number of secondary tables registered through
// joins, or -1 when no join has ever registered one.
func (s *Statement) NumTables() int {
	if s.tables == nil {
		return -1
	}
	return len(s.tables)
}

// Parent returns the parent statement, or nil for a top-level statement.
func (s *Statement) Parent() *Statement { return s.parent }

// IsDescendantOf reports whether other appears in the statement's parent
// chain.
func (s *Statement) IsDescendantOf(other *Statement) bool {
	if other == nil {
		return false
	}
	for p := s.parent; p != nil; p = p.parent {
		if p == other {
			return true
		}
	}
	return false
}

// RequiresJoinReorder reports whether joins must be reordered before
// rendering, set when a cross join was removed from the middle of the
// chain.
func (s *Statement) RequiresJoinReorder() bool { return s.reorder }

// Select appends expressions to the select list. An empty select list
// renders as *.
func (s *Statement) Select(exprs ...Expr) {
	s.invalidate()
	s.selects = append(s.selects, exprs...)
}

// SelectColumn appends one column of the given reference to the select
// list.
func (s *Statement) SelectColumn(ref *TableRef, name string) error {
	e, err := Column(ref, name)
	if err != nil {
		return err
	}
	s.invalidate()
	s.selects = append(s.selects, e)
	return nil
}

// Distinct makes the statement render SELECT DISTINCT.
func (s *Statement) Distinct() {
	s.invalidate()
	s.distinct = true
}

// OrderBy appends an ORDER BY term.
func (s *Statement) OrderBy(e Expr, desc bool) {
	s.invalidate()
	s.orders = append(s.orders, orderTerm{e: e, desc: desc})
}

// GroupBy appends GROUP BY expressions.
func (s *Statement) GroupBy(exprs ...Expr) {
	s.invalidate()
	s.groupBys = append(s.groupBys, exprs...)
}

// Having sets the HAVING predicate, replacing any previous one.
func (s *Statement) Having(e *BoolExpr) {
	s.invalidate()
	s.having = e
}

// Limit sets the row limit.
func (s *Statement) Limit(n int) {
	s.invalidate()
	s.limit = &n
}

// Offset sets the row offset.
func (s *Statement) Offset(n int) {
	s.invalidate()
	s.offset = &n
}

// Dump logs the rendered SQL and the table groups at debug level.
func (s *Statement) Dump(logger *slog.Logger) {
	if logger == nil {
		logger = s.cfg.logger
	}
	logger.Debug("statement", "sql", s.Render().SQL())
	for _, name := range s.groupOrder {
		logger.Debug("statement table group", "group", s.groups[name].String())
	}
}
