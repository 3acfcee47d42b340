package sql

import (
	"strconv"
	"strings"

	"github.com/fabrica-orm/fabrica/dialect"
)

// Render returns the statement's rendered text. The same *Text pointer is
// returned across repeated calls until a mutator drops it; rendering after
// a mutation produces a fresh value. Safe for concurrent readers.
func (s *Statement) Render() *Text {
	if t := s.text.Load(); t != nil {
		return t
	}
	t := s.render()
	if s.text.CompareAndSwap(nil, t) {
		return t
	}
	if cached := s.text.Load(); cached != nil {
		return cached
	}
	return t
}

func (s *Statement) render() *Text {
	var b strings.Builder
	var args []any

	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	if len(s.selects) == 0 {
		b.WriteByte('*')
	} else {
		for i, e := range s.selects {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(e.SQL())
		}
		args = appendExprArgs(args, s.selects...)
	}
	b.WriteString(" FROM ")
	b.WriteString(s.primary.String())

	joins := s.joins
	if s.reorder && len(joins) > 0 {
		joins = s.reorderedJoins()
	}
	if s.ansiJoins {
		for _, j := range joins {
			b.WriteByte(' ')
			args = writeJoin(&b, j, args)
		}
	} else {
		// Comma-list style; the join conditions live in WHERE already.
		for _, j := range joins {
			b.WriteString(", ")
			b.WriteString(j.target.String())
		}
	}
	if s.where != nil {
		b.WriteString(" WHERE ")
		b.WriteString(s.where.SQL())
		args = s.where.appendArgs(args)
	}
	if len(s.groupBys) > 0 {
		b.WriteString(" GROUP BY ")
		for i, e := range s.groupBys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(e.SQL())
		}
		args = appendExprArgs(args, s.groupBys...)
	}
	if s.having != nil {
		b.WriteString(" HAVING ")
		b.WriteString(s.having.SQL())
		args = s.having.appendArgs(args)
	}
	if len(s.orders) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range s.orders {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(o.e.SQL())
			if o.desc {
				b.WriteString(" DESC")
			}
			args = appendExprArgs(args, o.e)
		}
	}
	if s.limit != nil {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(*s.limit))
	}
	if s.offset != nil {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(*s.offset))
	}
	s.writeLockSuffix(&b)
	return NewText(b.String(), args)
}

// writeJoin renders one ANSI join clause. A join holding a sub-join renders
// the pair inside parentheses, with the outer ON condition after the
// closing parenthesis; argument order follows the text.
func writeJoin(b *strings.Builder, j *Join, args []any) []any {
	b.WriteString(j.kind.String())
	b.WriteByte(' ')
	if j.sub != nil {
		b.WriteByte('(')
		b.WriteString(j.target.String())
		b.WriteByte(' ')
		args = writeJoin(b, j.sub, args)
		b.WriteByte(')')
	} else {
		b.WriteString(j.target.String())
	}
	if j.cond != nil && j.kind != CrossJoin {
		b.WriteString(" ON ")
		b.WriteString(j.cond.SQL())
		args = j.cond.appendArgs(args)
	}
	return args
}

// reorderedJoins orders joins so every join's source is already introduced:
// joins off the primary table first, then repeated passes pulling in joins
// whose source is the target of an already-placed join. When a pass places
// nothing, the remaining joins are unreachable from the primary table; the
// original order is kept and a warning logged.
func (s *Statement) reorderedJoins() []*Join {
	ordered := make([]*Join, 0, len(s.joins))
	rest := make([]*Join, 0, len(s.joins))
	for _, j := range s.joins {
		if j.source == s.primary {
			ordered = append(ordered, j)
		} else {
			rest = append(rest, j)
		}
	}
	for len(rest) > 0 {
		placed := false
		next := make([]*Join, 0, len(rest))
		for _, j := range rest {
			if introduced(ordered, j.source) {
				ordered = append(ordered, j)
				placed = true
			} else {
				next = append(next, j)
			}
		}
		if !placed {
			s.cfg.logger.Warn("join reorder failed, keeping original order",
				"remaining", len(next))
			return s.joins
		}
		rest = next
	}
	return ordered
}

// introduced reports whether ref is the target of a placed join or of one
// of their sub-joins. References compare by alias: a table re-joined under
// an alias freed by RemoveCrossJoin satisfies joins still holding the old
// reference.
func introduced(placed []*Join, ref *TableRef) bool {
	for _, j := range placed {
		if sameRef(j.target, ref) {
			return true
		}
		if j.sub != nil && sameRef(j.sub.target, ref) {
			return true
		}
	}
	return false
}

func sameRef(a, b *TableRef) bool {
	return a == b || a.alias == b.alias
}

// writeLockSuffix appends the locking suffix requested by the statement's
// extensions. Requests the dialect cannot honor are skipped.
func (s *Statement) writeLockSuffix(b *strings.Builder) {
	if !extFlag(s.exts, ExtensionLockForUpdate) {
		return
	}
	if !s.cfg.features.Supports(dialect.FeatureSelectForUpdate) {
		return
	}
	b.WriteString(" FOR UPDATE")
	if extFlag(s.exts, ExtensionLockForUpdateNowait) && s.cfg.features.Supports(dialect.FeatureSelectForUpdateNoWait) {
		b.WriteString(" NOWAIT")
	}
}

// extFlag interprets a statement extension as a boolean flag. Both bool
// values and strings accepted by strconv.ParseBool count, so flags can
// arrive from configuration files unchanged.
func extFlag(exts map[string]any, key string) bool {
	switch v := exts[key].(type) {
	case bool:
		return v
	case string:
		on, err := strconv.ParseBool(v)
		return err == nil && on
	default:
		return false
	}
}
