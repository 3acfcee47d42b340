package sql

import (
	"testing"

	"github.com/fabrica-orm/fabrica"
	"github.com/fabrica-orm/fabrica/dialect"
	"github.com/fabrica-orm/fabrica/dialect/sql/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQueryGenerator stubs the parse-context collaborator.
type fakeQueryGenerator struct {
	on bool
}

func (f *fakeQueryGenerator) ProcessingOnClause() bool { return f.on }

// TestJoin tests key-mapping joins and their rendered form.
func TestJoin(t *testing.T) {
	users, orders, _ := testTables()

	t.Run("inner_join", func(t *testing.T) {
		s, err := NewStatement(NewConfig(dialect.Postgres), users)
		require.NoError(t, err)
		ref, err := s.Join(InnerJoin, nil, users.Key("id"), orders, orders.Key("user_id"))
		require.NoError(t, err)

		assert.Equal(t, "B0", ref.Alias().Name())
		assert.Equal(t, "Group1", ref.GroupName())
		assert.Same(t, s, ref.Statement())
		assert.Same(t, orders, ref.Table())

		require.True(t, s.HasJoins())
		joins := s.Joins()
		require.Len(t, joins, 1)
		assert.Equal(t, InnerJoin, joins[0].Kind())
		assert.Same(t, s.PrimaryTable(), joins[0].Source())
		assert.Same(t, ref, joins[0].Target())
		assert.Nil(t, joins[0].SubJoin())
		assert.Equal(t, "A0.id = B0.user_id", joins[0].Condition().SQL())

		assert.Equal(t,
			"SELECT * FROM users A0 INNER JOIN orders B0 ON A0.id = B0.user_id",
			s.Render().SQL())
	})

	t.Run("left_outer_join", func(t *testing.T) {
		s, err := NewStatement(NewConfig(dialect.Postgres), users)
		require.NoError(t, err)
		_, err = s.Join(LeftOuterJoin, nil, users.Key("id"), orders, orders.Key("user_id"))
		require.NoError(t, err)
		assert.Contains(t, s.Render().SQL(), "LEFT OUTER JOIN orders B0")
	})

	t.Run("composite_key", func(t *testing.T) {
		s, err := NewStatement(NewConfig(dialect.Postgres), users)
		require.NoError(t, err)
		_, err = s.Join(InnerJoin, nil, users.Key("id", "name"), orders, orders.Key("user_id", "total"))
		require.NoError(t, err)
		assert.Contains(t, s.Render().SQL(), "ON A0.id = B0.user_id AND A0.name = B0.total")
	})

	t.Run("cross_join_without_condition", func(t *testing.T) {
		carts := schema.NewTable("carts").AddColumns(
			schema.NewColumn("id", schema.TypeInt64),
		)
		s, err := NewStatement(NewConfig(dialect.Postgres), users)
		require.NoError(t, err)
		ref, err := s.Join(CrossJoin, nil, nil, carts, nil)
		require.NoError(t, err)
		assert.Nil(t, s.JoinForTable(ref).Condition())
		assert.Equal(t, "SELECT * FROM users A0 CROSS JOIN carts B0", s.Render().SQL())
	})
}

// TestJoinIdempotent tests that re-joining an existing target is a silent
// no-op returning the prior reference.
func TestJoinIdempotent(t *testing.T) {
	users, orders, _ := testTables()
	s, err := NewStatement(NewConfig(dialect.Postgres), users)
	require.NoError(t, err)

	first, err := s.Join(InnerJoin, nil, users.Key("id"), orders, orders.Key("user_id"), WithTargetAlias("ORD"))
	require.NoError(t, err)
	before := s.Render()

	second, err := s.Join(InnerJoin, nil, users.Key("id"), orders, orders.Key("user_id"), WithTargetAlias("ORD"))
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Len(t, s.Joins(), 1)
	assert.Equal(t, 1, s.NumTables())
	assert.Same(t, before, s.Render(), "a no-op join must not drop the cached text")
}

// TestJoinAtomicity tests that failed joins leave the statement untouched.
func TestJoinAtomicity(t *testing.T) {
	users, orders, items, pets := joinFixtures()

	t.Run("key_arity_mismatch", func(t *testing.T) {
		s, err := NewStatement(NewConfig(dialect.Postgres), users)
		require.NoError(t, err)
		before := s.Render()

		_, err = s.Join(InnerJoin, nil, users.Key("id"), orders, orders.Key("user_id", "id"))
		require.Error(t, err)
		assert.True(t, fabrica.IsInternal(err))
		assert.Contains(t, err.Error(), "different column counts")

		assert.Equal(t, -1, s.NumTables())
		assert.Equal(t, 1, s.NumGroups())
		assert.False(t, s.HasJoins())
		assert.Same(t, before, s.Render())
	})

	t.Run("right_outer_unsupported", func(t *testing.T) {
		s, err := NewStatement(NewConfig(dialect.SQLite), users)
		require.NoError(t, err)
		before := s.Render()

		_, err = s.Join(RightOuterJoin, nil, users.Key("id"), orders, orders.Key("user_id"))
		require.Error(t, err)
		assert.True(t, fabrica.IsUnsupportedFeature(err))

		assert.Equal(t, -1, s.NumTables())
		assert.False(t, s.HasJoins())
		assert.Same(t, before, s.Render())
	})

	t.Run("right_outer_supported_on_postgres", func(t *testing.T) {
		s, err := NewStatement(NewConfig(dialect.Postgres), users)
		require.NoError(t, err)
		_, err = s.Join(RightOuterJoin, nil, users.Key("id"), orders, orders.Key("user_id"))
		require.NoError(t, err)
		assert.Contains(t, s.Render().SQL(), "RIGHT OUTER JOIN orders B0")
	})

	t.Run("duplicate_alias", func(t *testing.T) {
		s, err := NewStatement(NewConfig(dialect.Postgres), users)
		require.NoError(t, err)
		_, err = s.Join(InnerJoin, nil, users.Key("id"), orders, orders.Key("user_id"), WithTargetAlias("X"))
		require.NoError(t, err)

		_, err = s.Join(InnerJoin, nil, users.Key("id"), items, items.Key("order_id"), WithTargetAlias("X"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate table alias")
		assert.Equal(t, 1, s.NumTables())
	})

	t.Run("source_from_another_statement", func(t *testing.T) {
		s1, err := NewStatement(NewConfig(dialect.Postgres), users)
		require.NoError(t, err)
		s2, err := NewStatement(NewConfig(dialect.Postgres), users)
		require.NoError(t, err)

		_, err = s1.Join(InnerJoin, s2.PrimaryTable(), users.Key("id"), orders, orders.Key("user_id"))
		require.Error(t, err)
		assert.True(t, fabrica.IsInternal(err))
		assert.Contains(t, err.Error(), "belongs to another statement")
	})

	t.Run("nil_target_table", func(t *testing.T) {
		s, err := NewStatement(NewConfig(dialect.Postgres), users)
		require.NoError(t, err)
		_, err = s.JoinOn(InnerJoin, nil, nil, nil)
		require.Error(t, err)
		assert.True(t, fabrica.IsInternal(err))
	})

	t.Run("invalid_target_alias", func(t *testing.T) {
		s, err := NewStatement(NewConfig(dialect.Postgres), users)
		require.NoError(t, err)
		_, err = s.Join(InnerJoin, nil, users.Key("id"), pets, pets.Key("owner_id"), WithTargetAlias("no alias"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid table alias")
	})
}

// TestSubJoins tests nested join clauses.
func TestSubJoins(t *testing.T) {
	users, orders, items, pets := joinFixtures()
	s, err := NewStatement(NewConfig(dialect.Postgres), users)
	require.NoError(t, err)

	ordersRef, err := s.Join(InnerJoin, nil, users.Key("id"), orders, orders.Key("user_id"))
	require.NoError(t, err)
	parent := s.JoinForTable(ordersRef)
	require.NotNil(t, parent)

	itemsRef, err := s.Join(InnerJoin, ordersRef, orders.Key("id"), items, items.Key("order_id"), WithParentJoin(parent))
	require.NoError(t, err)

	// The sub-join hangs off its parent instead of extending the join list.
	assert.Len(t, s.Joins(), 1)
	require.NotNil(t, parent.SubJoin())
	assert.Same(t, itemsRef, parent.SubJoin().Target())
	assert.Same(t, parent.SubJoin(), s.JoinForTable(itemsRef))

	kind, ok := s.JoinKindForTable(itemsRef)
	assert.True(t, ok)
	assert.Equal(t, InnerJoin, kind)

	assert.Equal(t,
		"SELECT * FROM users A0 INNER JOIN (orders B0 INNER JOIN items C0 "+
			"ON B0.id = C0.order_id) ON A0.id = B0.user_id",
		s.Render().SQL())

	t.Run("second_sub_join_rejected", func(t *testing.T) {
		before := s.Render()
		_, err := s.Join(InnerJoin, ordersRef, orders.Key("id"), pets, pets.Key("owner_id"), WithParentJoin(parent))
		require.Error(t, err)
		assert.True(t, fabrica.IsInternal(err))
		assert.Contains(t, err.Error(), "already has a sub-join")

		assert.Equal(t, 2, s.NumTables(), "the rejected target must not register")
		assert.Same(t, before, s.Render())
	})
}

// TestJoinDiscriminators tests the discriminator restriction on join
// conditions.
func TestJoinDiscriminators(t *testing.T) {
	users, _, _, pets := joinFixtures()

	t.Run("or_chain_parenthesized", func(t *testing.T) {
		s, err := NewStatement(NewConfig(dialect.Postgres), users)
		require.NoError(t, err)
		_, err = s.Join(InnerJoin, nil, users.Key("id"), pets, pets.Key("owner_id"),
			WithDiscriminators("dog", "cat"))
		require.NoError(t, err)
		assert.Equal(t,
			"SELECT * FROM users A0 INNER JOIN pets B0 "+
				"ON A0.id = B0.owner_id AND (B0.type = 'dog' OR B0.type = 'cat')",
			s.Render().SQL())
	})

	t.Run("single_value_parenthesized", func(t *testing.T) {
		s, err := NewStatement(NewConfig(dialect.Postgres), users)
		require.NoError(t, err)
		_, err = s.Join(InnerJoin, nil, users.Key("id"), pets, pets.Key("owner_id"),
			WithDiscriminators("dog"))
		require.NoError(t, err)
		assert.Contains(t, s.Render().SQL(), "ON A0.id = B0.owner_id AND (B0.type = 'dog')")
	})

	t.Run("ignored_without_discriminator_column", func(t *testing.T) {
		_, orders, _ := testTables()
		s, err := NewStatement(NewConfig(dialect.Postgres), users)
		require.NoError(t, err)
		_, err = s.Join(InnerJoin, nil, users.Key("id"), orders, orders.Key("user_id"),
			WithDiscriminators("dog"))
		require.NoError(t, err)
		assert.Equal(t,
			"SELECT * FROM users A0 INNER JOIN orders B0 ON A0.id = B0.user_id",
			s.Render().SQL())
	})
}

// TestJoinOn tests joins with explicit conditions.
func TestJoinOn(t *testing.T) {
	users, _, _, pets := joinFixtures()

	t.Run("explicit_condition", func(t *testing.T) {
		s, err := NewStatement(NewConfig(dialect.Postgres), users)
		require.NoError(t, err)
		age, err := Column(s.PrimaryTable(), "age")
		require.NoError(t, err)
		_, err = s.JoinOn(LeftOuterJoin, nil, pets, Cond(age, ">", Param(21)))
		require.NoError(t, err)

		text := s.Render()
		assert.Equal(t, "SELECT * FROM users A0 LEFT OUTER JOIN pets B0 ON A0.age > ?", text.SQL())
		assert.Equal(t, []any{int64(21)}, text.Args())
	})

	t.Run("condition_composed_with_discriminators", func(t *testing.T) {
		s, err := NewStatement(NewConfig(dialect.Postgres), users)
		require.NoError(t, err)
		age, err := Column(s.PrimaryTable(), "age")
		require.NoError(t, err)
		_, err = s.JoinOn(InnerJoin, nil, pets, Cond(age, ">", Literal(21)), WithDiscriminators("dog"))
		require.NoError(t, err)
		assert.Contains(t, s.Render().SQL(), "ON A0.age > 21 AND (B0.type = 'dog')")
	})

	t.Run("no_condition", func(t *testing.T) {
		s, err := NewStatement(NewConfig(dialect.Postgres), users)
		require.NoError(t, err)
		_, err = s.JoinOn(InnerJoin, nil, pets, nil)
		require.NoError(t, err)
		assert.Equal(t, "SELECT * FROM users A0 INNER JOIN pets B0", s.Render().SQL())
	})
}

// TestJoinForeignKey tests joins following a declared foreign key.
func TestJoinForeignKey(t *testing.T) {
	users, orders, _ := testTables()
	fk := &schema.ForeignKey{
		Symbol:     "orders_users_fk",
		Columns:    []*schema.Column{orders.Column("user_id")},
		RefTable:   users,
		RefColumns: []*schema.Column{users.Column("id")},
	}
	orders.AddForeignKeys(fk)

	s, err := NewStatement(NewConfig(dialect.Postgres), orders)
	require.NoError(t, err)
	_, err = s.JoinForeignKey(InnerJoin, nil, orders.ForeignKey("orders_users_fk"))
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM orders A0 INNER JOIN users B0 ON A0.user_id = B0.id",
		s.Render().SQL())

	t.Run("nil_foreign_key", func(t *testing.T) {
		_, err := s.JoinForeignKey(InnerJoin, nil, nil)
		require.Error(t, err)
		assert.True(t, fabrica.IsInternal(err))
	})
}

// TestJoinPositioning tests ON-clause join placement through the query
// generator.
func TestJoinPositioning(t *testing.T) {
	users, orders, items, _ := joinFixtures()
	payments := schema.NewTable("payments").AddColumns(
		schema.NewColumn("id", schema.TypeInt64),
		schema.NewColumn("order_id", schema.TypeInt64),
	)
	addresses := schema.NewTable("addresses").AddColumns(
		schema.NewColumn("id", schema.TypeInt64),
		schema.NewColumn("user_id", schema.TypeInt64),
	)
	banks := schema.NewTable("banks").AddColumns(
		schema.NewColumn("id", schema.TypeInt64),
		schema.NewColumn("user_id", schema.TypeInt64),
	)

	qg := &fakeQueryGenerator{}
	s, err := NewStatement(NewConfig(dialect.Postgres), users, WithQueryGenerator(qg))
	require.NoError(t, err)

	ordersRef, err := s.Join(InnerJoin, nil, users.Key("id"), orders, orders.Key("user_id"))
	require.NoError(t, err)
	_, err = s.Join(InnerJoin, ordersRef, orders.Key("id"), items, items.Key("order_id"))
	require.NoError(t, err)
	_, err = s.Join(InnerJoin, nil, users.Key("id"), addresses, addresses.Key("user_id"))
	require.NoError(t, err)
	require.Equal(t, []string{"orders", "items", "addresses"}, joinTargets(s))

	// While an ON clause is processed, a join from a mid-graph source lands
	// directly after the first join sharing that source.
	qg.on = true
	_, err = s.Join(InnerJoin, ordersRef, orders.Key("id"), payments, payments.Key("order_id"))
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "items", "payments", "addresses"}, joinTargets(s))

	// A join from the primary table lands first.
	_, err = s.Join(InnerJoin, nil, users.Key("id"), banks, banks.Key("user_id"))
	require.NoError(t, err)
	assert.Equal(t, []string{"banks", "orders", "items", "payments", "addresses"}, joinTargets(s))

	// Outside ON-clause processing, joins append.
	qg.on = false
	pubs := schema.NewTable("pubs").AddColumns(
		schema.NewColumn("id", schema.TypeInt64),
		schema.NewColumn("user_id", schema.TypeInt64),
	)
	_, err = s.Join(InnerJoin, nil, users.Key("id"), pubs, pubs.Key("user_id"))
	require.NoError(t, err)
	assert.Equal(t, []string{"banks", "orders", "items", "payments", "addresses", "pubs"}, joinTargets(s))
}

// joinTargets lists the top-level join targets by table name, in clause
// order.
func joinTargets(s *Statement) []string {
	joins := s.Joins()
	names := make([]string, len(joins))
	for i, j := range joins {
		names[i] = j.Target().Table().Name
	}
	return names
}

// TestRemoveCrossJoin tests cross join removal and the follow-up reorder.
func TestRemoveCrossJoin(t *testing.T) {
	users, orders, _ := testTables()
	carts := schema.NewTable("carts").AddColumns(
		schema.NewColumn("id", schema.TypeInt64),
		schema.NewColumn("user_id", schema.TypeInt64),
	)

	t.Run("unregisters_and_flags", func(t *testing.T) {
		s, err := NewStatement(NewConfig(dialect.Postgres), users)
		require.NoError(t, err)
		cartsRef, err := s.Join(CrossJoin, nil, nil, carts, nil)
		require.NoError(t, err)
		_, err = s.Join(InnerJoin, nil, users.Key("id"), orders, orders.Key("user_id"))
		require.NoError(t, err)
		before := s.Render()

		alias := s.RemoveCrossJoin(cartsRef)
		assert.Equal(t, "B0", alias)
		assert.True(t, s.RequiresJoinReorder())
		assert.Nil(t, s.Table("B0"))
		assert.Equal(t, 1, s.NumTables())
		assert.Len(t, s.Joins(), 1)
		assert.Equal(t, 0, s.Group("Group1").NumTables())
		assert.NotSame(t, before, s.Render())
	})

	t.Run("no_matching_cross_join", func(t *testing.T) {
		s, err := NewStatement(NewConfig(dialect.Postgres), users)
		require.NoError(t, err)
		ordersRef, err := s.Join(InnerJoin, nil, users.Key("id"), orders, orders.Key("user_id"))
		require.NoError(t, err)

		assert.Equal(t, "", s.RemoveCrossJoin(ordersRef), "inner joins are not removable")
		assert.Equal(t, "", s.RemoveCrossJoin(nil))
		assert.Len(t, s.Joins(), 1)
	})

	t.Run("rejoin_under_freed_alias_reorders", func(t *testing.T) {
		cartItems := schema.NewTable("cart_items").AddColumns(
			schema.NewColumn("id", schema.TypeInt64),
			schema.NewColumn("cart_id", schema.TypeInt64),
		)
		s, err := NewStatement(NewConfig(dialect.Postgres), users)
		require.NoError(t, err)
		cartsRef, err := s.Join(CrossJoin, nil, nil, carts, nil)
		require.NoError(t, err)
		_, err = s.Join(InnerJoin, cartsRef, carts.Key("id"), cartItems, cartItems.Key("cart_id"))
		require.NoError(t, err)

		alias := s.RemoveCrossJoin(cartsRef)
		require.Equal(t, "B0", alias)

		_, err = s.Join(InnerJoin, nil, users.Key("id"), carts, carts.Key("user_id"),
			WithTargetAlias(alias), WithJoinGroup("Group1"))
		require.NoError(t, err)

		assert.Equal(t,
			"SELECT * FROM users A0 INNER JOIN carts B0 ON A0.id = B0.user_id "+
				"INNER JOIN cart_items C0 ON B0.id = C0.cart_id",
			s.Render().SQL())
	})
}

// TestAddJoinCondition tests appending predicates to join conditions.
func TestAddJoinCondition(t *testing.T) {
	users, orders, _ := testTables()
	s, err := NewStatement(NewConfig(dialect.Postgres), users)
	require.NoError(t, err)
	ordersRef, err := s.Join(InnerJoin, nil, users.Key("id"), orders, orders.Key("user_id"))
	require.NoError(t, err)
	before := s.Render()

	total, err := Column(ordersRef, "total")
	require.NoError(t, err)
	require.NoError(t, s.AddJoinCondition(ordersRef, Cond(total, ">", Param(100.0)), true))

	text := s.Render()
	assert.NotSame(t, before, text)
	assert.Equal(t,
		"SELECT * FROM users A0 INNER JOIN orders B0 ON A0.id = B0.user_id AND B0.total > ?",
		text.SQL())
	assert.Equal(t, []any{100.0}, text.Args())

	t.Run("nil_reference", func(t *testing.T) {
		err := s.AddJoinCondition(nil, Bool(true), true)
		require.Error(t, err)
		assert.True(t, fabrica.IsInternal(err))
	})

	t.Run("not_a_join_target", func(t *testing.T) {
		err := s.AddJoinCondition(s.PrimaryTable(), Bool(true), true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no join found")
	})
}

// TestNonANSIJoins tests the comma-list style used when the dialect lacks
// ANSI join syntax.
func TestNonANSIJoins(t *testing.T) {
	users, orders, _ := testTables()
	nonANSI := func() *Config {
		return NewConfig(dialect.MySQL, WithFeatures(dialect.NewFeatures()))
	}

	t.Run("conditions_fold_into_where", func(t *testing.T) {
		s, err := NewStatement(nonANSI(), users)
		require.NoError(t, err)
		_, err = s.Join(InnerJoin, nil, users.Key("id"), orders, orders.Key("user_id"))
		require.NoError(t, err)

		joins := s.Joins()
		require.Len(t, joins, 1)
		assert.Equal(t, NonANSIJoin, joins[0].Kind())
		assert.Nil(t, joins[0].Condition())

		assert.Equal(t,
			"SELECT * FROM users A0, orders B0 WHERE A0.id = B0.user_id",
			s.Render().SQL())

		age, err := Column(s.PrimaryTable(), "age")
		require.NoError(t, err)
		s.WhereAnd(Cond(age, ">", Param(18)), true)
		assert.Equal(t,
			"SELECT * FROM users A0, orders B0 WHERE A0.id = B0.user_id AND A0.age > ?",
			s.Render().SQL())
	})

	t.Run("cross_join_adds_no_condition", func(t *testing.T) {
		carts := schema.NewTable("carts").AddColumns(schema.NewColumn("id", schema.TypeInt64))
		s, err := NewStatement(nonANSI(), users)
		require.NoError(t, err)
		_, err = s.Join(CrossJoin, nil, nil, carts, nil)
		require.NoError(t, err)
		assert.Equal(t, "SELECT * FROM users A0, carts B0", s.Render().SQL())
	})

	t.Run("parent_join_ignored", func(t *testing.T) {
		items := schema.NewTable("line_items").AddColumns(
			schema.NewColumn("id", schema.TypeInt64),
			schema.NewColumn("order_id", schema.TypeInt64),
		)
		s, err := NewStatement(nonANSI(), users)
		require.NoError(t, err)
		ordersRef, err := s.Join(InnerJoin, nil, users.Key("id"), orders, orders.Key("user_id"))
		require.NoError(t, err)
		parent := s.JoinForTable(ordersRef)
		require.NotNil(t, parent)

		_, err = s.Join(InnerJoin, ordersRef, orders.Key("id"), items, items.Key("order_id"), WithParentJoin(parent))
		require.NoError(t, err)
		assert.Len(t, s.Joins(), 2, "comma-list joins always append")
		assert.Nil(t, parent.SubJoin())
	})
}

// joinFixtures returns the shared tables plus a pets table carrying a
// discriminator column.
func joinFixtures() (users, orders, items, pets *schema.Table) {
	users, orders, items = testTables()
	pets = schema.NewTable("pets").
		AddColumns(
			schema.NewColumn("id", schema.TypeInt64),
			schema.NewColumn("owner_id", schema.TypeInt64),
		).
		SetDiscriminator(schema.NewColumn("type", schema.TypeString))
	return users, orders, items, pets
}
