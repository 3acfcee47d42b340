package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTableColumns tests column registration and lookup.
func TestTableColumns(t *testing.T) {
	t.Parallel()

	users := NewTable("users").AddColumns(
		NewColumn("id", TypeInt64),
		NewColumn("name", TypeString).SetSize(255),
		NewColumn("email", TypeString).SetUnique(),
		NewColumn("bio", TypeText).SetNullable(),
	)

	require.Len(t, users.Columns, 4)
	assert.Equal(t, "users", users.Name)
	assert.Equal(t, "users", users.QualifiedName())

	c := users.Column("email")
	require.NotNil(t, c)
	assert.True(t, c.Unique)
	assert.Nil(t, users.Column("missing"))

	users.Schema = "public"
	assert.Equal(t, "public.users", users.QualifiedName())
	assert.Equal(t, "public.users", users.String())
}

// TestTableColumnsWithoutIndex tests lookup on tables built as struct literals.
func TestTableColumnsWithoutIndex(t *testing.T) {
	t.Parallel()

	tbl := &Table{
		Name:    "raw",
		Columns: []*Column{{Name: "id", Type: TypeInt}},
	}
	require.NotNil(t, tbl.Column("id"))
	assert.Nil(t, tbl.Column("other"))
}

// TestTableKey tests key mapping construction.
func TestTableKey(t *testing.T) {
	t.Parallel()

	orders := NewTable("orders").AddColumns(
		NewColumn("tenant_id", TypeInt64),
		NewColumn("id", TypeInt64),
		NewColumn("total", TypeFloat64),
	)

	key := orders.Key("tenant_id", "id")
	require.Equal(t, 2, key.Arity())
	assert.Equal(t, "tenant_id", key.Columns[0].Name)
	assert.Equal(t, "id", key.Columns[1].Name)
	assert.Equal(t, "tenant_id, id", key.Names())

	assert.Panics(t, func() { orders.Key("nope") })
}

// TestPrimaryKeyMapping tests primary key mappings.
func TestPrimaryKeyMapping(t *testing.T) {
	t.Parallel()

	pets := NewTable("pets")
	assert.Nil(t, pets.PrimaryKeyMapping())

	id := NewColumn("id", TypeInt64)
	pets.SetPrimaryKey(id)
	pk := pets.PrimaryKeyMapping()
	require.NotNil(t, pk)
	assert.Equal(t, 1, pk.Arity())

	// SetPrimaryKey registers columns not yet members.
	require.NotNil(t, pets.Column("id"))
}

// TestSetDiscriminator tests discriminator column registration.
func TestSetDiscriminator(t *testing.T) {
	t.Parallel()

	content := NewTable("content").AddColumns(NewColumn("id", TypeInt64))
	content.SetDiscriminator(NewColumn("kind", TypeString))

	require.NotNil(t, content.Discriminator)
	assert.Equal(t, "kind", content.Discriminator.Name)
	assert.NotNil(t, content.Column("kind"), "discriminator becomes a member column")
}

// TestForeignKey tests foreign key mappings and lookup by symbol.
func TestForeignKey(t *testing.T) {
	t.Parallel()

	users := NewTable("users").AddColumns(NewColumn("id", TypeInt64))
	pets := NewTable("pets").AddColumns(
		NewColumn("id", TypeInt64),
		NewColumn("owner_id", TypeInt64),
	)
	fk := &ForeignKey{
		Symbol:     "pets_owner",
		Columns:    []*Column{pets.Column("owner_id")},
		RefTable:   users,
		RefColumns: []*Column{users.Column("id")},
		OnDelete:   Cascade,
	}
	pets.AddForeignKeys(fk)

	require.Same(t, fk, pets.ForeignKey("pets_owner"))
	assert.Nil(t, pets.ForeignKey("missing"))
	assert.Equal(t, 1, fk.Mapping().Arity())
	assert.Equal(t, 1, fk.RefMapping().Arity())
	assert.Equal(t, "owner_id", fk.Mapping().Names())
}

// TestMappingNil tests nil mapping accessors.
func TestMappingNil(t *testing.T) {
	t.Parallel()

	var m *Mapping
	assert.Zero(t, m.Arity())
	assert.Empty(t, m.Names())
}

// TestTypeValid tests the type enum.
func TestTypeValid(t *testing.T) {
	t.Parallel()

	for _, typ := range []Type{
		TypeInt, TypeInt64, TypeFloat64, TypeString, TypeText,
		TypeBool, TypeTime, TypeBytes, TypeUUID, TypeJSON,
	} {
		assert.True(t, typ.Valid(), typ.String())
	}
	assert.False(t, Type("varchar").Valid())
}
