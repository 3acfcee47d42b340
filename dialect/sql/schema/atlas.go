package schema

import (
	"fmt"
	"log/slog"

	"ariga.io/atlas/sql/schema"
)

// The atlas bridge lets migration tooling and the statement builder share one
// table model. Conversions are structural: names, column types, nullability,
// primary keys, foreign keys and indexes cross the bridge; builder-side
// metadata with no atlas counterpart (the discriminator column) does not and
// must be reattached by the caller.

// FromAtlasSchema converts an atlas schema into builder table metadata.
// Foreign keys are linked across the returned tables; references to tables
// outside the schema are converted to detached stubs.
func FromAtlasSchema(s *schema.Schema) ([]*Table, error) {
	tables := make([]*Table, 0, len(s.Tables))
	byName := make(map[string]*Table, len(s.Tables))
	for _, at := range s.Tables {
		t, err := tableFromAtlas(at)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
		byName[t.Name] = t
	}
	for i, at := range s.Tables {
		if err := linkForeignKeys(tables[i], at, byName); err != nil {
			return nil, err
		}
	}
	return tables, nil
}

// ToAtlasSchema converts builder table metadata into an atlas schema.
func ToAtlasSchema(name string, tables []*Table) (*schema.Schema, error) {
	s := &schema.Schema{Name: name}
	byName := make(map[string]*schema.Table, len(tables))
	for _, t := range tables {
		at, err := tableToAtlas(t)
		if err != nil {
			return nil, err
		}
		at.Schema = s
		s.Tables = append(s.Tables, at)
		byName[at.Name] = at
	}
	for i, t := range tables {
		at := s.Tables[i]
		for _, fk := range t.ForeignKeys {
			afk, err := foreignKeyToAtlas(fk, at, byName)
			if err != nil {
				return nil, fmt.Errorf("schema: table %q: %w", t.Name, err)
			}
			at.ForeignKeys = append(at.ForeignKeys, afk)
		}
	}
	return s, nil
}

// FromAtlas converts a single atlas table. Foreign keys referencing other
// tables are converted with detached stubs for the referenced side.
func FromAtlas(at *schema.Table) (*Table, error) {
	t, err := tableFromAtlas(at)
	if err != nil {
		return nil, err
	}
	if err := linkForeignKeys(t, at, map[string]*Table{t.Name: t}); err != nil {
		return nil, err
	}
	return t, nil
}

// ToAtlas converts a single builder table, excluding its foreign keys.
func ToAtlas(t *Table) (*schema.Table, error) {
	return tableToAtlas(t)
}

func tableFromAtlas(at *schema.Table) (*Table, error) {
	t := NewTable(at.Name)
	if at.Schema != nil {
		t.Schema = at.Schema.Name
	}
	for _, ac := range at.Columns {
		c, err := columnFromAtlas(ac)
		if err != nil {
			return nil, fmt.Errorf("schema: table %q: %w", at.Name, err)
		}
		if t.Column(c.Name) != nil {
			return nil, fmt.Errorf("schema: table %q: duplicate column %q", at.Name, c.Name)
		}
		t.AddColumns(c)
	}
	if at.PrimaryKey != nil {
		pk := make([]*Column, 0, len(at.PrimaryKey.Parts))
		for _, part := range at.PrimaryKey.Parts {
			if part.C == nil {
				continue
			}
			c := t.Column(part.C.Name)
			if c == nil {
				return nil, fmt.Errorf("schema: table %q: primary key references unknown column %q", at.Name, part.C.Name)
			}
			pk = append(pk, c)
		}
		t.PrimaryKey = pk
	}
	for _, ai := range at.Indexes {
		idx := &Index{Name: ai.Name, Unique: ai.Unique}
		for _, part := range ai.Parts {
			if part.C == nil {
				slog.Warn("schema: skipping expression index part", "table", at.Name, "index", ai.Name)
				continue
			}
			if c := t.Column(part.C.Name); c != nil {
				idx.Columns = append(idx.Columns, c)
			}
		}
		t.AddIndexes(idx)
	}
	return t, nil
}

func linkForeignKeys(t *Table, at *schema.Table, byName map[string]*Table) error {
	for _, afk := range at.ForeignKeys {
		fk := &ForeignKey{
			Symbol:   afk.Symbol,
			OnUpdate: ReferenceAction(afk.OnUpdate),
			OnDelete: ReferenceAction(afk.OnDelete),
		}
		for _, ac := range afk.Columns {
			c := t.Column(ac.Name)
			if c == nil {
				return fmt.Errorf("schema: table %q: foreign key %q references unknown column %q", t.Name, afk.Symbol, ac.Name)
			}
			fk.Columns = append(fk.Columns, c)
		}
		if afk.RefTable != nil {
			ref, ok := byName[afk.RefTable.Name]
			if !ok {
				// Referenced table lives outside the converted set.
				stub, err := tableFromAtlas(afk.RefTable)
				if err != nil {
					return err
				}
				ref = stub
			}
			fk.RefTable = ref
			for _, ac := range afk.RefColumns {
				c := ref.Column(ac.Name)
				if c == nil {
					return fmt.Errorf("schema: table %q: foreign key %q references unknown column %q.%q", t.Name, afk.Symbol, ref.Name, ac.Name)
				}
				fk.RefColumns = append(fk.RefColumns, c)
			}
		}
		t.AddForeignKeys(fk)
	}
	return nil
}

func tableToAtlas(t *Table) (*schema.Table, error) {
	at := &schema.Table{Name: t.Name}
	byName := make(map[string]*schema.Column, len(t.Columns))
	for _, c := range t.Columns {
		ac := columnToAtlas(c)
		at.Columns = append(at.Columns, ac)
		byName[c.Name] = ac
	}
	if len(t.PrimaryKey) > 0 {
		pk := &schema.Index{Table: at, Unique: true}
		for i, c := range t.PrimaryKey {
			ac, ok := byName[c.Name]
			if !ok {
				return nil, fmt.Errorf("schema: table %q: primary key references non-member column %q", t.Name, c.Name)
			}
			pk.Parts = append(pk.Parts, &schema.IndexPart{SeqNo: i, C: ac})
		}
		at.PrimaryKey = pk
	}
	for _, idx := range t.Indexes {
		ai := &schema.Index{Name: idx.Name, Unique: idx.Unique, Table: at}
		for i, c := range idx.Columns {
			ac, ok := byName[c.Name]
			if !ok {
				return nil, fmt.Errorf("schema: table %q: index %q references non-member column %q", t.Name, idx.Name, c.Name)
			}
			ai.Parts = append(ai.Parts, &schema.IndexPart{SeqNo: i, C: ac})
		}
		at.Indexes = append(at.Indexes, ai)
	}
	return at, nil
}

func foreignKeyToAtlas(fk *ForeignKey, owner *schema.Table, byName map[string]*schema.Table) (*schema.ForeignKey, error) {
	afk := &schema.ForeignKey{
		Symbol:   fk.Symbol,
		Table:    owner,
		OnUpdate: schema.ReferenceOption(fk.OnUpdate),
		OnDelete: schema.ReferenceOption(fk.OnDelete),
	}
	for _, c := range fk.Columns {
		ac, err := findAtlasColumn(owner, c.Name)
		if err != nil {
			return nil, fmt.Errorf("foreign key %q: %w", fk.Symbol, err)
		}
		afk.Columns = append(afk.Columns, ac)
	}
	if fk.RefTable != nil {
		ref, ok := byName[fk.RefTable.Name]
		if !ok {
			stub, err := tableToAtlas(fk.RefTable)
			if err != nil {
				return nil, err
			}
			ref = stub
		}
		afk.RefTable = ref
		for _, c := range fk.RefColumns {
			ac, err := findAtlasColumn(ref, c.Name)
			if err != nil {
				return nil, fmt.Errorf("foreign key %q: %w", fk.Symbol, err)
			}
			afk.RefColumns = append(afk.RefColumns, ac)
		}
	}
	return afk, nil
}

func findAtlasColumn(at *schema.Table, name string) (*schema.Column, error) {
	for _, c := range at.Columns {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("unknown column %q in table %q", name, at.Name)
}

func columnFromAtlas(ac *schema.Column) (*Column, error) {
	c := &Column{Name: ac.Name}
	if ac.Type == nil || ac.Type.Type == nil {
		return nil, fmt.Errorf("column %q has no type", ac.Name)
	}
	c.Nullable = ac.Type.Null
	switch at := ac.Type.Type.(type) {
	case *schema.IntegerType:
		if at.T == "bigint" || at.T == "int8" || at.T == "bigserial" {
			c.Type = TypeInt64
		} else {
			c.Type = TypeInt
		}
	case *schema.StringType:
		if at.T == "text" || at.T == "longtext" || at.T == "clob" {
			c.Type = TypeText
		} else {
			c.Type = TypeString
			c.Size = int64(at.Size)
		}
	case *schema.BoolType:
		c.Type = TypeBool
	case *schema.TimeType:
		c.Type = TypeTime
	case *schema.FloatType:
		c.Type = TypeFloat64
	case *schema.DecimalType:
		c.Type = TypeFloat64
	case *schema.BinaryType:
		c.Type = TypeBytes
	case *schema.JSONType:
		c.Type = TypeJSON
	case *schema.UUIDType:
		c.Type = TypeUUID
	case *schema.EnumType:
		c.Type = TypeString
	default:
		slog.Warn("schema: unmapped atlas column type", "column", ac.Name, "type", fmt.Sprintf("%T", at))
		c.Type = TypeString
	}
	return c, nil
}

func columnToAtlas(c *Column) *schema.Column {
	ct := &schema.ColumnType{Null: c.Nullable}
	switch c.Type {
	case TypeInt:
		ct.Type = &schema.IntegerType{T: "integer"}
	case TypeInt64:
		ct.Type = &schema.IntegerType{T: "bigint"}
	case TypeString:
		ct.Type = &schema.StringType{T: "varchar", Size: int(c.Size)}
	case TypeText:
		ct.Type = &schema.StringType{T: "text"}
	case TypeBool:
		ct.Type = &schema.BoolType{T: "boolean"}
	case TypeTime:
		ct.Type = &schema.TimeType{T: "timestamp"}
	case TypeFloat64:
		ct.Type = &schema.FloatType{T: "float"}
	case TypeBytes:
		ct.Type = &schema.BinaryType{T: "blob"}
	case TypeUUID:
		ct.Type = &schema.UUIDType{T: "uuid"}
	case TypeJSON:
		ct.Type = &schema.JSONType{T: "json"}
	default:
		ct.Type = &schema.StringType{T: "varchar"}
	}
	return &schema.Column{Name: c.Name, Type: ct}
}
