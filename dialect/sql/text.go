package sql

import "github.com/vmihailenco/msgpack/v5"

// Text is an immutable rendered statement: the SQL string plus the ordered
// arguments its parameter markers refer to. A Statement hands out the same
// *Text pointer until it is mutated, so callers may use pointer identity to
// detect staleness.
type Text struct {
	sql  string
	args []any
}

// NewText returns a rendered statement value.
func NewText(sql string, args []any) *Text {
	return &Text{sql: sql, args: args}
}

// SQL returns the rendered SQL string.
func (t *Text) SQL() string { return t.sql }

// Args returns the arguments in placeholder order. The returned slice is
// shared; callers must not modify it.
func (t *Text) Args() []any { return t.args }

// String implements fmt.Stringer.
func (t *Text) String() string { return t.sql }

// textPayload is the wire form of Text.
type textPayload struct {
	SQL  string `msgpack:"sql"`
	Args []any  `msgpack:"args"`
}

// MarshalBinary encodes the text with msgpack, so rendered statements can
// live in byte-level caches.
func (t *Text) MarshalBinary() ([]byte, error) {
	return msgpack.Marshal(textPayload{SQL: t.sql, Args: t.args})
}

// UnmarshalBinary decodes a msgpack-encoded text. Integer arguments decode
// to their narrowest signed type.
func (t *Text) UnmarshalBinary(data []byte) error {
	var p textPayload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return err
	}
	t.sql = p.SQL
	t.args = p.Args
	return nil
}
