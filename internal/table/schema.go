package table

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/roach88/vquery/internal/ir"
)

// ColumnType is the type of a column. Floats are not representable.
type ColumnType string

const (
	ColumnInt  ColumnType = ir.TypeInt
	ColumnBool ColumnType = ir.TypeBool
	ColumnText ColumnType = ir.TypeText
)

// Valid reports whether t is a supported column type.
func (t ColumnType) Valid() bool {
	switch t {
	case ColumnInt, ColumnBool, ColumnText:
		return true
	default:
		return false
	}
}

// Column is a named, typed column.
type Column struct {
	Name string     `json:"name" yaml:"name"`
	Type ColumnType `json:"type" yaml:"type"`
}

// Schema is an ordered list of columns.
type Schema struct {
	Columns []Column `json:"columns" yaml:"columns"`
}

// NewSchema builds a schema from alternating name/type pairs.
//
//	NewSchema("col0", ColumnInt, "label", ColumnText)
func NewSchema(pairs ...any) Schema {
	if len(pairs)%2 != 0 {
		panic("table.NewSchema: odd number of arguments")
	}
	s := Schema{Columns: make([]Column, 0, len(pairs)/2)}
	for i := 0; i < len(pairs); i += 2 {
		s.Columns = append(s.Columns, Column{
			Name: pairs[i].(string),
			Type: pairs[i+1].(ColumnType),
		})
	}
	return s
}

// Len returns the number of columns.
func (s Schema) Len() int { return len(s.Columns) }

// Index returns the position of the first column named name, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Concat returns the columns of s followed by the columns of other.
// Used for join outputs; duplicate names are allowed.
func (s Schema) Concat(other Schema) Schema {
	cols := make([]Column, 0, len(s.Columns)+len(other.Columns))
	cols = append(cols, s.Columns...)
	cols = append(cols, other.Columns...)
	return Schema{Columns: cols}
}

// Clone returns a deep copy.
func (s Schema) Clone() Schema {
	return Schema{Columns: append([]Column(nil), s.Columns...)}
}

// Equal reports whether two schemas have identical columns in identical order.
func (s Schema) Equal(other Schema) bool {
	if len(s.Columns) != len(other.Columns) {
		return false
	}
	for i := range s.Columns {
		if s.Columns[i] != other.Columns[i] {
			return false
		}
	}
	return true
}

// Validate checks column names and types.
func (s Schema) Validate() error {
	for i, c := range s.Columns {
		if c.Name == "" {
			return fmt.Errorf("%w: column %d has empty name", ErrSchemaInvalid, i)
		}
		if !c.Type.Valid() {
			return fmt.Errorf("%w: column %q has unsupported type %q", ErrSchemaInvalid, c.Name, c.Type)
		}
	}
	return nil
}

// String renders the schema as "(name type, ...)".
func (s Schema) String() string {
	parts := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		parts[i] = c.Name + " " + string(c.Type)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Canonical returns the schema descriptor as an IR object.
// Its canonical encoding is the persisted descriptor format.
func (s Schema) Canonical() ir.IRObject {
	cols := make(ir.IRArray, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = ir.IRObject{
			"name": ir.IRString(c.Name),
			"type": ir.IRString(c.Type),
		}
	}
	return ir.IRObject{
		"version": ir.IRString(ir.IRVersion),
		"columns": cols,
	}
}

// Digest returns the domain-separated digest of the schema descriptor.
func (s Schema) Digest() (ir.Digest, error) {
	return ir.HashCanonical(ir.DomainSchema, s.Canonical())
}

// MarshalSchema encodes the schema descriptor as canonical JSON.
func MarshalSchema(s Schema) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return ir.MarshalCanonical(s.Canonical())
}

// descriptorSchema is the JSON Schema every persisted schema descriptor must satisfy.
const descriptorSchema = `{
  "type": "object",
  "required": ["columns"],
  "additionalProperties": false,
  "properties": {
    "version": {"type": "string"},
    "columns": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "type"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "type": {"enum": ["int", "bool", "text"]}
        }
      }
    }
  }
}`

var compiledDescriptorSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(descriptorSchema))
})

// UnmarshalSchema decodes a schema descriptor after validating it against the
// descriptor JSON Schema.
func UnmarshalSchema(data []byte) (Schema, error) {
	validator, err := compiledDescriptorSchema()
	if err != nil {
		return Schema{}, fmt.Errorf("compile descriptor schema: %w", err)
	}

	result, err := validator.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Schema{}, fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return Schema{}, fmt.Errorf("%w: %s", ErrSchemaInvalid, strings.Join(msgs, "; "))
	}

	var obj ir.IRObject
	if err := obj.UnmarshalJSON(data); err != nil {
		return Schema{}, fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}

	cols, _ := obj["columns"].(ir.IRArray)
	s := Schema{Columns: make([]Column, 0, len(cols))}
	for _, raw := range cols {
		col := raw.(ir.IRObject)
		s.Columns = append(s.Columns, Column{
			Name: string(col["name"].(ir.IRString)),
			Type: ColumnType(col["type"].(ir.IRString)),
		})
	}
	return s, nil
}
