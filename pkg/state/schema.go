package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	opschema "github.com/operon-dev/operon/pkg/schema"
)

// Kind enumerates the field types a schema can declare.
type Kind int

const (
	KindAny Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindTime
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindBool:
		return "boolean"
	case KindTime:
		return "time"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "any"
	}
}

// Field is one declared schema field.
type Field struct {
	Name       string
	Kind       Kind
	Required   bool
	Default    any
	hasDefault bool
	Object     *Schema // sub-schema for KindObject
	Elem       Kind    // element kind for KindArray
	Ref        string  // named type reference, resolved at build time
}

// FieldOption configures a declared field.
type FieldOption func(*Field)

// Required marks the field required in the generated JSON Schema.
func Required(f *Field) {
	f.Required = true
}

// Default assigns a value used when the raw input omits the field.
func Default(v any) FieldOption {
	return func(f *Field) {
		f.Default = v
		f.hasDefault = true
	}
}

// Schema declares the shape of an operation's initial state: field names,
// kinds, defaults, nested sub-structures and reusable named type definitions.
// Build a schema once at definition time; it is read-only afterwards.
type Schema struct {
	fields []Field
	index  map[string]int
	types  map[string]*Schema
	strict bool

	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{index: make(map[string]int), types: make(map[string]*Schema)}
}

func (s *Schema) add(f Field, opts ...FieldOption) *Schema {
	for _, opt := range opts {
		opt(&f)
	}
	if _, dup := s.index[f.Name]; dup {
		panic(fmt.Sprintf("state: duplicate schema field %q", f.Name))
	}
	s.index[f.Name] = len(s.fields)
	s.fields = append(s.fields, f)
	return s
}

// String declares a string field.
func (s *Schema) String(name string, opts ...FieldOption) *Schema {
	return s.add(Field{Name: name, Kind: KindString}, opts...)
}

// Int declares an integer field.
func (s *Schema) Int(name string, opts ...FieldOption) *Schema {
	return s.add(Field{Name: name, Kind: KindInt}, opts...)
}

// Float declares a float field.
func (s *Schema) Float(name string, opts ...FieldOption) *Schema {
	return s.add(Field{Name: name, Kind: KindFloat}, opts...)
}

// Bool declares a boolean field.
func (s *Schema) Bool(name string, opts ...FieldOption) *Schema {
	return s.add(Field{Name: name, Kind: KindBool}, opts...)
}

// Time declares an RFC 3339 timestamp field.
func (s *Schema) Time(name string, opts ...FieldOption) *Schema {
	return s.add(Field{Name: name, Kind: KindTime}, opts...)
}

// Any declares an untyped pass-through field.
func (s *Schema) Any(name string, opts ...FieldOption) *Schema {
	return s.add(Field{Name: name, Kind: KindAny}, opts...)
}

// Object declares a nested sub-structure with its own schema.
func (s *Schema) Object(name string, sub *Schema, opts ...FieldOption) *Schema {
	return s.add(Field{Name: name, Kind: KindObject, Object: sub}, opts...)
}

// Array declares a homogeneous array field.
func (s *Schema) Array(name string, elem Kind, opts ...FieldOption) *Schema {
	return s.add(Field{Name: name, Kind: KindArray, Elem: elem}, opts...)
}

// Ref declares an object field typed by a reusable definition registered
// with DefineType.
func (s *Schema) Ref(name, typeName string, opts ...FieldOption) *Schema {
	return s.add(Field{Name: name, Kind: KindObject, Ref: typeName}, opts...)
}

// DefineType registers a reusable named type definition for Ref fields.
func (s *Schema) DefineType(name string, def *Schema) *Schema {
	s.types[name] = def
	return s
}

// Strict makes Build validate the raw input against the generated JSON
// Schema before coercion: unknown fields and type mismatches become a
// STATE_ERROR instead of collector entries.
func (s *Schema) Strict() *Schema {
	s.strict = true
	return s
}

// Fields returns the declared fields in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

func (s *Schema) resolve(f Field) (*Schema, error) {
	if f.Object != nil {
		return f.Object, nil
	}
	if f.Ref != "" {
		def, ok := s.types[f.Ref]
		if !ok {
			return nil, opschema.NewErrorf(opschema.ErrCodeConfig,
				"schema field %q references undefined type %q", f.Name, f.Ref)
		}
		return def, nil
	}
	return nil, nil
}

// JSONSchema renders the schema as a JSON Schema 2020-12 document.
func (s *Schema) JSONSchema() ([]byte, error) {
	doc, err := s.jsonSchemaDoc()
	if err != nil {
		return nil, err
	}
	doc["$schema"] = "https://json-schema.org/draft/2020-12/schema"
	return json.Marshal(doc)
}

func (s *Schema) jsonSchemaDoc() (map[string]any, error) {
	props := make(map[string]any, len(s.fields))
	var required []string
	for _, f := range s.fields {
		p, err := s.fieldSchemaDoc(f)
		if err != nil {
			return nil, err
		}
		props[f.Name] = p
		if f.Required {
			required = append(required, f.Name)
		}
	}
	doc := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	if s.strict {
		doc["additionalProperties"] = false
	}
	return doc, nil
}

func (s *Schema) fieldSchemaDoc(f Field) (map[string]any, error) {
	switch f.Kind {
	case KindString:
		return map[string]any{"type": "string"}, nil
	case KindInt:
		return map[string]any{"type": "integer"}, nil
	case KindFloat:
		return map[string]any{"type": "number"}, nil
	case KindBool:
		return map[string]any{"type": "boolean"}, nil
	case KindTime:
		return map[string]any{"type": "string", "format": "date-time"}, nil
	case KindObject:
		sub, err := s.resolve(f)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return map[string]any{"type": "object"}, nil
		}
		return sub.jsonSchemaDoc()
	case KindArray:
		items := map[string]any{}
		switch f.Elem {
		case KindAny:
		case KindFloat:
			items["type"] = "number"
		case KindTime:
			items["type"] = "string"
			items["format"] = "date-time"
		default:
			items["type"] = f.Elem.String()
		}
		return map[string]any{"type": "array", "items": items}, nil
	default:
		return map[string]any{}, nil
	}
}

// compile builds the JSON Schema validator used by strict mode.
func (s *Schema) compile() (*jsonschema.Schema, error) {
	s.compileOnce.Do(func() {
		raw, err := s.JSONSchema()
		if err != nil {
			s.compileErr = err
			return
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			s.compileErr = opschema.NewErrorf(opschema.ErrCodeConfig,
				"unmarshal generated schema: %s", err.Error()).WithCause(err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("operon://input-schema.json", doc); err != nil {
			s.compileErr = opschema.NewErrorf(opschema.ErrCodeConfig,
				"add schema resource: %s", err.Error()).WithCause(err)
			return
		}
		s.compiled, err = c.Compile("operon://input-schema.json")
		if err != nil {
			s.compileErr = opschema.NewErrorf(opschema.ErrCodeConfig,
				"compile input schema: %s", err.Error()).WithCause(err)
		}
	})
	return s.compiled, s.compileErr
}
