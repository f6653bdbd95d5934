package state

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	opschema "github.com/operon-dev/operon/pkg/schema"
)

// Build turns raw input into a typed, coerced state Object.
//
// A nil schema passes the raw fields through untouched. With a schema,
// declared fields are coerced to their kinds, absent fields take their
// defaults, and undeclared fields are carried through as-is. Coercion
// failures are recorded in the object's error collector rather than
// aborting the build, so the validation gate can report them.
//
// In strict mode the raw input is first validated against the generated
// JSON Schema; violations are a STATE_ERROR and no object is produced.
func Build(s *Schema, raw map[string]any) (*Object, error) {
	if s == nil {
		return FromMap(raw), nil
	}

	if s.strict {
		compiled, err := s.compile()
		if err != nil {
			return nil, err
		}
		if err := compiled.Validate(normalize(raw)); err != nil {
			verr, ok := err.(*jsonschema.ValidationError)
			if !ok {
				return nil, opschema.NewErrorf(opschema.ErrCodeState,
					"input validation: %s", err.Error()).WithCause(err)
			}
			return nil, opschema.NewError(opschema.ErrCodeState, "input does not match schema").
				WithCause(verr).
				WithDetails(map[string]any{"violations": violations(verr)})
		}
	}

	obj := New()
	coerceInto(obj, s, raw, "")
	return obj, nil
}

// coerceInto fills obj from raw according to the schema. prefix qualifies
// collector entries for nested structures ("address.zip").
func coerceInto(obj *Object, s *Schema, raw map[string]any, prefix string) {
	for _, f := range s.fields {
		v, present := raw[f.Name]
		if !present {
			if f.hasDefault {
				obj.Set(f.Name, f.Default)
			}
			continue
		}
		obj.Set(f.Name, coerceField(obj, s, f, v, prefix))
	}

	// Undeclared fields pass through untouched.
	for k, v := range raw {
		if _, declared := s.index[k]; !declared {
			obj.Set(k, v)
		}
	}
}

func coerceField(obj *Object, s *Schema, f Field, v any, prefix string) any {
	path := f.Name
	if prefix != "" {
		path = prefix + "." + f.Name
	}

	switch f.Kind {
	case KindObject:
		sub, err := s.resolve(f)
		if err != nil {
			obj.Errors().Add(path, "has an unresolvable type definition")
			return v
		}
		m, ok := v.(map[string]any)
		if !ok {
			obj.Errors().Addf(path, "cannot be coerced to %s", f.Kind)
			return v
		}
		if sub == nil {
			return m
		}
		return coerceObject(obj, sub, m, path)
	case KindArray:
		items, ok := v.([]any)
		if !ok {
			obj.Errors().Addf(path, "cannot be coerced to %s", f.Kind)
			return v
		}
		out := make([]any, len(items))
		for i, item := range items {
			cv, ok := coerceScalar(f.Elem, item)
			if !ok {
				obj.Errors().Addf(path, "element %d cannot be coerced to %s", i, f.Elem)
				cv = item
			}
			out[i] = cv
		}
		return out
	default:
		cv, ok := coerceScalar(f.Kind, v)
		if !ok {
			obj.Errors().Addf(path, "cannot be coerced to %s", f.Kind)
			return v
		}
		return cv
	}
}

// coerceObject coerces a nested map against a sub-schema, recording errors
// on the parent object's collector under dotted paths.
func coerceObject(obj *Object, sub *Schema, raw map[string]any, prefix string) map[string]any {
	out := make(map[string]any, len(raw))
	for _, f := range sub.fields {
		v, present := raw[f.Name]
		if !present {
			if f.hasDefault {
				out[f.Name] = f.Default
			}
			continue
		}
		out[f.Name] = coerceField(obj, sub, f, v, prefix)
	}
	for k, v := range raw {
		if _, declared := sub.index[k]; !declared {
			out[k] = v
		}
	}
	return out
}

func coerceScalar(kind Kind, v any) (any, bool) {
	switch kind {
	case KindAny:
		return v, true
	case KindString:
		s, ok := v.(string)
		return s, ok
	case KindInt:
		switch n := v.(type) {
		case int:
			return n, true
		case int64:
			return int(n), true
		case float64:
			if n == float64(int(n)) {
				return int(n), true
			}
			return nil, false
		case json.Number:
			i, err := n.Int64()
			if err != nil {
				return nil, false
			}
			return int(i), true
		case string:
			i, err := strconv.Atoi(strings.TrimSpace(n))
			if err != nil {
				return nil, false
			}
			return i, true
		}
		return nil, false
	case KindFloat:
		switch n := v.(type) {
		case float64:
			return n, true
		case float32:
			return float64(n), true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case json.Number:
			f, err := n.Float64()
			if err != nil {
				return nil, false
			}
			return f, true
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err != nil {
				return nil, false
			}
			return f, true
		}
		return nil, false
	case KindBool:
		switch b := v.(type) {
		case bool:
			return b, true
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return nil, false
			}
			return parsed, true
		}
		return nil, false
	case KindTime:
		switch ts := v.(type) {
		case time.Time:
			return ts, true
		case string:
			parsed, err := time.Parse(time.RFC3339, ts)
			if err != nil {
				return nil, false
			}
			return parsed, true
		}
		return nil, false
	}
	return nil, false
}

// normalize rewrites Go-native values into the JSON-decoded shapes the
// jsonschema validator expects (ints become float64 and so on).
func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func violations(verr *jsonschema.ValidationError) []string {
	var out []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := "/"
			if len(e.InstanceLocation) > 0 {
				loc = "/" + strings.Join(e.InstanceLocation, "/")
			}
			out = append(out, loc+": "+e.Error())
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	return out
}
