package schema

// Fielder provides named field access on a state object.
type Fielder interface {
	Field(name string) (any, bool)
}

// Validatable exposes the error collector that validation rules and custom
// checks write into.
type Validatable interface {
	Errors() *ErrorCollector
}

// Mapper exposes a map view of a state object's fields, used to build
// expression evaluation scopes.
type Mapper interface {
	Map() map[string]any
}

// JSONer serializes a state object to JSON.
type JSONer interface {
	AsJSON() ([]byte, error)
}

// FieldOf reads a named field from a state value. It understands Fielder
// implementations and plain maps.
func FieldOf(state any, name string) (any, bool) {
	switch s := state.(type) {
	case Fielder:
		return s.Field(name)
	case map[string]any:
		v, ok := s[name]
		return v, ok
	}
	return nil, false
}

// CollectorOf returns the state's error collector, or nil when the state
// does not carry one.
func CollectorOf(state any) *ErrorCollector {
	if v, ok := state.(Validatable); ok {
		return v.Errors()
	}
	return nil
}

// MapOf returns a map view of the state's fields, or nil when none is
// available.
func MapOf(state any) map[string]any {
	switch s := state.(type) {
	case Mapper:
		return s.Map()
	case map[string]any:
		return s
	}
	return nil
}
