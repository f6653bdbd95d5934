// Package rules evaluates validation rule sets against pipeline state,
// recording failures into the state's error collector.
package rules

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/operon-dev/operon/internal/expressions"
	"github.com/operon-dev/operon/pkg/schema"
)

// Violation is one failed rule outcome.
type Violation struct {
	Field   string
	Message string
}

// Rule checks one aspect of a state object.
type Rule interface {
	Check(ctx context.Context, state any) []Violation
}

// Set is a named collection of rules. Sets declared across repeated
// validation declarations fold into a single set via Merge.
type Set struct {
	name  string
	rules []Rule
}

// NewSet creates a rule set.
func NewSet(name string, rules ...Rule) *Set {
	return &Set{name: name, rules: rules}
}

// Name returns the set's name.
func (s *Set) Name() string {
	return s.name
}

// Add appends rules to the set.
func (s *Set) Add(rules ...Rule) *Set {
	s.rules = append(s.rules, rules...)
	return s
}

// Merge folds another set's rules into this one.
func (s *Set) Merge(other *Set) *Set {
	if other != nil {
		s.rules = append(s.rules, other.rules...)
	}
	return s
}

// Len returns the number of rules in the set.
func (s *Set) Len() int {
	return len(s.rules)
}

// Validate runs every rule against the state, records violations into the
// state's error collector, and reports whether the state passed.
func (s *Set) Validate(ctx context.Context, state any) bool {
	if s == nil || len(s.rules) == 0 {
		return true
	}
	collector := schema.CollectorOf(state)
	passed := true
	for _, r := range s.rules {
		for _, v := range r.Check(ctx, state) {
			passed = false
			if collector != nil {
				collector.Add(v.Field, v.Message)
			}
		}
	}
	return passed
}

type ruleFunc func(ctx context.Context, state any) []Violation

func (f ruleFunc) Check(ctx context.Context, state any) []Violation {
	return f(ctx, state)
}

// Func wraps a plain function as a Rule.
func Func(fn func(ctx context.Context, state any) []Violation) Rule {
	return ruleFunc(fn)
}

// Required fails when any of the named fields is absent, nil or an empty
// string.
func Required(fields ...string) Rule {
	return ruleFunc(func(_ context.Context, state any) []Violation {
		var out []Violation
		for _, name := range fields {
			v, ok := schema.FieldOf(state, name)
			if !ok || v == nil {
				out = append(out, Violation{Field: name, Message: "is required"})
				continue
			}
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				out = append(out, Violation{Field: name, Message: "is required"})
			}
		}
		return out
	})
}

// Format fails when the field is a string not matching the pattern. Absent
// fields pass; combine with Required when presence matters. The pattern is
// compiled at definition time and panics on a bad expression.
func Format(field, pattern string) Rule {
	re := regexp.MustCompile(pattern)
	return ruleFunc(func(_ context.Context, state any) []Violation {
		v, ok := schema.FieldOf(state, field)
		if !ok || v == nil {
			return nil
		}
		s, isStr := v.(string)
		if !isStr || !re.MatchString(s) {
			return []Violation{{Field: field, Message: "is invalid"}}
		}
		return nil
	})
}

// Length fails when the field's string length is outside [min, max].
// A max of 0 means unbounded.
func Length(field string, min, max int) Rule {
	return ruleFunc(func(_ context.Context, state any) []Violation {
		v, ok := schema.FieldOf(state, field)
		if !ok || v == nil {
			return nil
		}
		s, isStr := v.(string)
		if !isStr {
			return []Violation{{Field: field, Message: "is not a string"}}
		}
		if len(s) < min {
			return []Violation{{Field: field, Message: fmt.Sprintf("is too short (minimum %d)", min)}}
		}
		if max > 0 && len(s) > max {
			return []Violation{{Field: field, Message: fmt.Sprintf("is too long (maximum %d)", max)}}
		}
		return nil
	})
}

// Range fails when the field's numeric value is outside [min, max].
func Range(field string, min, max float64) Rule {
	return ruleFunc(func(_ context.Context, state any) []Violation {
		v, ok := schema.FieldOf(state, field)
		if !ok || v == nil {
			return nil
		}
		n, isNum := asFloat(v)
		if !isNum {
			return []Violation{{Field: field, Message: "is not a number"}}
		}
		if n < min || n > max {
			return []Violation{{Field: field, Message: fmt.Sprintf("must be between %v and %v", min, max)}}
		}
		return nil
	})
}

// Expr evaluates an expression through the named engine ("cel", "expr" or
// "jq") against a scope exposing the state's field map. A result other than
// boolean true fails with the given message against the field.
func Expr(field, engineName, expression, message string) Rule {
	return ruleFunc(func(ctx context.Context, state any) []Violation {
		engine, err := expressions.ForName(engineName)
		if err != nil {
			return []Violation{{Field: field, Message: err.Error()}}
		}
		m := schema.MapOf(state)
		out, err := engine.Evaluate(ctx, expression, map[string]any{"state": m, "original": m})
		if err != nil {
			return []Violation{{Field: field, Message: err.Error()}}
		}
		if pass, ok := out.(bool); ok && pass {
			return nil
		}
		return []Violation{{Field: field, Message: message}}
	})
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
