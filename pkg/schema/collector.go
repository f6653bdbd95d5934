package schema

import (
	"encoding/json"
	"fmt"
)

// ErrorCollector accumulates field-scoped messages on a state object while
// validation rules or custom checks run against it. Field insertion order is
// preserved. A collector belongs to exactly one in-flight call and is not
// safe for concurrent use.
type ErrorCollector struct {
	order  []string
	fields map[string][]string
}

// NewErrorCollector creates an empty collector.
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{fields: make(map[string][]string)}
}

// Add records a message against a field.
func (c *ErrorCollector) Add(field, message string) {
	if c.fields == nil {
		c.fields = make(map[string][]string)
	}
	if _, seen := c.fields[field]; !seen {
		c.order = append(c.order, field)
	}
	c.fields[field] = append(c.fields[field], message)
}

// Addf records a formatted message against a field.
func (c *ErrorCollector) Addf(field, format string, args ...any) {
	c.Add(field, fmt.Sprintf(format, args...))
}

// On returns the messages recorded for a field.
func (c *ErrorCollector) On(field string) []string {
	return c.fields[field]
}

// Any reports whether at least one message has been recorded.
func (c *ErrorCollector) Any() bool {
	return len(c.fields) > 0
}

// Len returns the total number of recorded messages.
func (c *ErrorCollector) Len() int {
	n := 0
	for _, msgs := range c.fields {
		n += len(msgs)
	}
	return n
}

// Fields returns the fields with messages, in first-recorded order.
func (c *ErrorCollector) Fields() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Full returns all messages as "field message" strings, in recorded order.
func (c *ErrorCollector) Full() []string {
	var out []string
	for _, f := range c.order {
		for _, m := range c.fields[f] {
			out = append(out, f+" "+m)
		}
	}
	return out
}

// Clear removes all recorded messages.
func (c *ErrorCollector) Clear() {
	c.order = nil
	c.fields = make(map[string][]string)
}

// MarshalJSON serializes the collector as a field-to-messages object.
func (c *ErrorCollector) MarshalJSON() ([]byte, error) {
	if c.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.fields)
}
