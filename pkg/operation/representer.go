package operation

import (
	"context"
	"encoding/json"

	"github.com/operon-dev/operon/internal/expressions"
	"github.com/operon-dev/operon/pkg/schema"
)

// Representer post-processes the terminal state of a completed call into an
// alternate view object. The context is the call's own, carrying its
// correlation values.
type Representer interface {
	Wrap(ctx context.Context, state any) (any, error)
}

// FuncRepresenter adapts a plain function into a Representer.
type FuncRepresenter func(ctx context.Context, state any) (any, error)

func (f FuncRepresenter) Wrap(ctx context.Context, state any) (any, error) {
	return f(ctx, state)
}

// JQRepresenter reshapes the terminal state's JSON through a jq program.
// The program's input is the state's serialized object, so fields are
// addressed directly: {id: .id, email: .email}.
type JQRepresenter struct {
	program string
}

// NewJQRepresenter creates a representer from a jq program. The program is
// compiled on first use; a malformed program surfaces as a CONFIG_ERROR.
func NewJQRepresenter(program string) *JQRepresenter {
	return &JQRepresenter{program: program}
}

func (r *JQRepresenter) Wrap(ctx context.Context, state any) (any, error) {
	engine, err := expressions.ForName("jq")
	if err != nil {
		return nil, err
	}

	doc, err := stateDocument(state)
	if err != nil {
		return nil, err
	}

	out, err := engine.Evaluate(ctx, r.program, doc)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeRepresentation,
			"representer program failed: %s", err.Error()).WithCause(err)
	}
	return out, nil
}

// stateDocument serializes the state into the plain JSON shapes jq expects.
func stateDocument(state any) (map[string]any, error) {
	var data []byte
	var err error
	if j, ok := state.(schema.JSONer); ok {
		data, err = j.AsJSON()
	} else {
		data, err = json.Marshal(state)
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeRepresentation,
			"serialize state: %s", err.Error()).WithCause(err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeRepresentation,
			"state is not a JSON object: %s", err.Error()).WithCause(err)
	}
	return doc, nil
}
