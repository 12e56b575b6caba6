package regression

import (
	"encoding/json"
	"fmt"
)

type envelope struct {
	Kind   Kind    `json:"kind"`
	Ridge  *Ridge  `json:"ridge,omitempty"`
	Forest *Forest `json:"forest,omitempty"`
}

// Marshal encodes a fitted model together with its kind
func Marshal(p Predictor) ([]byte, error) {
	env := envelope{Kind: p.Kind()}

	switch m := p.(type) {
	case *Ridge:
		env.Ridge = m
	case *Forest:
		env.Forest = m
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, p)
	}

	return json.Marshal(env)
}

// Unmarshal decodes a model written by Marshal
func Unmarshal(data []byte) (Predictor, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}

	switch {
	case env.Kind == KindRidge && env.Ridge != nil:
		if len(env.Ridge.Scale) != len(env.Ridge.Coef) {
			return nil, fmt.Errorf("%w: ridge scale/coef length", ErrDimensionMismatch)
		}

		return env.Ridge, nil
	case env.Kind == KindForest && env.Forest != nil:
		return env.Forest, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
}
