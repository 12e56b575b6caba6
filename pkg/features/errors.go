package features

import (
	"errors"
	"fmt"
)

// ErrSchema is the errors.Is target for every SchemaError
var ErrSchema = errors.New("schema error")

// SchemaError reports a required column missing from an input table
type SchemaError struct {
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: required column %q is missing", e.Column)
}

// Is makes errors.Is(err, ErrSchema) match any SchemaError
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}
