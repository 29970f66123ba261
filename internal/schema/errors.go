package schema

import "fmt"

// SchemaError reports a structural problem with the raw input: the entity key
// column is absent, or two raw columns map to the same canonical field.
type SchemaError struct {
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: column %q: %s", e.Column, e.Reason)
}
