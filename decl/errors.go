package decl

import "fmt"

// ValidationError reports a descriptor that cannot be rendered as valid TypeScript.
type ValidationError struct {
	Name   string // descriptor name, may be empty
	Field  string // offending field, e.g. "properties.id" or "members[2]"
	Value  string // offending value as text
	Reason string
}

func (e *ValidationError) Error() string {
	name := e.Name
	if name == "" {
		name = "<unnamed>"
	}
	if e.Value != "" {
		return fmt.Sprintf("invalid descriptor %s: %s: %s (%q)", name, e.Field, e.Reason, e.Value)
	}
	return fmt.Sprintf("invalid descriptor %s: %s: %s", name, e.Field, e.Reason)
}
