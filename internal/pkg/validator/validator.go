package validator

// Validator validates annotated structs.
type Validator interface {
	// Validate returns nil when data passes all struct tag rules,
	// otherwise an error describing each failing field.
	Validate(data any) error
}
