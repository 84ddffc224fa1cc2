package dashboard

import "errors"

// NotFoundError marks a keyed lookup (slug, type) that matched no row.
// Handlers surface it as a 404 with an entity-specific message; anything
// else coming out of the store is a collaborator failure and maps to 500.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found"
}

func notFound(entity string) error {
	return &NotFoundError{Entity: entity}
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ValidationError marks malformed client input on a write path. Handlers
// surface it as a 400 with the field-specific message.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(message string) error {
	return &ValidationError{Message: message}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
