package records

import "errors"

var (
	// ErrCustomerNotFound is returned when no customer matches the id within the conversation.
	ErrCustomerNotFound = errors.New("records: customer not found")

	// ErrInvalidInput is returned when a required field is blank.
	ErrInvalidInput = errors.New("records: invalid input")
)
