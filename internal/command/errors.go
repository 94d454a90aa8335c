package command

import "errors"

var (
	// ErrValidation is returned when a submitted command is missing
	// required identifiers or carries out-of-range values.
	ErrValidation = errors.New("command: validation failed")

	// ErrPublish is returned when the command could not be handed to
	// the transport.
	ErrPublish = errors.New("command: publish failed")
)
