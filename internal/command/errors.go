package command

import "fmt"

// DuplicateRegistrationError occurs when a command id is bound twice without
// an intervening unregistration.
type DuplicateRegistrationError struct {
	Command string
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("command '%s' is already registered", e.Command)
}

// UnknownCommandError occurs when an execution targets an unbound id.
type UnknownCommandError struct {
	Command string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("command '%s' not found", e.Command)
}
