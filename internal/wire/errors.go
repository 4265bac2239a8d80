package wire

import "fmt"

// EncodeError occurs when a value cannot be serialized for transport.
type EncodeError struct {
	Kind string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("failed to encode value of kind '%s': %v", e.Kind, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// DecodeError occurs when a wire value cannot be reconstructed.
type DecodeError struct {
	Kind string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode value of kind '%s': %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// UnknownKindError occurs when a wire value carries a kind tag this side
// does not recognize.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown wire kind '%s'", e.Kind)
}
