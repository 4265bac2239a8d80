package rpc

import (
	"fmt"
	"strings"
)

// FaultKind classifies a fault carried in a reply.
type FaultKind string

const (
	FaultNotFound       FaultKind = "not-found"
	FaultExecution      FaultKind = "execution"
	FaultBadArgument    FaultKind = "bad-argument"
	FaultUnknownCommand FaultKind = "unknown-command"
)

// Fault is the wire form of a failed call. Problems carries the
// per-argument rejection list of a bad-argument fault so remote callers see
// the same enumeration as local ones.
type Fault struct {
	Kind     FaultKind `json:"kind"`
	Method   string    `json:"method,omitempty"`
	Message  string    `json:"message"`
	Problems []string  `json:"problems,omitempty"`
}

// NotFoundError occurs when a call targets a proxy or method with no
// registered handler on the receiving side.
type NotFoundError struct {
	Proxy  string
	Method string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no handler for '%s' on proxy '%s'", e.Method, e.Proxy)
}

// ExecutionError occurs when a handler raised during execution. It carries
// the original error's message across the boundary.
type ExecutionError struct {
	Method  string
	Message string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("handler for '%s' failed: %s", e.Method, e.Message)
}

// BadArgumentError occurs when a call carries structurally invalid
// arguments. It is raised before any handler or provider runs and lists one
// problem per invalid argument.
type BadArgumentError struct {
	Method   string
	Problems []string
}

func (e *BadArgumentError) Error() string {
	return fmt.Sprintf("bad arguments for '%s': %s", e.Method, strings.Join(e.Problems, "; "))
}

// ChannelClosedError occurs when an operation is attempted on a closed
// endpoint.
type ChannelClosedError struct {
	Endpoint string
}

func (e *ChannelClosedError) Error() string {
	return fmt.Sprintf("endpoint '%s' is closed", e.Endpoint)
}

// faultToError maps a wire fault back onto the typed error it was built
// from on the other side.
func faultToError(f *Fault) error {
	switch f.Kind {
	case FaultNotFound:
		return &NotFoundError{Method: f.Method}
	case FaultBadArgument:
		problems := f.Problems
		if len(problems) == 0 {
			problems = []string{f.Message}
		}
		return &BadArgumentError{Method: f.Method, Problems: problems}
	case FaultUnknownCommand:
		return &UnknownCommandFault{Command: f.Method, Message: f.Message}
	default:
		return &ExecutionError{Method: f.Method, Message: f.Message}
	}
}

// UnknownCommandFault is the channel-level form of an unknown command
// rejection coming back from the peer.
type UnknownCommandFault struct {
	Command string
	Message string
}

func (e *UnknownCommandFault) Error() string {
	return fmt.Sprintf("unknown command '%s': %s", e.Command, e.Message)
}

// errorToFault converts a handler error into its wire form.
func errorToFault(method string, err error) *Fault {
	switch t := err.(type) {
	case *NotFoundError:
		return &Fault{Kind: FaultNotFound, Method: t.Method, Message: t.Error()}
	case *BadArgumentError:
		return &Fault{Kind: FaultBadArgument, Method: t.Method, Message: strings.Join(t.Problems, "; "), Problems: t.Problems}
	case *UnknownCommandFault:
		return &Fault{Kind: FaultUnknownCommand, Method: t.Command, Message: t.Message}
	default:
		return &Fault{Kind: FaultExecution, Method: method, Message: err.Error()}
	}
}
