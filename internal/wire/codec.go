// Package wire implements the marshalling layer between in-process rich
// value types and their transport-safe representation. Values cross the
// process boundary as tagged envelopes so the receiving side can reconstruct
// the original type; values that cannot be serialized at all are replaced by
// a stable placeholder reference into the sender's namespace.
package wire

import (
	"reflect"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/lspkit/extbridge/pkg/protocol"
)

// Envelope kinds for the types of the protocol package. Plain JSON-safe
// values travel under KindJSON and are echoed unchanged.
const (
	KindNil               = "nil"
	KindJSON              = "json"
	KindList              = "list"
	KindPosition          = "position"
	KindRange             = "range"
	KindLocation          = "location"
	KindSymbolInformation = "symbolInformation"
	KindTextEdit          = "textEdit"
	KindCompletionItem    = "completionItem"
	KindCompletionList    = "completionList"
	KindCommand           = "command"
	KindCodeAction        = "codeAction"
	KindCodeLens          = "codeLens"
	KindDocumentLink      = "documentLink"
	KindOpaqueRef         = "opaqueRef"
)

// Value is the transport-safe representation of a single value.
type Value struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// OpaqueRef is the placeholder substituted for a value that cannot cross the
// process boundary. It is an unresolved back-reference into the sender's
// namespace; receivers must not attempt to dereference it remotely.
type OpaqueRef struct {
	Namespace string `json:"namespace"`
	Token     string `json:"token"`
}

// Codec converts values to and from their wire representation. Besides the
// namespace stamped onto opaque references, a codec keeps a token table so
// re-encoding the same opaque value yields the same reference.
type Codec struct {
	namespace string

	mu     sync.Mutex
	tokens map[any]string
}

// NewCodec creates a codec whose opaque references carry the given sender
// namespace.
func NewCodec(namespace string) *Codec {
	return &Codec{namespace: namespace, tokens: make(map[any]string)}
}

// ToWire converts a value into its wire representation. Rich protocol types
// keep their identity through a kind tag; slices become lists of envelopes;
// any other JSON-safe value passes through unchanged. A value that fails to
// serialize is replaced by an OpaqueRef placeholder instead of failing the
// whole call.
func (c *Codec) ToWire(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Value{Kind: KindNil}, nil
	case Value:
		return t, nil
	case protocol.Position:
		return c.encode(KindPosition, t)
	case protocol.Range:
		return c.encode(KindRange, t)
	case protocol.Location:
		return c.encode(KindLocation, t)
	case protocol.SymbolInformation:
		return c.encode(KindSymbolInformation, t)
	case protocol.TextEdit:
		return c.encode(KindTextEdit, t)
	case protocol.CompletionItem:
		return c.encode(KindCompletionItem, t)
	case protocol.CompletionList:
		return c.encode(KindCompletionList, t)
	case protocol.Command:
		return c.encodeCommand(t)
	case protocol.CodeAction:
		return c.encode(KindCodeAction, t)
	case protocol.CodeLens:
		return c.encode(KindCodeLens, t)
	case protocol.DocumentLink:
		return c.encode(KindDocumentLink, t)
	case []any:
		return c.encodeList(t)
	}

	data, err := json.Marshal(v)
	if err != nil {
		// Not serializable: substitute a placeholder rather than fail.
		return c.opaque(v)
	}
	return Value{Kind: KindJSON, Data: data}, nil
}

// FromWire reconstructs a value from its wire representation.
func (c *Codec) FromWire(v Value) (any, error) {
	switch v.Kind {
	case KindNil, "":
		return nil, nil
	case KindJSON:
		var out any
		if err := json.Unmarshal(v.Data, &out); err != nil {
			return nil, &DecodeError{Kind: v.Kind, Err: err}
		}
		return out, nil
	case KindList:
		return c.decodeList(v)
	case KindPosition:
		return decode[protocol.Position](v)
	case KindRange:
		return decode[protocol.Range](v)
	case KindLocation:
		return decode[protocol.Location](v)
	case KindSymbolInformation:
		return decode[protocol.SymbolInformation](v)
	case KindTextEdit:
		return decode[protocol.TextEdit](v)
	case KindCompletionItem:
		return decode[protocol.CompletionItem](v)
	case KindCompletionList:
		return decode[protocol.CompletionList](v)
	case KindCommand:
		return c.decodeCommand(v)
	case KindCodeAction:
		return decode[protocol.CodeAction](v)
	case KindCodeLens:
		return decode[protocol.CodeLens](v)
	case KindDocumentLink:
		return decode[protocol.DocumentLink](v)
	case KindOpaqueRef:
		return decode[OpaqueRef](v)
	}
	return nil, &UnknownKindError{Kind: v.Kind}
}

// EncodeArgs converts a heterogeneous argument list for transport.
func (c *Codec) EncodeArgs(args []any) ([]Value, error) {
	out := make([]Value, len(args))
	for i, a := range args {
		v, err := c.ToWire(a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// DecodeArgs reconstructs an argument list received over the wire.
func (c *Codec) DecodeArgs(values []Value) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		a, err := c.FromWire(v)
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

func (c *Codec) encode(kind string, v any) (Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Value{}, &EncodeError{Kind: kind, Err: err}
	}
	return Value{Kind: kind, Data: data}, nil
}

// commandWire carries a command with its arguments individually enveloped so
// rich argument types survive the round-trip.
type commandWire struct {
	Title     string  `json:"title"`
	ID        string  `json:"command"`
	Arguments []Value `json:"arguments,omitempty"`
}

func (c *Codec) encodeCommand(cmd protocol.Command) (Value, error) {
	args, err := c.EncodeArgs(cmd.Arguments)
	if err != nil {
		return Value{}, err
	}
	return c.encode(KindCommand, commandWire{Title: cmd.Title, ID: cmd.ID, Arguments: args})
}

func (c *Codec) decodeCommand(v Value) (any, error) {
	var cw commandWire
	if err := json.Unmarshal(v.Data, &cw); err != nil {
		return nil, &DecodeError{Kind: KindCommand, Err: err}
	}
	cmd := protocol.Command{Title: cw.Title, ID: cw.ID}
	if len(cw.Arguments) > 0 {
		args, err := c.DecodeArgs(cw.Arguments)
		if err != nil {
			return nil, err
		}
		cmd.Arguments = args
	}
	return cmd, nil
}

func (c *Codec) encodeList(items []any) (Value, error) {
	values, err := c.EncodeArgs(items)
	if err != nil {
		return Value{}, err
	}
	return c.encode(KindList, values)
}

func (c *Codec) decodeList(v Value) (any, error) {
	var values []Value
	if err := json.Unmarshal(v.Data, &values); err != nil {
		return nil, &DecodeError{Kind: KindList, Err: err}
	}
	return c.DecodeArgs(values)
}

// opaque builds a placeholder reference for a value that cannot cross the
// channel. Tokens are keyed on value identity so the same value encodes to
// the same reference; values that cannot be used as map keys get a fresh
// token each time.
func (c *Codec) opaque(v any) (Value, error) {
	var token string
	if v != nil && reflect.TypeOf(v).Comparable() {
		c.mu.Lock()
		token = c.tokens[v]
		if token == "" {
			token = uuid.NewString()
			c.tokens[v] = token
		}
		c.mu.Unlock()
	} else {
		token = uuid.NewString()
	}
	ref := OpaqueRef{Namespace: c.namespace, Token: token}
	data, err := json.Marshal(ref)
	if err != nil {
		return Value{}, &EncodeError{Kind: KindOpaqueRef, Err: err}
	}
	return Value{Kind: KindOpaqueRef, Data: data}, nil
}

func decode[T any](v Value) (any, error) {
	var out T
	if err := json.Unmarshal(v.Data, &out); err != nil {
		return nil, &DecodeError{Kind: v.Kind, Err: err}
	}
	return out, nil
}

// Marshal and Unmarshal are the serialization primitives shared by the RPC
// channel and the extension proxy for statically typed payloads.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
