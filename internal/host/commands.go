// Package host implements the host side of the bridge: the well-known
// executeXProvider command family exposed to the UI layer, and command
// execution that falls through to the extension's command table when the id
// is not bound locally.
package host

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lspkit/extbridge/internal/command"
	"github.com/lspkit/extbridge/internal/exthost"
	"github.com/lspkit/extbridge/internal/rpc"
	"github.com/lspkit/extbridge/internal/wire"
	"github.com/lspkit/extbridge/pkg/protocol"
)

// Well-known command identifiers, one per capability. They share the command
// table's namespace with ad-hoc commands.
const (
	CmdWorkspaceSymbols = "executeWorkspaceSymbolProvider"
	CmdDefinition       = "executeDefinitionProvider"
	CmdTypeDefinition   = "executeTypeDefinitionProvider"
	CmdReferences       = "executeReferenceProvider"
	CmdDocumentSymbols  = "executeDocumentSymbolProvider"
	CmdCompletions      = "executeCompletionItemProvider"
	CmdCodeActions      = "executeCodeActionProvider"
	CmdCodeLenses       = "executeCodeLensProvider"
	CmdDocumentLinks    = "executeLinkProvider"
)

// Commands is the host's command surface. Built-in handlers talk through the
// channel to the aggregator in the extension endpoint; unknown ids fall
// through to the extension's own command table.
type Commands struct {
	registry *command.Registry
	endpoint *rpc.Endpoint
	codec    *wire.Codec
	logger   *zap.Logger
}

// NewCommands wires a command registry to the channel endpoint facing the
// extension.
func NewCommands(registry *command.Registry, endpoint *rpc.Endpoint, logger *zap.Logger) *Commands {
	return &Commands{
		registry: registry,
		endpoint: endpoint,
		codec:    wire.NewCodec("host"),
		logger:   logger.With(zap.String("component", "host-commands")),
	}
}

// Registry returns the underlying command table.
func (c *Commands) Registry() *command.Registry {
	return c.registry
}

// RegisterBuiltins binds the executeXProvider family into the command table.
func (c *Commands) RegisterBuiltins() error {
	builtins := map[string]command.Handler{
		CmdWorkspaceSymbols: c.executeWorkspaceSymbols,
		CmdDefinition:       c.executeDefinition,
		CmdTypeDefinition:   c.executeTypeDefinition,
		CmdReferences:       c.executeReferences,
		CmdDocumentSymbols:  c.executeDocumentSymbols,
		CmdCompletions:      c.executeCompletions,
		CmdCodeActions:      c.executeCodeActions,
		CmdCodeLenses:       c.executeCodeLenses,
		CmdDocumentLinks:    c.executeDocumentLinks,
	}
	for id, h := range builtins {
		if err := c.registry.Register(id, h); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs a command. Ids bound in the host table run locally; anything
// else is forwarded to the extension command proxy. Unknown everywhere
// rejects with UnknownCommandError.
func (c *Commands) Execute(ctx context.Context, id string, args ...any) (any, error) {
	if c.registry.Has(id) {
		return c.registry.Execute(ctx, id, args...)
	}

	encoded, err := c.codec.EncodeArgs(args)
	if err != nil {
		return nil, err
	}
	raw, err := c.endpoint.Invoke(ctx, exthost.ProxyCommands, exthost.MethodExecute, wire.ExecuteParams{
		Command:   id,
		Arguments: encoded,
	})
	if err != nil {
		var unknown *rpc.UnknownCommandFault
		if errors.As(err, &unknown) {
			return nil, &command.UnknownCommandError{Command: unknown.Command}
		}
		return nil, err
	}

	var value wire.Value
	if err := wire.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	return c.codec.FromWire(value)
}

func (c *Commands) executeWorkspaceSymbols(ctx context.Context, args ...any) (any, error) {
	v := newValidator(CmdWorkspaceSymbols, args)
	query := v.str(0, "query")
	if err := v.err(); err != nil {
		return nil, err
	}

	raw, err := c.endpoint.Invoke(ctx, exthost.ProxyCapabilities, exthost.MethodWorkspaceSymbols, wire.QueryParams{Query: query})
	if err != nil {
		return nil, err
	}
	var out []protocol.SymbolInformation
	if err := wire.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Commands) executeDefinition(ctx context.Context, args ...any) (any, error) {
	return c.positionCapability(ctx, CmdDefinition, exthost.MethodDefinition, args)
}

func (c *Commands) executeTypeDefinition(ctx context.Context, args ...any) (any, error) {
	return c.positionCapability(ctx, CmdTypeDefinition, exthost.MethodTypeDefinition, args)
}

// positionCapability handles the definition-style commands whose providers
// may answer with a single location or a sequence; the reply is normalized
// to a sequence either way.
func (c *Commands) positionCapability(ctx context.Context, cmd, method string, args []any) (any, error) {
	v := newValidator(cmd, args)
	uri := v.uri(0)
	pos := v.position(1)
	if err := v.err(); err != nil {
		return nil, err
	}

	raw, err := c.endpoint.Invoke(ctx, exthost.ProxyCapabilities, method, wire.PositionParams{URI: uri, Position: pos})
	if err != nil {
		return nil, err
	}
	return wire.DecodeLocations(raw)
}

func (c *Commands) executeReferences(ctx context.Context, args ...any) (any, error) {
	v := newValidator(CmdReferences, args)
	uri := v.uri(0)
	pos := v.position(1)
	if err := v.err(); err != nil {
		return nil, err
	}

	raw, err := c.endpoint.Invoke(ctx, exthost.ProxyCapabilities, exthost.MethodReferences, wire.ReferenceParams{
		URI:                uri,
		Position:           pos,
		IncludeDeclaration: true,
	})
	if err != nil {
		return nil, err
	}
	var out []protocol.Location
	if err := wire.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Commands) executeDocumentSymbols(ctx context.Context, args ...any) (any, error) {
	v := newValidator(CmdDocumentSymbols, args)
	uri := v.uri(0)
	if err := v.err(); err != nil {
		return nil, err
	}

	raw, err := c.endpoint.Invoke(ctx, exthost.ProxyCapabilities, exthost.MethodDocumentSymbols, wire.DocumentParams{URI: uri})
	if err != nil {
		return nil, err
	}
	var out []protocol.SymbolInformation
	if err := wire.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Commands) executeCompletions(ctx context.Context, args ...any) (any, error) {
	v := newValidator(CmdCompletions, args)
	uri := v.uri(0)
	pos := v.position(1)
	triggers := v.optStrings(2, "triggerCharacters")
	if err := v.err(); err != nil {
		return nil, err
	}

	raw, err := c.endpoint.Invoke(ctx, exthost.ProxyCapabilities, exthost.MethodCompletions, wire.CompletionParams{
		URI:               uri,
		Position:          pos,
		TriggerCharacters: triggers,
	})
	if err != nil {
		return nil, err
	}
	var out protocol.CompletionList
	if err := wire.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Commands) executeCodeActions(ctx context.Context, args ...any) (any, error) {
	v := newValidator(CmdCodeActions, args)
	uri := v.uri(0)
	rng := v.rng(1)
	if err := v.err(); err != nil {
		return nil, err
	}

	raw, err := c.endpoint.Invoke(ctx, exthost.ProxyCapabilities, exthost.MethodCodeActions, wire.RangeParams{URI: uri, Range: rng})
	if err != nil {
		return nil, err
	}
	var out []protocol.CodeAction
	if err := wire.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Commands) executeCodeLenses(ctx context.Context, args ...any) (any, error) {
	v := newValidator(CmdCodeLenses, args)
	uri := v.uri(0)
	resolveCount := v.optInt(1, "itemResolveCount")
	if err := v.err(); err != nil {
		return nil, err
	}

	raw, err := c.endpoint.Invoke(ctx, exthost.ProxyCapabilities, exthost.MethodCodeLenses, wire.CodeLensParams{
		URI:          uri,
		ResolveCount: resolveCount,
	})
	if err != nil {
		return nil, err
	}
	var out []protocol.CodeLens
	if err := wire.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Commands) executeDocumentLinks(ctx context.Context, args ...any) (any, error) {
	v := newValidator(CmdDocumentLinks, args)
	uri := v.uri(0)
	if err := v.err(); err != nil {
		return nil, err
	}

	raw, err := c.endpoint.Invoke(ctx, exthost.ProxyCapabilities, exthost.MethodDocumentLinks, wire.DocumentParams{URI: uri})
	if err != nil {
		return nil, err
	}
	var out []protocol.DocumentLink
	if err := wire.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// validator accumulates one problem per invalid or missing argument, so a
// call with several bad arguments rejects with all of them enumerated.
type validator struct {
	method   string
	args     []any
	problems []string
}

func newValidator(method string, args []any) *validator {
	return &validator{method: method, args: args}
}

func (v *validator) err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return &rpc.BadArgumentError{Method: v.method, Problems: v.problems}
}

func (v *validator) add(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) str(i int, name string) string {
	if i >= len(v.args) {
		v.add("missing %s argument", name)
		return ""
	}
	s, ok := v.args[i].(string)
	if !ok {
		v.add("%s must be a string, got %T", name, v.args[i])
		return ""
	}
	return s
}

func (v *validator) uri(i int) string {
	uri := v.str(i, "uri")
	if uri == "" && len(v.problems) == 0 {
		v.add("uri must not be empty")
	}
	return uri
}

func (v *validator) position(i int) protocol.Position {
	if i >= len(v.args) {
		v.add("missing position argument")
		return protocol.Position{}
	}
	pos, ok := v.args[i].(protocol.Position)
	if !ok {
		v.add("position must be a Position, got %T", v.args[i])
		return protocol.Position{}
	}
	if pos.Line < 0 || pos.Character < 0 {
		v.add("position (%d,%d) must be non-negative", pos.Line, pos.Character)
	}
	return pos
}

func (v *validator) rng(i int) protocol.Range {
	if i >= len(v.args) {
		v.add("missing range argument")
		return protocol.Range{}
	}
	r, ok := v.args[i].(protocol.Range)
	if !ok {
		v.add("range must be a Range, got %T", v.args[i])
		return protocol.Range{}
	}
	return r
}

func (v *validator) optStrings(i int, name string) []string {
	if i >= len(v.args) || v.args[i] == nil {
		return nil
	}
	switch t := v.args[i].(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				v.add("%s entries must be strings, got %T", name, e)
				return nil
			}
			out = append(out, s)
		}
		return out
	default:
		v.add("%s must be a string slice, got %T", name, v.args[i])
		return nil
	}
}

func (v *validator) optInt(i int, name string) int {
	if i >= len(v.args) || v.args[i] == nil {
		return 0
	}
	switch t := v.args[i].(type) {
	case int:
		return t
	case float64:
		return int(t)
	default:
		v.add("%s must be a number, got %T", name, v.args[i])
		return 0
	}
}
