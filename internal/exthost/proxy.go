package exthost

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/lspkit/extbridge/internal/command"
	"github.com/lspkit/extbridge/internal/rpc"
	"github.com/lspkit/extbridge/internal/wire"
)

// Proxy ids and methods served by the extension endpoint.
const (
	ProxyCapabilities = "capabilities"
	ProxyCommands     = "commands"

	MethodWorkspaceSymbols = "workspaceSymbols"
	MethodDefinition       = "definition"
	MethodTypeDefinition   = "typeDefinition"
	MethodReferences       = "references"
	MethodDocumentSymbols  = "documentSymbols"
	MethodCompletions      = "completions"
	MethodCodeActions      = "codeActions"
	MethodCodeLenses       = "codeLenses"
	MethodDocumentLinks    = "documentLinks"
	MethodExecute          = "execute"
)

// Proxy serves the host's capability invocations and execute requests
// against the extension host. Concurrent incoming requests for different
// identifiers are independent; the proxy holds no per-request state.
type Proxy struct {
	host   *Host
	codec  *wire.Codec
	logger *zap.Logger
}

// NewProxy creates the extension-side gateway for the given host.
func NewProxy(host *Host, logger *zap.Logger) *Proxy {
	return &Proxy{
		host:   host,
		codec:  wire.NewCodec("extension"),
		logger: logger.With(zap.String("component", "extension-proxy")),
	}
}

// Attach registers the proxy's capability and command handlers on an
// endpoint.
func (p *Proxy) Attach(ep *rpc.Endpoint) {
	ep.RegisterProxy(ProxyCapabilities, rpc.HandlerFunc(p.invokeCapability))
	ep.RegisterProxy(ProxyCommands, rpc.HandlerFunc(p.invokeCommand))
}

func (p *Proxy) invokeCapability(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case MethodWorkspaceSymbols:
		var q wire.QueryParams
		if err := decodeParams(method, params, &q); err != nil {
			return nil, err
		}
		return p.host.WorkspaceSymbols(ctx, q.Query)

	case MethodDefinition:
		var pp wire.PositionParams
		if err := decodeParams(method, params, &pp); err != nil {
			return nil, err
		}
		return p.host.Definition(ctx, pp.URI, pp.Position)

	case MethodTypeDefinition:
		var pp wire.PositionParams
		if err := decodeParams(method, params, &pp); err != nil {
			return nil, err
		}
		return p.host.TypeDefinition(ctx, pp.URI, pp.Position)

	case MethodReferences:
		var rp wire.ReferenceParams
		if err := decodeParams(method, params, &rp); err != nil {
			return nil, err
		}
		return p.host.References(ctx, rp.URI, rp.Position, rp.IncludeDeclaration)

	case MethodDocumentSymbols:
		var dp wire.DocumentParams
		if err := decodeParams(method, params, &dp); err != nil {
			return nil, err
		}
		return p.host.DocumentSymbols(ctx, dp.URI)

	case MethodCompletions:
		var cp wire.CompletionParams
		if err := decodeParams(method, params, &cp); err != nil {
			return nil, err
		}
		return p.host.Completions(ctx, cp.URI, cp.Position, cp.TriggerCharacters)

	case MethodCodeActions:
		var rp wire.RangeParams
		if err := decodeParams(method, params, &rp); err != nil {
			return nil, err
		}
		return p.host.CodeActions(ctx, rp.URI, rp.Range)

	case MethodCodeLenses:
		var lp wire.CodeLensParams
		if err := decodeParams(method, params, &lp); err != nil {
			return nil, err
		}
		return p.host.CodeLenses(ctx, lp.URI, lp.ResolveCount)

	case MethodDocumentLinks:
		var dp wire.DocumentParams
		if err := decodeParams(method, params, &dp); err != nil {
			return nil, err
		}
		return p.host.DocumentLinks(ctx, dp.URI)
	}

	return nil, &rpc.NotFoundError{Proxy: ProxyCapabilities, Method: method}
}

// invokeCommand resolves an execute request against the extension-local
// command table and marshals the handler's result back over the channel.
func (p *Proxy) invokeCommand(ctx context.Context, method string, params json.RawMessage) (any, error) {
	if method != MethodExecute {
		return nil, &rpc.NotFoundError{Proxy: ProxyCommands, Method: method}
	}

	var ep wire.ExecuteParams
	if err := decodeParams(method, params, &ep); err != nil {
		return nil, err
	}

	args, err := p.codec.DecodeArgs(ep.Arguments)
	if err != nil {
		return nil, err
	}

	result, err := p.host.commands.Execute(ctx, ep.Command, args...)
	if err != nil {
		var unknown *command.UnknownCommandError
		if errors.As(err, &unknown) {
			return nil, &rpc.UnknownCommandFault{Command: unknown.Command, Message: unknown.Error()}
		}
		return nil, err
	}

	p.logger.Debug("Extension command executed", zap.String("command", ep.Command))
	return p.codec.ToWire(result)
}

func decodeParams(method string, params json.RawMessage, out any) error {
	if err := wire.Unmarshal(params, out); err != nil {
		return &rpc.BadArgumentError{Method: method, Problems: []string{err.Error()}}
	}
	return nil
}
