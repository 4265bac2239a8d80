package sandbox

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/lspkit/extbridge/internal/document"
	"github.com/lspkit/extbridge/internal/exthost"
	"github.com/lspkit/extbridge/pkg/protocol"
)

// guest abstracts the invoke surface of a running bundle instance so the
// provider can be exercised without a real Wasm module.
type guest interface {
	Call(ctx context.Context, payload []byte) ([]byte, error)
}

// guestRequest is the JSON payload handed to a bundle's invoke export.
type guestRequest struct {
	Capability         string             `json:"capability"`
	Query              string             `json:"query,omitempty"`
	URI                string             `json:"uri,omitempty"`
	LanguageID         string             `json:"languageId,omitempty"`
	Text               string             `json:"text,omitempty"`
	Position           *protocol.Position `json:"position,omitempty"`
	Range              *protocol.Range    `json:"range,omitempty"`
	IncludeDeclaration bool               `json:"includeDeclaration,omitempty"`
}

// guestResponse is the JSON reply from a bundle. Exactly one result field
// is populated, matching the requested capability; a non-empty error field
// marks the call as failed.
type guestResponse struct {
	Error       string                       `json:"error,omitempty"`
	Locations   []protocol.Location          `json:"locations,omitempty"`
	Symbols     []protocol.SymbolInformation `json:"symbols,omitempty"`
	Completions *protocol.CompletionList     `json:"completions,omitempty"`
	Actions     []protocol.CodeAction        `json:"actions,omitempty"`
	Lenses      []protocol.CodeLens          `json:"lenses,omitempty"`
	Links       []protocol.DocumentLink      `json:"links,omitempty"`
}

// Provider adapts a running bundle instance to the extension host's
// capability provider interfaces. Which interfaces are actually registered
// is decided by the bundle's manifest.
type Provider struct {
	bundle string
	guest  guest
	logger *zap.Logger
}

// NewProvider wraps an instance as a capability provider.
func NewProvider(bundle string, instance *Instance, logger *zap.Logger) *Provider {
	return newProvider(bundle, instance, logger)
}

func newProvider(bundle string, g guest, logger *zap.Logger) *Provider {
	return &Provider{
		bundle: bundle,
		guest:  g,
		logger: logger.With(zap.String("component", "sandbox-provider"), zap.String("bundle", bundle)),
	}
}

func (p *Provider) call(ctx context.Context, req guestRequest) (*guestResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &GuestCallError{BundleName: p.bundle, Capability: req.Capability, Err: err}
	}

	reply, err := p.guest.Call(ctx, payload)
	if err != nil {
		return nil, &GuestCallError{BundleName: p.bundle, Capability: req.Capability, Err: err}
	}

	var resp guestResponse
	if err := json.Unmarshal(reply, &resp); err != nil {
		return nil, &GuestCallError{BundleName: p.bundle, Capability: req.Capability, Err: err}
	}
	if resp.Error != "" {
		return nil, &GuestCallError{BundleName: p.bundle, Capability: req.Capability, Err: errors.New(resp.Error)}
	}

	return &resp, nil
}

func documentRequest(capability string, doc *document.Model) guestRequest {
	return guestRequest{
		Capability: capability,
		URI:        doc.URI,
		LanguageID: doc.LanguageID,
		Text:       doc.Text(),
	}
}

func (p *Provider) ProvideWorkspaceSymbols(ctx context.Context, query string) ([]protocol.SymbolInformation, error) {
	resp, err := p.call(ctx, guestRequest{Capability: exthost.MethodWorkspaceSymbols, Query: query})
	if err != nil {
		return nil, err
	}
	return resp.Symbols, nil
}

func (p *Provider) ProvideDefinition(ctx context.Context, doc *document.Model, pos protocol.Position) ([]protocol.Location, error) {
	req := documentRequest(exthost.MethodDefinition, doc)
	req.Position = &pos
	resp, err := p.call(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Locations, nil
}

func (p *Provider) ProvideTypeDefinition(ctx context.Context, doc *document.Model, pos protocol.Position) ([]protocol.Location, error) {
	req := documentRequest(exthost.MethodTypeDefinition, doc)
	req.Position = &pos
	resp, err := p.call(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Locations, nil
}

func (p *Provider) ProvideReferences(ctx context.Context, doc *document.Model, pos protocol.Position, includeDeclaration bool) ([]protocol.Location, error) {
	req := documentRequest(exthost.MethodReferences, doc)
	req.Position = &pos
	req.IncludeDeclaration = includeDeclaration
	resp, err := p.call(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Locations, nil
}

func (p *Provider) ProvideDocumentSymbols(ctx context.Context, doc *document.Model) ([]protocol.SymbolInformation, error) {
	resp, err := p.call(ctx, documentRequest(exthost.MethodDocumentSymbols, doc))
	if err != nil {
		return nil, err
	}
	return resp.Symbols, nil
}

func (p *Provider) ProvideCompletionItems(ctx context.Context, doc *document.Model, pos protocol.Position) (protocol.CompletionList, error) {
	req := documentRequest(exthost.MethodCompletions, doc)
	req.Position = &pos
	resp, err := p.call(ctx, req)
	if err != nil {
		return protocol.CompletionList{}, err
	}
	if resp.Completions == nil {
		return protocol.CompletionList{}, nil
	}
	return *resp.Completions, nil
}

func (p *Provider) ProvideCodeActions(ctx context.Context, doc *document.Model, rng protocol.Range) ([]protocol.CodeAction, error) {
	req := documentRequest(exthost.MethodCodeActions, doc)
	req.Range = &rng
	resp, err := p.call(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Actions, nil
}

func (p *Provider) ProvideCodeLenses(ctx context.Context, doc *document.Model) ([]protocol.CodeLens, error) {
	resp, err := p.call(ctx, documentRequest(exthost.MethodCodeLenses, doc))
	if err != nil {
		return nil, err
	}
	return resp.Lenses, nil
}

func (p *Provider) ProvideDocumentLinks(ctx context.Context, doc *document.Model) ([]protocol.DocumentLink, error) {
	resp, err := p.call(ctx, documentRequest(exthost.MethodDocumentLinks, doc))
	if err != nil {
		return nil, err
	}
	return resp.Links, nil
}
