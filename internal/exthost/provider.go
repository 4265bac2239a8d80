// Package exthost implements the extension side of the bridge: the
// per-capability provider registries, the aggregator that fans an invocation
// out to every matching provider and merges the results, and the command
// proxy serving execute requests arriving over the channel.
package exthost

import (
	"context"

	"github.com/lspkit/extbridge/internal/document"
	"github.com/lspkit/extbridge/pkg/protocol"
)

// One interface per capability. Providers implement exactly one well-defined
// method; the registries hold them behind these closed types.

// WorkspaceSymbolProvider searches for symbols across the workspace.
type WorkspaceSymbolProvider interface {
	ProvideWorkspaceSymbols(ctx context.Context, query string) ([]protocol.SymbolInformation, error)
}

// DefinitionProvider resolves go-to-definition for a position.
type DefinitionProvider interface {
	ProvideDefinition(ctx context.Context, doc *document.Model, pos protocol.Position) ([]protocol.Location, error)
}

// TypeDefinitionProvider resolves go-to-type-definition for a position.
type TypeDefinitionProvider interface {
	ProvideTypeDefinition(ctx context.Context, doc *document.Model, pos protocol.Position) ([]protocol.Location, error)
}

// ReferenceProvider finds all references to the symbol at a position.
type ReferenceProvider interface {
	ProvideReferences(ctx context.Context, doc *document.Model, pos protocol.Position, includeDeclaration bool) ([]protocol.Location, error)
}

// DocumentSymbolProvider returns the symbols of a single document.
type DocumentSymbolProvider interface {
	ProvideDocumentSymbols(ctx context.Context, doc *document.Model) ([]protocol.SymbolInformation, error)
}

// CompletionProvider produces completion suggestions for a position.
type CompletionProvider interface {
	ProvideCompletionItems(ctx context.Context, doc *document.Model, pos protocol.Position) (protocol.CompletionList, error)
}

// CodeActionProvider produces code actions for a range.
type CodeActionProvider interface {
	ProvideCodeActions(ctx context.Context, doc *document.Model, rng protocol.Range) ([]protocol.CodeAction, error)
}

// CodeLensProvider produces code lenses for a document. A provider that also
// implements CodeLensResolver gets a second round-trip to complete lenses it
// returned unresolved.
type CodeLensProvider interface {
	ProvideCodeLenses(ctx context.Context, doc *document.Model) ([]protocol.CodeLens, error)
}

// CodeLensResolver completes an unresolved code lens.
type CodeLensResolver interface {
	ResolveCodeLens(ctx context.Context, lens protocol.CodeLens) (protocol.CodeLens, error)
}

// DocumentLinkProvider finds links inside a document.
type DocumentLinkProvider interface {
	ProvideDocumentLinks(ctx context.Context, doc *document.Model) ([]protocol.DocumentLink, error)
}

// Registration is the disposable handle returned by every provider
// registration. Disposing removes the provider from all future fan-outs;
// results from invocations already dispatched to it are dropped at merge.
type Registration struct {
	handle  uint64
	dispose func()
}

// Handle returns the monotonically increasing registration id.
func (r *Registration) Handle() uint64 {
	return r.handle
}

// Dispose deregisters the provider. Idempotent.
func (r *Registration) Dispose() {
	r.dispose()
}
