package exthost

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/lspkit/extbridge/internal/command"
	"github.com/lspkit/extbridge/internal/document"
	"github.com/lspkit/extbridge/pkg/protocol"
)

// registration pairs a provider with its selector and handle. Triggers are
// only populated for completion providers.
type registration[P any] struct {
	handle   uint64
	selector protocol.DocumentSelector
	provider P
	triggers []string
}

// providerRegistry holds one capability's registrations in registration
// order. Snapshots are returned most-recently-registered first, the pinned
// precedence for concatenated merge results.
type providerRegistry[P any] struct {
	mu   sync.RWMutex
	regs []registration[P]
}

func (r *providerRegistry[P]) add(reg registration[P]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs = append(r.regs, reg)
}

func (r *providerRegistry[P]) remove(handle uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, reg := range r.regs {
		if reg.handle == handle {
			r.regs = append(r.regs[:i], r.regs[i+1:]...)
			return true
		}
	}
	return false
}

// live reports whether a handle is still registered. The aggregator checks
// it at merge time so a disposal during fan-out drops that provider's
// contribution.
func (r *providerRegistry[P]) live(handle uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, reg := range r.regs {
		if reg.handle == handle {
			return true
		}
	}
	return false
}

// snapshot returns the registrations matching a document, most recent first.
func (r *providerRegistry[P]) snapshot(uri, languageID string) []registration[P] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]registration[P], 0, len(r.regs))
	for i := len(r.regs) - 1; i >= 0; i-- {
		if r.regs[i].selector.Matches(uri, languageID) {
			out = append(out, r.regs[i])
		}
	}
	return out
}

// all returns every registration, most recent first. Workspace symbols have
// no target document to match against.
func (r *providerRegistry[P]) all() []registration[P] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]registration[P], 0, len(r.regs))
	for i := len(r.regs) - 1; i >= 0; i-- {
		out = append(out, r.regs[i])
	}
	return out
}

// Host owns the extension process's capability registries, its command
// table and the aggregation engine. It is created once per extension process
// and passed to the proxy; no ambient singletons.
type Host struct {
	logger   *zap.Logger
	docs     document.Store
	commands *command.Registry

	handles atomic.Uint64
	sem     *semaphore.Weighted

	workspaceSymbol providerRegistry[WorkspaceSymbolProvider]
	definition      providerRegistry[DefinitionProvider]
	typeDefinition  providerRegistry[TypeDefinitionProvider]
	reference       providerRegistry[ReferenceProvider]
	documentSymbol  providerRegistry[DocumentSymbolProvider]
	completion      providerRegistry[CompletionProvider]
	codeAction      providerRegistry[CodeActionProvider]
	codeLens        providerRegistry[CodeLensProvider]
	documentLink    providerRegistry[DocumentLinkProvider]
}

// NewHost creates the extension host. fanOutLimit caps concurrently running
// provider invocations; zero or negative means unbounded.
func NewHost(docs document.Store, fanOutLimit int64, logger *zap.Logger) *Host {
	h := &Host{
		logger:   logger.With(zap.String("component", "extension-host")),
		docs:     docs,
		commands: command.NewRegistry(logger),
	}
	if fanOutLimit > 0 {
		h.sem = semaphore.NewWeighted(fanOutLimit)
	}
	return h
}

// Commands returns the extension-local command table.
func (h *Host) Commands() *command.Registry {
	return h.commands
}

func (h *Host) nextHandle() uint64 {
	return h.handles.Add(1)
}

func disposeOnce[P any](h *Host, r *providerRegistry[P], handle uint64, capability string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			if r.remove(handle) {
				h.logger.Debug("Provider disposed",
					zap.String("capability", capability),
					zap.Uint64("handle", handle),
				)
			}
		})
	}
}

// RegisterWorkspaceSymbolProvider registers a workspace-symbol provider.
// Workspace symbols are not scoped to a document, so no selector applies.
func (h *Host) RegisterWorkspaceSymbolProvider(p WorkspaceSymbolProvider) *Registration {
	handle := h.nextHandle()
	h.workspaceSymbol.add(registration[WorkspaceSymbolProvider]{handle: handle, provider: p})
	return &Registration{handle: handle, dispose: disposeOnce(h, &h.workspaceSymbol, handle, "workspaceSymbol")}
}

// RegisterDefinitionProvider registers a definition provider for documents
// matching the selector.
func (h *Host) RegisterDefinitionProvider(selector protocol.DocumentSelector, p DefinitionProvider) *Registration {
	handle := h.nextHandle()
	h.definition.add(registration[DefinitionProvider]{handle: handle, selector: selector, provider: p})
	return &Registration{handle: handle, dispose: disposeOnce(h, &h.definition, handle, "definition")}
}

// RegisterTypeDefinitionProvider registers a type-definition provider.
func (h *Host) RegisterTypeDefinitionProvider(selector protocol.DocumentSelector, p TypeDefinitionProvider) *Registration {
	handle := h.nextHandle()
	h.typeDefinition.add(registration[TypeDefinitionProvider]{handle: handle, selector: selector, provider: p})
	return &Registration{handle: handle, dispose: disposeOnce(h, &h.typeDefinition, handle, "typeDefinition")}
}

// RegisterReferenceProvider registers a reference provider.
func (h *Host) RegisterReferenceProvider(selector protocol.DocumentSelector, p ReferenceProvider) *Registration {
	handle := h.nextHandle()
	h.reference.add(registration[ReferenceProvider]{handle: handle, selector: selector, provider: p})
	return &Registration{handle: handle, dispose: disposeOnce(h, &h.reference, handle, "reference")}
}

// RegisterDocumentSymbolProvider registers a document-symbol provider.
func (h *Host) RegisterDocumentSymbolProvider(selector protocol.DocumentSelector, p DocumentSymbolProvider) *Registration {
	handle := h.nextHandle()
	h.documentSymbol.add(registration[DocumentSymbolProvider]{handle: handle, selector: selector, provider: p})
	return &Registration{handle: handle, dispose: disposeOnce(h, &h.documentSymbol, handle, "documentSymbol")}
}

// RegisterCompletionProvider registers a completion provider. triggers are
// the characters whose typing invokes this provider; a provider with no
// triggers participates in every completion invocation.
func (h *Host) RegisterCompletionProvider(selector protocol.DocumentSelector, p CompletionProvider, triggers ...string) *Registration {
	handle := h.nextHandle()
	h.completion.add(registration[CompletionProvider]{handle: handle, selector: selector, provider: p, triggers: triggers})
	return &Registration{handle: handle, dispose: disposeOnce(h, &h.completion, handle, "completion")}
}

// RegisterCodeActionProvider registers a code-action provider.
func (h *Host) RegisterCodeActionProvider(selector protocol.DocumentSelector, p CodeActionProvider) *Registration {
	handle := h.nextHandle()
	h.codeAction.add(registration[CodeActionProvider]{handle: handle, selector: selector, provider: p})
	return &Registration{handle: handle, dispose: disposeOnce(h, &h.codeAction, handle, "codeAction")}
}

// RegisterCodeLensProvider registers a code-lens provider.
func (h *Host) RegisterCodeLensProvider(selector protocol.DocumentSelector, p CodeLensProvider) *Registration {
	handle := h.nextHandle()
	h.codeLens.add(registration[CodeLensProvider]{handle: handle, selector: selector, provider: p})
	return &Registration{handle: handle, dispose: disposeOnce(h, &h.codeLens, handle, "codeLens")}
}

// RegisterDocumentLinkProvider registers a document-link provider.
func (h *Host) RegisterDocumentLinkProvider(selector protocol.DocumentSelector, p DocumentLinkProvider) *Registration {
	handle := h.nextHandle()
	h.documentLink.add(registration[DocumentLinkProvider]{handle: handle, selector: selector, provider: p})
	return &Registration{handle: handle, dispose: disposeOnce(h, &h.documentLink, handle, "documentLink")}
}
