package exthost

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/lspkit/extbridge/internal/document"
	"github.com/lspkit/extbridge/internal/rpc"
	"github.com/lspkit/extbridge/pkg/protocol"
)

// settled is one provider's outcome after fan-out. Exactly one of value and
// err is meaningful.
type settled[R any] struct {
	handle uint64
	value  R
	err    error
}

// fanOut invokes every registration concurrently and waits for all of them
// to settle. A provider failure settles that slot with an error and never
// aborts the others. Completion order is unspecified; slot order follows the
// registration snapshot.
func fanOut[P, R any](ctx context.Context, h *Host, regs []registration[P], invoke func(context.Context, registration[P]) (R, error)) []settled[R] {
	results := make([]settled[R], len(regs))
	done := make(chan int, len(regs))
	for i := range regs {
		go func(i int) {
			defer func() { done <- i }()
			reg := regs[i]
			results[i].handle = reg.handle
			if h.sem != nil {
				if err := h.sem.Acquire(ctx, 1); err != nil {
					results[i].err = err
					return
				}
				defer h.sem.Release(1)
			}
			results[i].value, results[i].err = invoke(ctx, reg)
		}(i)
	}
	for range regs {
		<-done
	}
	return results
}

// concatSettled merges slice-valued fan-out results by concatenation in
// snapshot order, skipping failed providers and providers disposed while
// their invocation was in flight. An empty merged sequence is a successful
// outcome.
func concatSettled[T any](h *Host, capability string, live func(uint64) bool, results []settled[[]T]) []T {
	merged := []T{}
	var errs error
	for _, s := range results {
		if s.err != nil {
			errs = multierr.Append(errs, s.err)
			continue
		}
		if !live(s.handle) {
			continue
		}
		merged = append(merged, s.value...)
	}
	if errs != nil {
		h.logger.Warn("Provider failures during fan-out",
			zap.String("capability", capability),
			zap.Error(errs),
		)
	}
	return merged
}

// model validates the invocation target and loads its document. Structural
// problems reject before any provider is invoked, one problem per invalid
// argument.
func (h *Host) model(method, uri string) (*document.Model, error) {
	var problems []string
	if uri == "" {
		problems = append(problems, "uri must not be empty")
	} else if u, err := url.Parse(uri); err != nil || u.Scheme == "" {
		problems = append(problems, fmt.Sprintf("uri %q is not a valid resource identifier", uri))
	}
	if len(problems) > 0 {
		return nil, &rpc.BadArgumentError{Method: method, Problems: problems}
	}

	doc, ok := h.docs.GetModel(uri)
	if !ok {
		return nil, &rpc.BadArgumentError{Method: method, Problems: []string{fmt.Sprintf("no document for uri %q", uri)}}
	}
	return doc, nil
}

func validPosition(method string, pos protocol.Position) error {
	var problems []string
	if pos.Line < 0 {
		problems = append(problems, "position line must be non-negative")
	}
	if pos.Character < 0 {
		problems = append(problems, "position character must be non-negative")
	}
	if len(problems) > 0 {
		return &rpc.BadArgumentError{Method: method, Problems: problems}
	}
	return nil
}

// WorkspaceSymbols fans a query out to every workspace-symbol provider. The
// query is an ordinary string; '' and '*' get no special treatment.
func (h *Host) WorkspaceSymbols(ctx context.Context, query string) ([]protocol.SymbolInformation, error) {
	regs := h.workspaceSymbol.all()
	results := fanOut(ctx, h, regs, func(ctx context.Context, reg registration[WorkspaceSymbolProvider]) ([]protocol.SymbolInformation, error) {
		return reg.provider.ProvideWorkspaceSymbols(ctx, query)
	})
	return concatSettled(h, "workspaceSymbol", h.workspaceSymbol.live, results), nil
}

// Definition aggregates definition locations for a position.
func (h *Host) Definition(ctx context.Context, uri string, pos protocol.Position) ([]protocol.Location, error) {
	doc, err := h.model("definition", uri)
	if err != nil {
		return nil, err
	}
	if err := validPosition("definition", pos); err != nil {
		return nil, err
	}

	regs := h.definition.snapshot(uri, doc.LanguageID)
	results := fanOut(ctx, h, regs, func(ctx context.Context, reg registration[DefinitionProvider]) ([]protocol.Location, error) {
		return reg.provider.ProvideDefinition(ctx, doc, pos)
	})
	return concatSettled(h, "definition", h.definition.live, results), nil
}

// TypeDefinition aggregates type-definition locations for a position.
func (h *Host) TypeDefinition(ctx context.Context, uri string, pos protocol.Position) ([]protocol.Location, error) {
	doc, err := h.model("typeDefinition", uri)
	if err != nil {
		return nil, err
	}
	if err := validPosition("typeDefinition", pos); err != nil {
		return nil, err
	}

	regs := h.typeDefinition.snapshot(uri, doc.LanguageID)
	results := fanOut(ctx, h, regs, func(ctx context.Context, reg registration[TypeDefinitionProvider]) ([]protocol.Location, error) {
		return reg.provider.ProvideTypeDefinition(ctx, doc, pos)
	})
	return concatSettled(h, "typeDefinition", h.typeDefinition.live, results), nil
}

// References aggregates reference locations for a position.
func (h *Host) References(ctx context.Context, uri string, pos protocol.Position, includeDeclaration bool) ([]protocol.Location, error) {
	doc, err := h.model("references", uri)
	if err != nil {
		return nil, err
	}
	if err := validPosition("references", pos); err != nil {
		return nil, err
	}

	regs := h.reference.snapshot(uri, doc.LanguageID)
	results := fanOut(ctx, h, regs, func(ctx context.Context, reg registration[ReferenceProvider]) ([]protocol.Location, error) {
		return reg.provider.ProvideReferences(ctx, doc, pos, includeDeclaration)
	})
	return concatSettled(h, "references", h.reference.live, results), nil
}

// DocumentSymbols aggregates document symbols and orders them by ascending
// source position regardless of provider. Outline consumers expect position
// order, not provider order.
func (h *Host) DocumentSymbols(ctx context.Context, uri string) ([]protocol.SymbolInformation, error) {
	doc, err := h.model("documentSymbols", uri)
	if err != nil {
		return nil, err
	}

	regs := h.documentSymbol.snapshot(uri, doc.LanguageID)
	results := fanOut(ctx, h, regs, func(ctx context.Context, reg registration[DocumentSymbolProvider]) ([]protocol.SymbolInformation, error) {
		return reg.provider.ProvideDocumentSymbols(ctx, doc)
	})
	merged := concatSettled(h, "documentSymbols", h.documentSymbol.live, results)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Location.Range.Start.Before(merged[j].Location.Range.Start)
	})
	return merged, nil
}

// Completions aggregates completion lists into one CompletionList. The
// merged list is incomplete as soon as any contributing provider declared
// itself incomplete. Items without an explicit textEdit or range get the
// word range under the invocation position as their default edit range.
func (h *Host) Completions(ctx context.Context, uri string, pos protocol.Position, triggers []string) (protocol.CompletionList, error) {
	doc, err := h.model("completions", uri)
	if err != nil {
		return protocol.CompletionList{}, err
	}
	if err := validPosition("completions", pos); err != nil {
		return protocol.CompletionList{}, err
	}

	regs := h.completion.snapshot(uri, doc.LanguageID)
	if len(triggers) > 0 {
		regs = filterByTriggers(regs, triggers)
	}

	results := fanOut(ctx, h, regs, func(ctx context.Context, reg registration[CompletionProvider]) (protocol.CompletionList, error) {
		return reg.provider.ProvideCompletionItems(ctx, doc, pos)
	})

	merged := protocol.CompletionList{Items: []protocol.CompletionItem{}}
	var errs error
	for _, s := range results {
		if s.err != nil {
			errs = multierr.Append(errs, s.err)
			continue
		}
		if !h.completion.live(s.handle) {
			continue
		}
		if s.value.IsIncomplete {
			merged.IsIncomplete = true
		}
		for _, item := range s.value.Items {
			merged.Items = append(merged.Items, h.defaultEdit(doc, pos, item))
		}
	}
	if errs != nil {
		h.logger.Warn("Provider failures during fan-out",
			zap.String("capability", "completions"),
			zap.Error(errs),
		)
	}
	return merged, nil
}

// defaultEdit applies the textEdit precedence rule: an explicit textEdit
// wins; a bare range plus insertText is surfaced for the caller to apply
// itself; an item with neither gets the word range under pos, or an empty
// range at pos when the cursor is not on a word.
func (h *Host) defaultEdit(doc *document.Model, pos protocol.Position, item protocol.CompletionItem) protocol.CompletionItem {
	if item.TextEdit != nil || item.Range != nil {
		return item
	}
	wr, ok := doc.WordRangeAt(pos)
	if !ok {
		wr = protocol.Range{Start: pos, End: pos}
	}
	item.Range = &wr
	if item.InsertText == "" {
		item.InsertText = item.Label
	}
	return item
}

// filterByTriggers keeps providers registered for at least one of the given
// trigger characters; providers with no declared triggers always participate.
func filterByTriggers(regs []registration[CompletionProvider], triggers []string) []registration[CompletionProvider] {
	out := regs[:0:0]
	for _, reg := range regs {
		if len(reg.triggers) == 0 || intersects(reg.triggers, triggers) {
			out = append(out, reg)
		}
	}
	return out
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// CodeActions aggregates code actions for a range.
func (h *Host) CodeActions(ctx context.Context, uri string, rng protocol.Range) ([]protocol.CodeAction, error) {
	doc, err := h.model("codeActions", uri)
	if err != nil {
		return nil, err
	}

	regs := h.codeAction.snapshot(uri, doc.LanguageID)
	results := fanOut(ctx, h, regs, func(ctx context.Context, reg registration[CodeActionProvider]) ([]protocol.CodeAction, error) {
		return reg.provider.ProvideCodeActions(ctx, doc, rng)
	})
	return concatSettled(h, "codeActions", h.codeAction.live, results), nil
}

// CodeLenses aggregates code lenses. The first resolveCount unresolved
// lenses in merged order are eagerly completed through their provider's
// resolver when it implements one.
func (h *Host) CodeLenses(ctx context.Context, uri string, resolveCount int) ([]protocol.CodeLens, error) {
	doc, err := h.model("codeLenses", uri)
	if err != nil {
		return nil, err
	}

	regs := h.codeLens.snapshot(uri, doc.LanguageID)
	results := fanOut(ctx, h, regs, func(ctx context.Context, reg registration[CodeLensProvider]) ([]protocol.CodeLens, error) {
		return reg.provider.ProvideCodeLenses(ctx, doc)
	})

	merged := []protocol.CodeLens{}
	var errs error
	remaining := resolveCount
	for i, s := range results {
		if s.err != nil {
			errs = multierr.Append(errs, s.err)
			continue
		}
		if !h.codeLens.live(s.handle) {
			continue
		}
		resolver, canResolve := any(regs[i].provider).(CodeLensResolver)
		for _, lens := range s.value {
			if remaining > 0 && !lens.IsResolved && canResolve {
				resolved, err := resolver.ResolveCodeLens(ctx, lens)
				if err != nil {
					errs = multierr.Append(errs, err)
				} else {
					lens = resolved
					lens.IsResolved = true
				}
				remaining--
			}
			merged = append(merged, lens)
		}
	}
	if errs != nil {
		h.logger.Warn("Provider failures during fan-out",
			zap.String("capability", "codeLenses"),
			zap.Error(errs),
		)
	}
	return merged, nil
}

// DocumentLinks aggregates document links.
func (h *Host) DocumentLinks(ctx context.Context, uri string) ([]protocol.DocumentLink, error) {
	doc, err := h.model("documentLinks", uri)
	if err != nil {
		return nil, err
	}

	regs := h.documentLink.snapshot(uri, doc.LanguageID)
	results := fanOut(ctx, h, regs, func(ctx context.Context, reg registration[DocumentLinkProvider]) ([]protocol.DocumentLink, error) {
		return reg.provider.ProvideDocumentLinks(ctx, doc)
	})
	return concatSettled(h, "documentLinks", h.documentLink.live, results), nil
}
