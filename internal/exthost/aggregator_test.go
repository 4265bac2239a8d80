package exthost

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/lspkit/extbridge/internal/document"
	"github.com/lspkit/extbridge/internal/rpc"
	"github.com/lspkit/extbridge/pkg/protocol"
)

const testURI = "file:///src/main.go"

func newTestHost(t *testing.T) *Host {
	t.Helper()

	docs := document.NewMemoryStore()
	docs.Put(document.NewModel(testURI, "go", 1, "package main\n\nfunc main() {}\n"))
	return NewHost(docs, 8, zaptest.NewLogger(t))
}

// Function adapters for the provider interfaces.

type definitionFunc func(ctx context.Context, doc *document.Model, pos protocol.Position) ([]protocol.Location, error)

func (f definitionFunc) ProvideDefinition(ctx context.Context, doc *document.Model, pos protocol.Position) ([]protocol.Location, error) {
	return f(ctx, doc, pos)
}

type workspaceSymbolFunc func(ctx context.Context, query string) ([]protocol.SymbolInformation, error)

func (f workspaceSymbolFunc) ProvideWorkspaceSymbols(ctx context.Context, query string) ([]protocol.SymbolInformation, error) {
	return f(ctx, query)
}

type documentSymbolFunc func(ctx context.Context, doc *document.Model) ([]protocol.SymbolInformation, error)

func (f documentSymbolFunc) ProvideDocumentSymbols(ctx context.Context, doc *document.Model) ([]protocol.SymbolInformation, error) {
	return f(ctx, doc)
}

type completionFunc func(ctx context.Context, doc *document.Model, pos protocol.Position) (protocol.CompletionList, error)

func (f completionFunc) ProvideCompletionItems(ctx context.Context, doc *document.Model, pos protocol.Position) (protocol.CompletionList, error) {
	return f(ctx, doc, pos)
}

type documentLinkFunc func(ctx context.Context, doc *document.Model) ([]protocol.DocumentLink, error)

func (f documentLinkFunc) ProvideDocumentLinks(ctx context.Context, doc *document.Model) ([]protocol.DocumentLink, error) {
	return f(ctx, doc)
}

func locAt(line, char int) protocol.Location {
	return protocol.Location{URI: testURI, Range: protocol.NewRange(line, char, line, char)}
}

func staticDefinitions(locs ...protocol.Location) DefinitionProvider {
	return definitionFunc(func(context.Context, *document.Model, protocol.Position) ([]protocol.Location, error) {
		return locs, nil
	})
}

func TestDefinitionNoProviders(t *testing.T) {
	h := newTestHost(t)

	locs, err := h.Definition(context.Background(), testURI, protocol.Position{})
	if err != nil {
		t.Fatalf("zero providers must yield an empty result, not an error: %v", err)
	}
	if len(locs) != 0 {
		t.Errorf("expected empty result, got %v", locs)
	}
}

func TestDefinitionMostRecentRegistrationFirst(t *testing.T) {
	h := newTestHost(t)

	h.RegisterDefinitionProvider(nil, staticDefinitions(locAt(1, 0), locAt(1, 1)))
	h.RegisterDefinitionProvider(nil, staticDefinitions(locAt(2, 0)))

	locs, err := h.Definition(context.Background(), testURI, protocol.Position{})
	if err != nil {
		t.Fatal(err)
	}
	if len(locs) != 3 {
		t.Fatalf("expected 3 merged locations, got %d", len(locs))
	}
	// The later registration takes precedence.
	want := []protocol.Location{locAt(2, 0), locAt(1, 0), locAt(1, 1)}
	for i := range want {
		if locs[i] != want[i] {
			t.Errorf("position %d: got %v, want %v", i, locs[i], want[i])
		}
	}
}

func TestDefinitionProviderFailureContained(t *testing.T) {
	h := newTestHost(t)

	h.RegisterDefinitionProvider(nil, staticDefinitions(locAt(1, 0)))
	h.RegisterDefinitionProvider(nil, definitionFunc(func(context.Context, *document.Model, protocol.Position) ([]protocol.Location, error) {
		return nil, fmt.Errorf("provider exploded")
	}))

	locs, err := h.Definition(context.Background(), testURI, protocol.Position{})
	if err != nil {
		t.Fatalf("a failing provider must not fail the merged call: %v", err)
	}
	if len(locs) != 1 || locs[0] != locAt(1, 0) {
		t.Errorf("the healthy provider's contribution should survive, got %v", locs)
	}
}

func TestDefinitionSelectorFiltering(t *testing.T) {
	h := newTestHost(t)

	h.RegisterDefinitionProvider(protocol.DocumentSelector{{Language: "go"}}, staticDefinitions(locAt(1, 0)))
	h.RegisterDefinitionProvider(protocol.DocumentSelector{{Language: "python"}}, staticDefinitions(locAt(9, 9)))

	locs, err := h.Definition(context.Background(), testURI, protocol.Position{})
	if err != nil {
		t.Fatal(err)
	}
	if len(locs) != 1 || locs[0] != locAt(1, 0) {
		t.Errorf("only providers matching the document should participate, got %v", locs)
	}
}

func TestDefinitionUnknownDocument(t *testing.T) {
	h := newTestHost(t)

	invoked := atomic.Bool{}
	h.RegisterDefinitionProvider(nil, definitionFunc(func(context.Context, *document.Model, protocol.Position) ([]protocol.Location, error) {
		invoked.Store(true)
		return nil, nil
	}))

	_, err := h.Definition(context.Background(), "file:///nope.go", protocol.Position{})
	var bad *rpc.BadArgumentError
	if !errors.As(err, &bad) {
		t.Fatalf("expected BadArgumentError, got %T: %v", err, err)
	}
	if invoked.Load() {
		t.Error("validation must reject before any provider is invoked")
	}
}

func TestDefinitionInvalidURI(t *testing.T) {
	h := newTestHost(t)

	_, err := h.Definition(context.Background(), "", protocol.Position{})
	var bad *rpc.BadArgumentError
	if !errors.As(err, &bad) {
		t.Fatalf("expected BadArgumentError, got %T", err)
	}
}

func TestDisposalExcludesProvider(t *testing.T) {
	h := newTestHost(t)

	keep := h.RegisterDefinitionProvider(nil, staticDefinitions(locAt(1, 0)))
	drop := h.RegisterDefinitionProvider(nil, staticDefinitions(locAt(2, 0)))
	_ = keep

	ctx := context.Background()
	locs, err := h.Definition(ctx, testURI, protocol.Position{})
	if err != nil {
		t.Fatal(err)
	}
	if len(locs) != 2 {
		t.Fatalf("both providers should contribute before disposal, got %v", locs)
	}

	drop.Dispose()
	drop.Dispose() // idempotent

	locs, err = h.Definition(ctx, testURI, protocol.Position{})
	if err != nil {
		t.Fatal(err)
	}
	if len(locs) != 1 || locs[0] != locAt(1, 0) {
		t.Errorf("disposed provider must be excluded from subsequent fan-outs, got %v", locs)
	}
}

func TestDisposalDuringFanOutDropsResult(t *testing.T) {
	h := newTestHost(t)

	release := make(chan struct{})
	var reg *Registration
	reg = h.RegisterDefinitionProvider(nil, definitionFunc(func(context.Context, *document.Model, protocol.Position) ([]protocol.Location, error) {
		// Dispose while this invocation is in flight; its result must be
		// dropped at merge rather than included.
		reg.Dispose()
		close(release)
		return []protocol.Location{locAt(5, 5)}, nil
	}))
	h.RegisterDefinitionProvider(nil, staticDefinitions(locAt(1, 0)))

	locs, err := h.Definition(context.Background(), testURI, protocol.Position{})
	if err != nil {
		t.Fatal(err)
	}
	<-release
	if len(locs) != 1 || locs[0] != locAt(1, 0) {
		t.Errorf("in-flight result of a disposed registration must be dropped, got %v", locs)
	}
}

func TestWorkspaceSymbolsPlainQueries(t *testing.T) {
	h := newTestHost(t)

	var queries []string
	h.RegisterWorkspaceSymbolProvider(workspaceSymbolFunc(func(ctx context.Context, query string) ([]protocol.SymbolInformation, error) {
		queries = append(queries, query)
		return []protocol.SymbolInformation{{Name: "testing", Kind: protocol.SymbolKindClass, Location: locAt(0, 0)}}, nil
	}))

	ctx := context.Background()
	for _, q := range []string{"", "*", "foobar"} {
		syms, err := h.WorkspaceSymbols(ctx, q)
		if err != nil {
			t.Fatalf("query %q failed: %v", q, err)
		}
		if len(syms) != 1 {
			t.Errorf("query %q: expected 1 symbol, got %d", q, len(syms))
		}
	}
	if len(queries) != 3 || queries[0] != "" || queries[1] != "*" {
		t.Errorf("queries must be forwarded verbatim with no special-casing, got %v", queries)
	}
}

func TestDocumentSymbolsSortedByPosition(t *testing.T) {
	h := newTestHost(t)

	// Registered first, returns the later position.
	h.RegisterDocumentSymbolProvider(nil, documentSymbolFunc(func(context.Context, *document.Model) ([]protocol.SymbolInformation, error) {
		return []protocol.SymbolInformation{{
			Name:     "later",
			Kind:     protocol.SymbolKindFunction,
			Location: protocol.Location{URI: testURI, Range: protocol.NewRange(1, 0, 1, 0)},
		}}, nil
	}))
	// Registered second (higher precedence), returns the earlier position.
	h.RegisterDocumentSymbolProvider(nil, documentSymbolFunc(func(context.Context, *document.Model) ([]protocol.SymbolInformation, error) {
		return []protocol.SymbolInformation{{
			Name:     "earlier",
			Kind:     protocol.SymbolKindVariable,
			Location: protocol.Location{URI: testURI, Range: protocol.NewRange(0, 1, 0, 3)},
		}}, nil
	}))

	syms, err := h.DocumentSymbols(context.Background(), testURI)
	if err != nil {
		t.Fatal(err)
	}
	if len(syms) != 2 {
		t.Fatalf("expected 2 symbols, got %d", len(syms))
	}
	if syms[0].Name != "earlier" || syms[1].Name != "later" {
		t.Errorf("document symbols must be ordered by source position, got %v then %v", syms[0].Name, syms[1].Name)
	}
}

func TestCompletionsMergeIncomplete(t *testing.T) {
	h := newTestHost(t)

	h.RegisterCompletionProvider(nil, completionFunc(func(context.Context, *document.Model, protocol.Position) (protocol.CompletionList, error) {
		return protocol.CompletionList{Items: []protocol.CompletionItem{{Label: "complete"}}}, nil
	}))
	h.RegisterCompletionProvider(nil, completionFunc(func(context.Context, *document.Model, protocol.Position) (protocol.CompletionList, error) {
		return protocol.CompletionList{IsIncomplete: true, Items: []protocol.CompletionItem{{Label: "partial"}}}, nil
	}))

	list, err := h.Completions(context.Background(), testURI, protocol.Position{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !list.IsIncomplete {
		t.Error("one incomplete contributor must mark the merged list incomplete")
	}
	if len(list.Items) != 2 {
		t.Errorf("expected 2 merged items, got %d", len(list.Items))
	}
}

func TestCompletionsTextEditPrecedence(t *testing.T) {
	h := newTestHost(t)

	explicitEdit := &protocol.TextEdit{Range: protocol.NewRange(0, 4, 0, 8), NewText: "edited"}
	bareRange := protocol.NewRange(0, 1, 0, 4)

	h.RegisterCompletionProvider(nil, completionFunc(func(context.Context, *document.Model, protocol.Position) (protocol.CompletionList, error) {
		return protocol.CompletionList{Items: []protocol.CompletionItem{
			{Label: "with-edit", TextEdit: explicitEdit},
			{Label: "with-range", Range: &bareRange, InsertText: "${1:snippet}", IsSnippet: true},
			{Label: "bare"},
		}}, nil
	}))

	// Position sits inside "package" on line 0 of the test document.
	list, err := h.Completions(context.Background(), testURI, protocol.Position{Line: 0, Character: 2}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(list.Items))
	}

	withEdit := list.Items[0]
	if withEdit.TextEdit == nil || withEdit.TextEdit.Range != protocol.NewRange(0, 4, 0, 8) {
		t.Errorf("explicit textEdit must win: %+v", withEdit.TextEdit)
	}

	withRange := list.Items[1]
	if withRange.TextEdit != nil {
		t.Error("an item with only range+insertText must surface textEdit unset")
	}
	if withRange.Range == nil || *withRange.Range != bareRange {
		t.Errorf("explicit range must be preserved for the caller to apply, got %v", withRange.Range)
	}
	if withRange.InsertText != "${1:snippet}" {
		t.Errorf("insertText must be preserved, got %q", withRange.InsertText)
	}

	bare := list.Items[2]
	if bare.Range == nil {
		t.Fatal("an item with neither textEdit nor range must get the default word range")
	}
	if *bare.Range != protocol.NewRange(0, 0, 0, 7) {
		t.Errorf("default range should cover the word under the cursor, got %v", *bare.Range)
	}
	if bare.InsertText != "bare" {
		t.Errorf("default insert text should fall back to the label, got %q", bare.InsertText)
	}
}

func TestCompletionsTriggerFiltering(t *testing.T) {
	h := newTestHost(t)

	h.RegisterCompletionProvider(nil, completionFunc(func(context.Context, *document.Model, protocol.Position) (protocol.CompletionList, error) {
		return protocol.CompletionList{Items: []protocol.CompletionItem{{Label: "dot"}}}, nil
	}), ".")
	h.RegisterCompletionProvider(nil, completionFunc(func(context.Context, *document.Model, protocol.Position) (protocol.CompletionList, error) {
		return protocol.CompletionList{Items: []protocol.CompletionItem{{Label: "colon"}}}, nil
	}), ":")
	h.RegisterCompletionProvider(nil, completionFunc(func(context.Context, *document.Model, protocol.Position) (protocol.CompletionList, error) {
		return protocol.CompletionList{Items: []protocol.CompletionItem{{Label: "always"}}}, nil
	}))

	list, err := h.Completions(context.Background(), testURI, protocol.Position{}, []string{"."})
	if err != nil {
		t.Fatal(err)
	}
	labels := map[string]bool{}
	for _, item := range list.Items {
		labels[item.Label] = true
	}
	if !labels["dot"] || !labels["always"] || labels["colon"] {
		t.Errorf("trigger filter mismatch: %v", labels)
	}
}

func TestCompletionsNoProviders(t *testing.T) {
	h := newTestHost(t)

	list, err := h.Completions(context.Background(), testURI, protocol.Position{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if list.IsIncomplete {
		t.Error("empty merged list must not be incomplete")
	}
	if len(list.Items) != 0 {
		t.Errorf("expected no items, got %v", list.Items)
	}
}

func TestDocumentLinksConcat(t *testing.T) {
	h := newTestHost(t)

	h.RegisterDocumentLinkProvider(nil, documentLinkFunc(func(context.Context, *document.Model) ([]protocol.DocumentLink, error) {
		return []protocol.DocumentLink{{Range: protocol.NewRange(0, 0, 0, 5), Target: "https://a"}}, nil
	}))
	h.RegisterDocumentLinkProvider(nil, documentLinkFunc(func(context.Context, *document.Model) ([]protocol.DocumentLink, error) {
		// Same-looking entry from an independent provider: both retained.
		return []protocol.DocumentLink{{Range: protocol.NewRange(0, 0, 0, 5), Target: "https://a"}}, nil
	}))

	links, err := h.DocumentLinks(context.Background(), testURI)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 2 {
		t.Errorf("no deduplication is performed, expected 2 links, got %d", len(links))
	}
}
