package wire

import (
	"reflect"
	"testing"

	"github.com/lspkit/extbridge/pkg/protocol"
)

func roundTrip(t *testing.T, c *Codec, v any) any {
	t.Helper()

	wv, err := c.ToWire(v)
	if err != nil {
		t.Fatalf("ToWire(%v) failed: %v", v, err)
	}

	// The envelope itself must survive serialization.
	data, err := Marshal(wv)
	if err != nil {
		t.Fatalf("Marshal envelope failed: %v", err)
	}
	var decoded Value
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal envelope failed: %v", err)
	}

	out, err := c.FromWire(decoded)
	if err != nil {
		t.Fatalf("FromWire failed: %v", err)
	}
	return out
}

func TestRoundTripPosition(t *testing.T) {
	c := NewCodec("test")
	in := protocol.Position{Line: 3, Character: 12}

	out := roundTrip(t, c, in)
	if out != in {
		t.Errorf("round-trip mismatch: got %v, want %v", out, in)
	}
}

func TestRoundTripRange(t *testing.T) {
	c := NewCodec("test")
	in := protocol.NewRange(0, 1, 0, 3)

	out := roundTrip(t, c, in)
	if out != in {
		t.Errorf("round-trip mismatch: got %v, want %v", out, in)
	}
}

func TestRoundTripLocation(t *testing.T) {
	c := NewCodec("test")
	in := protocol.Location{URI: "file:///src/a.go", Range: protocol.NewRange(1, 0, 1, 5)}

	out := roundTrip(t, c, in)
	if out != in {
		t.Errorf("round-trip mismatch: got %v, want %v", out, in)
	}
}

func TestRoundTripSymbolInformation(t *testing.T) {
	c := NewCodec("test")
	in := protocol.SymbolInformation{
		Name:          "testing",
		Kind:          protocol.SymbolKindClass,
		ContainerName: "pkg",
		Location:      protocol.Location{URI: "file:///a.go", Range: protocol.NewRange(0, 1, 0, 3)},
	}

	out := roundTrip(t, c, in)
	if out != in {
		t.Errorf("round-trip mismatch: got %v, want %v", out, in)
	}
}

func TestRoundTripCompletionItem(t *testing.T) {
	c := NewCodec("test")
	r := protocol.NewRange(0, 1, 0, 4)
	in := protocol.CompletionItem{
		Label:      "ccc",
		Kind:       protocol.CompletionItemKindKeyword,
		InsertText: "snippet-text",
		IsSnippet:  true,
		Range:      &r,
		SortText:   "0001",
		FilterText: "ccc",
	}

	out := roundTrip(t, c, in).(protocol.CompletionItem)
	if out.Label != in.Label || out.Kind != in.Kind || out.InsertText != in.InsertText {
		t.Errorf("round-trip mismatch: got %+v, want %+v", out, in)
	}
	if out.TextEdit != nil {
		t.Error("textEdit should stay unset")
	}
	if out.Range == nil || *out.Range != r {
		t.Errorf("range mismatch: got %v, want %v", out.Range, r)
	}
}

func TestRoundTripCompletionList(t *testing.T) {
	c := NewCodec("test")
	in := protocol.CompletionList{
		IsIncomplete: true,
		Items: []protocol.CompletionItem{
			{Label: "a"},
			{Label: "b", TextEdit: &protocol.TextEdit{Range: protocol.NewRange(0, 4, 0, 8), NewText: "b"}},
		},
	}

	out := roundTrip(t, c, in).(protocol.CompletionList)
	if !out.IsIncomplete {
		t.Error("isIncomplete should survive the round-trip")
	}
	if len(out.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(out.Items))
	}
	if out.Items[1].TextEdit == nil || out.Items[1].TextEdit.Range != protocol.NewRange(0, 4, 0, 8) {
		t.Errorf("textEdit mismatch: %+v", out.Items[1].TextEdit)
	}
}

func TestRoundTripCommandWithRichArguments(t *testing.T) {
	c := NewCodec("test")
	in := protocol.Command{
		Title: "Do It",
		ID:    "ext.doIt",
		Arguments: []any{
			protocol.Position{Line: 1, Character: 2},
			"plain",
			float64(42),
			true,
		},
	}

	out := roundTrip(t, c, in).(protocol.Command)
	if out.Title != in.Title || out.ID != in.ID {
		t.Errorf("descriptor mismatch: got %+v", out)
	}
	if len(out.Arguments) != 4 {
		t.Fatalf("expected 4 arguments, got %d", len(out.Arguments))
	}
	if out.Arguments[0] != (protocol.Position{Line: 1, Character: 2}) {
		t.Errorf("rich argument lost type identity: %T %v", out.Arguments[0], out.Arguments[0])
	}
	if out.Arguments[1] != "plain" || out.Arguments[2] != float64(42) || out.Arguments[3] != true {
		t.Errorf("opaque JSON-safe arguments not echoed unchanged: %v", out.Arguments)
	}
}

func TestRoundTripCodeLens(t *testing.T) {
	c := NewCodec("test")
	in := protocol.CodeLens{
		Range:      protocol.NewRange(2, 0, 2, 1),
		Command:    &protocol.Command{Title: "refs", ID: "ext.refs"},
		IsResolved: true,
	}

	out := roundTrip(t, c, in).(protocol.CodeLens)
	if out.Range != in.Range || out.IsResolved != in.IsResolved {
		t.Errorf("round-trip mismatch: got %+v", out)
	}
	if out.Command == nil || out.Command.ID != "ext.refs" {
		t.Errorf("command mismatch: %+v", out.Command)
	}
}

func TestRoundTripDocumentLink(t *testing.T) {
	c := NewCodec("test")
	in := protocol.DocumentLink{Range: protocol.NewRange(0, 0, 0, 7), Target: "https://example.com"}

	out := roundTrip(t, c, in)
	if out != in {
		t.Errorf("round-trip mismatch: got %v, want %v", out, in)
	}
}

func TestOpaqueValueBecomesPlaceholder(t *testing.T) {
	c := NewCodec("extension")

	// A channel can never be serialized.
	wv, err := c.ToWire(make(chan int))
	if err != nil {
		t.Fatalf("ToWire should substitute a placeholder, not fail: %v", err)
	}
	if wv.Kind != KindOpaqueRef {
		t.Fatalf("expected kind %s, got %s", KindOpaqueRef, wv.Kind)
	}

	out, err := c.FromWire(wv)
	if err != nil {
		t.Fatalf("FromWire failed: %v", err)
	}
	ref, ok := out.(OpaqueRef)
	if !ok {
		t.Fatalf("expected OpaqueRef, got %T", out)
	}
	if ref.Namespace != "extension" {
		t.Errorf("placeholder should carry the sender namespace, got %q", ref.Namespace)
	}
	if ref.Token == "" {
		t.Error("placeholder token should be non-empty")
	}
}

func TestOpaqueTokenStablePerValue(t *testing.T) {
	c := NewCodec("extension")
	ch := make(chan int)

	token := func(v any) string {
		t.Helper()
		wv, err := c.ToWire(v)
		if err != nil {
			t.Fatalf("ToWire failed: %v", err)
		}
		out, err := c.FromWire(wv)
		if err != nil {
			t.Fatalf("FromWire failed: %v", err)
		}
		ref, ok := out.(OpaqueRef)
		if !ok {
			t.Fatalf("expected OpaqueRef, got %T", out)
		}
		return ref.Token
	}

	first := token(ch)
	if second := token(ch); second != first {
		t.Errorf("re-encoding the same value minted a new token: %q vs %q", first, second)
	}
	if other := token(make(chan int)); other == first {
		t.Error("distinct values should not share a token")
	}
}

func TestNilRoundTrip(t *testing.T) {
	c := NewCodec("test")

	out := roundTrip(t, c, nil)
	if out != nil {
		t.Errorf("nil should round-trip to nil, got %v", out)
	}
}

func TestHeterogeneousList(t *testing.T) {
	c := NewCodec("test")
	in := []any{protocol.Position{Line: 0, Character: 1}, "x"}

	out := roundTrip(t, c, in).([]any)
	if !reflect.DeepEqual(out, in) {
		t.Errorf("list round-trip mismatch: got %v, want %v", out, in)
	}
}

func TestUnknownKind(t *testing.T) {
	c := NewCodec("test")

	_, err := c.FromWire(Value{Kind: "mystery"})
	if err == nil {
		t.Fatal("FromWire should fail for an unknown kind")
	}
	if _, ok := err.(*UnknownKindError); !ok {
		t.Errorf("expected UnknownKindError, got %T", err)
	}
}

func TestDecodeLocationsNormalizesSingle(t *testing.T) {
	single := []byte(`{"uri":"file:///a.go","range":{"start":{"line":1,"character":2},"end":{"line":1,"character":5}}}`)

	locs, err := DecodeLocations(single)
	if err != nil {
		t.Fatalf("DecodeLocations failed: %v", err)
	}
	if len(locs) != 1 || locs[0].URI != "file:///a.go" {
		t.Errorf("single location not normalized to sequence: %v", locs)
	}
}

func TestDecodeLocationsSequence(t *testing.T) {
	many := []byte(`[{"uri":"file:///a.go","range":{"start":{"line":0,"character":0},"end":{"line":0,"character":0}}},{"uri":"file:///b.go","range":{"start":{"line":1,"character":0},"end":{"line":1,"character":0}}}]`)

	locs, err := DecodeLocations(many)
	if err != nil {
		t.Fatalf("DecodeLocations failed: %v", err)
	}
	if len(locs) != 2 || locs[1].URI != "file:///b.go" {
		t.Errorf("sequence decode mismatch: %v", locs)
	}
}

func TestDecodeLocationsNull(t *testing.T) {
	locs, err := DecodeLocations([]byte("null"))
	if err != nil {
		t.Fatalf("DecodeLocations failed: %v", err)
	}
	if len(locs) != 0 {
		t.Errorf("null should decode to an empty sequence, got %v", locs)
	}
}
