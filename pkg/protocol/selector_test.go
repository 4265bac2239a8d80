package protocol

import "testing"

func TestDocumentFilterLanguage(t *testing.T) {
	f := DocumentFilter{Language: "go"}

	if !f.Matches("file:///src/main.go", "go") {
		t.Error("filter should match document with same language")
	}
	if f.Matches("file:///src/main.py", "python") {
		t.Error("filter should not match document with different language")
	}
}

func TestDocumentFilterScheme(t *testing.T) {
	f := DocumentFilter{Scheme: "file"}

	if !f.Matches("file:///a.txt", "plaintext") {
		t.Error("filter should match file scheme")
	}
	if f.Matches("untitled:///a.txt", "plaintext") {
		t.Error("filter should not match untitled scheme")
	}
}

func TestDocumentFilterPattern(t *testing.T) {
	f := DocumentFilter{Pattern: "**/*.sql"}

	if !f.Matches("file:///queries/users.sql", "sql") {
		t.Error("glob should match nested sql file")
	}
	if f.Matches("file:///queries/users.go", "sql") {
		t.Error("glob should not match go file")
	}
}

func TestDocumentFilterEmptyMatchesAll(t *testing.T) {
	var f DocumentFilter

	if !f.Matches("anything://x/y", "whatever") {
		t.Error("zero filter should match everything")
	}
}

func TestDocumentSelectorAnyFilter(t *testing.T) {
	s := DocumentSelector{
		{Language: "go"},
		{Language: "python"},
	}

	if !s.Matches("file:///a.py", "python") {
		t.Error("selector should match when any filter matches")
	}
	if s.Matches("file:///a.rb", "ruby") {
		t.Error("selector should not match when no filter matches")
	}
}

func TestDocumentSelectorEmpty(t *testing.T) {
	var s DocumentSelector

	if !s.Matches("file:///a.rb", "ruby") {
		t.Error("empty selector should match every document")
	}
}
