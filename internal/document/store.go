// Package document exposes the text-document collaborator the bridge
// consumes. The bridge only reads current text, version, language id, line
// content and EOL sequence; the full buffer model lives outside this module.
package document

import (
	"strings"
	"sync"
	"unicode"

	"github.com/lspkit/extbridge/pkg/protocol"
)

// Store supplies document models by URI.
type Store interface {
	// GetModel returns the current model for uri, or false when no document
	// with that identity is open.
	GetModel(uri string) (*Model, bool)
}

// Model is a read-only snapshot of an open text document.
type Model struct {
	URI        string
	LanguageID string
	Version    int

	lines []string
	eol   string
}

// NewModel builds a model from raw text, detecting the EOL sequence.
func NewModel(uri, languageID string, version int, text string) *Model {
	eol := "\n"
	if strings.Contains(text, "\r\n") {
		eol = "\r\n"
	}
	return &Model{
		URI:        uri,
		LanguageID: languageID,
		Version:    version,
		lines:      strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n"),
		eol:        eol,
	}
}

// LineCount returns the number of lines in the document.
func (m *Model) LineCount() int {
	return len(m.lines)
}

// Line returns the content of the given 0-based line, without its EOL.
// Out-of-range lines are empty.
func (m *Model) Line(n int) string {
	if n < 0 || n >= len(m.lines) {
		return ""
	}
	return m.lines[n]
}

// EOL returns the document's end-of-line sequence.
func (m *Model) EOL() string {
	return m.eol
}

// Text reassembles the full document text.
func (m *Model) Text() string {
	return strings.Join(m.lines, m.eol)
}

// WordRangeAt returns the range of the word under pos, or false when pos is
// not on a word character. Used to default completion edit ranges when a
// provider supplies neither a textEdit nor an explicit range. Character
// offsets count runes, so words containing non-ASCII letters resolve to the
// same range a caller would see when iterating the line rune by rune.
func (m *Model) WordRangeAt(pos protocol.Position) (protocol.Range, bool) {
	line := []rune(m.Line(pos.Line))
	if pos.Character < 0 || pos.Character > len(line) {
		return protocol.Range{}, false
	}

	start := pos.Character
	for start > 0 && isWordRune(line[start-1]) {
		start--
	}
	end := pos.Character
	for end < len(line) && isWordRune(line[end]) {
		end++
	}
	if start == end {
		return protocol.Range{}, false
	}
	return protocol.NewRange(pos.Line, start, pos.Line, end), true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// MemoryStore is an in-memory Store used by the composition root and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	models map[string]*Model
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{models: make(map[string]*Model)}
}

// Put adds or replaces a document model.
func (s *MemoryStore) Put(m *Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[m.URI] = m
}

// Remove drops a document model.
func (s *MemoryStore) Remove(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.models, uri)
}

// GetModel implements Store.
func (s *MemoryStore) GetModel(uri string) (*Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[uri]
	return m, ok
}
