package protocol

// Core value types exchanged between the host and extension endpoints.
// This package defines shared types used across internal packages and by
// extension authors implementing capability providers.

// Position represents a position in a text document (0-based line and
// character). Positions are ordered lexicographically by (line, character).
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Compare returns -1, 0 or 1 depending on whether p is before, equal to or
// after other.
func (p Position) Compare(other Position) int {
	if p.Line != other.Line {
		if p.Line < other.Line {
			return -1
		}
		return 1
	}
	if p.Character != other.Character {
		if p.Character < other.Character {
			return -1
		}
		return 1
	}
	return 0
}

// Before reports whether p is strictly before other.
func (p Position) Before(other Position) bool {
	return p.Compare(other) < 0
}

// Range represents a range in a text document. Start must not be after End;
// providers are responsible for passing ordered pairs.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// NewRange builds a range from four integers.
func NewRange(startLine, startChar, endLine, endChar int) Range {
	return Range{
		Start: Position{Line: startLine, Character: startChar},
		End:   Position{Line: endLine, Character: endChar},
	}
}

// IsEmpty reports whether the range spans no characters.
func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

// Contains reports whether pos lies within the range (inclusive on both ends).
func (r Range) Contains(pos Position) bool {
	return r.Start.Compare(pos) <= 0 && pos.Compare(r.End) <= 0
}

// Overlaps reports whether two ranges share at least one position. Adjacent
// ranges (end of one equal to start of the other) count as overlapping.
func (r Range) Overlaps(other Range) bool {
	return r.Start.Compare(other.End) <= 0 && other.Start.Compare(r.End) <= 0
}

// Location links a URI to a range inside the identified resource. URI
// equality is string-based.
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// SymbolKind mirrors the LSP SymbolKind enum.
type SymbolKind int

const (
	SymbolKindFile SymbolKind = iota + 1
	SymbolKindModule
	SymbolKindNamespace
	SymbolKindPackage
	SymbolKindClass
	SymbolKindMethod
	SymbolKindProperty
	SymbolKindField
	SymbolKindConstructor
	SymbolKindEnum
	SymbolKindInterface
	SymbolKindFunction
	SymbolKindVariable
	SymbolKindConstant
	SymbolKindString
	SymbolKindNumber
	SymbolKindBoolean
	SymbolKindArray
)

// SymbolInformation describes a symbol found by workspace-symbol or
// document-symbol providers.
type SymbolInformation struct {
	Name          string     `json:"name"`
	Kind          SymbolKind `json:"kind"`
	ContainerName string     `json:"containerName,omitempty"`
	Location      Location   `json:"location"`
}

// TextEdit represents a single text replacement.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// CompletionItemKind mirrors the LSP CompletionItemKind enum.
type CompletionItemKind int

const (
	CompletionItemKindText CompletionItemKind = iota + 1
	CompletionItemKindMethod
	CompletionItemKindFunction
	CompletionItemKindConstructor
	CompletionItemKindField
	CompletionItemKindVariable
	CompletionItemKindClass
	CompletionItemKindInterface
	CompletionItemKindModule
	CompletionItemKindProperty
	CompletionItemKindUnit
	CompletionItemKindValue
	CompletionItemKindEnum
	CompletionItemKindKeyword
	CompletionItemKindSnippet
	CompletionItemKindColor
	CompletionItemKindFile
	CompletionItemKindReference
)

// CompletionItem represents a single completion suggestion. An item carries
// either an explicit TextEdit, or a Range plus InsertText the caller applies
// itself, or neither, in which case the aggregator fills Range with the word
// range under the invocation position.
type CompletionItem struct {
	Label         string             `json:"label"`
	Kind          CompletionItemKind `json:"kind,omitempty"`
	Detail        string             `json:"detail,omitempty"`
	Documentation string             `json:"documentation,omitempty"`
	InsertText    string             `json:"insertText,omitempty"`
	IsSnippet     bool               `json:"isSnippet,omitempty"`
	Range         *Range             `json:"range,omitempty"`
	TextEdit      *TextEdit          `json:"textEdit,omitempty"`
	SortText      string             `json:"sortText,omitempty"`
	FilterText    string             `json:"filterText,omitempty"`
}

// CompletionList is the merged result of a completion invocation.
// IsIncomplete signals that narrowing the filter requires re-invoking
// providers.
type CompletionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []CompletionItem `json:"items"`
}

// Command describes an invocable command by identifier. Arguments are opaque
// and forwarded verbatim to the handler.
type Command struct {
	Title     string `json:"title"`
	ID        string `json:"command"`
	Arguments []any  `json:"arguments,omitempty"`
}

// DiagnosticSeverity mirrors the LSP DiagnosticSeverity enum.
type DiagnosticSeverity int

const (
	SeverityError DiagnosticSeverity = iota + 1
	SeverityWarning
	SeverityInformation
	SeverityHint
)

// Diagnostic represents a problem reported for a range of a document.
type Diagnostic struct {
	Range    Range              `json:"range"`
	Severity DiagnosticSeverity `json:"severity,omitempty"`
	Source   string             `json:"source,omitempty"`
	Message  string             `json:"message"`
}

// CodeActionKind is a hierarchical tag such as "quickfix" or
// "refactor.extract".
type CodeActionKind string

const (
	CodeActionKindQuickFix CodeActionKind = "quickfix"
	CodeActionKindRefactor CodeActionKind = "refactor"
	CodeActionKindSource   CodeActionKind = "source"
)

// CodeAction couples a title with the command executing it.
type CodeAction struct {
	Title       string         `json:"title"`
	Kind        CodeActionKind `json:"kind,omitempty"`
	Command     *Command       `json:"command,omitempty"`
	Diagnostics []Diagnostic   `json:"diagnostics,omitempty"`
}

// CodeLens represents an actionable annotation on a range. A lens may be
// returned unresolved (no command) and completed in a second round-trip.
type CodeLens struct {
	Range      Range    `json:"range"`
	Command    *Command `json:"command,omitempty"`
	IsResolved bool     `json:"isResolved"`
}

// DocumentLink represents a clickable link inside a document.
type DocumentLink struct {
	Range  Range  `json:"range"`
	Target string `json:"target,omitempty"`
}
