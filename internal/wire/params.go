package wire

import (
	"github.com/goccy/go-json"

	"github.com/lspkit/extbridge/pkg/protocol"
)

// Request parameter shapes shared by the host-side commands and the
// extension proxy. These are already transport-safe and travel as plain
// JSON payloads.

// QueryParams carries a workspace-symbol query.
type QueryParams struct {
	Query string `json:"query"`
}

// PositionParams identifies a position inside a document.
type PositionParams struct {
	URI      string            `json:"uri"`
	Position protocol.Position `json:"position"`
}

// ReferenceParams extends PositionParams with reference-specific options.
type ReferenceParams struct {
	URI                string            `json:"uri"`
	Position           protocol.Position `json:"position"`
	IncludeDeclaration bool              `json:"includeDeclaration"`
}

// DocumentParams identifies a whole document.
type DocumentParams struct {
	URI string `json:"uri"`
}

// RangeParams identifies a range inside a document.
type RangeParams struct {
	URI   string         `json:"uri"`
	Range protocol.Range `json:"range"`
}

// CompletionParams identifies a completion invocation.
type CompletionParams struct {
	URI               string            `json:"uri"`
	Position          protocol.Position `json:"position"`
	TriggerCharacters []string          `json:"triggerCharacters,omitempty"`
}

// CodeLensParams identifies a code-lens invocation. ResolveCount asks the
// aggregator to eagerly resolve the first N unresolved lenses.
type CodeLensParams struct {
	URI          string `json:"uri"`
	ResolveCount int    `json:"resolveCount,omitempty"`
}

// ExecuteParams carries a command execution request with enveloped
// arguments.
type ExecuteParams struct {
	Command   string  `json:"command"`
	Arguments []Value `json:"arguments,omitempty"`
}

// DecodeLocations normalizes a definition-style result. Providers may
// answer with a single location or an ordered sequence; both shapes decode
// to a sequence.
func DecodeLocations(data []byte) ([]protocol.Location, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var many []protocol.Location
	if err := json.Unmarshal(data, &many); err == nil {
		return many, nil
	}
	var one protocol.Location
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, &DecodeError{Kind: KindLocation, Err: err}
	}
	return []protocol.Location{one}, nil
}
