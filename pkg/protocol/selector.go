package protocol

import (
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DocumentFilter narrows a provider registration to a subset of documents.
// An empty field matches everything, so the zero filter matches all
// documents. Pattern is a glob matched against the URI path and supports
// `**`, `*`, `?` and `{a,b}` alternation.
type DocumentFilter struct {
	Language string `json:"language,omitempty"`
	Scheme   string `json:"scheme,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
}

// Matches reports whether the filter selects the document identified by uri
// with the given language id.
func (f DocumentFilter) Matches(uri, languageID string) bool {
	if f.Language != "" && f.Language != languageID {
		return false
	}
	scheme, path := splitURI(uri)
	if f.Scheme != "" && f.Scheme != scheme {
		return false
	}
	if f.Pattern != "" {
		ok, err := doublestar.Match(f.Pattern, strings.TrimPrefix(path, "/"))
		if err != nil || !ok {
			// Also try with the leading slash, patterns may be absolute.
			ok, err = doublestar.Match(f.Pattern, path)
			if err != nil || !ok {
				return false
			}
		}
	}
	return true
}

// DocumentSelector is a set of filters; a document matches the selector when
// it matches at least one filter. The empty selector matches every document.
type DocumentSelector []DocumentFilter

// Matches reports whether any filter in the selector selects the document.
func (s DocumentSelector) Matches(uri, languageID string) bool {
	if len(s) == 0 {
		return true
	}
	for _, f := range s {
		if f.Matches(uri, languageID) {
			return true
		}
	}
	return false
}

// splitURI extracts the scheme and path of a document URI. Malformed URIs
// are treated as pathless with an empty scheme rather than rejected here;
// argument validation happens before provider fan-out.
func splitURI(uri string) (scheme, path string) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", ""
	}
	return u.Scheme, u.Path
}
