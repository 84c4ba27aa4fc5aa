// Package names normalizes and validates candidate registry names.
//
// Canonical form is "<label><suffix>": the label case-folded to lower, the
// namespace suffix in its canonical casing (".dev", ".app", ".appStore").
// Normalize is pure; policy flags (short-name restriction) are applied by the
// ledger, which owns the configuration.
package names

import (
	"strings"
	"unicode"

	"meroku/pkg/domain"
	dErrors "meroku/pkg/domain-errors"
)

// Named failure conditions surfaced to callers.
var (
	ErrInvalidName      = dErrors.New(dErrors.CodeValidation, "invalid name")
	ErrSubdomainOrSpace = dErrors.New(dErrors.CodeValidation, "subdomain or space found")
	ErrRestrictedName   = dErrors.New(dErrors.CodeForbidden, "minting of such names is restricted currently")
)

// specialMaxLen is the label length at and below which a name is "special"
// and mintable only with the mint-special override.
const specialMaxLen = 3

// Name is a normalized, suffix-qualified registry name.
type Name struct {
	Full      string // e.g. "myname.appStore"
	Label     string // e.g. "myname"
	Namespace domain.Namespace
}

// IsSpecial reports whether the label falls under the short-name restriction.
func (n Name) IsSpecial() bool {
	return len(n.Label) <= specialMaxLen
}

// Normalize canonicalizes raw into a Name for the given namespace.
//
// The suffix is appended if absent and stripped-and-reappended if present, so
// Normalize("MyName") and Normalize("MyName.app") agree. Fails with
// ErrSubdomainOrSpace when the label contains a dot or whitespace, and with
// ErrInvalidName when the label is empty or contains non-ASCII bytes.
func Normalize(raw string, ns domain.Namespace) (Name, error) {
	if !ns.IsValid() {
		return Name{}, dErrors.New(dErrors.CodeValidation, "unsupported namespace: "+ns.String())
	}

	label := strings.ToLower(raw)
	suffix := ns.Suffix()
	if len(raw) >= len(suffix) && strings.EqualFold(raw[len(raw)-len(suffix):], suffix) {
		label = label[:len(label)-len(suffix)]
	}

	if label == "" {
		return Name{}, ErrInvalidName
	}
	for _, c := range label {
		if c > unicode.MaxASCII {
			return Name{}, ErrInvalidName
		}
		if c == '.' || unicode.IsSpace(c) {
			return Name{}, ErrSubdomainOrSpace
		}
		if unicode.IsControl(c) {
			return Name{}, ErrInvalidName
		}
	}

	return Name{
		Full:      label + suffix,
		Label:     label,
		Namespace: ns,
	}, nil
}

// Fold lowercases a name for equality comparison. Reserved-list lookups use it
// so ".appStore" entries match regardless of stored casing.
func Fold(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
