// Package domain defines the core value types shared across the registry.
//
// Construct values via the Parse functions at trust boundaries (handlers,
// ingestion tooling); direct casting bypasses validation.
package domain

import (
	"strings"

	dErrors "meroku/pkg/domain-errors"
)

// Address identifies an account: 0x-prefixed, 40 hex digits, stored lowercase.
type Address string

// ZeroAddress is the mint/burn sentinel carried in transfer events.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// ParseAddress constructs an Address from external input.
//
// Errors: returns CodeValidation when the value is not a 0x-prefixed 40-digit
// hex string; no other errors are expected.
func ParseAddress(s string) (Address, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return "", dErrors.New(dErrors.CodeValidation, "address must be 0x-prefixed 40 hex digits")
	}
	for _, c := range s[2:] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", dErrors.New(dErrors.CodeValidation, "address contains non-hex characters")
		}
	}
	return Address(s), nil
}

func (a Address) IsZero() bool {
	return a == "" || a == ZeroAddress
}

func (a Address) String() string { return string(a) }

// TokenID is the sequential identity token number, unique per namespace,
// assigned at mint time and never reused.
type TokenID int64

func (t TokenID) IsValid() bool { return t > 0 }

// Amount is a quantity of native currency in its smallest unit.
type Amount int64

// Namespace is one of the independent naming domains. The string value is the
// canonical suffix including the leading dot.
type Namespace string

const (
	NamespaceDev      Namespace = ".dev"
	NamespaceApp      Namespace = ".app"
	NamespaceAppStore Namespace = ".appStore"
)

// validNamespaces is the single source of truth for supported namespaces.
var validNamespaces = map[Namespace]bool{
	NamespaceDev:      true,
	NamespaceApp:      true,
	NamespaceAppStore: true,
}

// ParseNamespace constructs a Namespace from external input. The comparison is
// case-insensitive; the returned value always carries the canonical casing.
func ParseNamespace(s string) (Namespace, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "namespace cannot be empty")
	}
	if !strings.HasPrefix(s, ".") {
		s = "." + s
	}
	for ns := range validNamespaces {
		if strings.EqualFold(string(ns), s) {
			return ns, nil
		}
	}
	return "", dErrors.New(dErrors.CodeValidation, "unsupported namespace: "+s)
}

func (n Namespace) IsValid() bool { return validNamespaces[n] }

// Suffix returns the canonical suffix, e.g. ".appStore".
func (n Namespace) Suffix() string { return string(n) }

func (n Namespace) String() string { return string(n) }

// Namespaces lists all supported namespaces in a stable order.
func Namespaces() []Namespace {
	return []Namespace{NamespaceDev, NamespaceApp, NamespaceAppStore}
}
