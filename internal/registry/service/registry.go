package service

import (
	"meroku/pkg/domain"
	dErrors "meroku/pkg/domain-errors"
)

// Registry groups the namespace ledgers behind one lookup.
type Registry struct {
	ledgers map[domain.Namespace]*Ledger
}

func NewRegistry(ledgers ...*Ledger) *Registry {
	r := &Registry{ledgers: make(map[domain.Namespace]*Ledger, len(ledgers))}
	for _, l := range ledgers {
		r.ledgers[l.Namespace()] = l
	}
	return r
}

// Ledger resolves a namespace to its ledger.
func (r *Registry) Ledger(ns domain.Namespace) (*Ledger, error) {
	l, ok := r.ledgers[ns]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown namespace: "+ns.String())
	}
	return l, nil
}

// Namespaces lists the registered namespaces.
func (r *Registry) Namespaces() []domain.Namespace {
	out := make([]domain.Namespace, 0, len(r.ledgers))
	for ns := range r.ledgers {
		out = append(out, ns)
	}
	return out
}
