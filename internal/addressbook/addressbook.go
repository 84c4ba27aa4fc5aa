// Package addressbook persists the well-known account addresses of a
// deployment (treasury owner, operator wallets) in a flat JSON file, so
// restarts and tooling agree on who is who.
package addressbook

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"meroku/pkg/domain"
)

// Book is a mutex-guarded name-to-address map backed by a JSON file.
type Book struct {
	mu      sync.Mutex
	path    string
	entries map[string]domain.Address
}

// Load reads the book at path. A missing file yields an empty book; the file
// appears on the first Save.
func Load(path string) (*Book, error) {
	b := &Book{path: path, entries: make(map[string]domain.Address)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read address book: %w", err)
	}
	if err := json.Unmarshal(data, &b.entries); err != nil {
		return nil, fmt.Errorf("parse address book: %w", err)
	}
	return b, nil
}

// Get looks up an address by its role name.
func (b *Book) Get(name string) (domain.Address, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	addr, ok := b.entries[name]
	return addr, ok
}

// Set records an address under a role name and persists the book.
func (b *Book) Set(name string, addr domain.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[name] = addr
	return b.save()
}

// Names lists the recorded role names in a stable order.
func (b *Book) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.entries))
	for name := range b.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (b *Book) save() error {
	data, err := json.MarshalIndent(b.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode address book: %w", err)
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write address book: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("replace address book: %w", err)
	}
	return nil
}
