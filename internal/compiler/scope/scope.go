package scope

import (
	"fmt"

	"github.com/pepegx/olang/internal/compiler/symbols"
)

// Scope maps names to symbols with a single parent link. Scopes are
// stack-structured: created on entering a class/method/block, discarded on
// exit.
type Scope struct {
	Symbols map[string]*symbols.SymbolInfo
	Outer   *Scope
	Name    string
}

func NewScope(outer *Scope, name string) *Scope {
	return &Scope{
		Symbols: make(map[string]*symbols.SymbolInfo),
		Outer:   outer,
		Name:    name,
	}
}

// Define adds a symbol to the current scope level only. It returns an error
// if the symbol already exists at this level.
func (s *Scope) Define(name string, kind symbols.Kind, typeName string) error {
	if _, exists := s.Symbols[name]; exists {
		return fmt.Errorf("symbol '%s' already declared in this scope", name)
	}
	s.Symbols[name] = &symbols.SymbolInfo{Name: name, Kind: kind, Type: typeName}
	return nil
}

// Resolve searches for a symbol starting from the current scope and walking
// outwards. First hit wins.
func (s *Scope) Resolve(name string) (*symbols.SymbolInfo, bool) {
	for sc := s; sc != nil; sc = sc.Outer {
		if info, ok := sc.Symbols[name]; ok {
			return info, true
		}
	}
	return nil, false
}

// ResolveCurrent checks only the current scope level.
func (s *Scope) ResolveCurrent(name string) (*symbols.SymbolInfo, bool) {
	info, ok := s.Symbols[name]
	return info, ok
}

// MarkUsed flags the nearest symbol with the given name as used.
func (s *Scope) MarkUsed(name string) {
	if info, ok := s.Resolve(name); ok {
		info.Used = true
	}
}
