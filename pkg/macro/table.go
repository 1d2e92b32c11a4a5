// Package macro implements macro and struct definition/expansion.
// Two substitution algorithms are supported, matching the two
// dialects real Z80 sources are written in: the legacy `{name}`
// token-splice style (grounded on z80asm/macro.go's
// MacroProcessor) and the Orgams longest-leftmost multi-pattern style used
// by newer sources.
package macro

import (
	"fmt"

	"github.com/cpctools/bnd/pkg/ast"
)

// Definition is a registered macro or struct, ready to expand.
type Definition struct {
	Name       string
	Params     []string
	EvalParams map[string]bool
	RawBody    string
	Flavor     ast.MacroFlavor
	IsStruct   bool
	Fields     []ast.StructField // set when IsStruct
}

// Table is the registry of macro/struct definitions in scope, plus the
// global local-label base counter that keeps successive expansions'
// `.label` references from colliding.
type Table struct {
	defs         map[string]*Definition
	localCounter int
	expandDepth  int
	maxDepth     int
}

// New creates an empty macro table. maxDepth bounds nested macro expansion
// (a macro calling a macro calling a macro...) to catch runaway recursion,
// mirroring MacroProcessor.maxDepth.
func New() *Table {
	return &Table{defs: map[string]*Definition{}, maxDepth: 10}
}

// ErrRedefined is returned when a macro/struct name is defined twice.
type ErrRedefined struct{ Name string }

func (e *ErrRedefined) Error() string { return fmt.Sprintf("macro '%s' already defined", e.Name) }

// ErrUndefined is returned by Lookup for an unknown name.
type ErrUndefined struct{ Name string }

func (e *ErrUndefined) Error() string { return fmt.Sprintf("undefined macro '%s'", e.Name) }

// DefineFromToken registers a macro from a parsed TokMacroDef token.
func (t *Table) DefineFromToken(tok *ast.Token) error {
	if _, exists := t.defs[tok.Name]; exists {
		return &ErrRedefined{tok.Name}
	}
	seen := map[string]bool{}
	for _, p := range tok.Params {
		if seen[p] {
			return fmt.Errorf("duplicate parameter '%s' in macro '%s'", p, tok.Name)
		}
		seen[p] = true
	}
	t.defs[tok.Name] = &Definition{
		Name: tok.Name, Params: tok.Params, EvalParams: tok.EvalParams,
		RawBody: tok.RawBody, Flavor: tok.Flavor,
	}
	return nil
}

// DefineStructFromToken registers a struct-as-macro from a TokStructDef
// token: a struct defines both the byte layout and an implicit macro of the
// same name used to instance it.
func (t *Table) DefineStructFromToken(tok *ast.Token) error {
	if _, exists := t.defs[tok.Name]; exists {
		return &ErrRedefined{tok.Name}
	}
	var params []string
	for _, f := range tok.Fields {
		params = append(params, f.Name)
	}
	t.defs[tok.Name] = &Definition{Name: tok.Name, Params: params, IsStruct: true, Fields: tok.Fields}
	return nil
}

// Lookup returns the definition for name, or ErrUndefined.
func (t *Table) Lookup(name string) (*Definition, error) {
	d, ok := t.defs[name]
	if !ok {
		return nil, &ErrUndefined{name}
	}
	return d, nil
}

// Defined reports whether name is a registered macro or struct.
func (t *Table) Defined(name string) bool {
	_, ok := t.defs[name]
	return ok
}

// nextLocalBase reserves a fresh block of local-label numbers for one
// expansion, mirroring the "reserve 100 per expansion" scheme of MacroProcessor.
func (t *Table) nextLocalBase() int {
	base := t.localCounter
	t.localCounter += 100
	return base
}
