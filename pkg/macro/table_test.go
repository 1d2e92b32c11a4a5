package macro

import (
	"testing"

	"github.com/cpctools/bnd/pkg/ast"
)

func TestDefineFromTokenAndLookup(t *testing.T) {
	tab := New()
	tok := &ast.Token{Name: "PUSH_ALL", Params: []string{"a", "b"}, RawBody: "push {a}\npush {b}\n"}
	if err := tab.DefineFromToken(tok); err != nil {
		t.Fatalf("DefineFromToken: %v", err)
	}
	if !tab.Defined("PUSH_ALL") {
		t.Fatalf("expected PUSH_ALL to be registered")
	}
	def, err := tab.Lookup("PUSH_ALL")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(def.Params) != 2 || def.Params[0] != "a" || def.Params[1] != "b" {
		t.Fatalf("unexpected params: %v", def.Params)
	}
}

func TestDefineFromTokenRejectsRedefinition(t *testing.T) {
	tab := New()
	tok := &ast.Token{Name: "DUP"}
	if err := tab.DefineFromToken(tok); err != nil {
		t.Fatalf("DefineFromToken: %v", err)
	}
	err := tab.DefineFromToken(tok)
	if err == nil {
		t.Fatalf("expected an ErrRedefined on the second definition")
	}
	if _, ok := err.(*ErrRedefined); !ok {
		t.Fatalf("expected *ErrRedefined, got %T", err)
	}
}

func TestDefineFromTokenRejectsDuplicateParams(t *testing.T) {
	tab := New()
	tok := &ast.Token{Name: "M", Params: []string{"x", "x"}}
	if err := tab.DefineFromToken(tok); err == nil {
		t.Fatalf("expected an error for a duplicate parameter name")
	}
}

func TestLookupUndefined(t *testing.T) {
	tab := New()
	if _, err := tab.Lookup("MISSING"); err == nil {
		t.Fatalf("expected ErrUndefined")
	}
}

func TestDefineStructFromToken(t *testing.T) {
	tab := New()
	tok := &ast.Token{
		Name:   "SPRITE",
		Fields: []ast.StructField{{Name: "x"}, {Name: "y"}},
	}
	if err := tab.DefineStructFromToken(tok); err != nil {
		t.Fatalf("DefineStructFromToken: %v", err)
	}
	def, err := tab.Lookup("SPRITE")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !def.IsStruct || len(def.Params) != 2 {
		t.Fatalf("unexpected struct definition: %+v", def)
	}
}
