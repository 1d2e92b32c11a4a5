package macro

import (
	"testing"

	"github.com/cpctools/bnd/pkg/ast"
)

func TestExpandStructUsesOverrideThenDefault(t *testing.T) {
	tab := New()
	def := &Definition{
		Name:     "SPRITE",
		IsStruct: true,
		Fields: []ast.StructField{
			{Name: "x"},
			{Name: "y", Default: ast.Int(7, ast.Span{})},
		},
	}
	body, err := tab.ExpandStruct(def, []ast.MacroArg{{Value: ast.Int(3, ast.Span{})}})
	if err != nil {
		t.Fatalf("ExpandStruct: %v", err)
	}
	want := "defb 3\ndefb 7\n"
	if body != want {
		t.Fatalf("got %q, want %q", body, want)
	}
}

func TestExpandStructErrorsWhenFieldHasNoDefaultOrOverride(t *testing.T) {
	tab := New()
	def := &Definition{
		Name:     "SPRITE",
		IsStruct: true,
		Fields:   []ast.StructField{{Name: "x"}, {Name: "y"}},
	}
	_, err := tab.ExpandStruct(def, []ast.MacroArg{{Value: ast.Int(3, ast.Span{})}})
	if err == nil {
		t.Fatalf("expected an error for field 'y' with neither override nor default")
	}
}

func TestExpandStructWordField(t *testing.T) {
	tab := New()
	def := &Definition{
		Name:     "POINT",
		IsStruct: true,
		Fields:   []ast.StructField{{Name: "addr", IsWord: true, Default: ast.Int(0x1234, ast.Span{})}},
	}
	body, err := tab.ExpandStruct(def, nil)
	if err != nil {
		t.Fatalf("ExpandStruct: %v", err)
	}
	if body != "defw 4660\n" {
		t.Fatalf("got %q", body)
	}
}
