package ast

import "testing"

func TestSpanStringWithFile(t *testing.T) {
	s := Span{File: "main.asm", Line: 12, Column: 4}
	if got, want := s.String(), "main.asm:12:4"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSpanStringWithoutFile(t *testing.T) {
	s := Span{Line: 3, Column: 1}
	if got, want := s.String(), "3:1"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExprConstructors(t *testing.T) {
	sp := Span{File: "a.asm", Line: 1, Column: 1}
	n := Int(42, sp)
	if n.Kind != ExprInt || n.Int != 42 {
		t.Fatalf("Int: unexpected expr %+v", n)
	}
	lbl := Label("start", sp)
	if lbl.Kind != ExprLabel || lbl.Str != "start" {
		t.Fatalf("Label: unexpected expr %+v", lbl)
	}
	bin := Binary(OpAdd, Int(1, sp), Int(2, sp), sp)
	if bin.Kind != ExprBinary || bin.Op != OpAdd {
		t.Fatalf("Binary: unexpected expr %+v", bin)
	}
	un := UnaryExpr(OpNot, Int(1, sp), sp)
	if un.Kind != ExprUnary || un.Unary != OpNot {
		t.Fatalf("UnaryExpr: unexpected expr %+v", un)
	}
}
