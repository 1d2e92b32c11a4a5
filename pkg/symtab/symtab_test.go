package symtab

import "testing"

func TestDefineAndLookup(t *testing.T) {
	tab := New()
	if err := tab.Define("FOO", Value{Kind: ValInt, Int: 7}, false); err != nil {
		t.Fatalf("Define: %v", err)
	}
	v, err := tab.Lookup("FOO")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if v.Int != 7 {
		t.Fatalf("got %d, want 7", v.Int)
	}
}

func TestLookupUnknown(t *testing.T) {
	tab := New()
	if _, err := tab.Lookup("MISSING"); err == nil {
		t.Fatalf("expected an Unknown error")
	}
}

func TestDefineOnceRejectsRedefinition(t *testing.T) {
	tab := New()
	if err := tab.Define("X", Value{Kind: ValInt, Int: 1}, true); err != nil {
		t.Fatalf("Define: %v", err)
	}
	err := tab.Define("X", Value{Kind: ValInt, Int: 2}, true)
	if err == nil {
		t.Fatalf("expected ErrRedefined")
	}
	if _, ok := err.(ErrRedefined); !ok {
		t.Fatalf("expected ErrRedefined, got %T", err)
	}
}

func TestAssignRebindsFreely(t *testing.T) {
	tab := New()
	if err := tab.Define("X", Value{Kind: ValInt, Int: 1}, false); err != nil {
		t.Fatalf("Define: %v", err)
	}
	if err := tab.Define("X", Value{Kind: ValInt, Int: 2}, false); err != nil {
		t.Fatalf("Define (rebind): %v", err)
	}
	v, _ := tab.Lookup("X")
	if v.Int != 2 {
		t.Fatalf("got %d, want 2", v.Int)
	}
}

func TestScopedLookupFallsBackToOuter(t *testing.T) {
	tab := New()
	tab.Define("OUTER", Value{Kind: ValInt, Int: 1}, false)
	tab.EnterScope(ScopeProc, "")
	defer tab.LeaveScope()
	tab.Define("INNER", Value{Kind: ValInt, Int: 2}, false)

	if v, err := tab.Lookup("OUTER"); err != nil || v.Int != 1 {
		t.Fatalf("expected inner scope to see OUTER, got %v err=%v", v, err)
	}
	if v, err := tab.Lookup("INNER"); err != nil || v.Int != 2 {
		t.Fatalf("expected INNER to resolve, got %v err=%v", v, err)
	}
}

func TestLeaveScopeHidesInnerSymbols(t *testing.T) {
	tab := New()
	tab.EnterScope(ScopeProc, "")
	tab.Define("LOCAL", Value{Kind: ValInt, Int: 9}, false)
	if err := tab.LeaveScope(); err != nil {
		t.Fatalf("LeaveScope: %v", err)
	}
	if _, err := tab.Lookup("LOCAL"); err == nil {
		t.Fatalf("expected LOCAL to be out of scope after LeaveScope")
	}
}

func TestLeaveGlobalScopeErrors(t *testing.T) {
	tab := New()
	if err := tab.LeaveScope(); err == nil {
		t.Fatalf("expected an error leaving the global scope")
	}
}

func TestCaseFoldNormalizesNames(t *testing.T) {
	tab := New()
	tab.CaseFold = true
	tab.Define("Foo", Value{Kind: ValInt, Int: 3}, false)
	v, err := tab.Lookup("FOO")
	if err != nil || v.Int != 3 {
		t.Fatalf("expected case-folded lookup to succeed, got %v err=%v", v, err)
	}
}

func TestQualifiedModuleLookup(t *testing.T) {
	tab := New()
	tab.EnterScope(ScopeModule, "Game")
	tab.Define("SCORE", Value{Kind: ValInt, Int: 100}, false)
	tab.LeaveScope()

	v, err := tab.Lookup("Game.SCORE")
	if err != nil {
		t.Fatalf("Lookup(Game.SCORE): %v", err)
	}
	if v.Int != 100 {
		t.Fatalf("got %d, want 100", v.Int)
	}
}

func TestExportFiltersByKindAndPattern(t *testing.T) {
	tab := New()
	tab.Define("COUNT", Value{Kind: ValInt, Int: 5}, false)
	tab.Define("LABEL1", Value{Kind: ValAddress, Addr: Address{Logical: 0x100}}, false)
	tab.Define("NAME", Value{Kind: ValString, Str: "hi"}, false)

	all := tab.Export("")
	if len(all) != 2 {
		t.Fatalf("expected 2 exportable (int/address) symbols, got %d: %+v", len(all), all)
	}

	filtered := tab.Export("LABEL")
	if len(filtered) != 1 || filtered[0].Name != "LABEL1" {
		t.Fatalf("unexpected filtered export: %+v", filtered)
	}
}
