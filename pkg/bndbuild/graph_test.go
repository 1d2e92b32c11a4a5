package bndbuild

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func rule(tgt, dep string) Rule {
	r := Rule{Targets: StringList{tgt}}
	if dep != "" {
		r.Deps = StringList{dep}
	}
	return r
}

func TestBuildGraphDetectsCycle(t *testing.T) {
	rules := []Rule{rule("a", "b"), rule("b", "a")}
	if _, err := BuildGraph(rules); err == nil {
		t.Fatalf("expected a cycle error")
	}
}

func TestBuildGraphAcyclic(t *testing.T) {
	rules := []Rule{rule("a", "b"), rule("b", "c")}
	g, err := BuildGraph(rules)
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	if !g.HasRule("a") || g.HasRule("c") {
		t.Fatalf("unexpected rule index")
	}
}

func TestLayeredDependenciesFor(t *testing.T) {
	// a depends on b and c; b depends on d; c and d are leaves.
	rules := []Rule{
		{Targets: StringList{"a"}, Deps: StringList{"b", "c"}},
		{Targets: StringList{"b"}, Deps: StringList{"d"}},
	}
	g, err := BuildGraph(rules)
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	layers := g.LayeredDependenciesFor("a")
	if len(layers) != 3 {
		t.Fatalf("expected 3 layers, got %d: %v", len(layers), layers)
	}
	first := layers[0]
	if len(first) != 2 || first[0] != "c" || first[1] != "d" {
		t.Fatalf("unexpected first layer: %v", first)
	}
	if layers[1][0] != "b" {
		t.Fatalf("unexpected second layer: %v", layers[1])
	}
	if layers[2][0] != "a" {
		t.Fatalf("unexpected last layer: %v", layers[2])
	}
}

func TestDefaultTarget(t *testing.T) {
	rules := []Rule{rule("a", ""), rule("b", "")}
	g, err := BuildGraph(rules)
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	dt, ok := g.DefaultTarget()
	if !ok || dt != "a" {
		t.Fatalf("expected default target a, got %q (%v)", dt, ok)
	}
}

func TestIsRuleUpToDate(t *testing.T) {
	dir := t.TempDir()
	dep := filepath.Join(dir, "in.asm")
	tgt := filepath.Join(dir, "out.bin")
	if err := os.WriteFile(dep, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := os.WriteFile(tgt, []byte("y"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := &Rule{Targets: StringList{"out.bin"}, Deps: StringList{"in.asm"}}
	upToDate, err := IsRuleUpToDate(r, dir)
	if err != nil {
		t.Fatalf("IsRuleUpToDate: %v", err)
	}
	if !upToDate {
		t.Fatalf("expected up to date: target is newer than its dependency")
	}

	time.Sleep(10 * time.Millisecond)
	if err := os.WriteFile(dep, []byte("xx"), 0o644); err != nil {
		t.Fatal(err)
	}
	upToDate, err = IsRuleUpToDate(r, dir)
	if err != nil {
		t.Fatalf("IsRuleUpToDate: %v", err)
	}
	if upToDate {
		t.Fatalf("expected stale: dependency is now newer than the target")
	}
}

func TestIsRuleUpToDateMissingTarget(t *testing.T) {
	dir := t.TempDir()
	r := &Rule{Targets: StringList{"missing.bin"}}
	upToDate, err := IsRuleUpToDate(r, dir)
	if err != nil {
		t.Fatalf("IsRuleUpToDate: %v", err)
	}
	if upToDate {
		t.Fatalf("a missing target can never be up to date")
	}
}
