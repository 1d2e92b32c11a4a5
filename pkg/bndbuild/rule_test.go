package bndbuild

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestRuleUnmarshalScalarTarget(t *testing.T) {
	var r Rule
	text := "tgt: out.bin\ndep: in.asm\ncmd: basm in.asm -o out.bin\n"
	if err := yaml.Unmarshal([]byte(text), &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(r.Targets) != 1 || r.Targets[0] != "out.bin" {
		t.Fatalf("unexpected targets: %v", r.Targets)
	}
	if len(r.Deps) != 1 || r.Deps[0] != "in.asm" {
		t.Fatalf("unexpected deps: %v", r.Deps)
	}
	if len(r.Tasks) != 1 || r.Tasks[0].Tool != "basm" {
		t.Fatalf("unexpected tasks: %v", r.Tasks)
	}
	if !r.IsEnabled() {
		t.Fatalf("expected enabled by default")
	}
}

func TestRuleUnmarshalSequenceTargets(t *testing.T) {
	var r Rule
	text := "tgt: [a.bin, b.bin]\ndep: [a.asm, b.asm]\ncmd:\n  - basm a.asm -o a.bin\n  - basm b.asm -o b.bin\nenabled: false\n"
	if err := yaml.Unmarshal([]byte(text), &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(r.Targets) != 2 || len(r.Deps) != 2 || len(r.Tasks) != 2 {
		t.Fatalf("unexpected rule: %+v", r)
	}
	if r.IsEnabled() {
		t.Fatalf("expected enabled: false to stick")
	}
}

func TestRuleHasTarget(t *testing.T) {
	r := Rule{Targets: StringList{"a.bin", "b.bin"}}
	if !r.HasTarget("a.bin") || r.HasTarget("c.bin") {
		t.Fatalf("HasTarget mismatch: %+v", r)
	}
}

func TestNewDefaultRule(t *testing.T) {
	r := NewDefaultRule([]string{"out.bin"}, []string{"a.asm", "b.asm"}, "assemble")
	if len(r.Tasks) != 1 || r.Tasks[0].Tool != "basm" {
		t.Fatalf("unexpected task: %+v", r.Tasks)
	}
	if r.Tasks[0].Args != "a.asm b.asm" {
		t.Fatalf("unexpected args: %q", r.Tasks[0].Args)
	}
}
