package bndbuild

import "testing"

func TestRenderTemplateDefinition(t *testing.T) {
	out, err := RenderTemplate("tgt: {{NAME}}.bin", map[string]string{"NAME": "game"}, "/proj")
	if err != nil {
		t.Fatalf("RenderTemplate: %v", err)
	}
	if out != "tgt: game.bin" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRenderTemplateBuiltin(t *testing.T) {
	out, err := RenderTemplate("root: {{cwd}}", nil, "/proj/root")
	if err != nil {
		t.Fatalf("RenderTemplate: %v", err)
	}
	if out != "root: /proj/root" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRenderTemplateFallback(t *testing.T) {
	out, err := RenderTemplate("lvl: {{LEVEL|1}}", nil, "/proj")
	if err != nil {
		t.Fatalf("RenderTemplate: %v", err)
	}
	if out != "lvl: 1" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRenderTemplateUndefinedErrors(t *testing.T) {
	if _, err := RenderTemplate("{{UNDEFINED}}", nil, "/proj"); err == nil {
		t.Fatalf("expected an error for an undefined variable with no fallback")
	}
}

func TestRenderTemplateUnterminatedErrors(t *testing.T) {
	if _, err := RenderTemplate("{{oops", nil, "/proj"); err == nil {
		t.Fatalf("expected an error for an unterminated placeholder")
	}
}

func TestParseDefinitions(t *testing.T) {
	defs := ParseDefinitions([]string{"LEVEL=3", "DEBUG"})
	if defs["LEVEL"] != "3" || defs["DEBUG"] != "1" {
		t.Fatalf("unexpected definitions: %v", defs)
	}
}
