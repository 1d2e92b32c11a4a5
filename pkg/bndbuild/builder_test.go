package bndbuild

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type recordingObserver struct {
	kinds []EventKind
}

func (r *recordingObserver) Notify(n Notification) {
	r.kinds = append(r.kinds, n.Kind)
}

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "src.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	yml := "- tgt: dst.txt\n  dep: src.txt\n  cmd: cp src.txt dst.txt\n  help: copy src to dst\n"
	if err := os.WriteFile(filepath.Join(dir, "bndbuild.yml"), []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestBuilderLoadAndExecute(t *testing.T) {
	dir := writeProject(t)
	b, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	obs := &recordingObserver{}
	b.AddObserver(obs)

	if err := b.Execute("dst.txt"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "dst.txt"))
	if err != nil {
		t.Fatalf("reading dst.txt: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("unexpected dst.txt content: %q", got)
	}

	var sawStartRule, sawFinish bool
	for _, k := range obs.kinds {
		if k == EvStartRule {
			sawStartRule = true
		}
		if k == EvChangeState {
			sawFinish = true
		}
	}
	if !sawStartRule || !sawFinish {
		t.Fatalf("expected StartRule and ChangeState notifications, got %v", obs.kinds)
	}
}

func TestBuilderExecuteSkipsUpToDate(t *testing.T) {
	dir := writeProject(t)
	b, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := b.Execute("dst.txt"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	info1, err := os.Stat(filepath.Join(dir, "dst.txt"))
	if err != nil {
		t.Fatal(err)
	}

	// Re-executing without touching src.txt must not rewrite dst.txt.
	time.Sleep(10 * time.Millisecond)
	if err := b.Execute("dst.txt"); err != nil {
		t.Fatalf("Execute (second run): %v", err)
	}
	info2, err := os.Stat(filepath.Join(dir, "dst.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !info1.ModTime().Equal(info2.ModTime()) {
		t.Fatalf("expected dst.txt to be left untouched when up to date")
	}
}

func TestBuilderOutdated(t *testing.T) {
	dir := writeProject(t)
	b, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := b.Execute("dst.txt"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	outdated, err := b.Outdated("dst.txt")
	if err != nil {
		t.Fatalf("Outdated: %v", err)
	}
	if outdated {
		t.Fatalf("expected dst.txt to be up to date right after a build")
	}

	time.Sleep(10 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "src.txt"), []byte("hello again"), 0o644); err != nil {
		t.Fatal(err)
	}
	outdated, err = b.Outdated("dst.txt")
	if err != nil {
		t.Fatalf("Outdated: %v", err)
	}
	if !outdated {
		t.Fatalf("expected dst.txt to be outdated after touching its dependency")
	}
}

func TestBuilderExecuteNoRule(t *testing.T) {
	dir := writeProject(t)
	b, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	err = b.Execute("nonexistent.bin")
	if err == nil {
		t.Fatalf("expected an error for a target with no rule and no file")
	}
	var nre *NoRuleError
	if !errors.As(err, &nre) {
		t.Fatalf("expected a *NoRuleError, got %T: %v", err, err)
	}
}

func TestBuilderDefaultTarget(t *testing.T) {
	dir := writeProject(t)
	b, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	dt, ok := b.DefaultTarget()
	if !ok || dt != "dst.txt" {
		t.Fatalf("unexpected default target: %q (%v)", dt, ok)
	}
	if err := b.Execute(""); err != nil {
		t.Fatalf("Execute with empty target should use the default: %v", err)
	}
}

func TestRenderTemplateAppliedBeforeParsing(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "src.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	yml := "- tgt: {{OUT}}\n  dep: src.txt\n  cmd: cp src.txt {{OUT}}\n"
	if err := os.WriteFile(filepath.Join(dir, "bndbuild.yml"), []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := Load(dir, map[string]string{"OUT": "renamed.bin"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := b.Execute("renamed.bin"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "renamed.bin")); err != nil {
		t.Fatalf("expected renamed.bin to exist: %v", err)
	}
}
