package bndbuild

import (
	"os"
	"path/filepath"
	"testing"
)

// TestScenario_S5_LayeredBuildIsDeterministicOnRerun exercises a two-layer
// build ("all" depends on a.o and b.o, each built from its own source via
// a task) and checks that re-running an already up-to-date target starts
// no tasks a second time.
func TestScenario_S5_LayeredBuildIsDeterministicOnRerun(t *testing.T) {
	dir := t.TempDir()
	for _, src := range []string{"a.asm", "b.asm"} {
		if err := os.WriteFile(filepath.Join(dir, src), []byte("nop\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	yml := "" +
		"- tgt: all\n" +
		"  dep: [a.o, b.o]\n" +
		"- tgt: a.o\n" +
		"  dep: a.asm\n" +
		"  cmd: cp a.asm a.o\n" +
		"- tgt: b.o\n" +
		"  dep: b.asm\n" +
		"  cmd: cp b.asm b.o\n"
	b, err := FromString(yml, dir)
	if err != nil {
		t.Fatalf("FromString: %v", err)
	}
	obs := &recordingObserver{}
	b.AddObserver(obs)

	if err := b.Execute("all"); err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	for _, out := range []string{"a.o", "b.o"} {
		if _, err := os.Stat(filepath.Join(dir, out)); err != nil {
			t.Fatalf("expected %s to have been built: %v", out, err)
		}
	}
	firstTaskCount := 0
	for _, k := range obs.kinds {
		if k == EvStartTask {
			firstTaskCount++
		}
	}
	if firstTaskCount != 2 {
		t.Fatalf("expected 2 tasks on the first build, got %d", firstTaskCount)
	}

	obs.kinds = nil
	if err := b.Execute("all"); err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	rerunTaskCount := 0
	for _, k := range obs.kinds {
		if k == EvStartTask {
			rerunTaskCount++
		}
	}
	if rerunTaskCount != 0 {
		t.Fatalf("expected zero tasks on the up-to-date rerun, got %d", rerunTaskCount)
	}
}
