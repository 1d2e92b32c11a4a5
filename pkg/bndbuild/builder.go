package bndbuild

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ExpectedFilenames is, in priority order, the set of build-file names a
// bare directory argument is searched for, lifted from original_source/cpclib-bndbuild/src/builder.rs's
// EXPECTED_FILENAMES (uppercase variants included for the ACE emulator's
// habit of uppercasing files on transfer).
var ExpectedFilenames = []string{
	"bndbuild.yml",
	"build.bnd",
	"bnd.build",
	"BNDBUILD.YML",
	"BUILD.BND",
	"BND.BUILD",
}

// Builder owns a rule set, its derived Graph, and the observers watching
// its execution. ProjectRoot is the directory every relative path (rule
// targets/deps, task arguments, include/incbin paths) resolves against;
// unlike the Rust original this is ported from, Builder never calls os.Chdir (see
// DESIGN.md's "Working-directory coupling" decision) — it threads
// ProjectRoot explicitly into every runner instead.
type Builder struct {
	ProjectRoot string
	Rules       []Rule
	Parallel    bool

	graph     *Graph
	observers observerList
}

// AddObserver registers o to receive every subsequent notification.
func (b *Builder) AddObserver(o Observer) {
	b.observers.add(o)
}

// resolveBuildFile applies EXPECTED_FILENAMES directory search, mirroring
// builder.rs's decode_from_fname_with_definitions.
func resolveBuildFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return path, nil
	}
	for _, name := range ExpectedFilenames {
		candidate := filepath.Join(path, name)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate, nil
		}
	}
	return filepath.Join(path, ExpectedFilenames[0]), nil
}

// GetBuildfileContent resolves path to a concrete build file, renders its
// template, and returns the result alongside the file's directory (the
// project root every later operation resolves against).
func GetBuildfileContent(path string, definitions map[string]string) (resolvedPath, projectRoot, content string, err error) {
	resolvedPath, err = resolveBuildFile(path)
	if err != nil {
		return "", "", "", err
	}
	raw, err := os.ReadFile(resolvedPath)
	if err != nil {
		return "", "", "", fmt.Errorf("reading %s: %w", resolvedPath, err)
	}
	projectRoot = filepath.Dir(resolvedPath)
	rendered, err := RenderTemplate(string(raw), definitions, projectRoot)
	if err != nil {
		return "", "", "", err
	}
	return resolvedPath, projectRoot, rendered, nil
}

// Load reads, templates, and parses the build file at path (a file or a
// directory to search), returning a ready-to-execute Builder.
func Load(path string, definitions map[string]string) (*Builder, error) {
	_, projectRoot, content, err := GetBuildfileContent(path, definitions)
	if err != nil {
		return nil, err
	}
	return FromString(content, projectRoot)
}

// FromString parses an already-templated YAML document into a Builder
// rooted at projectRoot, split from template rendering so callers — and
// tests — can supply YAML directly.
func FromString(content, projectRoot string) (*Builder, error) {
	var rules []Rule
	if err := yaml.Unmarshal([]byte(content), &rules); err != nil {
		return nil, fmt.Errorf("parsing build file: %w", err)
	}
	graph, err := BuildGraph(rules)
	if err != nil {
		return nil, err
	}
	return &Builder{ProjectRoot: projectRoot, Rules: rules, graph: graph}, nil
}

// AddDefaultRule appends a single-task rule (the `--add` CLI command) and
// rebuilds the dependency graph.
func (b *Builder) AddDefaultRule(targets, deps []string, kind string) error {
	b.Rules = append(b.Rules, NewDefaultRule(targets, deps, kind))
	graph, err := BuildGraph(b.Rules)
	if err != nil {
		return err
	}
	b.graph = graph
	return nil
}

// String renders the rule set back to YAML.
func (b *Builder) String() string {
	out, err := yaml.Marshal(b.Rules)
	if err != nil {
		return ""
	}
	return string(out)
}

// Save writes the current rule set to path as YAML.
func (b *Builder) Save(path string) error {
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// DefaultTarget returns the build file's default target, if any.
func (b *Builder) DefaultTarget() (string, bool) {
	return b.graph.DefaultTarget()
}

// HasRule reports whether some rule produces target p.
func (b *Builder) HasRule(p string) bool { return b.graph.HasRule(p) }

// Rule returns the rule producing p, or nil.
func (b *Builder) Rule(p string) *Rule { return b.graph.Rule(p) }

// RunDirect runs a single task outside the rule graph (`bndbuild direct`),
// bypassing dependency resolution and up-to-date checks entirely.
func (b *Builder) RunDirect(t Task) error {
	return b.runTask(t)
}

// Outdated reports whether target's rule needs to run again.
func (b *Builder) Outdated(target string) (bool, error) {
	return b.graph.Outdated(target, b.ProjectRoot)
}

// Layered returns the layered dependency sets for target, leaves first.
func (b *Builder) Layered(target string) [][]string {
	return b.graph.LayeredDependenciesFor(target)
}

// ToDot renders the rule graph as Graphviz dot source (`bndbuild --dot`).
func (b *Builder) ToDot() string {
	var sb strings.Builder
	sb.WriteString("digraph bndbuild {\n")
	for _, r := range b.Rules {
		for _, t := range r.Targets {
			for _, d := range r.Deps {
				fmt.Fprintf(&sb, "  %q -> %q;\n", t, d)
			}
			if len(r.Deps) == 0 {
				fmt.Fprintf(&sb, "  %q;\n", t)
			}
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

// execState tracks the running task/rule counters across one Execute
// call, shared (and mutex-guarded) across layers and, under Parallel,
// across the worker goroutines running one layer's distinct rules.
type execState struct {
	mu        sync.Mutex
	nbDeps    int
	taskCount int
}

func (s *execState) next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskCount++
	return s.taskCount
}

// Execute builds target after all of its dependencies, defaulting to DefaultTarget when target is empty.
func (b *Builder) Execute(target string) error {
	if target == "" {
		dt, ok := b.DefaultTarget()
		if !ok {
			return ErrNoTargets
		}
		target = dt
	}

	b.changeState(StateComputeDependencies, target)
	layers := b.graph.LayeredDependenciesFor(target)

	nbDeps := 0
	for _, l := range layers {
		nbDeps += len(l)
	}
	state := &execState{nbDeps: nbDeps}

	if nbDeps == 0 {
		if !b.graph.HasRule(target) {
			return &NoRuleError{Target: target}
		}
		b.changeState(StateRunTasks, "")
		state.nbDeps = 1
		if err := b.executeRule(target, state); err != nil {
			return err
		}
	} else {
		b.changeState(StateRunTasks, "")
		for _, layer := range layers {
			if err := b.executeLayer(layer, state); err != nil {
				return err
			}
		}
	}

	b.changeState(StateFinish, "")
	return nil
}

type ruleGroup struct {
	rule  *Rule
	paths []string
}

// executeLayer runs one task-group per distinct rule represented in
// layer, marking every other target in that group done without re-running
// its tasks, "group the paths per rule, dedupe
// multi-target rules" step.
func (b *Builder) executeLayer(layer []string, state *execState) error {
	var withoutRule []string
	grouped := map[*Rule]*ruleGroup{}
	var order []*Rule
	for _, p := range layer {
		if r := b.graph.Rule(p); r != nil {
			g, ok := grouped[r]
			if !ok {
				g = &ruleGroup{rule: r}
				grouped[r] = g
				order = append(order, r)
			}
			g.paths = append(g.paths, p)
		} else {
			withoutRule = append(withoutRule, p)
		}
	}
	sort.Strings(withoutRule)
	for _, p := range withoutRule {
		num := state.next()
		b.startRule(p, num, state.nbDeps)
		if _, err := os.Stat(filepath.Join(b.ProjectRoot, p)); err != nil {
			return &NoRuleError{Target: p}
		}
		b.stopRule(p)
	}

	var groups []*ruleGroup
	for _, r := range order {
		g := grouped[r]
		sort.Strings(g.paths)
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].paths[0] < groups[j].paths[0] })

	run := func(g *ruleGroup) error {
		var extra []string
		if len(g.paths) > 1 {
			extra = g.paths[1:]
			for _, p := range extra {
				num := state.next()
				b.startRule(p, num, state.nbDeps)
			}
		}
		err := b.executeRule(g.paths[0], state)
		if err == nil {
			for _, p := range extra {
				b.stopRule(p)
			}
		}
		return err
	}

	if !b.Parallel || len(groups) <= 1 {
		for _, g := range groups {
			if err := run(g); err != nil {
				return err
			}
		}
		return nil
	}

	limit := b.workerLimit()
	sem := make(chan struct{}, limit)
	errCh := make(chan error, len(groups))
	var wg sync.WaitGroup
	for _, g := range groups {
		g := g
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			errCh <- run(g)
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) workerLimit() int {
	const defaultWorkers = 4
	return defaultWorkers
}

// executeRule runs path's producing rule: skip a
// disabled rule with a warning, skip an up-to-date rule, else run every
// task sequentially, aborting on the first non-ignored failure.
func (b *Builder) executeRule(path string, state *execState) error {
	num := state.next()
	b.startRule(path, num, state.nbDeps)

	r := b.graph.Rule(path)
	if r == nil {
		if _, err := os.Stat(filepath.Join(b.ProjectRoot, path)); err != nil {
			return &NoRuleError{Target: path}
		}
		b.emitStdout(fmt.Sprintf("\t%s is already up to date\n", path))
		b.stopRule(path)
		return nil
	}

	disabled := !r.IsEnabled()
	var done bool
	if disabled {
		b.emitStderr(fmt.Sprintf("The target %s is disabled and ignored.", path))
		done = true
	} else {
		upToDate, err := IsRuleUpToDate(r, b.ProjectRoot)
		if err != nil {
			return err
		}
		done = upToDate
		if done {
			b.emitStdout(fmt.Sprintf("Rule %s already exists\n", path))
		}
	}

	if !done {
		for _, task := range r.Tasks {
			b.startTask(path, task)
			start := time.Now()
			err := b.runTask(task)
			dur := time.Since(start)
			b.stopTask(path, task, dur)
			if err != nil {
				if task.IgnoreError {
					b.emitStderr(fmt.Sprintf("task %q failed (ignored): %v", task, err))
					continue
				}
				b.failedRule(path)
				return &ExecuteError{Target: path, Err: err}
			}
		}
	}

	if !disabled {
		var missing []string
		for _, t := range r.Targets {
			if _, err := os.Stat(filepath.Join(b.ProjectRoot, t)); err != nil {
				missing = append(missing, t)
			}
		}
		if len(missing) > 0 {
			b.emitStderr(fmt.Sprintf("The following target(s) have not been generated: %s. There is probably an error in your build file.\n", strings.Join(missing, " ")))
		}
	}

	b.stopRule(path)
	return nil
}

// Watch rebuilds targets whenever their rule goes out of date, polling
// every interval until stop fires. The first
// pass always builds.
func (b *Builder) Watch(targets []string, interval time.Duration, stop <-chan struct{}) error {
	first := true
	for {
		for _, t := range targets {
			if first {
				if err := b.Execute(t); err != nil {
					return err
				}
				continue
			}
			outdated, err := b.Outdated(t)
			if err != nil {
				return err
			}
			if outdated {
				if err := b.Execute(t); err != nil {
					return err
				}
			}
		}
		first = false
		select {
		case <-stop:
			return nil
		case <-time.After(interval):
		}
	}
}

func (b *Builder) changeState(s State, target string) {
	b.observers.notify(Notification{Kind: EvChangeState, Event: Event{Kind: s, Rule: target}})
}

func (b *Builder) startRule(rule string, num, outOf int) {
	b.observers.notify(Notification{Kind: EvStartRule, Event: Event{Rule: rule, RuleNum: num, RuleOf: outOf}})
}

func (b *Builder) stopRule(rule string) {
	b.observers.notify(Notification{Kind: EvStopRule, Event: Event{Rule: rule}})
}

func (b *Builder) failedRule(rule string) {
	b.observers.notify(Notification{Kind: EvFailedRule, Event: Event{Rule: rule}})
}

func (b *Builder) startTask(rule string, t Task) {
	b.observers.notify(Notification{Kind: EvStartTask, Event: Event{Rule: rule, Task: t}})
}

func (b *Builder) stopTask(rule string, t Task, d time.Duration) {
	b.observers.notify(Notification{Kind: EvStopTask, Event: Event{Rule: rule, Task: t, Duration: d}})
}

func (b *Builder) emitStdout(s string) {
	b.observers.notify(Notification{Kind: EvStdout, Event: Event{Text: s}})
}

func (b *Builder) emitStderr(s string) {
	b.observers.notify(Notification{Kind: EvStderr, Event: Event{Text: s}})
}
