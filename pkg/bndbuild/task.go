// Package bndbuild implements a build orchestrator: a
// YAML rule graph, a template-interpolation pass, layered dependency
// execution, and a registry of task runners. The rule/task/observer shape
// is grounded on original_source/cpclib-bndbuild's builder.rs and task.rs;
// the CLI surface reuses the same cobra idiom as cmd/minzc/main.go.
package bndbuild

import (
	"fmt"
	"strings"
)

// Task is one `[-]<tool> <args…>` line of a rule's `cmd` list. Tool is the canonical (post-alias) name.
type Task struct {
	Tool        string
	Args        string
	IgnoreError bool
}

func (t Task) String() string {
	prefix := ""
	if t.IgnoreError {
		prefix = "-"
	}
	return fmt.Sprintf("%s%s %s", prefix, t.Tool, t.Args)
}

// toolAliases maps every recognised spelling to its canonical tool name,
// lifted from original_source/cpclib-bndbuild/src/task.rs's *_CMDS tables:
// basm/assemble, bndbuild/build, cp/copy, rm/del,
// echo/print, dsk/disc, img2cpc/imgconverter, sna/snapshot, plus the
// extern escape hatch. Out-of-scope tool kinds (tracker, emulator
// control, xfer, external assembler wrappers) have no runner here; a
// build file invoking one of those names is rejected as an invalid command.
var toolAliases = map[string]string{
	"basm":     "basm",
	"assemble": "basm",

	"bndbuild": "bndbuild",
	"build":    "bndbuild",

	"cp":   "cp",
	"copy": "cp",

	"rm":  "rm",
	"del": "rm",

	"echo":  "echo",
	"print": "echo",

	"dsk":  "dsk",
	"disc": "dsk",

	"img2cpc":      "img2cpc",
	"imgconverter": "img2cpc",

	"sna":      "sna",
	"snapshot": "sna",
	"snpashot": "sna", // original_source/task.rs's own typo, kept for file compatibility

	"extern": "extern",
}

// resolveTool looks up the canonical tool name for a (case-insensitive)
// registry spelling.
func resolveTool(code string) (string, bool) {
	canon, ok := toolAliases[strings.ToLower(code)]
	return canon, ok
}

// ParseTask parses one task line: "[-]<tool> <args…>".
func ParseTask(line string) (Task, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Task{}, fmt.Errorf("empty task line")
	}
	ignoreError := false
	if strings.HasPrefix(line, "-") {
		ignoreError = true
		line = line[1:]
	}
	code, rest, _ := strings.Cut(line, " ")
	canon, ok := resolveTool(code)
	if !ok {
		return Task{}, fmt.Errorf("%q is an invalid command", code)
	}
	return Task{Tool: canon, Args: strings.TrimSpace(rest), IgnoreError: ignoreError}, nil
}
