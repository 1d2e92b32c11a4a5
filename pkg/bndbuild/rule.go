package bndbuild

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML lets a Task be written as a bare string in a rule's `cmd`
// list, 
func (t *Task) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseTask(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalYAML renders a Task back to its "[-]<tool> <args>" form, used by
// Builder.Save and the `show` command.
func (t Task) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// StringList decodes either a bare scalar or a sequence of scalars into a
// []string, for `tgt`/`dep`.
type StringList []string

func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var one string
		if err := value.Decode(&one); err != nil {
			return err
		}
		*s = []string{one}
	case yaml.SequenceNode:
		var many []string
		if err := value.Decode(&many); err != nil {
			return err
		}
		*s = many
	default:
		return fmt.Errorf("expected a string or a list of strings")
	}
	return nil
}

func (s StringList) MarshalYAML() (interface{}, error) {
	if len(s) == 1 {
		return s[0], nil
	}
	return []string(s), nil
}

// Rule is one entry of the build file's rule sequence.
type Rule struct {
	Targets StringList `yaml:"tgt"`
	Deps    StringList `yaml:"dep,omitempty"`
	Tasks   []Task     `yaml:"cmd,omitempty"`
	Help    string     `yaml:"help,omitempty"`
	Enabled *bool      `yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the rule runs, defaulting to true when the
// YAML document omits the "enabled" key entirely.
func (r Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// HasTarget reports whether p is one of this rule's declared targets.
func (r Rule) HasTarget(p string) bool {
	for _, t := range r.Targets {
		if t == p {
			return true
		}
	}
	return false
}

// NewDefaultRule builds a rule with a single task, as the `--add` CLI
// command does (app.rs's add_default_rule).
func NewDefaultRule(targets, deps []string, kind string) Rule {
	if kind == "" {
		kind = "basm"
	}
	canon, ok := resolveTool(kind)
	if !ok {
		canon = kind
	}
	args := ""
	for i, d := range deps {
		if i > 0 {
			args += " "
		}
		args += d
	}
	return Rule{
		Targets: append(StringList{}, targets...),
		Deps:    append(StringList{}, deps...),
		Tasks:   []Task{{Tool: canon, Args: args}},
	}
}
