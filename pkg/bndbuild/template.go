package bndbuild

import (
	"fmt"
	"runtime"
	"strings"
)

// TemplateError carries the byte offset of a malformed `{{...}}` span, so
// a caller can report it against the pre-YAML source text.
type TemplateError struct {
	Offset  int
	Message string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template: offset %d: %s", e.Offset, e.Message)
}

// builtinVars returns the built-in template variables available:
// cwd, path separator, host OS.
func builtinVars(cwd string) map[string]string {
	return map[string]string{
		"cwd":      cwd,
		"sep":      string([]rune{'/'}),
		"os":       runtime.GOOS,
		"pathsep":  osPathSeparator(),
		"hostos":   runtime.GOOS,
		"hostarch": runtime.GOARCH,
	}
}

func osPathSeparator() string {
	if runtime.GOOS == "windows" {
		return "\\"
	}
	return "/"
}

// RenderTemplate substitutes every `{{name}}` (or `{{name|default}}`)
// placeholder in text, looking name up first in definitions (the
// `-D KEY=VAL` command-line set), then in the built-ins.
// It is a pure string transformation: it does not know about YAML
// and never touches the filesystem beyond the cwd value already resolved
// by the caller.
func RenderTemplate(text string, definitions map[string]string, cwd string) (string, error) {
	builtins := builtinVars(cwd)
	var out strings.Builder
	i := 0
	for i < len(text) {
		start := strings.Index(text[i:], "{{")
		if start < 0 {
			out.WriteString(text[i:])
			break
		}
		start += i
		out.WriteString(text[i:start])
		end := strings.Index(text[start:], "}}")
		if end < 0 {
			return "", &TemplateError{Offset: start, Message: "unterminated {{ }}"}
		}
		end += start
		inner := strings.TrimSpace(text[start+2 : end])
		name, fallback, hasFallback := strings.Cut(inner, "|")
		name = strings.TrimSpace(name)
		if name == "" {
			return "", &TemplateError{Offset: start, Message: "empty placeholder"}
		}
		val, ok := definitions[name]
		if !ok {
			val, ok = builtins[name]
		}
		if !ok {
			if hasFallback {
				val = strings.TrimSpace(fallback)
			} else {
				return "", &TemplateError{Offset: start, Message: fmt.Sprintf("undefined template variable %q", name)}
			}
		}
		out.WriteString(val)
		i = end + 2
	}
	return out.String(), nil
}

// ParseDefinitions turns a list of "-D KEY=VAL" / "-D KEY" strings (the
// latter defines KEY=1) into the map RenderTemplate expects,
// matching the surrounding CLI's repeatable-flag style.
func ParseDefinitions(raw []string) map[string]string {
	out := make(map[string]string, len(raw))
	for _, d := range raw {
		k, v, ok := strings.Cut(d, "=")
		if !ok {
			out[d] = "1"
			continue
		}
		out[k] = v
	}
	return out
}
