package macro

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cpctools/bnd/pkg/ast"
)

// Expand substitutes args into def's raw body and returns source text ready
// to be re-lexed by pkg/lexer, The two Flavor values pick
// between the legacy `{param}` token-splice and the Orgams longest-leftmost
// bare-identifier replacement.
func (t *Table) Expand(def *Definition, args []ast.MacroArg) (string, error) {
	if def.IsStruct {
		return "", fmt.Errorf("'%s' is a struct, use ExpandStruct", def.Name)
	}
	if t.expandDepth >= t.maxDepth {
		return "", fmt.Errorf("macro expansion depth exceeded (max %d)", t.maxDepth)
	}
	if len(args) != len(def.Params) {
		return "", fmt.Errorf("macro '%s' expects %d arguments, got %d", def.Name, len(def.Params), len(args))
	}
	argText := make(map[string]string, len(def.Params))
	for i, p := range def.Params {
		argText[p] = renderArg(args[i])
	}

	t.expandDepth++
	defer func() { t.expandDepth-- }()

	body := def.RawBody
	switch def.Flavor {
	case ast.FlavorOrgams:
		body = substituteOrgams(body, argText)
	default:
		body = substituteLegacy(body, argText)
	}
	body = renameLocalLabels(body, t.nextLocalBase())
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return body, nil
}

// substituteLegacy implements the `{param}` placeholder style: occurrences
// of "{name}" are replaced verbatim, grounded on
// MacroProcessor.replaceParameter (z80asm/macro.go).
func substituteLegacy(body string, args map[string]string) string {
	for name, value := range args {
		body = strings.ReplaceAll(body, "{"+name+"}", value)
	}
	return body
}

// substituteOrgams implements longest-leftmost multi-pattern replacement:
// parameter names are matched as whole identifiers (not inside a longer
// identifier) anywhere in the body, longest names first so "param2" is not
// swallowed by a "param" match.
func substituteOrgams(body string, args map[string]string) string {
	names := make([]string, 0, len(args))
	for n := range args {
		names = append(names, n)
	}
	sortByLengthDesc(names)

	var out strings.Builder
	runes := []rune(body)
	i := 0
	for i < len(runes) {
		matched := false
		if isIdentStart(runes[i]) {
			for _, name := range names {
				nr := []rune(name)
				if i+len(nr) > len(runes) {
					continue
				}
				if string(runes[i:i+len(nr)]) != name {
					continue
				}
				if i+len(nr) < len(runes) && isIdentCont(runes[i+len(nr)]) {
					continue
				}
				if i > 0 && isIdentCont(runes[i-1]) {
					continue
				}
				out.WriteString(args[name])
				i += len(nr)
				matched = true
				break
			}
		}
		if !matched {
			out.WriteRune(runes[i])
			i++
		}
	}
	return out.String()
}

func sortByLengthDesc(names []string) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && len(names[j-1]) < len(names[j]); j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
}

func isIdentStart(r rune) bool { return unicode.IsLetter(r) || r == '_' || r == '.' || r == '@' }
func isIdentCont(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '@'
}

// renameLocalLabels rewrites `.label` references to `.Lbase_label`, giving
// every macro expansion its own non-colliding local-label namespace
// (grounded on replaceLocalLabels).
func renameLocalLabels(body string, base int) string {
	var out strings.Builder
	runes := []rune(body)
	i := 0
	for i < len(runes) {
		if runes[i] == '.' && i+1 < len(runes) && isIdentStart(runes[i+1]) && runes[i+1] != '.' {
			j := i + 1
			for j < len(runes) && isIdentCont(runes[j]) {
				j++
			}
			name := string(runes[i+1 : j])
			fmt.Fprintf(&out, ".L%d_%s", base, name)
			i = j
			continue
		}
		out.WriteRune(runes[i])
		i++
	}
	return out.String()
}
