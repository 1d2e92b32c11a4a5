package macro

import (
	"fmt"
	"strings"

	"github.com/cpctools/bnd/pkg/ast"
)

// ExpandStruct instances a struct definition as a sequence of defb/defw
// statements (and nested macro-call statements for struct-typed fields),
// args supplies a positional override per field, in
// struct-field order; an empty MacroArg (Value == nil, List == nil) means
// "use the field's own default".
//
// A struct expansion's raw text previously carried a stray trailing blank
// line when the last field had no default (the final defb argument list
// ended in a bare comma-newline); this is resolved by always normalising to
// exactly one trailing newline, never zero and never more than one.
func (t *Table) ExpandStruct(def *Definition, args []ast.MacroArg) (string, error) {
	if !def.IsStruct {
		return "", fmt.Errorf("'%s' is a macro, use Expand", def.Name)
	}
	if len(args) > len(def.Fields) {
		return "", fmt.Errorf("struct '%s' takes at most %d fields, got %d", def.Name, len(def.Fields), len(args))
	}
	var out strings.Builder
	for i, field := range def.Fields {
		var override *ast.MacroArg
		if i < len(args) {
			a := args[i]
			if a.Value != nil || a.IsList {
				override = &a
			}
		}
		if field.IsMacroCall {
			line, err := t.renderStructMacroField(field, override)
			if err != nil {
				return "", err
			}
			out.WriteString(line)
			out.WriteByte('\n')
			continue
		}
		var value string
		switch {
		case override != nil:
			value = renderArg(*override)
		case field.Default != nil:
			value = renderExpr(field.Default)
		default:
			return "", fmt.Errorf("struct '%s' field '%s' has no default and no override was given", def.Name, field.Name)
		}
		dir := "defb"
		if field.IsWord {
			dir = "defw"
		}
		fmt.Fprintf(&out, "%s %s\n", dir, value)
	}
	body := out.String()
	body = strings.TrimRight(body, "\n") + "\n"
	return body, nil
}

// renderStructMacroField re-emits a struct field backed by a nested macro
// call, splicing in an override argument (which must be a list, matching
// the nested call's own argument list) when present.
func (t *Table) renderStructMacroField(field ast.StructField, override *ast.MacroArg) (string, error) {
	call := field.MacroCall
	args := call.CallArgs
	if override != nil {
		if !override.IsList {
			return "", fmt.Errorf("struct field '%s' requires a list override", field.Name)
		}
		args = make([]ast.MacroArg, len(override.List))
		for i, e := range override.List {
			args[i] = ast.MacroArg{Value: e}
		}
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = renderArg(a)
	}
	return call.CallName + " " + strings.Join(parts, ", "), nil
}
