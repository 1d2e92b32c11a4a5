package z80asm

import (
	"fmt"

	"github.com/cpctools/bnd/pkg/ast"
	"github.com/cpctools/bnd/pkg/crunch"
	"github.com/cpctools/bnd/pkg/symtab"
)

// runDirective executes one directive token against the assembler's
// current state, The switch-on-directive shape mirrors
// processDirective (z80asm/directives.go), generalised to
// a fuller directive list instead of its original
// MinZ-era subset.
func (a *Assembler) runDirective(tok *ast.Token) error {
	switch tok.Directive {
	case ast.DirOrg:
		return a.dirOrg(tok)
	case ast.DirEqu:
		return a.dirBind(tok, true)
	case ast.DirAssign:
		return a.dirBind(tok, false)
	case ast.DirDefB:
		return a.dirDefB(tok)
	case ast.DirDefW:
		return a.dirDefW(tok)
	case ast.DirDefS:
		return a.dirDefS(tok)
	case ast.DirStr:
		return a.dirStr(tok)
	case ast.DirIncBin:
		return a.dirIncBin(tok)
	case ast.DirInclude:
		return a.dirInclude(tok)
	case ast.DirAlign:
		return a.dirAlign(tok)
	case ast.DirProtect:
		return a.dirProtect(tok)
	case ast.DirLimit:
		return a.dirLimit(tok)
	case ast.DirBank:
		return a.dirBank(tok)
	case ast.DirBankset:
		return a.dirBankset(tok)
	case ast.DirSave:
		return a.dirSave(tok) // filesystem side-effect is applied by the output backend once assembly is complete
	case ast.DirBreakpoint:
		return nil // breakpoints are parsed but have no effect and are not recorded in Result
	}
	return nil
}

func (a *Assembler) dirOrg(tok *ast.Token) error {
	if len(tok.Exprs) == 0 {
		return a.evalErr(tok.Span, fmt.Errorf("org requires an address"))
	}
	v, err := a.eval.Eval(tok.Exprs[0])
	if err != nil {
		return err
	}
	a.pc = uint16(v.AsInt())
	if !a.rorg {
		a.outBase = a.pc
	}
	return nil
}

// dirBind implements equ (once=true, fails on redefinition) and
// assign/set (once=false, freely rebindable), 
func (a *Assembler) dirBind(tok *ast.Token, once bool) error {
	if tok.Label == "" || len(tok.Exprs) == 0 {
		return a.evalErr(tok.Span, fmt.Errorf("equ/assign requires a name and a value"))
	}
	v, err := a.eval.Eval(tok.Exprs[0])
	if err != nil {
		return err
	}
	if err := a.syms.Define(tok.Label, toSymtabValue(v), once); err != nil {
		return a.evalErr(tok.Span, err)
	}
	return nil
}

func (a *Assembler) dirDefB(tok *ast.Token) error {
	for _, e := range tok.Exprs {
		if e.Kind == ast.ExprString {
			for _, ch := range []byte(e.Str) {
				if err := a.emit(ch); err != nil {
					return a.evalErr(tok.Span, err)
				}
			}
			continue
		}
		v, err := a.eval.Eval(e)
		if err != nil {
			return err
		}
		if err := a.emit(byte(v.AsInt())); err != nil {
			return a.evalErr(tok.Span, err)
		}
	}
	return nil
}

func (a *Assembler) dirDefW(tok *ast.Token) error {
	for _, e := range tok.Exprs {
		v, err := a.eval.Eval(e)
		if err != nil {
			return err
		}
		n := uint16(v.AsInt())
		if err := a.emit(byte(n)); err != nil {
			return a.evalErr(tok.Span, err)
		}
		if err := a.emit(byte(n >> 8)); err != nil {
			return a.evalErr(tok.Span, err)
		}
	}
	return nil
}

func (a *Assembler) dirDefS(tok *ast.Token) error {
	if len(tok.Exprs) == 0 {
		return a.evalErr(tok.Span, fmt.Errorf("defs requires a length"))
	}
	v, err := a.eval.Eval(tok.Exprs[0])
	if err != nil {
		return err
	}
	fill := byte(0)
	if len(tok.Exprs) > 1 {
		fv, err := a.eval.Eval(tok.Exprs[1])
		if err != nil {
			return err
		}
		fill = byte(fv.AsInt())
	}
	for i := int64(0); i < v.AsInt(); i++ {
		if err := a.emit(fill); err != nil {
			return a.evalErr(tok.Span, err)
		}
	}
	return nil
}

func (a *Assembler) dirStr(tok *ast.Token) error {
	for _, ch := range []byte(tok.Str) {
		if err := a.emit(ch); err != nil {
			return a.evalErr(tok.Span, err)
		}
	}
	for _, e := range tok.Exprs {
		if e.Kind != ast.ExprString {
			v, err := a.eval.Eval(e)
			if err != nil {
				return err
			}
			if err := a.emit(byte(v.AsInt())); err != nil {
				return a.evalErr(tok.Span, err)
			}
		}
	}
	return nil
}

func (a *Assembler) dirIncBin(tok *ast.Token) error {
	if a.opts.ReadFile == nil {
		return a.evalErr(tok.Span, fmt.Errorf("incbin: no file reader configured"))
	}
	data, err := a.opts.ReadFile(tok.Str)
	if err != nil {
		return a.evalErr(tok.Span, err)
	}
	offset, length := 0, len(data)
	if tok.IncbinOffset != nil {
		v, err := a.eval.Eval(tok.IncbinOffset)
		if err != nil {
			return err
		}
		offset = int(v.AsInt())
	}
	if tok.IncbinLength != nil {
		v, err := a.eval.Eval(tok.IncbinLength)
		if err != nil {
			return err
		}
		length = int(v.AsInt())
	}
	if offset < 0 || offset > len(data) {
		return a.evalErr(tok.Span, fmt.Errorf("incbin offset %d out of range for %s (%d bytes)", offset, tok.Str, len(data)))
	}
	end := offset + length
	if end > len(data) {
		end = len(data)
	}
	chunk := data[offset:end]
	if tok.IncbinCodec != "" && tok.IncbinCodec != ast.CrunchNone {
		chunk = crunch.Compress(chunk)
	}
	if err := a.emitBytes(chunk); err != nil {
		return a.evalErr(tok.Span, err)
	}
	return nil
}

func (a *Assembler) dirInclude(tok *ast.Token) error {
	if tok.Once && a.includeSeen(tok.Str) {
		return nil
	}
	if a.opts.ReadFile == nil {
		return a.evalErr(tok.Span, fmt.Errorf("include: no file reader configured"))
	}
	data, err := a.opts.ReadFile(tok.Str)
	if err != nil {
		return a.evalErr(tok.Span, err)
	}
	listing, perr := parseNested(string(data), tok.Str, a.opts.CaseFold)
	if perr != nil {
		return perr
	}
	if tok.Once {
		a.markIncluded(tok.Str)
	}
	if tok.Namespace != "" {
		a.syms.EnterScope(symtab.ScopeModule, tok.Namespace)
		defer a.syms.LeaveScope()
	}
	return a.runListing(listing)
}

func (a *Assembler) includeSeen(path string) bool {
	if a.included == nil {
		return false
	}
	return a.included[path]
}

func (a *Assembler) markIncluded(path string) {
	if a.included == nil {
		a.included = map[string]bool{}
	}
	a.included[path] = true
}

func (a *Assembler) dirSave(tok *ast.Token) error {
	if len(tok.Exprs) < 2 {
		return a.evalErr(tok.Span, fmt.Errorf("save requires address and length"))
	}
	addrV, err := a.eval.Eval(tok.Exprs[0])
	if err != nil {
		return err
	}
	lenV, err := a.eval.Eval(tok.Exprs[1])
	if err != nil {
		return err
	}
	a.saveRequests = append(a.saveRequests, SaveRequest{
		Filename: tok.Str,
		Page:     a.curPage,
		Address:  uint16(addrV.AsInt()),
		Length:   int(lenV.AsInt()),
		Kind:     tok.SaveKind,
	})
	return nil
}

func (a *Assembler) dirAlign(tok *ast.Token) error {
	if len(tok.Exprs) == 0 {
		return a.evalErr(tok.Span, fmt.Errorf("align requires a boundary"))
	}
	v, err := a.eval.Eval(tok.Exprs[0])
	if err != nil {
		return err
	}
	n := uint16(v.AsInt())
	if n == 0 {
		return a.evalErr(tok.Span, fmt.Errorf("align boundary must not be zero"))
	}
	fill := byte(0)
	if len(tok.Exprs) > 1 {
		fv, err := a.eval.Eval(tok.Exprs[1])
		if err != nil {
			return err
		}
		fill = byte(fv.AsInt())
	}
	for a.pc%n != 0 {
		if err := a.emit(fill); err != nil {
			return a.evalErr(tok.Span, err)
		}
	}
	return nil
}

// dirProtect marks a [start,end) range of the current page off-limits;
// emit rejects any byte written inside it for the rest of the pass (the
// ranges are cleared at the start of every pass).
func (a *Assembler) dirProtect(tok *ast.Token) error {
	if len(tok.Exprs) < 2 {
		return a.evalErr(tok.Span, fmt.Errorf("protect requires a start and end address"))
	}
	startV, err := a.eval.Eval(tok.Exprs[0])
	if err != nil {
		return err
	}
	endV, err := a.eval.Eval(tok.Exprs[1])
	if err != nil {
		return err
	}
	a.protected = append(a.protected, protectedRange{
		page: a.curPage, start: uint16(startV.AsInt()), end: uint16(endV.AsInt()),
	})
	return nil
}

// dirLimit sets the current page's limit address; emit rejects any byte
// written at or past it, so the highest writable address is limit-1.
func (a *Assembler) dirLimit(tok *ast.Token) error {
	if len(tok.Exprs) == 0 {
		return a.evalErr(tok.Span, fmt.Errorf("limit requires an address"))
	}
	v, err := a.eval.Eval(tok.Exprs[0])
	if err != nil {
		return err
	}
	a.limit[a.curPage] = uint16(v.AsInt())
	return nil
}

func (a *Assembler) dirBank(tok *ast.Token) error {
	if len(tok.Exprs) == 0 {
		return a.evalErr(tok.Span, fmt.Errorf("bank requires a number"))
	}
	v, err := a.eval.Eval(tok.Exprs[0])
	if err != nil {
		return err
	}
	a.curPage = int(v.AsInt())
	return nil
}

func (a *Assembler) dirBankset(tok *ast.Token) error {
	return a.dirBank(tok)
}
