package z80asm

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cpctools/bnd/pkg/ast"
	"github.com/cpctools/bnd/pkg/crunch"
	"github.com/cpctools/bnd/pkg/macro"
	"github.com/cpctools/bnd/pkg/symtab"
)

// Page is one 64KB addressable bank of output memory, 's
// 17-bit page/bank model: physical address = page<<16 | logical PC.
type Page struct {
	Number int
	Mem    [65536]byte
	Used   [65536]bool
}

// protectedRange is one `protect start,end` directive's span, checked
// against the current page and PC on every emit.
type protectedRange struct {
	page       int
	start, end uint16
}

// Result is the product of a successful Assemble call.
type Result struct {
	Pages        map[int]*Page
	Symbols      *symtab.Table
	Listing      []ListingLine
	EntryPage    int
	EntryPC      uint16
	Passes       int
	SaveRequests []SaveRequest
	Warnings     []string
}

// SaveRequest is one `save fname, addr, len [, kind]` directive, recorded rather than acted on during assembly: the output backend
// applies these once the final pass's memory image is stable.
type SaveRequest struct {
	Filename string
	Page     int
	Address  uint16
	Length   int
	Kind     string // "raw" | "amsdos" | "disc"
}

// ListingLine is one line of the human-readable assembly listing: address, encoded bytes, and source text.
type ListingLine struct {
	Page    int
	Address uint16
	Bytes   []byte
	Label   string
	Source  string
}

// AssembleError carries a source span, error-reporting
// contract; AssemblerError (z80asm/assembler.go) is the
// model: a flat struct over fmt.Errorf's "%w" chain rather than a custom
// errors package.
type AssembleError struct {
	Span    ast.Span
	Message string
}

func (e *AssembleError) Error() string { return fmt.Sprintf("%s: %s", e.Span, e.Message) }

// Options configures one assembly run.
type Options struct {
	MaxPasses   int
	CaseFold    bool
	Strict      bool // promote overwrite warnings to fatal errors
	Defines     map[string]string // -D KEY[=VAL] command-line defines
	IncludePath []string
	ReadFile    func(path string) ([]byte, error)
}

// Assembler drives the multi-pass convergence loop over an
// already-parsed Listing, expression, symbol
// and directive semantics.
type Assembler struct {
	opts    Options
	syms    *symtab.Table
	macros  *macro.Table
	eval    *Evaluator
	pages   map[int]*Page
	curPage int
	pc      uint16 // logical PC ($)
	outBase uint16 // physical output cursor ($$), resets per page/rorg
	rorg    bool
	limit   map[int]uint16
	protected    []protectedRange
	listing      []ListingLine
	pass         int
	changed      bool
	maxPass      int
	included     map[string]bool
	saveRequests []SaveRequest
	warnings     []string
}

// New creates an Assembler ready to run Assemble.
func New(opts Options) *Assembler {
	if opts.MaxPasses <= 0 {
		opts.MaxPasses = 3
	}
	syms := symtab.New()
	syms.CaseFold = opts.CaseFold
	a := &Assembler{
		opts: opts, syms: syms, macros: macro.New(),
		eval: NewEvaluator(syms), pages: map[int]*Page{0: {Number: 0}},
		limit: map[int]uint16{}, maxPass: opts.MaxPasses,
	}
	a.eval.Pages = a.pages
	for k, v := range opts.Defines {
		val := Value{Kind: VInt}
		if v == "" {
			val.Int = 1
		} else {
			fmt.Sscanf(v, "%d", &val.Int)
		}
		syms.Define(k, toSymtabValue(val), false)
	}
	return a
}

// Assemble runs the listing to convergence, : up to
// MaxPasses full walks, stopping as soon as a pass produces no symbol-value
// change from the previous one (or the hard cap of 10 is hit).
func (a *Assembler) Assemble(listing *ast.Listing) (*Result, error) {
	hardCap := a.maxPass
	if hardCap > 10 {
		hardCap = 10
	}
	var lastErr error
	for pass := 1; pass <= hardCap; pass++ {
		a.pass = pass
		a.resetOutput()
		a.listing = nil
		a.changed = false
		a.eval.Tolerant = pass < hardCap
		a.eval.Unresolved = false
		if err := a.runListing(listing); err != nil {
			lastErr = err
			if pass == hardCap {
				return nil, err
			}
			continue
		}
		lastErr = nil
		if a.eval.Unresolved {
			a.changed = true
		}
		if !a.changed || pass >= a.maxPass {
			break
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return &Result{
		Pages: a.pages, Symbols: a.syms, Listing: a.listing,
		EntryPage: a.curPage, EntryPC: a.pc, Passes: a.pass,
		SaveRequests: a.saveRequests, Warnings: a.warnings,
	}, nil
}

func (a *Assembler) resetOutput() {
	a.curPage = 0
	a.pc = 0
	a.outBase = 0
	a.saveRequests = nil
	a.protected = nil
	a.warnings = nil
	for _, p := range a.pages {
		for i := range p.Used {
			p.Used[i] = false
		}
	}
}

func (a *Assembler) page() *Page {
	p, ok := a.pages[a.curPage]
	if !ok {
		p = &Page{Number: a.curPage}
		a.pages[a.curPage] = p
	}
	return p
}

// emit writes one byte at the current PC, enforcing protect/limit ranges
// (always fatal) and flagging same-pass overwrites (fatal only under
// Options.Strict, a warning otherwise).
func (a *Assembler) emit(b byte) error {
	p := a.page()
	if p.Used[a.pc] {
		msg := fmt.Sprintf("page %d: byte at address 0x%04X overwritten", a.curPage, a.pc)
		if a.opts.Strict {
			return errors.New(msg)
		}
		a.warnings = append(a.warnings, msg)
	}
	for _, pr := range a.protected {
		if pr.page == a.curPage && a.pc >= pr.start && a.pc < pr.end {
			return fmt.Errorf("page %d: write to protected range [0x%04X,0x%04X) at address 0x%04X", a.curPage, pr.start, pr.end, a.pc)
		}
	}
	if lim, ok := a.limit[a.curPage]; ok && a.pc >= lim {
		return fmt.Errorf("page %d: limit 0x%04X exceeded at address 0x%04X", a.curPage, lim, a.pc)
	}
	p.Mem[a.pc] = b
	p.Used[a.pc] = true
	a.pc++
	if !a.rorg {
		a.outBase++
	}
	return nil
}

func (a *Assembler) emitBytes(bs []byte) error {
	for _, b := range bs {
		if err := a.emit(b); err != nil {
			return err
		}
	}
	return nil
}

// defineLabel binds a label to the current PC, detecting a changed address
// across passes (drives convergence ).
func (a *Assembler) defineLabel(name string) error {
	addr := symtab.Address{Physical: uint32(a.curPage)<<16 | uint32(a.pc), Logical: a.pc, Page: a.curPage}
	prev, err := a.syms.Lookup(name)
	if err == nil && prev.Kind == symtab.ValAddress && prev.Addr.Logical != addr.Logical {
		a.changed = true
	}
	if err != nil {
		a.changed = true
	}
	return a.syms.Define(name, symtab.Value{Kind: symtab.ValAddress, Addr: addr}, false)
}

func (a *Assembler) evalErr(sp ast.Span, err error) error {
	if err == nil {
		return nil
	}
	return &AssembleError{Span: sp, Message: err.Error()}
}

func (a *Assembler) runListing(l *ast.Listing) error {
	for _, tok := range l.Tokens {
		if err := a.runToken(tok); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assembler) runToken(tok *ast.Token) error {
	a.eval.PC = a.pc
	a.eval.OutputBase = a.outBase
	a.eval.CurPage = a.curPage
	// A directive that binds tok.Label itself (equ/assign) must not have
	// it pre-bound as an address label first: dirBind's own
	// symtab.Define call would then see the name already occupied and
	// fail with ErrRedefined on every single equ.
	bindsOwnLabel := tok.Kind == ast.TokDirective && (tok.Directive == ast.DirEqu || tok.Directive == ast.DirAssign)
	if tok.Label != "" && !bindsOwnLabel {
		if err := a.defineLabel(tok.Label); err != nil {
			return a.evalErr(tok.Span, err)
		}
	}
	switch tok.Kind {
	case ast.TokLabel:
		return nil
	case ast.TokOpcode:
		return a.runOpcode(tok)
	case ast.TokDirective:
		return a.runDirective(tok)
	case ast.TokIf:
		return a.runIf(tok)
	case ast.TokRepeatN:
		return a.runRepeatN(tok)
	case ast.TokRepeatUntil:
		return a.runRepeatUntil(tok)
	case ast.TokWhile:
		return a.runWhile(tok)
	case ast.TokIterate:
		return a.runIterate(tok)
	case ast.TokFor:
		return a.runFor(tok)
	case ast.TokSwitch:
		return a.runSwitch(tok)
	case ast.TokModule:
		return a.runModule(tok)
	case ast.TokConfined:
		return a.runConfined(tok)
	case ast.TokRorg:
		return a.runRorg(tok)
	case ast.TokMacroDef:
		return a.macros.DefineFromToken(tok)
	case ast.TokStructDef:
		return a.macros.DefineStructFromToken(tok)
	case ast.TokFunctionDef:
		a.eval.Functions[tok.Name] = tok
		return nil
	case ast.TokCrunched:
		return a.runCrunched(tok)
	case ast.TokMacroCall:
		return a.runMacroCall(tok)
	case ast.TokAssemblerControl:
		return a.runControl(tok)
	}
	return nil
}

func (a *Assembler) runIf(tok *ast.Token) error {
	for i, cond := range tok.Conditions {
		v, err := a.eval.Eval(cond)
		if err != nil {
			return err
		}
		if v.truthy() {
			return a.runListing(tok.Branches[i])
		}
	}
	if tok.ElseBranch != nil {
		return a.runListing(tok.ElseBranch)
	}
	return nil
}

func (a *Assembler) runRepeatN(tok *ast.Token) error {
	v, err := a.eval.Eval(tok.Count)
	if err != nil {
		return err
	}
	n := v.AsInt()
	a.syms.EnterScope(symtab.ScopeIteration, "")
	defer a.syms.LeaveScope()
	for i := int64(0); i < n; i++ {
		if tok.Name != "" {
			a.syms.Define(tok.Name, symtab.Value{Kind: symtab.ValInt, Int: i}, false)
		}
		if err := a.runListing(tok.Body); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assembler) runRepeatUntil(tok *ast.Token) error {
	a.syms.EnterScope(symtab.ScopeIteration, "")
	defer a.syms.LeaveScope()
	for guard := 0; guard < 65536; guard++ {
		if err := a.runListing(tok.Body); err != nil {
			return err
		}
		v, err := a.eval.Eval(tok.Conditions[0])
		if err != nil {
			return err
		}
		if v.truthy() {
			return nil
		}
	}
	return fmt.Errorf("repeat...until did not converge within 65536 iterations")
}

func (a *Assembler) runWhile(tok *ast.Token) error {
	a.syms.EnterScope(symtab.ScopeIteration, "")
	defer a.syms.LeaveScope()
	for guard := 0; guard < 65536; guard++ {
		v, err := a.eval.Eval(tok.Conditions[0])
		if err != nil {
			return err
		}
		if !v.truthy() {
			return nil
		}
		if err := a.runListing(tok.Body); err != nil {
			return err
		}
	}
	return fmt.Errorf("while loop did not converge within 65536 iterations")
}

func (a *Assembler) runIterate(tok *ast.Token) error {
	a.syms.EnterScope(symtab.ScopeIteration, "")
	defer a.syms.LeaveScope()
	for _, e := range tok.Exprs {
		v, err := a.eval.Eval(e)
		if err != nil {
			return err
		}
		a.syms.Define(tok.Name, toSymtabValue(v), false)
		if err := a.runListing(tok.Body); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assembler) runFor(tok *ast.Token) error {
	start, err := a.eval.Eval(tok.Start)
	if err != nil {
		return err
	}
	stop, err := a.eval.Eval(tok.Stop)
	if err != nil {
		return err
	}
	step := int64(1)
	if tok.Step != nil {
		sv, err := a.eval.Eval(tok.Step)
		if err != nil {
			return err
		}
		step = sv.AsInt()
	}
	if step == 0 {
		return fmt.Errorf("for loop step must not be zero")
	}
	a.syms.EnterScope(symtab.ScopeIteration, "")
	defer a.syms.LeaveScope()
	for i := start.AsInt(); (step > 0 && i < stop.AsInt()) || (step < 0 && i > stop.AsInt()); i += step {
		a.syms.Define(tok.Name, symtab.Value{Kind: symtab.ValInt, Int: i}, false)
		if err := a.runListing(tok.Body); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assembler) runSwitch(tok *ast.Token) error {
	subj, err := a.eval.Eval(tok.Subject)
	if err != nil {
		return err
	}
	for _, c := range tok.Cases {
		if c.Default {
			continue
		}
		for _, ve := range c.Values {
			v, err := a.eval.Eval(ve)
			if err != nil {
				return err
			}
			if v.AsInt() == subj.AsInt() {
				return a.runListing(c.Body)
			}
		}
	}
	for _, c := range tok.Cases {
		if c.Default {
			return a.runListing(c.Body)
		}
	}
	return nil
}

func (a *Assembler) runModule(tok *ast.Token) error {
	a.syms.EnterScope(symtab.ScopeModule, tok.Name)
	defer a.syms.LeaveScope()
	return a.runListing(tok.Body)
}

func (a *Assembler) runConfined(tok *ast.Token) error {
	a.syms.EnterScope(symtab.ScopeProc, "")
	defer a.syms.LeaveScope()
	savedPC, savedBase := a.pc, a.outBase
	err := a.runListing(tok.Body)
	a.pc, a.outBase = savedPC, savedBase
	return err
}

func (a *Assembler) runRorg(tok *ast.Token) error {
	v, err := a.eval.Eval(tok.Exprs[0])
	if err != nil {
		return err
	}
	savedPC, savedRorg := a.pc, a.rorg
	a.pc = uint16(v.AsInt())
	a.rorg = true
	err = a.runListing(tok.Body)
	a.pc, a.rorg = savedPC, savedRorg
	return err
}

// runCrunched assembles the block's body at the current PC exactly as an
// uncrunched listing would, then (when a codec is named) compresses the
// byte range it produced in place and rewinds the PC/output cursor to
// follow the shorter, compressed length instead of the original one.
// Labels bound inside the body keep their original (uncompressed)
// addresses, since those are what a runtime depacker call targets.
func (a *Assembler) runCrunched(tok *ast.Token) error {
	if tok.Codec == "" || tok.Codec == ast.CrunchNone {
		return a.runListing(tok.Body)
	}
	page := a.curPage
	start := a.pc
	if err := a.runListing(tok.Body); err != nil {
		return err
	}
	end := a.pc
	if end <= start || a.curPage != page {
		return nil
	}
	p := a.pages[page]
	raw := append([]byte(nil), p.Mem[start:end]...)
	packed := crunch.Compress(raw)
	if len(packed) >= len(raw) {
		return nil
	}
	for i, b := range packed {
		p.Mem[start+uint16(i)] = b
		p.Used[start+uint16(i)] = true
	}
	for i := start + uint16(len(packed)); i < end; i++ {
		p.Used[i] = false
	}
	shrink := uint16(len(raw) - len(packed))
	a.pc = end - shrink
	if !a.rorg {
		a.outBase -= shrink
	}
	return nil
}

func (a *Assembler) runControl(tok *ast.Token) error {
	switch tok.Ctrl {
	case ast.CtrlPushContext:
		a.syms.EnterScope(symtab.ScopeProc, "")
	case ast.CtrlPopContext:
		return a.syms.LeaveScope()
	case ast.CtrlSetMaxPasses:
		if tok.CtrlMax > 0 {
			a.maxPass = tok.CtrlMax
		}
	case ast.CtrlPrint:
		// print's side effect (writing to stderr) belongs to the driver
		// invoking Assemble, not the core; values are just evaluated here
		// to surface any evaluation error early.
		for _, e := range tok.PrintArgs {
			if _, err := a.eval.Eval(e); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *Assembler) runMacroCall(tok *ast.Token) error {
	def, err := a.macros.Lookup(tok.CallName)
	if err != nil {
		return a.evalErr(tok.Span, err)
	}
	var text string
	if def.IsStruct {
		text, err = a.macros.ExpandStruct(def, tok.CallArgs)
	} else {
		text, err = a.macros.Expand(def, tok.CallArgs)
	}
	if err != nil {
		return a.evalErr(tok.Span, err)
	}
	nested, perr := parseNested(text, tok.Span.File, a.opts.CaseFold)
	if perr != nil {
		return perr
	}
	return a.runListing(nested)
}

// SortedPages returns the Result's pages sorted by page number, used by
// output backends that must walk memory deterministically.
func (r *Result) SortedPages() []*Page {
	var out []*Page
	for _, p := range r.Pages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}
