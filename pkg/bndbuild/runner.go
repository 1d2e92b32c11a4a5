package bndbuild

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cpctools/bnd/pkg/edsk"
	"github.com/cpctools/bnd/pkg/lexer"
	"github.com/cpctools/bnd/pkg/sna"
	"github.com/cpctools/bnd/pkg/z80asm"
)

// splitArgs is a small quote-aware whitespace splitter for a task's Args
// string: build files write `cmd: "basm main.asm -o \"out dir/a.bin\""`
// style lines, so a bare strings.Fields would break on quoted paths.
func splitArgs(s string) []string {
	var out []string
	var cur strings.Builder
	inQuotes := false
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ' ' && !inQuotes:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

func (b *Builder) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(b.ProjectRoot, p)
}

// runTask dispatches one Task to its tool runner, all of it resolving
// paths against b.ProjectRoot instead of the process's working directory
// (DESIGN.md's "Working-directory coupling" decision).
func (b *Builder) runTask(t Task) error {
	args := splitArgs(t.Args)
	switch t.Tool {
	case "basm":
		return b.runBasm(args)
	case "bndbuild":
		return b.runBndbuild(args)
	case "cp":
		return b.runCp(args)
	case "rm":
		return b.runRm(args)
	case "echo":
		b.emitStdout(strings.Join(args, " ") + "\n")
		return nil
	case "dsk":
		return b.runDsk(args)
	case "sna":
		return b.runSna(args)
	case "img2cpc":
		// No in-repo image converter exists in the pack; the registry slot
		// is exercised, but the implementation delegates to an external
		// binary exactly like "extern" does (see DESIGN.md).
		return b.runExtern(append([]string{"img2cpc"}, args...))
	case "extern":
		return b.runExtern(args)
	default:
		return fmt.Errorf("%s: no runner for this tool", t.Tool)
	}
}

// runBasm assembles one source file and applies every SaveRequest the
// assembly produced, `save fname, addr, len [, kind]`
// directive and §4.9's assembler-as-a-build-task contract.
func (b *Builder) runBasm(args []string) error {
	var src, out string
	var caseFold, strict bool
	defines := map[string]string{}
	var includePath []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-o":
			i++
			if i < len(args) {
				out = args[i]
			}
		case "-D":
			i++
			if i < len(args) {
				k, v, ok := strings.Cut(args[i], "=")
				if !ok {
					v = "1"
				}
				defines[k] = v
			}
		case "-I":
			i++
			if i < len(args) {
				includePath = append(includePath, args[i])
			}
		case "-case":
			caseFold = true
		case "-strict":
			strict = true
		default:
			if !strings.HasPrefix(args[i], "-") && src == "" {
				src = args[i]
			}
		}
	}
	if src == "" {
		return fmt.Errorf("basm: no source file given")
	}

	srcPath := b.resolve(src)
	text, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("basm: %w", err)
	}

	listing, err := lexer.ParseSource(string(text), src, lexer.Options{CaseFold: caseFold})
	if err != nil {
		return fmt.Errorf("basm: %w", err)
	}

	asm := z80asm.New(z80asm.Options{
		MaxPasses:   10,
		CaseFold:    caseFold,
		Strict:      strict,
		Defines:     defines,
		IncludePath: includePath,
		ReadFile: func(path string) ([]byte, error) {
			if filepath.IsAbs(path) {
				return os.ReadFile(path)
			}
			for _, dir := range includePath {
				if data, err := os.ReadFile(filepath.Join(b.resolve(dir), path)); err == nil {
					return data, nil
				}
			}
			return os.ReadFile(b.resolve(path))
		},
	})
	result, err := asm.Assemble(listing)
	if err != nil {
		return fmt.Errorf("basm: %w", err)
	}
	for _, w := range result.Warnings {
		b.observers.notify(Notification{Kind: EvTaskStderr, Event: Event{Text: "basm: " + w + "\n"}})
	}

	if out != "" {
		page := result.Pages[result.EntryPage]
		if page != nil {
			if err := os.WriteFile(b.resolve(out), page.Mem[:], 0o644); err != nil {
				return fmt.Errorf("basm: writing %s: %w", out, err)
			}
		}
	}

	for _, sr := range result.SaveRequests {
		if err := b.applySaveRequest(result, sr); err != nil {
			return fmt.Errorf("basm: save %s: %w", sr.Filename, err)
		}
	}
	return nil
}

// applySaveRequest writes one `save` directive's memory slice to disk,
// per its raw/amsdos/disc kind.
func (b *Builder) applySaveRequest(result *z80asm.Result, sr z80asm.SaveRequest) error {
	page := result.Pages[sr.Page]
	if page == nil {
		return fmt.Errorf("page %d not assembled", sr.Page)
	}
	end := int(sr.Address) + sr.Length
	if end > len(page.Mem) {
		return fmt.Errorf("save range overflows a 64K page")
	}
	data := page.Mem[sr.Address:end]

	switch sr.Kind {
	case "", "raw":
		return os.WriteFile(b.resolve(sr.Filename), data, 0o644)

	case "amsdos":
		name, ext := splitAmsdosName(sr.Filename)
		hdr := edsk.Header{
			User:          0,
			Name:          name,
			Ext:           ext,
			Type:          edsk.TypeBinary,
			LoadAddress:   sr.Address,
			EntryAddress:  sr.Address,
			LogicalLength: uint16(len(data)),
			FileLength:    uint32(len(data)),
		}
		encoded := hdr.Encode()
		out := append(encoded[:], data...)
		return os.WriteFile(b.resolve(sr.Filename), out, 0o644)

	case "disc":
		return fmt.Errorf("save kind %q requires a preceding `dsk` target naming the disc image; use the dsk task to add this file instead", sr.Kind)

	default:
		return fmt.Errorf("unknown save kind %q", sr.Kind)
	}
}

func splitAmsdosName(path string) (name, ext string) {
	base := filepath.Base(path)
	name, ext, _ = strings.Cut(base, ".")
	if len(name) > 8 {
		name = name[:8]
	}
	if len(ext) > 3 {
		ext = ext[:3]
	}
	return strings.ToUpper(name), strings.ToUpper(ext)
}

// runBndbuild recursively loads and executes another build file, for
// the `bndbuild`/`build` task kind.
func (b *Builder) runBndbuild(args []string) error {
	var file string
	var target string
	defines := map[string]string{}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-f":
			i++
			if i < len(args) {
				file = args[i]
			}
		case "-D":
			i++
			if i < len(args) {
				k, v, ok := strings.Cut(args[i], "=")
				if !ok {
					v = "1"
				}
				defines[k] = v
			}
		default:
			if target == "" {
				target = args[i]
			}
		}
	}
	if file == "" {
		file = b.ProjectRoot
	} else {
		file = b.resolve(file)
	}
	child, err := Load(file, defines)
	if err != nil {
		return err
	}
	b.observers.mu.Lock()
	child.observers.observers = append(child.observers.observers, b.observers.observers...)
	b.observers.mu.Unlock()
	return child.Execute(target)
}

func (b *Builder) runCp(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("cp: requires a source and a destination")
	}
	src, dst := b.resolve(args[0]), b.resolve(args[len(args)-1])
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("cp: %w", err)
	}
	defer in.Close()
	outFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("cp: %w", err)
	}
	defer outFile.Close()
	if _, err := io.Copy(outFile, in); err != nil {
		return fmt.Errorf("cp: %w", err)
	}
	return nil
}

func (b *Builder) runRm(args []string) error {
	for _, p := range args {
		if err := os.Remove(b.resolve(p)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("rm: %w", err)
		}
	}
	return nil
}

// runDsk adds (or creates, then adds) a file to an AMSDOS disc image
// via pkg/edsk.
func (b *Builder) runDsk(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("dsk: requires a disc image and at least one file to add")
	}
	discPath := b.resolve(args[0])
	var d *edsk.Disc
	if raw, err := os.ReadFile(discPath); err == nil {
		d, err = edsk.Decode(raw)
		if err != nil {
			return fmt.Errorf("dsk: %w", err)
		}
	} else {
		cfg := edsk.SingleHeadDataFormat()
		d, err = edsk.BuildFromConfig(cfg, 0xE5)
		if err != nil {
			return fmt.Errorf("dsk: %w", err)
		}
	}
	for _, fname := range args[1:] {
		data, err := os.ReadFile(b.resolve(fname))
		if err != nil {
			return fmt.Errorf("dsk: %w", err)
		}
		name, ext := splitAmsdosName(fname)
		if err := edsk.AddFile(d, 0, name, ext, data, false, false, true); err != nil {
			return fmt.Errorf("dsk: adding %s: %w", fname, err)
		}
	}
	encoded, err := d.Encode()
	if err != nil {
		return fmt.Errorf("dsk: %w", err)
	}
	return os.WriteFile(discPath, encoded, 0o644)
}

// runSna loads an already-assembled binary into a snapshot's memory and
// writes it out, `sna out.sna -bin game.bin -addr 0x8000 [-pc 0x8000]`.
// A `sna` task in practice runs after a `basm` rule it depends on and
// reads that rule's output file back off disk.
func (b *Builder) runSna(args []string) error {
	var out, bin string
	var addr, pc uint16
	var pcSet bool
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-bin":
			i++
			if i < len(args) {
				bin = args[i]
			}
		case "-addr":
			i++
			if i < len(args) {
				v, err := strconv.ParseUint(args[i], 0, 16)
				if err != nil {
					return fmt.Errorf("sna: bad -addr %q: %w", args[i], err)
				}
				addr = uint16(v)
			}
		case "-pc":
			i++
			if i < len(args) {
				v, err := strconv.ParseUint(args[i], 0, 16)
				if err != nil {
					return fmt.Errorf("sna: bad -pc %q: %w", args[i], err)
				}
				pc = uint16(v)
				pcSet = true
			}
		default:
			if !strings.HasPrefix(args[i], "-") && out == "" {
				out = args[i]
			}
		}
	}
	if out == "" {
		return fmt.Errorf("sna: requires an output path")
	}
	s := sna.New()
	if bin != "" {
		data, err := os.ReadFile(b.resolve(bin))
		if err != nil {
			return fmt.Errorf("sna: %w", err)
		}
		if err := s.LoadAt(0, addr, data); err != nil {
			return fmt.Errorf("sna: %w", err)
		}
		s.Header.PC = addr
		if pcSet {
			s.Header.PC = pc
		}
	}
	return s.Save(b.resolve(out))
}

// runExtern shells out to an arbitrary external tool, 's
// `extern` escape hatch and (for now) the `img2cpc` registry slot.
func (b *Builder) runExtern(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("extern: no command given")
	}
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = b.ProjectRoot
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if stdout.Len() > 0 {
		b.observers.notify(Notification{Kind: EvTaskStdout, Event: Event{Text: stdout.String()}})
	}
	if stderr.Len() > 0 {
		b.observers.notify(Notification{Kind: EvTaskStderr, Event: Event{Text: stderr.String()}})
	}
	if err != nil {
		return fmt.Errorf("extern %s: %w", args[0], err)
	}
	return nil
}
