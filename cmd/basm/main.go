package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cpctools/bnd/pkg/edsk"
	"github.com/cpctools/bnd/pkg/lexer"
	"github.com/cpctools/bnd/pkg/sna"
	"github.com/cpctools/bnd/pkg/symtab"
	"github.com/cpctools/bnd/pkg/version"
	"github.com/cpctools/bnd/pkg/z80asm"
)

func main() {
	var (
		outputFile  = flag.String("o", "", "Output binary file (default: input.bin)")
		listingFile = flag.String("l", "", "Generate listing file")
		symbolFile  = flag.String("s", "", "Generate symbol file")
		snaFile     = flag.String("sna", "", "Wrap the output in an SNA snapshot instead of a raw binary")
		dskFile     = flag.String("dsk", "", "Add the output as an AMSDOS file to this EDSK disc image")
		caseFold    = flag.Bool("case", false, "Case-insensitive labels and identifiers")
		strict      = flag.Bool("strict", false, "Treat memory overwrite warnings as fatal errors")
		includeDirs multiFlag
		defines     multiFlag
		maxPasses   = flag.Int("passes", 10, "Maximum convergence passes")
		verbose     = flag.Bool("v", false, "Verbose output")
		showVersion = flag.Bool("version", false, "Show version")
		help        = flag.Bool("h", false, "Show help")
	)
	flag.Var(&includeDirs, "I", "Add a directory to the include/incbin search path (repeatable)")
	flag.Var(&defines, "D", "Define KEY[=VALUE] for the assembly (repeatable)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "basm - a cross-assembler for the Amstrad CPC's Z80\n\n")
		fmt.Fprintf(os.Stderr, "Usage: basm [options] input.asm\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  basm game.asm                       # assemble to game.bin\n")
		fmt.Fprintf(os.Stderr, "  basm -o game.rom game.asm           # assemble to game.rom\n")
		fmt.Fprintf(os.Stderr, "  basm -sna game.sna game.asm         # wrap the output in an SNA snapshot\n")
		fmt.Fprintf(os.Stderr, "  basm -dsk disc.dsk game.asm         # add the binary to an EDSK image\n")
		fmt.Fprintf(os.Stderr, "  basm -D LEVEL=3 -I inc game.asm     # define LEVEL and add an include dir\n")
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}
	if *showVersion {
		fmt.Println(version.GetFullVersion())
		return
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: no input file specified")
		flag.Usage()
		os.Exit(1)
	}
	if flag.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "Error: multiple input files not supported")
		flag.Usage()
		os.Exit(1)
	}

	inputFile := flag.Arg(0)
	if *outputFile == "" {
		ext := filepath.Ext(inputFile)
		*outputFile = strings.TrimSuffix(inputFile, ext) + ".bin"
	}

	if *verbose {
		fmt.Printf("basm - Amstrad CPC cross-assembler %s\n", version.GetVersion())
		fmt.Printf("Input:  %s\n", inputFile)
		fmt.Printf("Output: %s\n", *outputFile)
	}

	text, err := os.ReadFile(inputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: reading %s: %v\n", inputFile, err)
		os.Exit(1)
	}

	listing, err := lexer.ParseSource(string(text), inputFile, lexer.Options{CaseFold: *caseFold})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Parse error: %v\n", err)
		os.Exit(1)
	}

	asm := z80asm.New(z80asm.Options{
		MaxPasses:   *maxPasses,
		CaseFold:    *caseFold,
		Strict:      *strict,
		Defines:     parseDefines(defines),
		IncludePath: includeDirs,
		ReadFile:    readFileRelativeTo(includeDirs),
	})
	result, err := asm.Assemble(listing)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Assembly failed: %v\n", err)
		os.Exit(1)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	page := result.Pages[result.EntryPage]
	if page == nil {
		fmt.Fprintln(os.Stderr, "Assembly produced no output")
		os.Exit(1)
	}
	lo, hi := boundsOf(page)

	switch {
	case *snaFile != "":
		snap := sna.New()
		if err := snap.LoadAt(0, uint16(lo), page.Mem[lo:hi]); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to build snapshot: %v\n", err)
			os.Exit(1)
		}
		snap.Header.PC = result.EntryPC
		if err := snap.Save(*snaFile); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *snaFile, err)
			os.Exit(1)
		}
	case *dskFile != "":
		if err := addToDisc(*dskFile, *outputFile, page.Mem[lo:hi]); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to update %s: %v\n", *dskFile, err)
			os.Exit(1)
		}
	default:
		if err := os.WriteFile(*outputFile, page.Mem[lo:hi], 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *outputFile, err)
			os.Exit(1)
		}
	}

	for _, sr := range result.SaveRequests {
		if err := applySave(result, sr); err != nil {
			fmt.Fprintf(os.Stderr, "save %s failed: %v\n", sr.Filename, err)
			os.Exit(1)
		}
	}

	if *listingFile != "" {
		if err := writeListingFile(*listingFile, result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write listing file %s: %v\n", *listingFile, err)
			os.Exit(1)
		}
	}
	if *symbolFile != "" {
		if err := writeSymbolFile(*symbolFile, result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write symbol file %s: %v\n", *symbolFile, err)
			os.Exit(1)
		}
	}

	if *verbose {
		fmt.Printf("Assembly completed in %d pass(es):\n", result.Passes)
		fmt.Printf("  Origin: $%04X\n", lo)
		fmt.Printf("  Size:   %d bytes\n", hi-lo)
		fmt.Printf("  Symbols exported: %d\n", len(result.Symbols.Export("")))
	}
}

type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func parseDefines(raw []string) map[string]string {
	out := make(map[string]string, len(raw))
	for _, d := range raw {
		k, v, ok := strings.Cut(d, "=")
		if !ok {
			v = "1"
		}
		out[k] = v
	}
	return out
}

func readFileRelativeTo(includeDirs []string) func(string) ([]byte, error) {
	return func(path string) ([]byte, error) {
		if filepath.IsAbs(path) {
			return os.ReadFile(path)
		}
		for _, dir := range includeDirs {
			if data, err := os.ReadFile(filepath.Join(dir, path)); err == nil {
				return data, nil
			}
		}
		return os.ReadFile(path)
	}
}

// boundsOf finds the smallest [lo,hi) range covering every byte the
// assembler actually emitted on a page, so the raw/sna/dsk output doesn't
// carry 64K of mostly-zero padding.
func boundsOf(p *z80asm.Page) (lo, hi int) {
	lo, hi = -1, -1
	for i, used := range p.Used {
		if used {
			if lo == -1 {
				lo = i
			}
			hi = i + 1
		}
	}
	if lo == -1 {
		return 0, 0
	}
	return lo, hi
}

func addToDisc(dskPath, outputName string, data []byte) error {
	var d *edsk.Disc
	if raw, err := os.ReadFile(dskPath); err == nil {
		d, err = edsk.Decode(raw)
		if err != nil {
			return err
		}
	} else {
		d, err = edsk.BuildFromConfig(edsk.SingleHeadDataFormat(), 0xE5)
		if err != nil {
			return err
		}
	}
	base := filepath.Base(outputName)
	name, ext, _ := strings.Cut(base, ".")
	if len(name) > 8 {
		name = name[:8]
	}
	if len(ext) > 3 {
		ext = ext[:3]
	}
	if err := edsk.AddFile(d, 0, strings.ToUpper(name), strings.ToUpper(ext), data, false, false, true); err != nil {
		return err
	}
	encoded, err := d.Encode()
	if err != nil {
		return err
	}
	return os.WriteFile(dskPath, encoded, 0o644)
}

func applySave(result *z80asm.Result, sr z80asm.SaveRequest) error {
	page := result.Pages[sr.Page]
	if page == nil {
		return fmt.Errorf("page %d was never assembled", sr.Page)
	}
	end := int(sr.Address) + sr.Length
	data := page.Mem[sr.Address:end]
	return os.WriteFile(sr.Filename, data, 0o644)
}

func writeListingFile(filename string, result *z80asm.Result) error {
	var lines []string
	lines = append(lines, "basm assembly listing", "======================", "")
	for _, line := range result.Listing {
		if len(line.Bytes) > 0 {
			var hex strings.Builder
			for i, b := range line.Bytes {
				if i > 0 {
					hex.WriteByte(' ')
				}
				fmt.Fprintf(&hex, "%02X", b)
			}
			lines = append(lines, fmt.Sprintf("%04X  %-18s %s", line.Address, hex.String(), line.Source))
		} else {
			lines = append(lines, fmt.Sprintf("              %s", line.Source))
		}
	}
	return os.WriteFile(filename, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}

func writeSymbolFile(filename string, result *z80asm.Result) error {
	var lines []string
	lines = append(lines, "basm symbol table", "=================", "")
	for _, sym := range result.Symbols.Export("") {
		var v int64
		if sym.Value.Kind == symtab.ValAddress {
			v = int64(sym.Value.Addr.Logical)
		} else {
			v = sym.Value.Int
		}
		lines = append(lines, fmt.Sprintf("%-24s = $%04X (%d)", sym.Name, v, v))
	}
	return os.WriteFile(filename, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}
