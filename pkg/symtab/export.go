package symtab

import (
	"fmt"
	"io"
)

// ExportFormat selects the on-disk symbol-file layout.
type ExportFormat int

const (
	FormatBasic  ExportFormat = iota // "name equ value" per line, decimal
	FormatWinape                     // "name=hex" per line
)

// WriteExport writes the filtered export in the requested format.
func (t *Table) WriteExport(w io.Writer, pattern string, format ExportFormat) error {
	for _, sym := range t.Export(pattern) {
		val := sym.Value.Int
		if sym.Value.Kind == ValAddress {
			val = int64(sym.Value.Addr.Logical)
		}
		var err error
		switch format {
		case FormatBasic:
			_, err = fmt.Fprintf(w, "%s equ %d\n", sym.Name, val)
		case FormatWinape:
			_, err = fmt.Fprintf(w, "%s=%04X\n", sym.Name, uint16(val))
		}
		if err != nil {
			return err
		}
	}
	return nil
}
