package formula

import (
	"fmt"
	"strings"

	"github.com/kittyplace/imgplace/pkg/ikerr"
)

// Info supplies the fields `--print` templates substitute.
type Info struct {
	ID          uint32
	Cols, Rows  int    // -1 means unknown ("?")
	Path        string // empty means unknown
	ModTime     string // RFC3339, empty means unknown
	AccessTime  string // RFC3339
	Description string
}

// FormatInfo expands FORMAT's %-specifiers and backslash escapes
// against info. Escape and specifier parsing are mutually exclusive
// per character position, so a template containing "\%" or similar
// adjacency is never double-processed.
func FormatInfo(format string, info Info) (string, error) {
	var b strings.Builder
	r := []rune(format)
	for i := 0; i < len(r); i++ {
		c := r[i]
		switch {
		case c == '\\' && i+1 < len(r):
			i++
			switch r[i] {
			case '\\':
				b.WriteByte('\\')
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case 'e':
				b.WriteByte('\x1b')
			default:
				return "", ikerr.New(ikerr.FormulaError, fmt.Sprintf("formula.FormatInfo: unknown escape sequence \\%c", r[i]))
			}
		case c == '%' && i+1 < len(r):
			i++
			if err := writeSpecifier(&b, r[i], info); err != nil {
				return "", err
			}
		default:
			b.WriteRune(c)
		}
	}
	return b.String(), nil
}

func writeSpecifier(b *strings.Builder, fmtChar rune, info Info) error {
	switch fmtChar {
	case '%':
		b.WriteByte('%')
	case 'i':
		fmt.Fprintf(b, "%d", info.ID)
	case 'x':
		fmt.Fprintf(b, "%08x", info.ID)
	case 'c':
		writeIntOrUnknown(b, info.Cols)
	case 'r':
		writeIntOrUnknown(b, info.Rows)
	case 'p':
		if info.Path != "" {
			b.WriteString(info.Path)
		} else {
			b.WriteString("/dev/null")
		}
	case 'P':
		if info.Path != "" {
			b.WriteString(info.Path)
		} else {
			b.WriteString(info.Description)
		}
	case 'm':
		if info.ModTime != "" {
			b.WriteString(info.ModTime)
		} else {
			b.WriteByte('?')
		}
	case 'a':
		b.WriteString(info.AccessTime)
	case 'D':
		b.WriteString(info.Description)
	default:
		return ikerr.New(ikerr.FormulaError, fmt.Sprintf("formula.FormatInfo: unknown format specifier %%%c", fmtChar))
	}
	return nil
}

func writeIntOrUnknown(b *strings.Builder, v int) {
	if v < 0 {
		b.WriteByte('?')
		return
	}
	fmt.Fprintf(b, "%d", v)
}
