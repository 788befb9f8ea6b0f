package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tabwerk/datapipe/pkg/tabular"
)

// candidate delimiters tried in order when none is declared
var textDelimiters = []rune{'\t', ',', ';', '|', ' '}

// Text imports free-text files, sniffing the delimiter from the first
// handful of lines. Files with no detectable structure become a single
// "line" column.
type Text struct{}

func NewText() *Text {
	return &Text{}
}

func (t *Text) Name() string { return "text" }

func (t *Text) CanImport(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".dat", ".log":
		return true
	}
	return false
}

func (t *Text) Import(path string, opts Options) (*tabular.Table, map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}

	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	if opts.SkipRows > 0 {
		if opts.SkipRows >= len(lines) {
			lines = nil
		} else {
			lines = lines[opts.SkipRows:]
		}
	}
	// drop trailing blank line from the final newline
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	delimiter, structured := t.sniffDelimiter(lines, opts)
	meta := map[string]any{"line_count": len(lines)}

	if !structured {
		table := tabular.New([]string{"line"})
		for _, line := range lines {
			table.AppendRow([]tabular.Cell{tabular.TextCell(line)})
		}
		meta["detected_delimiter"] = nil
		return limitRows(table, opts.MaxRows), meta, nil
	}

	table, err := tabular.ReadCSV(strings.NewReader(strings.Join(lines, "\n")), delimiter, opts.hasHeader(true))
	if err != nil {
		return nil, nil, err
	}
	meta["detected_delimiter"] = string(delimiter)
	return limitRows(table, opts.MaxRows), meta, nil
}

// sniffDelimiter looks for a delimiter that splits the first lines into a
// consistent multi-column shape.
func (t *Text) sniffDelimiter(lines []string, opts Options) (rune, bool) {
	if opts.Delimiter != "" {
		return rune(opts.Delimiter[0]), true
	}

	sample := lines
	if len(sample) > 5 {
		sample = sample[:5]
	}
	if len(sample) == 0 {
		return 0, false
	}

	for _, delim := range textDelimiters {
		width := -1
		consistent := true
		for _, line := range sample {
			fields := len(strings.Split(line, string(delim)))
			if fields < 2 {
				consistent = false
				break
			}
			if width == -1 {
				width = fields
			} else if fields != width {
				consistent = false
				break
			}
		}
		if consistent {
			return delim, true
		}
	}
	return 0, false
}
