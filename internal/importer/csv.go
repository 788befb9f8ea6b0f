package importer

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tabwerk/datapipe/pkg/tabular"
)

// CSV imports comma- and tab-separated files.
type CSV struct{}

func NewCSV() *CSV {
	return &CSV{}
}

func (c *CSV) Name() string { return "csv" }

func (c *CSV) CanImport(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		return true
	}
	return false
}

func (c *CSV) Import(path string, opts Options) (*tabular.Table, map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	delimiter := ','
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		delimiter = '\t'
	}
	if opts.Delimiter != "" {
		delimiter = rune(opts.Delimiter[0])
	}

	reader := bufio.NewReader(f)
	if err := skipLines(reader, opts.SkipRows); err != nil {
		return nil, nil, err
	}

	table, err := tabular.ReadCSV(reader, delimiter, opts.hasHeader(true))
	if err != nil {
		return nil, nil, err
	}
	table = limitRows(table, opts.MaxRows)

	meta := map[string]any{
		"delimiter":  string(delimiter),
		"has_header": opts.hasHeader(true),
	}
	return table, meta, nil
}

func skipLines(reader *bufio.Reader, n int) error {
	for i := 0; i < n; i++ {
		if _, err := reader.ReadString('\n'); err != nil {
			return fmt.Errorf("skipping %d rows: %w", n, err)
		}
	}
	return nil
}
