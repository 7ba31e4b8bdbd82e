// Package fetcher reads tabular supplier files (CSV, TSV and XLSX) into rows
// of strings.
package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ReadTable reads every row of a tabular file, choosing the parser from the
// file extension. Fully blank rows are dropped.
func ReadTable(ctx context.Context, path string) ([][]string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, XLSXOptions{})
	case ".csv", ".tsv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: open table")
		}
		defer f.Close() //nolint:errcheck

		opts := CSVOptions{TrimSpace: true}
		if ext == ".tsv" {
			opts.Delimiter = '\t'
		}
		return ReadCSV(ctx, f, opts)
	default:
		return nil, eris.Errorf("fetcher: unsupported table format %q", ext)
	}
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
