package stage

import (
	"strings"
	"unicode"
)

// column identifies a recognized table column.
type column int

const (
	colName column = iota + 1
	colPartNumber
	colQuantity
	colUnit
	colVendor
	colPrice
)

var headerAliases = aliasTable(map[column][]string{
	colName:       {"item", "item name", "description", "name", "material", "material name", "part name", "品名", "部品名", "名称", "材料名"},
	colPartNumber: {"part", "part no", "part number", "pn", "p/n", "品番", "部品番号", "型番"},
	colQuantity:   {"qty", "quantity", "数量"},
	colUnit:       {"uom", "unit", "unit of measure", "単位"},
	colVendor:     {"vendor", "vendor name", "supplier", "manufacturer", "maker", "メーカー", "仕入先"},
	colPrice:      {"price", "unit price", "cost", "単価"},
})

func aliasTable(byColumn map[column][]string) map[string]column {
	out := make(map[string]column)
	for c, names := range byColumn {
		for _, n := range names {
			out[n] = c
		}
	}
	return out
}

// normalizeHeader lower-cases a header cell, treats underscores as spaces,
// drops trailing punctuation and collapses whitespace.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "_", " "))
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return r == '.' || r == ':' || r == '#' || unicode.IsSpace(r)
	})
	return strings.Join(strings.Fields(s), " ")
}

// headerMap maps recognized columns to cell indexes. The first occurrence
// of a column wins.
func headerMap(row []string) map[column]int {
	cols := make(map[column]int)
	for i, cell := range row {
		c, ok := headerAliases[normalizeHeader(cell)]
		if !ok {
			continue
		}
		if _, seen := cols[c]; !seen {
			cols[c] = i
		}
	}
	return cols
}

// findHeader returns the index and column map of the first row among the
// leading rows that names an item column.
func findHeader(rows [][]string, scan int) (int, map[column]int, bool) {
	for i := 0; i < len(rows) && i < scan; i++ {
		cols := headerMap(rows[i])
		if _, ok := cols[colName]; ok {
			return i, cols, true
		}
	}
	return -1, nil, false
}

// cell returns the trimmed value of column c in row, or "".
func cell(row []string, cols map[column]int, c column) string {
	i, ok := cols[c]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
