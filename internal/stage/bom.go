package stage

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bom-matcher/internal/fetcher"
	"github.com/sells-group/bom-matcher/internal/model"
)

// headerScanRows is how many leading rows may precede the header row.
const headerScanRows = 10

// BOMParser reads a supplier bill of materials from CSV, TSV or XLSX.
type BOMParser struct {
	log *zap.Logger
}

// NewBOMParser creates a BOMParser.
func NewBOMParser() *BOMParser {
	return &BOMParser{log: zap.L().With(zap.String("stage", string(model.StageSupplierBOM)))}
}

// Parse reads the table at path into supplier items. Rows without an item
// name or with an invalid quantity or price are skipped and counted.
func (p *BOMParser) Parse(ctx context.Context, path string) (*model.SupplierBOMResult, error) {
	rows, err := fetcher.ReadTable(ctx, path)
	if err != nil {
		return nil, eris.Wrap(err, "supplier bom: read table")
	}

	items, read, skipped, err := p.parseRows(rows)
	if err != nil {
		return nil, eris.Wrapf(err, "supplier bom: %s", filepath.Base(path))
	}

	p.log.Info("supplier bom: parsed",
		zap.String("path", path),
		zap.Int("items", len(items)),
		zap.Int("rows_read", read),
		zap.Int("rows_skipped", skipped),
	)
	return &model.SupplierBOMResult{
		Items:       items,
		SourceFile:  filepath.Base(path),
		RowsRead:    read,
		RowsSkipped: skipped,
	}, nil
}

func (p *BOMParser) parseRows(rows [][]string) (items []model.SupplierItem, read, skipped int, err error) {
	hdr, cols, ok := findHeader(rows, headerScanRows)
	if !ok {
		return nil, 0, 0, eris.New("no header row with an item name column")
	}

	for i, row := range rows[hdr+1:] {
		read++
		item, rowErr := parseItem(row, cols)
		if rowErr != nil {
			skipped++
			p.log.Debug("supplier bom: skip row", zap.Int("row", hdr+i+2), zap.Error(rowErr))
			continue
		}
		items = append(items, item)
	}
	return items, read, skipped, nil
}

func parseItem(row []string, cols map[column]int) (model.SupplierItem, error) {
	item := model.SupplierItem{
		ItemName:      cell(row, cols, colName),
		PartNumber:    cell(row, cols, colPartNumber),
		UnitOfMeasure: cell(row, cols, colUnit),
		VendorName:    cell(row, cols, colVendor),
	}

	if raw := cell(row, cols, colQuantity); raw != "" {
		q, err := model.ParseQuantity(raw)
		if err != nil {
			return item, err
		}
		item.Quantity = q.Value
		if item.UnitOfMeasure == "" {
			item.UnitOfMeasure = q.Unit
		}
	}

	if raw := cell(row, cols, colPrice); raw != "" {
		price, err := parsePrice(raw)
		if err != nil {
			return item, err
		}
		item.UnitPrice = &price
	}

	if err := item.Validate(); err != nil {
		return item, err
	}
	return item, nil
}

// parsePrice accepts values such as "1,200", "¥350" or "$4.25".
func parsePrice(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimLeft(s, "¥$€£￥")
	s = strings.TrimSuffix(s, "円")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, eris.Wrapf(err, "price %q", raw)
	}
	return v, nil
}
