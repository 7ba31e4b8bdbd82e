// Package report exports workflow results as XLSX workbooks.
package report

import (
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/sells-group/bom-matcher/internal/model"
)

const (
	matchesSheet = "Matches"
	summarySheet = "Summary"
)

var matchHeaders = []any{
	"Material", "Part Number", "Quantity", "Unit", "Vendor",
	"Supplier Item", "Supplier Part Number", "Supplier Vendor", "Unit Price",
	"Confidence", "Source", "Previous Match", "QA Label", "QA Confidence", "QC Step",
}

// WriteXLSX writes one row per match plus a summary sheet to path.
func WriteXLSX(path string, res *model.WorkflowResult) error {
	if res == nil {
		return eris.New("report: nil result")
	}

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", matchesSheet); err != nil {
		return eris.Wrap(err, "report: rename sheet")
	}
	if err := writeMatches(f, res.Matches); err != nil {
		return err
	}
	if err := writeSummary(f, res); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

func writeMatches(f *excelize.File, matches []model.MatchRecord) error {
	if err := setRow(f, matchesSheet, 1, matchHeaders); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return eris.Wrap(err, "report: header style")
	}
	last, err := excelize.CoordinatesToCellName(len(matchHeaders), 1)
	if err != nil {
		return eris.Wrap(err, "report: header range")
	}
	if err := f.SetCellStyle(matchesSheet, "A1", last, bold); err != nil {
		return eris.Wrap(err, "report: apply header style")
	}

	for i, m := range matches {
		if err := setRow(f, matchesSheet, i+2, matchRow(m)); err != nil {
			return err
		}
	}
	return nil
}

func matchRow(m model.MatchRecord) []any {
	var qty any
	if m.Material.Quantity != nil {
		qty = m.Material.Quantity.Value
	}
	row := []any{
		m.Material.MaterialName, m.Material.PartNumber, qty, m.Material.Unit(), m.Material.VendorName,
		"", "", "", nil,
		m.ConfidenceScore, string(m.MatchSource), m.HasPreviousMatch,
		m.QAClassificationLabel, string(m.QAConfidenceLevel), m.Material.QCProcessStep,
	}
	if s := m.SupplierItem; s != nil {
		row[5], row[6], row[7] = s.ItemName, s.PartNumber, s.VendorName
		if s.UnitPrice != nil {
			row[8] = *s.UnitPrice
		}
	}
	return row
}

func writeSummary(f *excelize.File, res *model.WorkflowResult) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}

	s := res.Summary
	rows := [][]any{
		{"Workflow ID", res.WorkflowID},
		{"Processing Date", s.ProcessingDate.UTC().Format("2006-01-02 15:04:05")},
		{"Total Materials", s.TotalMaterials},
		{"Total Supplier Items", s.TotalSupplierItems},
		{"Successful Matches", s.SuccessfulMatches},
		{"Knowledge Base Matches", s.KnowledgeBaseMatches},
		{"Unmatched", s.Unmatched},
		{"Knowledge Base Entries", res.KnowledgeBaseStats.TotalEntries},
	}

	qa := res.QAClassificationSummary
	for _, level := range model.AllConfidenceLevels() {
		rows = append(rows, []any{"QA Confidence " + string(level), qa.ConfidenceDistribution[level]})
	}
	labels := make([]int, 0, len(qa.ClassificationCounts))
	for l := range qa.ClassificationCounts {
		labels = append(labels, l)
	}
	sort.Ints(labels)
	for _, l := range labels {
		rows = append(rows, []any{"QA Label " + strconv.Itoa(l), qa.ClassificationCounts[l]})
	}

	for i, r := range rows {
		if err := setRow(f, summarySheet, i+1, r); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return eris.Wrapf(err, "report: row %d", row)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return eris.Wrapf(err, "report: write %s row %d", sheet, row)
	}
	return nil
}
