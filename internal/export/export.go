// Package export writes snapshot history, drift reports and signals to an
// xlsx workbook for advisors who live in spreadsheets.
package export

import (
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/readiness-engine/internal/model"
)

// Sheet names.
const (
	SheetSnapshots = "Snapshots"
	SheetDrift     = "Drift"
	SheetSignals   = "Signals"
)

const (
	moneyFormat = "#,##0.00"
	scoreFormat = "0.0000"
	dateFormat  = "yyyy-mm-dd hh:mm"
)

// Data is everything that goes into a workbook. Any slice may be empty; its
// sheet still gets a header row.
type Data struct {
	Snapshots []model.ValuationSnapshot
	Reports   []model.DriftReport
	Signals   []model.Signal
}

// Build assembles the workbook.
func Build(d Data) (*xlsx.File, error) {
	f := xlsx.NewFile()

	if err := addSnapshots(f, d.Snapshots); err != nil {
		return nil, err
	}
	if err := addReports(f, d.Reports); err != nil {
		return nil, err
	}
	if err := addSignals(f, d.Signals); err != nil {
		return nil, err
	}
	return f, nil
}

// Write builds the workbook and streams it to w.
func Write(w io.Writer, d Data) error {
	f, err := Build(d)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "export: write workbook")
}

// WriteFile builds the workbook and saves it to path.
func WriteFile(path string, d Data) error {
	f, err := Build(d)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

func newSheet(f *xlsx.File, name string, header []string) (*xlsx.Sheet, error) {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return nil, eris.Wrapf(err, "export: add sheet %s", name)
	}
	row := sheet.AddRow()
	for _, h := range header {
		row.AddCell().SetString(h)
	}
	return sheet, nil
}

var snapshotHeader = func() []string {
	h := []string{
		"Company", "Created", "Reason", "BRI", "Core score", "Adjusted EBITDA", "EBITDA estimated",
		"Multiple low", "Multiple high", "EV low", "EV mid", "EV high", "DLOM", "V1 current", "V1 potential",
		"Gap total", "Gap addressable", "Gap structural", "Gap aspirational",
	}
	for _, c := range model.Categories {
		h = append(h, c.Label())
	}
	return h
}()

func addSnapshots(f *xlsx.File, snaps []model.ValuationSnapshot) error {
	sheet, err := newSheet(f, SheetSnapshots, snapshotHeader)
	if err != nil {
		return err
	}
	for _, s := range snaps {
		row := sheet.AddRow()
		row.AddCell().SetString(s.CompanyID)
		setTime(row.AddCell(), s.CreatedAt)
		row.AddCell().SetString(string(s.Reason))
		setScore(row.AddCell(), s.BRIScore)
		row.AddCell().SetFloatWithFormat(s.CoreScore, scoreFormat)
		setMoney(row.AddCell(), s.AdjustedEBITDA)
		row.AddCell().SetBool(s.EBITDAEstimated)
		row.AddCell().SetFloat(s.IndustryMultipleLow.InexactFloat64())
		row.AddCell().SetFloat(s.IndustryMultipleHi.InexactFloat64())
		for _, v := range valuationCells(&s) {
			setNullMoney(row.AddCell(), v)
		}
		for _, c := range model.Categories {
			if v, ok := s.CategoryScore(c); ok {
				row.AddCell().SetFloatWithFormat(v, scoreFormat)
			} else {
				row.AddCell()
			}
		}
	}
	return nil
}

var reportHeader = []string{
	"Company", "Period start", "Period end", "BRI start", "BRI end", "Valuation start", "Valuation end",
	"Drift score", "Direction", "Tasks completed", "Tasks pending", "Completion rate",
	"High signals", "Critical signals", "Drift signal", "Summary",
}

func addReports(f *xlsx.File, reports []model.DriftReport) error {
	sheet, err := newSheet(f, SheetDrift, reportHeader)
	if err != nil {
		return err
	}
	for _, r := range reports {
		row := sheet.AddRow()
		row.AddCell().SetString(r.CompanyID)
		setTime(row.AddCell(), r.PeriodStart)
		setTime(row.AddCell(), r.PeriodEnd)
		setScore(row.AddCell(), r.BRIScoreStart)
		setScore(row.AddCell(), r.BRIScoreEnd)
		setNullMoney(row.AddCell(), r.ValuationStart)
		setNullMoney(row.AddCell(), r.ValuationEnd)
		row.AddCell().SetFloatWithFormat(r.DriftScore, scoreFormat)
		row.AddCell().SetString(string(r.Direction))
		row.AddCell().SetInt(r.TasksCompleted)
		row.AddCell().SetInt(r.TasksPendingStart)
		row.AddCell().SetFloatWithFormat(r.CompletionRate, scoreFormat)
		row.AddCell().SetInt(r.Signals.High)
		row.AddCell().SetInt(r.Signals.Critical)
		if r.SignalSeverity != nil {
			row.AddCell().SetString(string(*r.SignalSeverity))
		} else {
			row.AddCell()
		}
		row.AddCell().SetString(r.Summary)
	}
	return nil
}

var signalHeader = []string{
	"ID", "Company", "Created", "Title", "Severity", "Confidence", "Status", "Event type", "Category", "Value impact",
}

func addSignals(f *xlsx.File, sigs []model.Signal) error {
	sheet, err := newSheet(f, SheetSignals, signalHeader)
	if err != nil {
		return err
	}
	for _, s := range sigs {
		row := sheet.AddRow()
		row.AddCell().SetString(s.ID)
		row.AddCell().SetString(s.CompanyID)
		setTime(row.AddCell(), s.CreatedAt)
		row.AddCell().SetString(s.Title)
		row.AddCell().SetString(string(s.Severity))
		row.AddCell().SetString(string(s.Confidence))
		row.AddCell().SetString(string(s.ResolutionStatus))
		row.AddCell().SetString(s.EventType)
		row.AddCell().SetString(string(s.Category))
		if s.EstimatedValueImpact.Valid {
			setMoney(row.AddCell(), s.EstimatedValueImpact.Decimal)
		} else {
			row.AddCell()
		}
	}
	return nil
}

func setMoney(c *xlsx.Cell, v decimal.Decimal) {
	c.SetFloatWithFormat(v.InexactFloat64(), moneyFormat)
}

// valuationCells returns the V2, V1 and gap columns of a snapshot, all
// invalid when the snapshot carries no valuation.
func valuationCells(s *model.ValuationSnapshot) []decimal.NullDecimal {
	out := make([]decimal.NullDecimal, 10)
	if s.V2 != nil {
		for i, v := range []decimal.Decimal{s.V2.EVLow, s.V2.EVMid, s.V2.EVHigh, s.V2.DLOMAmount} {
			out[i] = decimal.NewNullDecimal(v)
		}
	}
	if s.V1 != nil {
		out[4] = decimal.NewNullDecimal(s.V1.CurrentValue)
		out[5] = decimal.NewNullDecimal(s.V1.PotentialValue)
	}
	if s.Gap != nil {
		for i, v := range []decimal.Decimal{s.Gap.Total, s.Gap.Addressable, s.Gap.Structural, s.Gap.Aspirational} {
			out[6+i] = decimal.NewNullDecimal(v)
		}
	}
	return out
}

func setNullMoney(c *xlsx.Cell, v decimal.NullDecimal) {
	if v.Valid {
		setMoney(c, v.Decimal)
	}
}

// setScore leaves the cell blank for an unavailable score.
func setScore(c *xlsx.Cell, v *float64) {
	if v == nil {
		return
	}
	c.SetFloatWithFormat(*v, scoreFormat)
}

func setTime(c *xlsx.Cell, t time.Time) {
	if t.IsZero() {
		return
	}
	c.SetDateWithOptions(t.UTC(), xlsx.DateTimeOptions{Location: time.UTC, ExcelTimeFormat: dateFormat})
}
