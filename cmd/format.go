package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/readiness-engine/internal/engine"
	"github.com/sells-group/readiness-engine/internal/model"
	"github.com/sells-group/readiness-engine/internal/priority"
	"github.com/sells-group/readiness-engine/internal/signals"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

var printer = message.NewPrinter(language.AmericanEnglish)

func checkFormat(format string) error {
	if format != formatTable && format != formatJSON {
		return eris.Errorf("unknown output format %q (want table or json)", format)
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode json")
}

func money(d decimal.Decimal) string {
	return printer.Sprintf("$%.0f", d.Round(0).InexactFloat64())
}

func nullMoney(d decimal.NullDecimal) string {
	if !d.Valid {
		return "n/a"
	}
	return money(d.Decimal)
}

func score(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", *v)
}

// formatAssessment writes a one-company summary followed by its ranked
// tasks.
func formatAssessment(out io.Writer, a *engine.Assessment) {
	s := a.Snapshot
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Company:\t%s\n", s.CompanyID)
	_, _ = fmt.Fprintf(w, "Benchmark:\t%s %s (%s)\n", a.Benchmark.NAICS, a.Benchmark.Label, a.Benchmark.Source)
	_, _ = fmt.Fprintf(w, "BRI:\t%s\n", score(s.BRIScore))
	_, _ = fmt.Fprintf(w, "Core score:\t%.3f\n", s.CoreScore)
	estimated := ""
	if s.EBITDAEstimated {
		estimated = " (estimated)"
	}
	_, _ = fmt.Fprintf(w, "Adjusted EBITDA:\t%s%s\n", money(s.AdjustedEBITDA), estimated)
	if s.Valued() && s.Gap != nil {
		_, _ = fmt.Fprintf(w, "Enterprise value:\t%s / %s / %s\n", money(s.V2.EVLow), money(s.V2.EVMid), money(s.V2.EVHigh))
		_, _ = fmt.Fprintf(w, "Value gap:\t%s\n", money(s.Gap.Total))
		_, _ = fmt.Fprintf(w, "  Addressable:\t%s\n", money(s.Gap.Addressable))
		_, _ = fmt.Fprintf(w, "  Structural:\t%s\n", money(s.Gap.Structural))
		_, _ = fmt.Fprintf(w, "  Aspirational:\t%s\n", money(s.Gap.Aspirational))
	} else {
		_, _ = fmt.Fprintln(w, "Enterprise value:\tn/a (no readiness answers)")
	}
	_ = w.Flush()

	if len(a.Tasks) > 0 {
		_, _ = fmt.Fprintln(out)
		formatTasks(out, a.Tasks)
	}
}

// formatTasks writes ranked tasks as a table.
func formatTasks(out io.Writer, tasks []priority.RankedTask) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tBAND\tID\tIMPACT\tDIFFICULTY\tVALUE\tTITLE")
	_, _ = fmt.Fprintln(w, "----\t----\t--\t------\t----------\t-----\t-----")
	for _, t := range tasks {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.Rank, t.Band, t.ID, t.Impact, t.Difficulty, money(t.Value), t.Title)
	}
	_ = w.Flush()
}

// formatSnapshots writes snapshot history, newest first.
func formatSnapshots(out io.Writer, snaps []model.ValuationSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CREATED\tREASON\tBRI\tCORE\tEV_MID\tGAP")
	_, _ = fmt.Fprintln(w, "-------\t------\t---\t----\t------\t---")
	for _, s := range snaps {
		gap := "n/a"
		if s.Gap != nil {
			gap = money(s.Gap.Total)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.3f\t%s\t%s\n",
			s.CreatedAt.Format("2006-01-02 15:04"),
			s.Reason,
			score(s.BRIScore),
			s.CoreScore,
			nullMoney(s.CurrentValue()),
			gap,
		)
	}
	_ = w.Flush()
}

// formatDriftReports writes drift reports, newest period first.
func formatDriftReports(out io.Writer, reports []model.DriftReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PERIOD\tDIRECTION\tSCORE\tBRI_START\tBRI_END\tSIGNAL\tSUMMARY")
	_, _ = fmt.Fprintln(w, "------\t---------\t-----\t---------\t-------\t------\t-------")
	for _, r := range reports {
		sev := ""
		if r.SignalSeverity != nil {
			sev = string(*r.SignalSeverity)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.4f\t%s\t%s\t%s\t%s\n",
			r.PeriodStart.Format("2006-01"),
			r.Direction,
			r.DriftScore,
			score(r.BRIScoreStart),
			score(r.BRIScoreEnd),
			sev,
			r.Summary,
		)
	}
	_ = w.Flush()
}

// formatSignals writes the active groups, then a count of queued ones.
func formatSignals(out io.Writer, d signals.Display) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SEVERITY\tCOUNT\tSCORE\tIMPACT\tTITLE")
	_, _ = fmt.Fprintln(w, "--------\t-----\t-----\t------\t-----")
	for _, g := range d.Active {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%.2f\t%s\t%s\n",
			g.HighestSeverity, g.Count, g.AggregateScore, money(g.TotalWeightedImpact), g.Title)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\n%d signals, %d groups queued, value at risk %s\n",
		d.TotalSignalCount, len(d.Queued), money(d.TotalWeightedValueAtRisk))
}
