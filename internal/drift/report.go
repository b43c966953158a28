package drift

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/readiness-engine/internal/model"
)

// Period identifies the report being built. ID and CreatedAt are supplied
// by the caller so BuildReport stays deterministic.
type Period struct {
	ID        string
	CompanyID string
	Start     time.Time
	End       time.Time
	CreatedAt time.Time
}

// BuildReport turns a drift result into the immutable monthly report.
func BuildReport(p Period, in Input, res Result) model.DriftReport {
	changes := append([]model.CategoryChange(nil), res.CategoryChanges...)
	return model.DriftReport{
		ID:                p.ID,
		CompanyID:         p.CompanyID,
		PeriodStart:       p.Start,
		PeriodEnd:         p.End,
		BRIScoreStart:     res.BRIStart,
		BRIScoreEnd:       res.BRIEnd,
		ValuationStart:    res.ValuationStart,
		ValuationEnd:      res.ValuationEnd,
		CategoryChanges:   changes,
		Signals:           in.Signals,
		TasksCompleted:    in.TasksCompleted,
		TasksPendingStart: in.TasksPendingAtStart,
		CompletionRate:    res.CompletionRate,
		DriftScore:        res.Score,
		Direction:         res.Direction,
		SignalSeverity:    res.SignalSeverity,
		Summary:           Summarize(in, res),
		CreatedAt:         p.CreatedAt,
	}
}

var printer = message.NewPrinter(language.AmericanEnglish)

// Summarize renders the plain-English narrative for a drift result.
func Summarize(in Input, res Result) string {
	var b strings.Builder

	switch {
	case res.BRIStart != nil && res.BRIEnd != nil:
		verb := "held steady"
		if res.BRIChange > 0 {
			verb = "improved"
		} else if res.BRIChange < 0 {
			verb = "declined"
		}
		b.WriteString(printer.Sprintf("Buyer readiness %s from %.1f to %.1f (%+.1f points).",
			verb, *res.BRIStart*100, *res.BRIEnd*100, res.BRIChange*100))
	case res.BRIEnd != nil:
		b.WriteString(printer.Sprintf("Buyer readiness is %.1f; no earlier score to compare.", *res.BRIEnd*100))
	default:
		b.WriteString("Buyer readiness is not available for this period.")
	}

	switch {
	case res.ValuationStart.Valid && res.ValuationEnd.Valid:
		b.WriteString(printer.Sprintf(" Estimated value moved from %s to %s.",
			currency(res.ValuationStart.Decimal), currency(res.ValuationEnd.Decimal)))
	case res.ValuationEnd.Valid:
		b.WriteString(printer.Sprintf(" Estimated value is %s.", currency(res.ValuationEnd.Decimal)))
	}

	if declines := sortedDeclines(res.CategoryChanges); len(declines) > 0 {
		names := make([]string, 0, len(declines))
		for _, ch := range declines {
			names = append(names, ch.Category.Label())
		}
		b.WriteString(" Declining: " + strings.Join(names, ", ") + ".")
	}

	total := in.TasksCompleted + in.TasksPendingAtStart
	if total > 0 {
		b.WriteString(printer.Sprintf(" %d of %d tasks completed (%.0f%%).",
			in.TasksCompleted, total, res.CompletionRate*100))
	}
	if in.StaleDocumentCount > 0 {
		b.WriteString(printer.Sprintf(" %d documents are stale.", in.StaleDocumentCount))
	}
	if in.Signals.Critical > 0 || in.Signals.High > 0 {
		b.WriteString(printer.Sprintf(" %d critical and %d high signals were raised.", in.Signals.Critical, in.Signals.High))
	}

	b.WriteString(" Overall drift: " + string(res.Direction) + ".")
	return b.String()
}

func currency(d decimal.Decimal) string {
	return printer.Sprintf("$%.0f", d.Round(0).InexactFloat64())
}
