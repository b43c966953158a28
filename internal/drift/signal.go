package drift

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/readiness-engine/internal/model"
)

// DriftSignal returns the signal a drift result should raise, if any. The
// estimated impact is the change in the mid valuation when it fell.
func DriftSignal(id, companyID string, res Result, at time.Time) (model.Signal, bool) {
	if res.SignalSeverity == nil {
		return model.Signal{}, false
	}

	impact := decimal.NullDecimal{}
	if res.ValuationStart.Valid && res.ValuationEnd.Valid {
		if diff := res.ValuationEnd.Decimal.Sub(res.ValuationStart.Decimal); diff.IsNegative() {
			impact = decimal.NewNullDecimal(diff)
		}
	}

	var worst model.Category
	if declines := sortedDeclines(res.CategoryChanges); len(declines) > 0 {
		worst = declines[0].Category
	}

	return model.Signal{
		ID:                   id,
		CompanyID:            companyID,
		Title:                fmt.Sprintf("Buyer readiness dropped %.1f points", -res.BRIChange*100),
		Description:          fmt.Sprintf("Drift score %.2f over the period; overall direction %s.", res.Score, res.Direction),
		Severity:             *res.SignalSeverity,
		Confidence:           model.ConfidenceVerified,
		EstimatedValueImpact: impact,
		ResolutionStatus:     model.StatusOpen,
		EventType:            model.EventBRIDrift,
		Category:             worst,
		CreatedAt:            at,
	}, true
}
