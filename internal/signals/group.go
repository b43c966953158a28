package signals

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sells-group/readiness-engine/internal/model"
)

// MaxActiveDisplaySignals is the default number of groups shown as active.
const MaxActiveDisplaySignals = 3

// SignalGroup collects signals sharing an event type.
type SignalGroup struct {
	EventType           string          `json:"event_type"`
	Title               string          `json:"title"`
	PrimarySignal       RankedSignal    `json:"primary_signal"`
	Signals             []RankedSignal  `json:"signals"`
	Count               int             `json:"count"`
	AggregateScore      float64         `json:"aggregate_score"`
	TotalWeightedImpact decimal.Decimal `json:"total_weighted_impact"`
	HighestSeverity     model.Severity  `json:"highest_severity"`
}

// Display is the bounded, UI-ready view of a company's signals.
type Display struct {
	Active                   []SignalGroup   `json:"active"`
	Queued                   []SignalGroup   `json:"queued"`
	TotalWeightedValueAtRisk decimal.Decimal `json:"total_weighted_value_at_risk"`
	TotalSignalCount         int             `json:"total_signal_count"`
}

var groupTitles = map[string]string{
	model.EventTimeDecayStaleness: "%d documents need attention",
	model.EventBRIDrift:           "%d drift signals",
	model.EventTaskOverdue:        "%d tasks are overdue",
	model.EventValuationDrop:      "%d valuation drops",
	model.EventRiskFactor:         "%d risk factors identified",
}

// GroupTitle returns the display title for a group of n signals. Single
// member groups use the signal's own title.
func GroupTitle(eventType string, n int, primaryTitle string) string {
	if n == 1 {
		return primaryTitle
	}
	if tmpl, ok := groupTitles[eventType]; ok {
		return fmt.Sprintf(tmpl, n)
	}
	return fmt.Sprintf("%d %s signals", n, strings.ReplaceAll(eventType, "_", " "))
}

// GroupSignals partitions ranked signals by event type. Each group's
// primary signal is its highest-ranked member and its aggregate score is
// that member's score. Groups come back sorted by aggregate score, highest
// first, with ties broken by event type.
func GroupSignals(ranked []RankedSignal) []SignalGroup {
	index := map[string]int{}
	var groups []SignalGroup

	for _, rs := range ranked {
		i, ok := index[rs.EventType]
		if !ok {
			i = len(groups)
			index[rs.EventType] = i
			groups = append(groups, SignalGroup{
				EventType:           rs.EventType,
				PrimarySignal:       rs,
				AggregateScore:      rs.RankScore,
				TotalWeightedImpact: decimal.Zero,
				HighestSeverity:     rs.Severity,
			})
		}
		g := &groups[i]
		g.Signals = append(g.Signals, rs)
		g.Count++
		if rs.RankScore > g.AggregateScore {
			g.PrimarySignal = rs
			g.AggregateScore = rs.RankScore
		}
		if severityWeights[rs.Severity] > severityWeights[g.HighestSeverity] {
			g.HighestSeverity = rs.Severity
		}
		if rs.WeightedValueImpact.Valid {
			g.TotalWeightedImpact = g.TotalWeightedImpact.Add(rs.WeightedValueImpact.Decimal)
		}
	}

	for i := range groups {
		groups[i].Title = GroupTitle(groups[i].EventType, groups[i].Count, groups[i].PrimarySignal.Title)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].AggregateScore != groups[j].AggregateScore {
			return groups[i].AggregateScore > groups[j].AggregateScore
		}
		return groups[i].EventType < groups[j].EventType
	})
	return groups
}

// ProcessSignalsForDisplay ranks and groups signals, marks the top
// maxDisplay groups active and queues the rest. maxDisplay <= 0 uses
// MaxActiveDisplaySignals. Value at risk covers open signals only.
func ProcessSignalsForDisplay(signals []model.Signal, maxDisplay int) (Display, error) {
	if maxDisplay <= 0 {
		maxDisplay = MaxActiveDisplaySignals
	}

	ranked, err := RankSignals(signals)
	if err != nil {
		return Display{}, err
	}
	groups := GroupSignals(ranked)

	var open []model.Signal
	for _, s := range signals {
		if s.ResolutionStatus == model.StatusOpen {
			open = append(open, s)
		}
	}
	valueAtRisk, err := CalculateWeightedValueAtRisk(open)
	if err != nil {
		return Display{}, err
	}

	out := Display{
		Active:                   []SignalGroup{},
		Queued:                   []SignalGroup{},
		TotalWeightedValueAtRisk: valueAtRisk,
		TotalSignalCount:         len(signals),
	}
	if len(groups) <= maxDisplay {
		out.Active = append(out.Active, groups...)
		return out, nil
	}
	out.Active = append(out.Active, groups[:maxDisplay]...)
	out.Queued = append(out.Queued, groups[maxDisplay:]...)
	return out, nil
}
