package scoring

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/readiness-engine/internal/model"
)

// Result is the output of ScoreCategories. BRI is nil when no category with
// positive weight has any active question, which callers must treat as "no
// score available" rather than zero.
type Result struct {
	CategoryScores []model.CategoryScore `json:"category_scores"`
	BRI            *float64              `json:"bri_score"`
}

// Score returns the score for c, or zero when c was not scored.
func (r Result) Score(c model.Category) float64 {
	for _, cs := range r.CategoryScores {
		if cs.Category == c {
			return cs.Score
		}
	}
	return 0
}

// ScoreMap returns the scores of categories that had at least one active
// question, keyed by category. Unasked categories are left out rather than
// reported as zero.
func (r Result) ScoreMap() map[model.Category]float64 {
	out := make(map[model.Category]float64, len(r.CategoryScores))
	for _, cs := range r.CategoryScores {
		if cs.Max.IsPositive() {
			out[cs.Category] = cs.Score
		}
	}
	return out
}

// Deduplicate keeps only the most recently updated response per question.
// Equal timestamps resolve to the later response in input order. The output
// preserves the order in which each question first appeared.
func Deduplicate(responses []model.AssessmentResponse) []model.AssessmentResponse {
	idx := make(map[string]int, len(responses))
	out := make([]model.AssessmentResponse, 0, len(responses))
	for _, r := range responses {
		i, seen := idx[r.QuestionID]
		if !seen {
			idx[r.QuestionID] = len(out)
			out = append(out, r)
			continue
		}
		if !r.UpdatedAt.Before(out[i].UpdatedAt) {
			out[i] = r
		}
	}
	return out
}

// ScoreCategories deduplicates responses, scores every category and computes
// the weighted BRI composite.
func ScoreCategories(responses []model.AssessmentResponse, weights Weights) (Result, error) {
	if err := weights.Validate(); err != nil {
		return Result{}, err
	}

	type tally struct {
		earned, max     decimal.Decimal
		answered, total int
	}
	tallies := make(map[model.Category]*tally, len(model.Categories))
	for _, c := range model.Categories {
		tallies[c] = &tally{}
	}

	for _, r := range Deduplicate(responses) {
		if r.Inactive {
			continue
		}
		t, ok := tallies[r.Category]
		if !ok {
			return Result{}, eris.Wrapf(model.ErrUnknownCategory, "scoring: question %s: %q", r.QuestionID, r.Category)
		}
		maxPts := decimal.Max(r.MaxImpactPoints, decimal.Zero)
		t.max = t.max.Add(maxPts)
		t.total++
		if r.Answered() {
			earned := decimal.Min(decimal.Max(r.ScoreValue.Decimal, decimal.Zero), maxPts)
			t.earned = t.earned.Add(earned)
			t.answered++
		}
	}

	res := Result{CategoryScores: make([]model.CategoryScore, 0, len(model.Categories))}
	var weighted, weightSum float64
	for _, c := range model.Categories {
		t := tallies[c]
		cs := model.CategoryScore{
			Category: c,
			Earned:   t.earned,
			Max:      t.max,
			Answered: t.answered,
			Total:    t.total,
		}
		if t.max.IsPositive() {
			cs.Score = clamp01(t.earned.Div(t.max).InexactFloat64())
			if w := weights[c]; w > 0 {
				weighted += cs.Score * w
				weightSum += w
			}
		}
		res.CategoryScores = append(res.CategoryScores, cs)
	}

	if weightSum > 0 {
		bri := clamp01(weighted / weightSum)
		res.BRI = &bri
	}
	return res, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
