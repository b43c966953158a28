// Package priority maps task impact and difficulty to a fixed 1-25 rank.
package priority

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/readiness-engine/internal/model"
)

// Band groups ranks for display.
type Band string

const (
	BandHighest  Band = "HIGHEST"
	BandModerate Band = "MODERATE"
	BandDefer    Band = "DEFER"
)

// matrix rows run impact VERY_HIGH to NONE; columns run difficulty NONE to
// VERY_HIGH. Every rank 1-25 appears exactly once and ranks grow along both
// axes.
var matrix = [5][5]int{
	{1, 2, 4, 7, 11},
	{3, 5, 8, 12, 16},
	{6, 9, 13, 17, 20},
	{10, 14, 18, 21, 23},
	{15, 19, 22, 24, 25},
}

// CalculatePriorityRank returns the rank for an impact/difficulty pair;
// 1 is the most urgent.
func CalculatePriorityRank(impact model.ImpactLevel, difficulty model.DifficultyLevel) (int, error) {
	i := impact.Index()
	if i < 0 {
		return 0, eris.Wrapf(model.ErrUnknownImpact, "priority: %q", impact)
	}
	j := difficulty.Index()
	if j < 0 {
		return 0, eris.Wrapf(model.ErrUnknownDifficulty, "priority: %q", difficulty)
	}
	return matrix[len(model.ImpactLevels)-1-i][j], nil
}

// BandFor returns the display band for a rank.
func BandFor(rank int) Band {
	switch {
	case rank <= 10:
		return BandHighest
	case rank <= 17:
		return BandModerate
	default:
		return BandDefer
	}
}

// ScoreToImpactLevel maps a 0-1 readiness score to improvement impact: the
// lower the current score, the more there is to gain.
func ScoreToImpactLevel(score float64) model.ImpactLevel {
	switch {
	case score >= 0.9:
		return model.ImpactNone
	case score >= 0.75:
		return model.ImpactLow
	case score >= 0.5:
		return model.ImpactMedium
	case score >= 0.3:
		return model.ImpactHigh
	default:
		return model.ImpactVeryHigh
	}
}

var effortDifficulty = map[model.EffortLabel]model.DifficultyLevel{
	model.EffortMinimal:  model.DifficultyNone,
	model.EffortLow:      model.DifficultyLow,
	model.EffortModerate: model.DifficultyMedium,
	model.EffortHigh:     model.DifficultyHigh,
	model.EffortMajor:    model.DifficultyVeryHigh,
}

// EffortToDifficultyLevel prefers an hours estimate and falls back to the
// coarse effort label.
func EffortToDifficultyLevel(hours *float64, effort model.EffortLabel) (model.DifficultyLevel, error) {
	if hours != nil {
		switch h := *hours; {
		case h <= 1:
			return model.DifficultyNone, nil
		case h <= 4:
			return model.DifficultyLow, nil
		case h <= 16:
			return model.DifficultyMedium, nil
		case h <= 40:
			return model.DifficultyHigh, nil
		default:
			return model.DifficultyVeryHigh, nil
		}
	}
	d, ok := effortDifficulty[effort]
	if !ok {
		return "", eris.Wrapf(model.ErrUnknownEffort, "priority: %q with no hours estimate", effort)
	}
	return d, nil
}

// RankedTask is a task with its derived rank and band.
type RankedTask struct {
	model.Task
	Rank int  `json:"priority_rank"`
	Band Band `json:"band"`
}

// SortTasks ranks tasks and orders them by rank, then by value (highest
// first), then by ID.
func SortTasks(tasks []model.Task) ([]RankedTask, error) {
	out := make([]RankedTask, 0, len(tasks))
	for _, t := range tasks {
		rank, err := CalculatePriorityRank(t.Impact, t.Difficulty)
		if err != nil {
			return nil, eris.Wrapf(err, "priority: task %s", t.ID)
		}
		out = append(out, RankedTask{Task: t, Rank: rank, Band: BandFor(rank)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		if !out[i].Value.Equal(out[j].Value) {
			return out[i].Value.GreaterThan(out[j].Value)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
