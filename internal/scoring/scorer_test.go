package scoring

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/readiness-engine/internal/model"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func resp(id string, cat model.Category, maxPts, score float64, at time.Time) model.AssessmentResponse {
	return model.AssessmentResponse{
		QuestionID:      id,
		Category:        cat,
		MaxImpactPoints: decimal.NewFromFloat(maxPts),
		ScoreValue:      decimal.NewNullDecimal(decimal.NewFromFloat(score)),
		UpdatedAt:       at,
	}
}

func unanswered(id string, cat model.Category, maxPts float64, at time.Time) model.AssessmentResponse {
	return model.AssessmentResponse{
		QuestionID:      id,
		Category:        cat,
		MaxImpactPoints: decimal.NewFromFloat(maxPts),
		UpdatedAt:       at,
	}
}

func TestDeduplicate_KeepsLatest(t *testing.T) {
	t.Parallel()

	in := []model.AssessmentResponse{
		resp("q1", model.CategoryFinancial, 10, 2, t0),
		resp("q2", model.CategoryMarket, 10, 5, t0),
		resp("q1", model.CategoryFinancial, 10, 9, t0.Add(time.Hour)),
		resp("q1", model.CategoryFinancial, 10, 1, t0.Add(-time.Hour)),
	}

	out := Deduplicate(in)
	require.Len(t, out, 2)
	assert.Equal(t, "q1", out[0].QuestionID)
	assert.True(t, out[0].ScoreValue.Decimal.Equal(decimal.NewFromInt(9)))
	assert.Equal(t, "q2", out[1].QuestionID)
}

func TestDeduplicate_EqualTimestampLaterWins(t *testing.T) {
	t.Parallel()

	out := Deduplicate([]model.AssessmentResponse{
		resp("q1", model.CategoryFinancial, 10, 2, t0),
		resp("q1", model.CategoryFinancial, 10, 7, t0),
	})
	require.Len(t, out, 1)
	assert.True(t, out[0].ScoreValue.Decimal.Equal(decimal.NewFromInt(7)))
}

func TestScoreCategories_ReansweringOneCategoryKeepsOthers(t *testing.T) {
	t.Parallel()

	// First assessment answered both categories; a later one re-answered only financial.
	first := []model.AssessmentResponse{
		resp("f1", model.CategoryFinancial, 10, 4, t0),
		resp("m1", model.CategoryMarket, 10, 8, t0),
	}
	second := []model.AssessmentResponse{
		resp("f1", model.CategoryFinancial, 10, 10, t0.Add(24*time.Hour)),
	}

	res, err := ScoreCategories(append(first, second...), DefaultWeights())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Score(model.CategoryFinancial), 1e-9)
	assert.InDelta(t, 0.8, res.Score(model.CategoryMarket), 1e-9)
}

func TestScoreCategories_UnansweredDepressesScore(t *testing.T) {
	t.Parallel()

	res, err := ScoreCategories([]model.AssessmentResponse{
		resp("f1", model.CategoryFinancial, 10, 10, t0),
		unanswered("f2", model.CategoryFinancial, 10, t0),
	}, DefaultWeights())
	require.NoError(t, err)

	assert.InDelta(t, 0.5, res.Score(model.CategoryFinancial), 1e-9)
	for _, cs := range res.CategoryScores {
		if cs.Category == model.CategoryFinancial {
			assert.Equal(t, 1, cs.Answered)
			assert.Equal(t, 2, cs.Total)
			assert.True(t, cs.Max.Equal(decimal.NewFromInt(20)))
		}
	}
}

func TestScoreCategories_InactiveQuestionsIgnored(t *testing.T) {
	t.Parallel()

	inactive := unanswered("f2", model.CategoryFinancial, 10, t0)
	inactive.Inactive = true

	res, err := ScoreCategories([]model.AssessmentResponse{
		resp("f1", model.CategoryFinancial, 10, 10, t0),
		inactive,
	}, DefaultWeights())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Score(model.CategoryFinancial), 1e-9)
}

func TestScoreCategories_WeightedComposite(t *testing.T) {
	t.Parallel()

	weights := Weights{
		model.CategoryFinancial: 3,
		model.CategoryMarket:    1,
	}
	res, err := ScoreCategories([]model.AssessmentResponse{
		resp("f1", model.CategoryFinancial, 10, 10, t0),
		resp("m1", model.CategoryMarket, 10, 2, t0),
		resp("p1", model.CategoryPersonal, 10, 0, t0), // weight 0: excluded
	}, weights)
	require.NoError(t, err)
	require.NotNil(t, res.BRI)
	// (1.0*3 + 0.2*1) / 4 = 0.8
	assert.InDelta(t, 0.8, *res.BRI, 1e-9)
}

func TestScoreCategories_ZeroMaxCategoryExcluded(t *testing.T) {
	t.Parallel()

	res, err := ScoreCategories([]model.AssessmentResponse{
		resp("f1", model.CategoryFinancial, 10, 6, t0),
	}, DefaultWeights())
	require.NoError(t, err)
	require.NotNil(t, res.BRI)
	// Only financial has questions, so the composite equals its score.
	assert.InDelta(t, 0.6, *res.BRI, 1e-9)
	assert.Zero(t, res.Score(model.CategoryMarket))
}

func TestScoreCategories_ZeroTotalWeightIsUnavailable(t *testing.T) {
	t.Parallel()

	res, err := ScoreCategories([]model.AssessmentResponse{
		resp("f1", model.CategoryFinancial, 10, 6, t0),
	}, Weights{model.CategoryFinancial: 0})
	require.NoError(t, err)
	assert.Nil(t, res.BRI)
}

func TestScoreCategories_NoResponsesIsUnavailable(t *testing.T) {
	t.Parallel()

	res, err := ScoreCategories(nil, DefaultWeights())
	require.NoError(t, err)
	assert.Nil(t, res.BRI)
	assert.Len(t, res.CategoryScores, len(model.Categories))
}

func TestScoreCategories_UnknownCategoryFails(t *testing.T) {
	t.Parallel()

	_, err := ScoreCategories([]model.AssessmentResponse{
		resp("x1", model.Category("BOGUS"), 10, 6, t0),
	}, DefaultWeights())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUnknownCategory)
}

func TestScoreCategories_EarnedClampedToMax(t *testing.T) {
	t.Parallel()

	res, err := ScoreCategories([]model.AssessmentResponse{
		resp("f1", model.CategoryFinancial, 10, 15, t0),
	}, DefaultWeights())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Score(model.CategoryFinancial), 1e-9)
}

func TestScoreCategories_BRIInUnitIntervalForRandomWeights(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 200; i++ {
		weights := Weights{}
		var responses []model.AssessmentResponse
		for j, c := range model.Categories {
			weights[c] = rng.Float64() * 5
			for q := 0; q < 3; q++ {
				maxPts := 1 + rng.Float64()*20
				responses = append(responses, resp(
					string(c)+string(rune('a'+q))+string(rune('0'+j)),
					c, maxPts, rng.Float64()*maxPts, t0,
				))
			}
		}
		res, err := ScoreCategories(responses, weights)
		require.NoError(t, err)
		if weights.Sum() > 0 {
			require.NotNil(t, res.BRI)
			assert.GreaterOrEqual(t, *res.BRI, 0.0)
			assert.LessOrEqual(t, *res.BRI, 1.0)
		}
	}
}

func TestScoreCategories_Idempotent(t *testing.T) {
	t.Parallel()

	base := []model.AssessmentResponse{
		resp("f1", model.CategoryFinancial, 10, 7, t0.Add(time.Hour)),
		resp("t1", model.CategoryTransferability, 5, 2, t0),
		unanswered("o1", model.CategoryOperational, 8, t0),
	}
	withStale := append([]model.AssessmentResponse{
		resp("f1", model.CategoryFinancial, 10, 1, t0),
	}, base...)

	a, err := ScoreCategories(base, DefaultWeights())
	require.NoError(t, err)
	b, err := ScoreCategories(base, DefaultWeights())
	require.NoError(t, err)
	c, err := ScoreCategories(withStale, DefaultWeights())
	require.NoError(t, err)

	assert.Equal(t, a.ScoreMap(), b.ScoreMap())
	assert.Equal(t, a.ScoreMap(), c.ScoreMap())
	assert.Equal(t, *a.BRI, *c.BRI)
}

func TestResult_ScoreMap_OnlyAsked(t *testing.T) {
	t.Parallel()

	res, err := ScoreCategories([]model.AssessmentResponse{
		resp("f1", model.CategoryFinancial, 10, 4, t0),
	}, DefaultWeights())
	require.NoError(t, err)

	assert.Len(t, res.CategoryScores, len(model.Categories))
	assert.Equal(t, map[model.Category]float64{model.CategoryFinancial: 0.4}, res.ScoreMap())
}
