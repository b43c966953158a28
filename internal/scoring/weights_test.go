package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/readiness-engine/internal/model"
)

func TestDefaultWeights(t *testing.T) {
	t.Parallel()

	w := DefaultWeights()
	assert.Len(t, w, len(model.Categories))
	assert.InDelta(t, 1.0, w.Sum(), 1e-9)
	require.NoError(t, w.Validate())
}

func TestResolveWeights(t *testing.T) {
	t.Parallel()

	company := Weights{model.CategoryFinancial: 1}
	global := Weights{model.CategoryMarket: 1}

	tests := []struct {
		name    string
		company Weights
		global  Weights
		want    Weights
	}{
		{"company override wins", company, global, company},
		{"global when no company", nil, global, global},
		{"default when neither", nil, nil, DefaultWeights()},
		{"empty maps fall through", Weights{}, Weights{}, DefaultWeights()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ResolveWeights(tt.company, tt.global))
		})
	}
}

func TestResolveWeights_ReturnsCopy(t *testing.T) {
	t.Parallel()

	company := Weights{model.CategoryFinancial: 1}
	got := ResolveWeights(company, nil)
	got[model.CategoryFinancial] = 9
	assert.InDelta(t, 1.0, company[model.CategoryFinancial], 1e-9)
}

func TestWeightsValidate(t *testing.T) {
	t.Parallel()

	err := Weights{model.CategoryFinancial: -1}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FINANCIAL weight must be >= 0")

	err = Weights{model.Category("NOPE"): 1}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")

	assert.NoError(t, Weights{model.CategoryFinancial: 0}.Validate())
}
