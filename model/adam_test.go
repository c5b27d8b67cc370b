package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdam_MinimizesQuadratic(t *testing.T) {
	params := []float64{5, -3}
	opt := NewAdam(len(params), 0.1)

	grads := make([]float64, len(params))
	for i := 0; i < 500; i++ {
		for j, p := range params {
			grads[j] = 2 * p
		}
		require.NoError(t, opt.Step(params, grads))
	}

	assert.InDelta(t, 0, params[0], 1e-3)
	assert.InDelta(t, 0, params[1], 1e-3)
}

func TestAdam_FirstStepIsLearningRate(t *testing.T) {
	params := []float64{1}
	opt := NewAdam(1, 0.05)

	// With bias correction the first update moves by almost exactly lr.
	require.NoError(t, opt.Step(params, []float64{3}))
	assert.InDelta(t, 1-0.05, params[0], 1e-6)
}

func TestAdam_SizeMismatchFails(t *testing.T) {
	opt := NewAdam(2, 0.1)
	assert.Error(t, opt.Step([]float64{1}, []float64{1, 2}))
	assert.Error(t, opt.Step([]float64{1, 2}, []float64{1}))
}
