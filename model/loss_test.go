package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSoftmaxCrossEntropy_UniformLogits(t *testing.T) {
	logits := mat.NewDense(2, 4, nil)
	loss, grad, err := SoftmaxCrossEntropy(logits, []int{0, 3})
	require.NoError(t, err)

	// Uniform logits over C classes lose ln(C).
	assert.InDelta(t, math.Log(4), loss, 1e-12)

	// Gradient rows sum to zero.
	for i := 0; i < 2; i++ {
		sum := 0.0
		for j := 0; j < 4; j++ {
			sum += grad.At(i, j)
		}
		assert.InDelta(t, 0, sum, 1e-12)
	}
}

func TestSoftmaxCrossEntropy_ConfidentCorrect(t *testing.T) {
	logits := mat.NewDense(1, 2, []float64{100, -100})
	loss, _, err := SoftmaxCrossEntropy(logits, []int{0})
	require.NoError(t, err)
	assert.InDelta(t, 0, loss, 1e-12)
}

func TestSoftmaxCrossEntropy_Validates(t *testing.T) {
	logits := mat.NewDense(2, 3, nil)

	_, _, err := SoftmaxCrossEntropy(logits, []int{0})
	assert.Error(t, err)

	_, _, err = SoftmaxCrossEntropy(logits, []int{0, 3})
	assert.Error(t, err)
}

func TestCorrectAndAccuracy(t *testing.T) {
	logits := mat.NewDense(4, 3, []float64{
		5, 1, 1,
		1, 5, 1,
		1, 1, 5,
		5, 1, 1,
	})

	correct, err := Correct(logits, []int{0, 1, 2, 1})
	require.NoError(t, err)
	assert.Equal(t, 3, correct)

	acc, err := Accuracy(logits, []int{0, 1, 2, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, acc, 1e-12)
}

func TestAccuracy_EmptyFails(t *testing.T) {
	_, err := Accuracy(mat.NewDense(1, 2, nil), nil)
	assert.Error(t, err)
}
