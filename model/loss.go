package model

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// SoftmaxCrossEntropy returns the mean cross-entropy loss of logits against
// the integer labels, together with the gradient of the loss with respect
// to the logits.
func SoftmaxCrossEntropy(logits *mat.Dense, labels []int) (float64, *mat.Dense, error) {
	rows, cols := logits.Dims()
	if rows != len(labels) {
		return 0, nil, errors.Errorf("got %d logit rows for %d labels", rows, len(labels))
	}
	if rows == 0 {
		return 0, nil, errors.New("cannot take the loss of an empty batch")
	}

	loss := 0.0
	grad := mat.NewDense(rows, cols, nil)
	probs := make([]float64, cols)
	for i := 0; i < rows; i++ {
		label := labels[i]
		if label < 0 || label >= cols {
			return 0, nil, errors.Errorf("label %d outside %d classes", label, cols)
		}

		max := logits.At(i, 0)
		for j := 1; j < cols; j++ {
			max = math.Max(max, logits.At(i, j))
		}
		sum := 0.0
		for j := 0; j < cols; j++ {
			probs[j] = math.Exp(logits.At(i, j) - max)
			sum += probs[j]
		}

		loss -= math.Log(probs[label] / sum)
		for j := 0; j < cols; j++ {
			g := probs[j] / sum
			if j == label {
				g--
			}
			grad.Set(i, j, g/float64(rows))
		}
	}
	return loss / float64(rows), grad, nil
}

// Correct returns how many logit rows have their argmax at the true label.
func Correct(logits *mat.Dense, labels []int) (int, error) {
	rows, cols := logits.Dims()
	if rows != len(labels) {
		return 0, errors.Errorf("got %d logit rows for %d labels", rows, len(labels))
	}

	correct := 0
	for i := 0; i < rows; i++ {
		best := 0
		for j := 1; j < cols; j++ {
			if logits.At(i, j) > logits.At(i, best) {
				best = j
			}
		}
		if best == labels[i] {
			correct++
		}
	}
	return correct, nil
}

// Accuracy returns the fraction of logit rows classified correctly.
func Accuracy(logits *mat.Dense, labels []int) (float64, error) {
	if len(labels) == 0 {
		return 0, errors.New("cannot take the accuracy of an empty batch")
	}
	correct, err := Correct(logits, labels)
	if err != nil {
		return 0, err
	}
	return float64(correct) / float64(len(labels)), nil
}
