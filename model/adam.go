package model

import (
	"math"

	"github.com/pkg/errors"
)

// Adam is the Adam optimizer over a flat parameter slice.
type Adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64

	m []float64
	v []float64
	t int
}

// NewAdam creates an optimizer for size parameters with the usual moment
// decay rates (0.9, 0.999).
func NewAdam(size int, lr float64) *Adam {
	return &Adam{
		lr:    lr,
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-8,
		m:     make([]float64, size),
		v:     make([]float64, size),
	}
}

// Step applies one bias-corrected update of params in place.
func (a *Adam) Step(params, grads []float64) error {
	if len(params) != len(a.m) || len(grads) != len(a.m) {
		return errors.Errorf("optimizer sized for %d parameters, got %d params and %d grads",
			len(a.m), len(params), len(grads))
	}

	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for i, g := range grads {
		a.m[i] = a.beta1*a.m[i] + (1-a.beta1)*g
		a.v[i] = a.beta2*a.v[i] + (1-a.beta2)*g*g
		params[i] -= a.lr * (a.m[i] / c1) / (math.Sqrt(a.v[i]/c2) + a.eps)
	}
	return nil
}
