// Package regression provides the two model families competing per entity:
// a standardized ridge regression and a bootstrap random forest of regression trees.
package regression

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Kind identifies a model family
type Kind string

const (
	// KindRidge is a ridge regression on scaled features
	KindRidge Kind = "ridge"
	// KindForest is a random forest regressor
	KindForest Kind = "random_forest"
)

var (
	// ErrDimensionMismatch is returned when an input vector has the wrong length
	ErrDimensionMismatch = errors.New("feature dimension mismatch")
	// ErrEmptyTrainingSet is returned when fitting without observations
	ErrEmptyTrainingSet = errors.New("empty training set")
	// ErrSingular is returned when the ridge system cannot be factorized
	ErrSingular = errors.New("ridge system is singular")
	// ErrUnknownKind is returned when decoding an unknown model family
	ErrUnknownKind = errors.New("unknown model kind")
)

// Predictor is a fitted model
type Predictor interface {
	Kind() Kind
	// Features is the input dimension the model was fitted on
	Features() int
	Predict(x []float64) (float64, error)
}

// Trainer fits a fresh Predictor. Implementations keep no state between fits.
type Trainer interface {
	Kind() Kind
	Fit(x *mat.Dense, y []float64) (Predictor, error)
}

func checkTrainingSet(x *mat.Dense, y []float64) (int, int, error) {
	n, p := x.Dims()
	if n == 0 || len(y) == 0 {
		return 0, 0, ErrEmptyTrainingSet
	}

	if n != len(y) {
		return 0, 0, fmt.Errorf("%w: %d rows, %d targets", ErrDimensionMismatch, n, len(y))
	}

	return n, p, nil
}

func checkInput(x []float64, want int) error {
	if len(x) != want {
		return fmt.Errorf("%w: got %d values, model expects %d", ErrDimensionMismatch, len(x), want)
	}

	return nil
}

// PredictAll evaluates a model on every row of x
func PredictAll(p Predictor, x *mat.Dense) ([]float64, error) {
	n, _ := x.Dims()
	out := make([]float64, n)

	for i := range n {
		v, err := p.Predict(x.RawRowView(i))
		if err != nil {
			return nil, err
		}

		out[i] = v
	}

	return out, nil
}
