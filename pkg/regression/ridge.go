package regression

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// RidgeTrainer fits an L2-penalized linear model. Features are divided by their
// population standard deviation without centering; the intercept is unpenalized.
type RidgeTrainer struct {
	Alpha float64
}

// machineEpsilon is the float64 unit roundoff; smaller spreads count as constant
const machineEpsilon = 0x1p-52

// Kind implements Trainer
func (t RidgeTrainer) Kind() Kind { return KindRidge }

// Fit implements Trainer
func (t RidgeTrainer) Fit(x *mat.Dense, y []float64) (Predictor, error) {
	n, p, err := checkTrainingSet(x, y)
	if err != nil {
		return nil, err
	}

	scale := make([]float64, p)
	col := make([]float64, n)

	for j := range p {
		mat.Col(col, j, x)

		_, std := stat.PopMeanStdDev(col, nil)
		if std < 10*machineEpsilon || math.IsNaN(std) {
			std = 1
		}

		scale[j] = std
	}

	// Centre the scaled design so the intercept drops out of the penalty
	xc := mat.NewDense(n, p, nil)
	means := make([]float64, p)

	for j := range p {
		mat.Col(col, j, x)
		floats.Scale(1/scale[j], col)

		means[j] = stat.Mean(col, nil)
		floats.AddConst(-means[j], col)
		xc.SetCol(j, col)
	}

	yMean := stat.Mean(y, nil)
	yc := make([]float64, n)
	copy(yc, y)
	floats.AddConst(-yMean, yc)

	coef, err := solveRidge(xc, mat.NewVecDense(n, yc), t.Alpha)
	if err != nil {
		return nil, err
	}

	return &Ridge{
		Scale:     scale,
		Coef:      coef,
		Intercept: yMean - floats.Dot(means, coef),
	}, nil
}

// solveRidge solves (X'X + alpha*I) w = X'y, falling back to a minimum-norm
// least squares solution when the system is not positive definite.
func solveRidge(x *mat.Dense, y *mat.VecDense, alpha float64) ([]float64, error) {
	_, p := x.Dims()

	gram := mat.NewSymDense(p, nil)
	gram.SymOuterK(1, x.T())

	for j := range p {
		gram.SetSym(j, j, gram.At(j, j)+alpha)
	}

	var rhs mat.VecDense
	rhs.MulVec(x.T(), y)

	var w mat.VecDense

	var chol mat.Cholesky
	if chol.Factorize(gram) {
		if err := chol.SolveVecTo(&w, &rhs); err == nil {
			return w.RawVector().Data, nil
		}
	}

	var svd mat.SVD
	if !svd.Factorize(gram, mat.SVDThin) {
		return nil, ErrSingular
	}

	svd.SolveVecTo(&w, &rhs, svd.Rank(1e-12))

	return w.RawVector().Data, nil
}

// Ridge is a fitted ridge regression
type Ridge struct {
	Scale     []float64 `json:"scale"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

// Kind implements Predictor
func (r *Ridge) Kind() Kind { return KindRidge }

// Features implements Predictor
func (r *Ridge) Features() int { return len(r.Coef) }

// Predict implements Predictor
func (r *Ridge) Predict(x []float64) (float64, error) {
	if err := checkInput(x, len(r.Coef)); err != nil {
		return 0, err
	}

	v := r.Intercept
	for j, xj := range x {
		v += xj / r.Scale[j] * r.Coef[j]
	}

	return v, nil
}
