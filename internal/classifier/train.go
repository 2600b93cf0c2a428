package classifier

import (
	"errors"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/sells-group/naf-analyzer/internal/model"
)

// TrainOptions configures Train.
type TrainOptions struct {
	// C is the inverse L2 regularization strength. Default 1.
	C float64
	// MaxIter caps Newton iterations. Default 300.
	MaxIter int
	// Tol stops iterating once the largest parameter step is below it.
	// Default 1e-6.
	Tol float64
	// Unweighted disables the inverse-frequency class weights.
	Unweighted bool
}

// DefaultTrainOptions returns C=1, 300 iterations, balanced class weights.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{C: 1, MaxIter: 300, Tol: 1e-6}
}

// TrainReport describes a finished fit.
type TrainReport struct {
	Samples      int        `json:"samples"`
	Positives    int        `json:"positives"`
	Iterations   int        `json:"iterations"`
	Converged    bool       `json:"converged"`
	Loss         float64    `json:"loss"`
	ClassWeights [2]float64 `json:"class_weights"`
}

const dim = model.NumFeatures + 1 // weights plus bias

// Train fits an L2-regularized logistic regression by Newton's method with
// step halving. The objective is
//
//	0.5*||w||^2 + C * sum_i s_i * logloss(y_i, b + w·x_i)
//
// where s_i = n / (2*n_class(y_i)) unless Unweighted is set. The bias is not
// penalized. The fit is deterministic.
func Train(X []model.FeatureVector, y []int, opts TrainOptions) (*Logistic, TrainReport, error) {
	opts = opts.withDefaults()
	var report TrainReport

	if len(X) != len(y) {
		return nil, report, eris.Errorf("classifier: %d samples but %d labels", len(X), len(y))
	}
	if len(X) == 0 {
		return nil, report, eris.New("classifier: empty training set")
	}

	var counts [2]int
	for i, label := range y {
		if label != 0 && label != 1 {
			return nil, report, eris.Wrapf(model.ErrMalformedLabel, "row %d: label %d", i, label)
		}
		if err := X[i].Validate(); err != nil {
			return nil, report, eris.Wrapf(err, "row %d", i)
		}
		counts[label]++
	}
	if counts[0] == 0 || counts[1] == 0 {
		return nil, report, eris.Wrapf(model.ErrMalformedLabel, "training set needs both classes (negatives=%d positives=%d)", counts[0], counts[1])
	}

	n := len(X)
	classWeights := [2]float64{1, 1}
	if !opts.Unweighted {
		classWeights[0] = float64(n) / (2 * float64(counts[0]))
		classWeights[1] = float64(n) / (2 * float64(counts[1]))
	}

	rows := make([][]float64, n)
	sw := make([]float64, n)
	for i, v := range X {
		row := append(v.Floats(), 1)
		rows[i] = row
		sw[i] = opts.C * classWeights[y[i]]
	}

	p := &problem{rows: rows, y: y, sw: sw}
	theta := make([]float64, dim)
	loss := p.objective(theta)

	report.Samples = n
	report.Positives = counts[1]
	report.ClassWeights = classWeights

	for iter := 1; iter <= opts.MaxIter; iter++ {
		report.Iterations = iter

		step, err := p.newtonStep(theta)
		if err != nil {
			return nil, report, err
		}

		// Halve the step until the objective does not increase.
		t := 1.0
		next := make([]float64, dim)
		nextLoss := loss
		for k := 0; k < 40; k++ {
			for j := range theta {
				next[j] = theta[j] - t*step[j]
			}
			nextLoss = p.objective(next)
			if nextLoss <= loss {
				break
			}
			t /= 2
		}

		maxStep := 0.0
		for j := range theta {
			maxStep = math.Max(maxStep, math.Abs(next[j]-theta[j]))
		}
		copy(theta, next)
		loss = nextLoss

		if maxStep < opts.Tol {
			report.Converged = true
			break
		}
	}
	report.Loss = loss

	if !report.Converged {
		zap.L().Warn("classifier: training stopped before convergence",
			zap.Int("iterations", report.Iterations),
			zap.Float64("loss", loss),
		)
	}

	m := &Logistic{Bias: theta[model.NumFeatures]}
	copy(m.Weights[:], theta[:model.NumFeatures])
	return m, report, nil
}

func (o TrainOptions) withDefaults() TrainOptions {
	d := DefaultTrainOptions()
	if o.C <= 0 {
		o.C = d.C
	}
	if o.MaxIter <= 0 {
		o.MaxIter = d.MaxIter
	}
	if o.Tol <= 0 {
		o.Tol = d.Tol
	}
	return o
}

type problem struct {
	rows [][]float64
	y    []int
	sw   []float64 // C times class weight
}

func (p *problem) objective(theta []float64) float64 {
	f := 0.0
	for j := 0; j < model.NumFeatures; j++ {
		f += 0.5 * theta[j] * theta[j]
	}
	for i, row := range p.rows {
		z := dot(theta, row)
		f += p.sw[i] * (softplus(z) - float64(p.y[i])*z)
	}
	return f
}

// newtonStep solves H·step = grad at theta.
func (p *problem) newtonStep(theta []float64) ([]float64, error) {
	grad := make([]float64, dim)
	hess := mat.NewSymDense(dim, nil)

	for i, row := range p.rows {
		prob := sigmoid(dot(theta, row))
		r := p.sw[i] * (prob - float64(p.y[i]))
		for j, x := range row {
			grad[j] += r * x
		}
		if w := p.sw[i] * prob * (1 - prob); w > 0 {
			hess.SymRankOne(hess, w, mat.NewVecDense(dim, row))
		}
	}
	for j := 0; j < model.NumFeatures; j++ {
		grad[j] += theta[j]
		hess.SetSym(j, j, hess.At(j, j)+1)
	}

	var chol mat.Cholesky
	for ridge := 1e-10; !chol.Factorize(hess); ridge *= 100 {
		if ridge > 1 {
			return nil, eris.New("classifier: hessian is not positive definite")
		}
		hess.SetSym(model.NumFeatures, model.NumFeatures, hess.At(model.NumFeatures, model.NumFeatures)+ridge)
	}

	var step mat.VecDense
	if err := chol.SolveVecTo(&step, mat.NewVecDense(dim, grad)); err != nil {
		// An ill-conditioned system still yields a usable step.
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, eris.Wrap(err, "classifier: solve newton system")
		}
	}
	return step.RawVector().Data, nil
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
