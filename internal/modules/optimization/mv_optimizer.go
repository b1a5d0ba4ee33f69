package optimization

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

const (
	// DefaultMaxIterations bounds the major iterations of each solver attempt
	DefaultMaxIterations = 2000

	// DefaultWeightTolerance snaps weights below this value to zero
	DefaultWeightTolerance = 1e-6

	// gradientThreshold applies to the objective after scaling to unit magnitude
	gradientThreshold = 1e-7

	// Projected-gradient polish on the simplex. Stationarity is measured as the
	// largest weight change of one projected step of length 1/L.
	polishMaxIterations   = 100000
	polishTolerance       = 1e-10
	polishAcceptTolerance = 1e-7
)

// Solver names reported in Result.Method
const (
	MethodBFGS       = "bfgs"
	MethodNelderMead = "nelder-mead"
	MethodUniform    = "uniform"
)

// acceptedStatuses are the termination statuses treated as convergence
var acceptedStatuses = map[optimize.Status]bool{
	optimize.Success:             true,
	optimize.GradientThreshold:   true,
	optimize.FunctionConvergence: true,
}

// Result is a solved allocation. Weights follow the order of the inputs.
type Result struct {
	Weights            []float64
	ExpectedReturn     float64
	ExpectedVolatility float64
	Objective          float64
	Method             string
	Status             string
	Iterations         int
}

// MVOptimizer performs long-only, fully-invested mean-variance optimization.
//
// Objective:
//
//	minimize  λ·wᵀΣw − (1−λ)·μᵀw
//	subject to Σw = 1, 0 ≤ w_i ≤ 1
//
// The simplex is parameterised as w = softmax(z), so every iterate is feasible
// and the solver works unconstrained in z. z = 0 is the uniform portfolio.
// The BFGS answer is then polished by projected gradient on the simplex,
// which can move weights that softmax left pinned at zero.
type MVOptimizer struct {
	MaxIterations   int
	WeightTolerance float64
	log             zerolog.Logger
}

// NewMVOptimizer creates a new mean-variance optimizer.
func NewMVOptimizer(log zerolog.Logger) *MVOptimizer {
	return &MVOptimizer{
		MaxIterations:   DefaultMaxIterations,
		WeightTolerance: DefaultWeightTolerance,
		log:             log.With().Str("component", "mv_optimizer").Logger(),
	}
}

// Objective evaluates λ·wᵀΣw − (1−λ)·μᵀw
func Objective(w, mu []float64, cov mat.Symmetric, lambda float64) float64 {
	return lambda*quadForm(w, cov) - (1-lambda)*floats.Dot(mu, w)
}

// Optimize solves for the weights minimising the objective. The context
// deadline bounds the solver's runtime; cancellation aborts it.
func (o *MVOptimizer) Optimize(ctx context.Context, mu []float64, cov mat.Symmetric, lambda float64) (*Result, error) {
	n := len(mu)
	if n < 2 {
		return nil, fmt.Errorf("%w: %d items, need at least 2", domain.ErrInsufficientItems, n)
	}
	if cov == nil || cov.SymmetricDim() != n {
		return nil, fmt.Errorf("%w: covariance dimension does not match %d items", domain.ErrInvalidInput, n)
	}
	if math.IsNaN(lambda) || lambda < 0 || lambda > 1 {
		return nil, fmt.Errorf("%w: risk aversion %v outside [0, 1]", domain.ErrInvalidInput, lambda)
	}
	for i, m := range mu {
		if math.IsNaN(m) || math.IsInf(m, 0) {
			return nil, fmt.Errorf("%w: non-finite expected return at %d", domain.ErrInvalidPriceData, i)
		}
	}

	problem := o.problem(ctx, mu, cov, lambda)
	x, method, status, iterations, err := o.solve(ctx, problem, n)
	if err != nil {
		return nil, err
	}

	weights := softmax(x)
	if !allFinite(weights) {
		return nil, fmt.Errorf("%w: non-finite weights", domain.ErrOptimizationFailed)
	}

	// Softmax gradients vanish as a weight approaches zero, so BFGS can stop
	// with an item stuck at zero that the optimum holds. Finish on the simplex.
	weights, polished, err := o.polish(ctx, weights, mu, cov, lambda)
	if err != nil {
		return nil, err
	}
	iterations += polished
	weights = o.snap(weights)

	// The parameterisation only reaches a vertex asymptotically; take the
	// vertex when it is strictly better than the interior solution.
	best := Objective(weights, mu, cov, lambda)
	for i := 0; i < n; i++ {
		vertex := make([]float64, n)
		vertex[i] = 1
		if f := Objective(vertex, mu, cov, lambda); f < best-1e-12*math.Max(1, math.Abs(best)) {
			best = f
			weights = vertex
		}
	}

	variance := quadForm(weights, cov)
	if variance < 0 {
		// Round-off on a near-singular covariance
		variance = 0
	}

	res := &Result{
		Weights:            weights,
		ExpectedReturn:     floats.Dot(mu, weights),
		ExpectedVolatility: math.Sqrt(variance),
		Objective:          best,
		Method:             method,
		Status:             status,
		Iterations:         iterations,
	}

	o.log.Debug().
		Str("method", method).
		Str("status", res.Status).
		Int("iterations", res.Iterations).
		Float64("risk_aversion", lambda).
		Float64("expected_return", res.ExpectedReturn).
		Float64("expected_volatility", res.ExpectedVolatility).
		Msg("Allocation solved")

	return res, nil
}

// solve runs BFGS from the uniform start and falls back to Nelder-Mead,
// seeded with the best BFGS point, when BFGS errors or stops on a
// non-accepted status.
func (o *MVOptimizer) solve(ctx context.Context, problem optimize.Problem, n int) ([]float64, string, string, int, error) {
	initial := make([]float64, n)

	grad := make([]float64, n)
	problem.Grad(grad, initial)
	if floats.Norm(grad, math.Inf(1)) < gradientThreshold {
		return initial, MethodUniform, optimize.GradientThreshold.String(), 0, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, "", "", 0, fmt.Errorf("%w: %w", domain.ErrOptimizationFailed, err)
	}

	method := MethodBFGS
	result, err := optimize.Minimize(problem, initial, o.settings(ctx), &optimize.BFGS{})
	if err != nil || result == nil || !acceptedStatuses[result.Status] {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", "", 0, fmt.Errorf("%w: %w", domain.ErrOptimizationFailed, ctxErr)
		}
		o.log.Debug().Err(err).Msg("BFGS did not converge, falling back to Nelder-Mead")

		start := initial
		if result != nil && allFinite(result.X) {
			start = result.X
		}
		method = MethodNelderMead
		result, err = optimize.Minimize(problem, start, o.settings(ctx), &optimize.NelderMead{})
	}
	if err != nil {
		return nil, "", "", 0, fmt.Errorf("%w: %w", domain.ErrOptimizationFailed, err)
	}
	if result == nil || !acceptedStatuses[result.Status] {
		status := "none"
		if result != nil {
			status = result.Status.String()
		}
		return nil, "", "", 0, fmt.Errorf("%w: solver did not converge: status=%s", domain.ErrOptimizationFailed, status)
	}
	return result.X, method, result.Status.String(), result.Stats.MajorIterations, nil
}

func (o *MVOptimizer) problem(ctx context.Context, mu []float64, cov mat.Symmetric, lambda float64) optimize.Problem {
	n := len(mu)

	scale := math.Max(lambda*maxAbsSym(cov), (1-lambda)*floats.Norm(mu, math.Inf(1)))
	if scale == 0 {
		scale = 1
	}

	g := make([]float64, n)
	return optimize.Problem{
		Func: func(z []float64) float64 {
			return Objective(softmax(z), mu, cov, lambda) / scale
		},
		Grad: func(grad, z []float64) {
			w := softmax(z)
			objectiveGrad(g, w, mu, cov, lambda)
			floats.Scale(1/scale, g)
			// Chain rule through softmax: ∂f/∂z_j = w_j (g_j − wᵀg)
			wg := floats.Dot(w, g)
			for j := 0; j < n; j++ {
				grad[j] = w[j] * (g[j] - wg)
			}
		},
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}
}

// polish runs accelerated projected gradient (FISTA with restart) on the
// simplex from w until a projected step moves no weight by more than
// polishTolerance. It returns the iterations spent.
func (o *MVOptimizer) polish(ctx context.Context, w0, mu []float64, cov mat.Symmetric, lambda float64) ([]float64, int, error) {
	n := len(w0)
	// 2λ·(max absolute row sum) bounds the Lipschitz constant of the gradient
	lip := 2 * lambda * maxRowSum(cov)
	if lip == 0 {
		// Linear objective: the vertex check settles it
		return w0, 0, nil
	}

	w := projectSimplex(w0)
	y := append([]float64(nil), w...)
	grad := make([]float64, n)
	step := make([]float64, n)
	f := Objective(w, mu, cov, lambda)
	t := 1.0
	restarted := false

	for k := 1; k <= polishMaxIterations; k++ {
		if k%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, k, fmt.Errorf("%w: %w", domain.ErrOptimizationFailed, err)
			}
		}

		objectiveGrad(grad, y, mu, cov, lambda)
		for i := range step {
			step[i] = y[i] - grad[i]/lip
		}
		next := projectSimplex(step)
		fNext := Objective(next, mu, cov, lambda)

		if fNext > f && !restarted {
			// Momentum overshot: drop it and take a plain step from w
			copy(y, w)
			t = 1
			restarted = true
			continue
		}
		restarted = false

		moved := maxAbsDiff(next, w)
		tNext := (1 + math.Sqrt(1+4*t*t)) / 2
		for i := range y {
			y[i] = next[i] + (t-1)/tNext*(next[i]-w[i])
		}
		w, f, t = next, fNext, tNext

		if moved < polishTolerance && o.stationarity(w, mu, cov, lambda, lip) < polishTolerance {
			return w, k, nil
		}
	}

	residual := o.stationarity(w, mu, cov, lambda, lip)
	if residual > polishAcceptTolerance {
		return nil, polishMaxIterations, fmt.Errorf("%w: not stationary on the simplex (residual %.3g)", domain.ErrOptimizationFailed, residual)
	}
	o.log.Debug().Float64("residual", residual).Msg("Polish stopped at the iteration limit")
	return w, polishMaxIterations, nil
}

// stationarity is the largest weight change of one projected gradient step
// of length 1/lip from w. It is zero exactly at the constrained minimum.
func (o *MVOptimizer) stationarity(w, mu []float64, cov mat.Symmetric, lambda, lip float64) float64 {
	grad := make([]float64, len(w))
	objectiveGrad(grad, w, mu, cov, lambda)
	step := make([]float64, len(w))
	for i := range step {
		step[i] = w[i] - grad[i]/lip
	}
	return maxAbsDiff(projectSimplex(step), w)
}

func (o *MVOptimizer) settings(ctx context.Context) *optimize.Settings {
	settings := &optimize.Settings{
		GradientThreshold: gradientThreshold,
		MajorIterations:   o.MaxIterations,
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 {
			settings.Runtime = remaining
		} else {
			settings.Runtime = time.Nanosecond
		}
	}
	return settings
}

// snap zeroes weights below the tolerance and renormalises to sum 1
func (o *MVOptimizer) snap(w []float64) []float64 {
	out := make([]float64, len(w))
	var sum float64
	for i, v := range w {
		if v < o.WeightTolerance {
			continue
		}
		out[i] = v
		sum += v
	}
	if sum == 0 {
		copy(out, w)
		return out
	}
	floats.Scale(1/sum, out)
	return out
}

// objectiveGrad writes ∂f/∂w = 2λΣw − (1−λ)μ into dst
func objectiveGrad(dst, w, mu []float64, cov mat.Symmetric, lambda float64) {
	n := len(w)
	for i := 0; i < n; i++ {
		var s float64
		for j := 0; j < n; j++ {
			s += cov.At(i, j) * w[j]
		}
		dst[i] = 2*lambda*s - (1-lambda)*mu[i]
	}
}

// projectSimplex returns the Euclidean projection of v onto
// {w : Σw = 1, w ≥ 0} (sort-based, O(n log n)).
func projectSimplex(v []float64) []float64 {
	u := append([]float64(nil), v...)
	sort.Sort(sort.Reverse(sort.Float64Slice(u)))

	var cum, theta float64
	for j, x := range u {
		cum += x
		if t := (cum - 1) / float64(j+1); x-t > 0 {
			theta = t
		}
	}

	w := make([]float64, len(v))
	for i, x := range v {
		w[i] = math.Max(x-theta, 0)
	}
	return w
}

// softmax maps z onto the probability simplex
func softmax(z []float64) []float64 {
	w := make([]float64, len(z))
	if len(z) == 0 {
		return w
	}
	m := floats.Max(z)
	var sum float64
	for i, v := range z {
		w[i] = math.Exp(v - m)
		sum += w[i]
	}
	floats.Scale(1/sum, w)
	return w
}

func quadForm(w []float64, cov mat.Symmetric) float64 {
	x := mat.NewVecDense(len(w), w)
	return mat.Inner(x, cov, x)
}

func maxRowSum(cov mat.Symmetric) float64 {
	n := cov.SymmetricDim()
	var m float64
	for i := 0; i < n; i++ {
		var s float64
		for j := 0; j < n; j++ {
			s += math.Abs(cov.At(i, j))
		}
		m = math.Max(m, s)
	}
	return m
}

func maxAbsDiff(a, b []float64) float64 {
	var m float64
	for i := range a {
		m = math.Max(m, math.Abs(a[i]-b[i]))
	}
	return m
}

func maxAbsSym(cov mat.Symmetric) float64 {
	n := cov.SymmetricDim()
	var m float64
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			m = math.Max(m, math.Abs(cov.At(i, j)))
		}
	}
	return m
}

func allFinite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
