package solver

import G "gorgonia.org/gorgonia"

// DefaultAdam returns the configuration of an Adam solver with default
// hyperparameters
func DefaultAdam(stepSize float64, batchSize int) Config {
	return Config{
		Type:     Adam,
		StepSize: stepSize,
		Epsilon:  1e-8,
		Beta1:    0.9,
		Beta2:    0.999,
		Batch:    batchSize,
	}
}

// newAdam returns a new Gorgonia Adam Solver
func newAdam(c Config) G.Solver {
	opts := append(c.opts(),
		G.WithEps(c.Epsilon),
		G.WithBeta1(c.Beta1),
		G.WithBeta2(c.Beta2),
	)
	return G.NewAdamSolver(opts...)
}
