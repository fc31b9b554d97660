package solver

import G "gorgonia.org/gorgonia"

// DefaultRMSProp returns the configuration of an RMSProp solver with
// default hyperparameters
func DefaultRMSProp(stepSize float64, batchSize int) Config {
	return Config{
		Type:     RMSProp,
		StepSize: stepSize,
		Epsilon:  1e-8,
		Rho:      0.999,
		Batch:    batchSize,
	}
}

// newRMSProp returns a new Gorgonia RMSProp Solver
func newRMSProp(c Config) G.Solver {
	opts := append(c.opts(),
		G.WithEps(c.Epsilon),
		G.WithRho(c.Rho),
	)
	return G.NewRMSPropSolver(opts...)
}
