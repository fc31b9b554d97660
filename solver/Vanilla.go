package solver

import G "gorgonia.org/gorgonia"

// newVanilla returns a new Gorgonia vanilla gradient descent Solver
func newVanilla(c Config) G.Solver {
	return G.NewVanillaSolver(c.opts()...)
}
