// Package solver creates Gorgonia Solvers from their configuration
// file names.
package solver

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// Type describes different types of solvers that are available
type Type string

// Available solver types
const (
	Adam    Type = "Adam"
	RMSProp Type = "RMSProp"
	Vanilla Type = "Vanilla"
)

// Config describes a Gorgonia Solver. Only the fields used by the
// solver of the given Type are read.
type Config struct {
	Type     Type
	StepSize float64
	Epsilon  float64 // Smoothing factor
	Beta1    float64
	Beta2    float64
	Rho      float64
	Batch    int
	Clip     float64 // <= 0 if no clipping
}

// Validate checks that the configuration describes a Solver which can
// be created
func (c Config) Validate() error {
	if c.StepSize <= 0 {
		return fmt.Errorf("validate: step size must be positive, got %v",
			c.StepSize)
	}
	if c.Batch <= 0 {
		return fmt.Errorf("validate: batch size must be positive, got %v",
			c.Batch)
	}

	switch c.Type {
	case Adam:
		if c.Beta1 < 0 || c.Beta1 >= 1 || c.Beta2 < 0 || c.Beta2 >= 1 {
			return fmt.Errorf("validate: %v betas must be in [0, 1)", c.Type)
		}
	case RMSProp:
		if c.Rho <= 0 || c.Rho >= 1 {
			return fmt.Errorf("validate: %v rho must be in (0, 1)", c.Type)
		}
	case Vanilla:
	default:
		return fmt.Errorf("validate: unknown solver type %q", c.Type)
	}
	return nil
}

// Create returns the Gorgonia Solver that the Config describes
func (c Config) Create() (G.Solver, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}

	switch c.Type {
	case Adam:
		return newAdam(c), nil
	case RMSProp:
		return newRMSProp(c), nil
	default:
		return newVanilla(c), nil
	}
}

// opts returns the solver options shared by all solvers
func (c Config) opts() []G.SolverOpt {
	opts := []G.SolverOpt{
		G.WithLearnRate(c.StepSize),
		G.WithBatchSize(float64(c.Batch)),
	}
	if c.Clip > 0 {
		opts = append(opts, G.WithClip(c.Clip))
	}
	return opts
}
