package deepq

import (
	"fmt"

	"github.com/samuelfneumann/breakoutdqn/initwfn"
	"github.com/samuelfneumann/breakoutdqn/network"
	"github.com/samuelfneumann/breakoutdqn/solver"
)

// Config implements a configuration of a DeepQ agent
type Config struct {
	Architecture network.Architecture
	Epsilon      EpsilonSchedule
	Solver       solver.Config
	InitWFn      initwfn.Config

	// BatchSize is the number of transitions in each learning step
	BatchSize int

	// Tau is the Polyak averaging constant used when synchronizing the
	// target network. A value of 1 copies the weights.
	Tau float64

	Seed uint64
}

// Validate checks a Config for errors
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("validate: batch size must be positive, got %d",
			c.BatchSize)
	}
	if c.Solver.Batch != c.BatchSize {
		return fmt.Errorf("validate: solver batch size %d does not match "+
			"batch size %d", c.Solver.Batch, c.BatchSize)
	}
	if c.Tau <= 0 || c.Tau > 1 {
		return fmt.Errorf("validate: τ must be in (0, 1], got %v", c.Tau)
	}

	if err := c.Architecture.Validate(); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if err := c.Epsilon.Validate(); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if err := c.Solver.Validate(); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if err := c.InitWFn.Validate(); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return nil
}
