// Package initwfn creates Gorgonia weight initializers from their
// configuration file names.
package initwfn

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// Type describes different types of InitWFn that are available
type Type string

// Available InitWFn types
const (
	GlorotU  Type = "GlorotU"
	GlorotN  Type = "GlorotN"
	HeU      Type = "HeU"
	HeN      Type = "HeN"
	Gaussian Type = "Gaussian"
	Uniform  Type = "Uniform"
	Zeroes   Type = "Zeroes"
	Ones     Type = "Ones"
)

// Config describes a weight initialization algorithm. Only the fields
// used by the algorithm of the given Type are read.
type Config struct {
	Type Type

	// Gain for Glorot and He initialization
	Gain float64

	// Gaussian initialization
	Mean   float64
	StdDev float64

	// Uniform initialization
	Low  float64
	High float64
}

// Default returns the He normal initialization with unit gain
func Default() Config {
	return Config{Type: HeN, Gain: 1.0}
}

// Validate checks that the configuration describes a weight
// initializer which can be created
func (c Config) Validate() error {
	switch c.Type {
	case GlorotU, GlorotN, HeU, HeN:
		if c.Gain <= 0 {
			return fmt.Errorf("validate: %v gain must be positive", c.Type)
		}
	case Gaussian:
		if c.StdDev <= 0 {
			return fmt.Errorf("validate: %v standard deviation must be "+
				"positive", c.Type)
		}
	case Uniform:
		if c.Low >= c.High {
			return fmt.Errorf("validate: %v requires low < high", c.Type)
		}
	case Zeroes, Ones:
	default:
		return fmt.Errorf("validate: unknown initializer type %q", c.Type)
	}
	return nil
}

// Create returns the Gorgonia InitWFn that the Config describes
func (c Config) Create() (G.InitWFn, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}

	switch c.Type {
	case GlorotU:
		return G.GlorotU(c.Gain), nil
	case GlorotN:
		return G.GlorotN(c.Gain), nil
	case HeU:
		return G.HeU(c.Gain), nil
	case HeN:
		return G.HeN(c.Gain), nil
	case Gaussian:
		return G.Gaussian(c.Mean, c.StdDev), nil
	case Uniform:
		return G.Uniform(c.Low, c.High), nil
	case Zeroes:
		return G.Zeroes(), nil
	default:
		return G.Ones(), nil
	}
}

// String implements the fmt.Stringer interface
func (c Config) String() string {
	return fmt.Sprintf("{%v InitWFn}", c.Type)
}
