// Package experiment implements functionality for running an experiment
// which alternates training epochs with evaluation phases
package experiment

import (
	"context"
	"fmt"
	"time"

	"github.com/samuelfneumann/breakoutdqn/agent"
	"gonum.org/v1/gonum/mat"
)

// Experiment outlines structs that can run experiments. The Run()
// method runs until the frame budget is exhausted or the context is
// cancelled. The Save() method saves all tracked data to disk, and is
// usually called after an experiment has been run.
type Experiment interface {
	Run(ctx context.Context) error
	Save() error
}

// Memory is a Transition Store which an agent can learn from
type Memory interface {
	agent.Sampler

	// Store records the frame observed after taking action, the reward
	// to learn from, and whether a life was lost
	Store(frame *mat.Dense, action int, reward float64, terminal bool) error
}

// CadenceMode determines on which training frames a learning step is
// taken
type CadenceMode string

const (
	// CadenceModulo learns on every frame divisible by the update
	// frequency
	CadenceModulo CadenceMode = "modulo"

	// CadenceSource learns on every frame not divisible by the update
	// frequency
	CadenceSource CadenceMode = "source"
)

// Due returns whether a learning step is due at frame
func (c CadenceMode) Due(frame, frequency int) bool {
	if c == CadenceSource {
		return frame%frequency != 0
	}
	return frame%frequency == 0
}

// Validate checks that c is a known CadenceMode
func (c CadenceMode) Validate() error {
	switch c {
	case CadenceModulo, CadenceSource:
		return nil
	}
	return fmt.Errorf("validate: unknown update cadence %q", c)
}

// Config describes the schedule of an experiment
type Config struct {
	MaxFrames        int // Training frames over all epochs
	EvalFrequency    int // Training frames per epoch
	MaxEpisodeLength int // Steps after which an episode is cut off
	EvalSteps        int // Steps in each evaluation phase

	// Learning and target synchronization only happen once the training
	// frame counter exceeds ReplayStartFrame
	ReplayStartFrame       int
	UpdateFrequency        int
	UpdateCadence          CadenceMode
	NetworkUpdateFrequency int

	BatchSize   int
	Discount    float64
	DyingReward float64
	ClipReward  bool

	GifOnEval            bool
	ResetEachEvalEpisode bool

	// PhasePause is slept between the end of a training epoch and the
	// start of evaluation
	PhasePause time.Duration

	OutputDir string
	Separator string // Logged before every training step if not empty
}

// Validate checks a Config for errors
func (c Config) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"max frames", c.MaxFrames},
		{"evaluation frequency", c.EvalFrequency},
		{"max episode length", c.MaxEpisodeLength},
		{"update frequency", c.UpdateFrequency},
		{"network update frequency", c.NetworkUpdateFrequency},
		{"batch size", c.BatchSize},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("validate: %v must be positive, got %d",
				p.name, p.value)
		}
	}

	if c.EvalSteps < 0 {
		return fmt.Errorf("validate: evaluation steps must be "+
			"non-negative, got %d", c.EvalSteps)
	}
	if c.ReplayStartFrame < 0 {
		return fmt.Errorf("validate: replay start frame must be "+
			"non-negative, got %d", c.ReplayStartFrame)
	}
	if c.Discount < 0 || c.Discount > 1 {
		return fmt.Errorf("validate: discount must be in [0, 1], got %v",
			c.Discount)
	}
	if c.PhasePause < 0 {
		return fmt.Errorf("validate: phase pause must be non-negative, "+
			"got %v", c.PhasePause)
	}
	if c.GifOnEval && c.OutputDir == "" {
		return fmt.Errorf("validate: GIF output requires an output " +
			"directory")
	}
	return c.UpdateCadence.Validate()
}
