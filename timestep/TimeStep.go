// Package timestep implements timesteps of the agent-environment interaction
package timestep

import (
	"fmt"
	"image"

	"gonum.org/v1/gonum/mat"
)

// StepType denotes the type of step that a TimeStep can be, either  first
// environmental step, a middle step, or a last step
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// TimeStep packages together a single timestep in an Atari session.
//
// Observation is the most recent preprocessed frame (height x width,
// scaled to [0, 1]), while Raw is the unprocessed emulator frame which
// is only needed for rendering and evaluation replays. LifeLost is the
// terminal flag stored with transitions: it is set whenever a life was
// lost, or the episode ended. Lives holds the number of lives the
// emulator reports after the step.
type TimeStep struct {
	StepType
	Reward      float64
	Observation *mat.Dense
	Raw         image.Image
	LifeLost    bool
	Lives       int
	Number      int
}

// New returns a new TimeStep
func New(t StepType, r float64, o *mat.Dense, raw image.Image, lifeLost bool,
	lives, n int) TimeStep {
	return TimeStep{
		StepType:    t,
		Reward:      r,
		Observation: o,
		Raw:         raw,
		LifeLost:    lifeLost,
		Lives:       lives,
		Number:      n,
	}
}

// First returns whether a TimeStep is the first in an episode
func (t TimeStep) First() bool {
	return t.StepType == First
}

// Mid returns whether a TimeStep is a middle step in an episode
func (t TimeStep) Mid() bool {
	return t.StepType == Mid
}

// Last returns whether a TimeStep is the last step in an episode
func (t TimeStep) Last() bool {
	return t.StepType == Last
}

func (t TimeStep) String() string {
	str := "TimeStep | Type: %v  |  Reward:  %.2f  |  Lives: %v  |  " +
		"Life Lost: %v  |  Step Number:  %v"

	return fmt.Sprintf(str, t.StepType, t.Reward, t.Lives, t.LifeLost,
		t.Number)
}
