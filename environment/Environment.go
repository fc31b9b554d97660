// Package environment outlines the interfaces needed to implement
// Atari environments and the sessions that wrap them for training.
package environment

import (
	"image"

	"gorgonia.org/tensor"

	ts "github.com/samuelfneumann/breakoutdqn/timestep"
)

const (
	// StartingLives is the number of lives a Breakout game starts with
	StartingLives int = 5

	// FireAction is the action that serves the ball in Breakout. It
	// must be taken at the start of an episode and after a life is lost
	// for the game to continue.
	FireAction int = 1
)

// Emulator implements a raw Atari game. Frames are returned exactly as
// the game displays them, and rewards are the unshaped game score
// increments.
type Emulator interface {
	// Reset starts a new game and returns its first frame and the
	// number of lives remaining
	Reset() (image.Image, int, error)

	// Step takes an action in the game and returns the next frame,
	// the reward, whether the game is over, and the number of lives
	// remaining
	Step(action int) (image.Image, float64, bool, int, error)

	// NumActions returns the number of legal actions, which are
	// enumerated from 0
	NumActions() int

	Close() error
}

// Session wraps an Emulator and provides preprocessed, stacked
// observations and shaped rewards for learning.
type Session interface {
	// Reset starts a new episode in training or evaluation mode and
	// returns the life lost flag of the first state
	Reset(evaluation bool) (bool, error)

	// Step takes an action in the session. The dyingReward is added
	// to the reward when a life is lost, and currentLives is the
	// number of lives the caller believes remain before the step.
	//
	// The returned TimeStep is Last if the game ended.
	Step(action int, dyingReward float64, currentLives int,
		evaluation bool) (ts.TimeStep, error)

	// State returns the current stack of preprocessed frames, with
	// shape (stack, height, width)
	State() *tensor.Dense

	// NumActions returns the number of actions in the session
	NumActions() int
}
