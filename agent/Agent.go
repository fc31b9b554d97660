// Package agent defines the interfaces of value-based agents which
// learn from stored transitions
package agent

import (
	"github.com/samuelfneumann/breakoutdqn/expreplay"
	"gorgonia.org/tensor"
)

// Agent determines the implementation details of an agent or algorithm
//
// An Agent is composed of a Learner, which learns weights, and a Policy
// which chooses actions in each state. The Policy chooses which actions
// are taken, and the Learner uses the stored consequences of these
// actions to update the Policy.
type Agent interface {
	Learner
	Policy
}

// Sampler samples batches of transitions to learn from
type Sampler interface {
	Sample(batchSize int) (expreplay.Batch, error)
}

// Loss describes a single learning step
type Loss struct {
	// Value is the mean squared TD error of the sampled batch
	Value float64

	// Skipped is true when the learning step was not taken because the
	// sampler did not yet hold enough transitions
	Skipped bool
}

// Learner implements a learning algorithm that defines how weights are
// updated.
type Learner interface {
	// Learn performs a single update using a batch of transitions
	// sampled from store, discounting next state values with discount
	Learn(store Sampler, discount float64, batchSize int) (Loss, error)

	// SynchronizeTarget copies the learned weights into the target
	// network which provides the update target
	SynchronizeTarget() error
}

// Policy represents a policy that an agent can have.
//
// Policies determine how agents select actions. The Policy and Learner
// should have pointers to the same weights so that any changes the
// learner makes to the weights are reflected in the actions the Policy
// chooses.
type Policy interface {
	// SelectAction selects an action in state. The exploration rate
	// depends on frame in training mode only.
	SelectAction(frame int, state *tensor.Dense, evaluation bool) (int,
		error)
}
