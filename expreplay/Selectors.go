package expreplay

import (
	"golang.org/x/exp/rand"
)

// Selector implements functionality for choosing which transitions
// should be sampled from a Memory
type Selector interface {
	// choose selects n valid indices at which data should be sampled
	// from the Memory. The Memory is locked while choose is called.
	choose(m *Memory, n int) ([]int, error)
}

// uniformSelector is a Selector which selects data from a Memory
// uniformly randomly, rejecting indices whose state would be invalid
type uniformSelector struct {
	rng *rand.Rand

	// Number of rejected draws allowed per index before giving up
	maxRejections int
}

// NewUniformSelector returns a new Selector which selects data uniformly
// randomly from a Memory
func NewUniformSelector(seed uint64) Selector {
	source := rand.NewSource(seed)
	rng := rand.New(source)

	return &uniformSelector{rng: rng, maxRejections: 1000}
}

// choose selects n indices at which to draw data from the Memory. An
// index i is valid when the stack of frames ending at i neither crosses
// the write cursor nor contains a terminal transition before i.
func (u *uniformSelector) choose(m *Memory, n int) ([]int, error) {
	selected := make([]int, n)
	low, high := m.stack, m.count

	for i := 0; i < n; i++ {
		found := false
		for attempt := 0; attempt < u.maxRejections; attempt++ {
			index := low + u.rng.Intn(high-low)
			if m.valid(index) {
				selected[i] = index
				found = true
				break
			}
		}

		if !found {
			return nil, errNoValidIndices
		}
	}

	return selected, nil
}
