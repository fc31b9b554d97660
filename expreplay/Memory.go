// Package expreplay implements the transition store used by Deep
// Q-learning on Atari games.
//
// Rather than storing full states, a Memory stores each preprocessed
// frame once, together with the action taken, the reward received, and
// a terminal flag. States are rebuilt from consecutive frames when a
// batch is sampled.
package expreplay

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Config describes a Memory
type Config struct {
	Capacity int // Maximum number of transitions stored
	Width    int // Width of a single frame
	Height   int // Height of a single frame
	Stack    int // Number of frames in a state
}

// Validate checks a Config for errors
func (c Config) Validate() error {
	if c.Stack < 1 {
		return fmt.Errorf("validate: stack must be positive\n\thave(%v)",
			c.Stack)
	}
	if c.Capacity <= c.Stack {
		return fmt.Errorf("validate: capacity must exceed stack size "+
			"\n\twant(>%v)\n\thave(%v)", c.Stack, c.Capacity)
	}
	if c.Width < 1 || c.Height < 1 {
		return fmt.Errorf("validate: frame dimensions must be positive "+
			"\n\thave(%vx%v)", c.Width, c.Height)
	}
	return nil
}

// Batch is a batch of transitions sampled from a Memory. States and
// NextStates are stored in row major order with shape
// (batch, stack, height, width).
type Batch struct {
	States     []float64
	Actions    []int
	Rewards    []float64
	NextStates []float64
	Terminals  []bool
}

// Len returns the number of transitions in the batch
func (b Batch) Len() int {
	return len(b.Actions)
}

// Memory implements a bounded circular buffer of Atari transitions.
// Once full, the oldest transitions are overwritten first.
//
// Memory is safe for concurrent use, so that multiple collectors may
// store transitions while a learner samples. The order in which
// concurrent stores are applied is unspecified.
type Memory struct {
	mu sync.Mutex

	frames    []uint8 // Frames quantized to 8 bits
	actions   []int
	rewards   []float64
	terminals []bool

	count   int // Number of transitions stored
	current int // Index of the next write

	capacity int
	width    int
	height   int
	stack    int

	sampler Selector
}

// New returns a new Memory with the given Config. Batches are chosen
// from the Memory by sampler.
func New(c Config, sampler Selector) (*Memory, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	return &Memory{
		frames:    make([]uint8, c.Capacity*c.Width*c.Height),
		actions:   make([]int, c.Capacity),
		rewards:   make([]float64, c.Capacity),
		terminals: make([]bool, c.Capacity),
		capacity:  c.Capacity,
		width:     c.Width,
		height:    c.Height,
		stack:     c.Stack,
		sampler:   sampler,
	}, nil
}

// Store stores a transition: the frame observed after taking action,
// the reward received, and whether a life was lost or the episode
// ended.
func (m *Memory) Store(frame *mat.Dense, action int, reward float64,
	terminal bool) error {
	if r, c := frame.Dims(); r != m.height || c != m.width {
		return fmt.Errorf("store: invalid frame size \n\twant(%vx%v)"+
			"\n\thave(%vx%v)", m.height, m.width, r, c)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	size := m.width * m.height
	start := m.current * size
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			m.frames[start+y*m.width+x] = quantize(frame.At(y, x))
		}
	}

	m.actions[m.current] = action
	m.rewards[m.current] = reward
	m.terminals[m.current] = terminal

	if m.count < m.capacity {
		m.count++
	}
	m.current = (m.current + 1) % m.capacity

	return nil
}

// Len returns the number of transitions stored
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.count
}

// Capacity returns the maximum number of transitions that can be stored
func (m *Memory) Capacity() int {
	return m.capacity
}

// MinCapacity returns the number of transitions required before a
// batch of the given size can be sampled
func (m *Memory) MinCapacity(batchSize int) int {
	if batchSize > m.stack+1 {
		return batchSize
	}
	return m.stack + 1
}

// Sample samples a batch of transitions
func (m *Memory) Sample(batchSize int) (Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.count == 0 {
		return Batch{}, &ExpReplayError{Op: "sample", Err: errEmptyCache}
	}
	if m.count < m.MinCapacity(batchSize) {
		return Batch{}, &ExpReplayError{
			Op:  "sample",
			Err: errInsufficientSamples,
		}
	}

	indices, err := m.sampler.choose(m, batchSize)
	if err != nil {
		return Batch{}, &ExpReplayError{Op: "sample", Err: err}
	}

	stateSize := m.stack * m.width * m.height
	batch := Batch{
		States:     make([]float64, batchSize*stateSize),
		Actions:    make([]int, batchSize),
		Rewards:    make([]float64, batchSize),
		NextStates: make([]float64, batchSize*stateSize),
		Terminals:  make([]bool, batchSize),
	}

	for i, index := range indices {
		m.state(index-1, batch.States[i*stateSize:(i+1)*stateSize])
		m.state(index, batch.NextStates[i*stateSize:(i+1)*stateSize])

		batch.Actions[i] = m.actions[index]
		batch.Rewards[i] = m.rewards[index]
		batch.Terminals[i] = m.terminals[index]
	}

	return batch, nil
}

// valid returns whether a state can be built ending at index
func (m *Memory) valid(index int) bool {
	if index < m.stack || index >= m.count {
		return false
	}

	// The history would mix frames from before and after the write
	// cursor
	if m.count == m.capacity && index >= m.current &&
		index-m.stack <= m.current {
		return false
	}

	for i := index - m.stack; i < index; i++ {
		if m.terminals[i] {
			return false
		}
	}
	return true
}

// state fills dst with the stack of frames ending at index
func (m *Memory) state(index int, dst []float64) {
	size := m.width * m.height
	for s := 0; s < m.stack; s++ {
		frame := index - m.stack + 1 + s
		src := m.frames[frame*size : (frame+1)*size]
		for j, v := range src {
			dst[s*size+j] = float64(v) / 255.0
		}
	}
}

// quantize converts a value in [0, 1] to 8 bits
func quantize(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}
