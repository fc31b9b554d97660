// Package envconfig provides the JSON serializable configuration of the
// Atari environment an agent is trained on, and creates the emulator
// the configuration describes.
package envconfig

import (
	"fmt"
	"sort"
	"sync"

	"github.com/samuelfneumann/breakoutdqn/environment"
	"github.com/samuelfneumann/breakoutdqn/environment/breakout"
)

// Backend names an implementation of environment.Emulator
type Backend string

// Backends available for configuration. The Gym backend is only
// available when the gym package is linked in with the gogym build tag.
//
// Gym does not expose the remaining lives of an episode, so the Gym
// backend reports StartingLives until the episode ends. The scheduler
// then never sees a life lost mid-episode: FIRE is pressed only after a
// reset and DYING_REWARD is never applied.
const (
	Native Backend = "native"
	Gym    Backend = "gym"
)

// Factory creates the emulator described by a Config
type Factory func(c Config, seed uint64) (environment.Emulator, error)

var (
	registryMu sync.RWMutex
	registry   = map[Backend]Factory{
		Native: newNative,
	}
	finalizers = map[Backend]func(){}
)

// Register makes an emulator backend available by name. Registering a
// backend twice replaces the previous factory.
func Register(b Backend, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[b] = f
}

// RegisterFinalizer registers f to be called by Shutdown for backend b,
// replacing any earlier finalizer of b
func RegisterFinalizer(b Backend, f func()) {
	registryMu.Lock()
	defer registryMu.Unlock()
	finalizers[b] = f
}

// Shutdown calls and removes the finalizers of all registered backends.
// No emulator of a finalized backend can be used afterwards.
func Shutdown() {
	registryMu.Lock()
	fs := finalizers
	finalizers = map[Backend]func(){}
	registryMu.Unlock()

	for _, f := range fs {
		f()
	}
}

// Backends returns the names of all registered backends
func Backends() []Backend {
	registryMu.RLock()
	defer registryMu.RUnlock()

	backends := make([]Backend, 0, len(registry))
	for b := range registry {
		backends = append(backends, b)
	}
	sort.Slice(backends, func(i, j int) bool {
		return backends[i] < backends[j]
	})
	return backends
}

// Config describes the environment section of the parameters file
type Config struct {
	Name      string  `json:"NAME"`
	Backend   Backend `json:"BACKEND"` // Gym reports constant lives
	FrameSkip int     `json:"FRAME_SKIP"`

	Width  int `json:"FRAME_PROCESSED_WIDTH"`
	Height int `json:"FRAME_PROCESSED_HEIGHT"`
	Stack  int `json:"NUMBER_OF_FRAMES_TO_STACK_ON_STATE"`

	Render       bool   `json:"RENDER"`
	RenderOnEval bool   `json:"RENDER_ON_EVAL"`
	GifOnEval    bool   `json:"GIF_ON_EVAL"`
	Separator    string `json:"SEPARATOR"`
}

// Default returns the default environment configuration
func Default() Config {
	return Config{
		Name:      "BreakoutDeterministic-v4",
		Backend:   Native,
		FrameSkip: breakout.DefaultFrameSkip,
		Width:     84,
		Height:    84,
		Stack:     4,
	}
}

// Validate checks a Config for errors
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("validate: environment name must be set")
	}
	if c.FrameSkip < 1 {
		return fmt.Errorf("validate: frame skip must be positive, got %d",
			c.FrameSkip)
	}
	if c.Width < 1 || c.Height < 1 {
		return fmt.Errorf("validate: processed frame dimensions must be "+
			"positive, got %dx%d", c.Width, c.Height)
	}
	if c.Stack < 1 {
		return fmt.Errorf("validate: must stack at least one frame, got %d",
			c.Stack)
	}

	registryMu.RLock()
	_, ok := registry[c.Backend]
	registryMu.RUnlock()
	if !ok {
		return fmt.Errorf("validate: unknown backend %q, have %v", c.Backend,
			Backends())
	}
	return nil
}

// Emulator returns the emulator described by the Config
func (c Config) Emulator(seed uint64) (environment.Emulator, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("emulator: %w", err)
	}

	registryMu.RLock()
	f := registry[c.Backend]
	registryMu.RUnlock()

	e, err := f(c, seed)
	if err != nil {
		return nil, fmt.Errorf("emulator: could not create %v with %v "+
			"backend: %w", c.Name, c.Backend, err)
	}
	return e, nil
}

// newNative creates the pure Go Breakout emulator
func newNative(c Config, seed uint64) (environment.Emulator, error) {
	b, err := breakout.New(seed, c.FrameSkip)
	if err != nil {
		return nil, err
	}
	return b, nil
}
