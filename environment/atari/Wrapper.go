// Package atari implements an environment.Session over raw Atari
// emulators. Frames are preprocessed and stacked to form states, life
// losses are tracked, and rewards are shaped with a dying penalty.
package atari

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/breakoutdqn/environment"
	ts "github.com/samuelfneumann/breakoutdqn/timestep"
)

// Rows of the native 210 x 160 frame holding the playfield. Frames of
// any other height are used uncropped.
const (
	nativeHeight int = 210
	cropTop      int = 34
	cropBottom   int = 194
)

// Config describes how a Wrapper preprocesses frames
type Config struct {
	Width  int // Width of a processed frame
	Height int // Height of a processed frame
	Stack  int // Number of processed frames in a state

	// Maximum number of random no-op actions taken at the start of
	// evaluation episodes
	NoOpSteps int

	Render       bool   // Save raw frames during training
	RenderOnEval bool   // Save raw frames during evaluation
	RenderDir    string // Directory for rendered frames

	Seed uint64
}

// Validate checks a Config to ensure it is valid
func (c Config) Validate() error {
	if c.Width < 1 || c.Height < 1 {
		return fmt.Errorf("validate: frame dimensions must be positive "+
			"\n\thave(%vx%v)", c.Width, c.Height)
	}
	if c.Stack < 1 {
		return fmt.Errorf("validate: must stack at least one frame "+
			"\n\thave(%v)", c.Stack)
	}
	if c.NoOpSteps < 0 {
		return fmt.Errorf("validate: no-op steps must be non-negative "+
			"\n\thave(%v)", c.NoOpSteps)
	}
	if (c.Render || c.RenderOnEval) && c.RenderDir == "" {
		return fmt.Errorf("validate: rendering requires a directory")
	}
	return nil
}

// Wrapper implements environment.Session over an environment.Emulator
type Wrapper struct {
	emulator environment.Emulator
	config   Config
	rng      *rand.Rand
	logger   zerolog.Logger

	state     *tensor.Dense // (stack, height, width)
	step      int           // Steps taken in the current episode
	rendered  int           // Frames rendered so far
	lastLives int
}

// New returns a new Wrapper around an emulator
func New(e environment.Emulator, c Config, logger zerolog.Logger) (*Wrapper,
	error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	if c.Render || c.RenderOnEval {
		if err := os.MkdirAll(c.RenderDir, 0o755); err != nil {
			return nil, fmt.Errorf("new: could not create render "+
				"directory: %w", err)
		}
	}

	state := tensor.New(
		tensor.WithShape(c.Stack, c.Height, c.Width),
		tensor.WithBacking(make([]float64, c.Stack*c.Height*c.Width)),
	)

	return &Wrapper{
		emulator: e,
		config:   c,
		rng:      rand.New(rand.NewSource(c.Seed)),
		logger:   logger.With().Str("component", "atari").Logger(),
		state:    state,
	}, nil
}

// NumActions implements the environment.Session interface
func (w *Wrapper) NumActions() int {
	return w.emulator.NumActions()
}

// State implements the environment.Session interface. The returned
// tensor is overwritten by the next call to Step or Reset.
func (w *Wrapper) State() *tensor.Dense {
	return w.state
}

// Lives returns the number of lives the emulator reported on the last
// step or reset
func (w *Wrapper) Lives() int {
	return w.lastLives
}

// Close closes the underlying emulator
func (w *Wrapper) Close() error {
	return w.emulator.Close()
}

// Reset implements the environment.Session interface. In evaluation
// mode, a random number of no-op actions in [1, NoOpSteps] are taken
// before the first state is recorded. The state is filled with copies
// of the first processed frame. Reset always returns true, since no
// earlier frames exist to form a history with.
func (w *Wrapper) Reset(evaluation bool) (bool, error) {
	raw, lives, err := w.emulator.Reset()
	if err != nil {
		return true, fmt.Errorf("reset: could not reset emulator: %w", err)
	}

	if evaluation && w.config.NoOpSteps > 0 {
		noOps := w.rng.Intn(w.config.NoOpSteps) + 1
		w.logger.Debug().Int("noOps", noOps).Msg("starting evaluation episode")

		for i := 0; i < noOps; i++ {
			var done bool
			raw, _, done, lives, err = w.emulator.Step(0)
			if err != nil {
				return true, fmt.Errorf("reset: could not take no-op: %w",
					err)
			}
			if done {
				raw, lives, err = w.emulator.Reset()
				if err != nil {
					return true, fmt.Errorf("reset: could not reset "+
						"emulator: %w", err)
				}
			}
		}
	}

	frame := Preprocess(raw, w.config.Width, w.config.Height)
	data := w.state.Data().([]float64)
	size := w.config.Width * w.config.Height
	for i := 0; i < w.config.Stack; i++ {
		copy(data[i*size:(i+1)*size], frame.RawMatrix().Data)
	}

	w.step = 0
	w.lastLives = lives
	return true, nil
}

// Step implements the environment.Session interface.
//
// In training mode, the returned TimeStep has LifeLost set if the
// emulator reports fewer lives than currentLives or if the game ended,
// and dyingReward is added to the reward when a life is lost. In
// evaluation mode, LifeLost is only set when the game ends and rewards
// are left unshaped.
func (w *Wrapper) Step(action int, dyingReward float64, currentLives int,
	evaluation bool) (ts.TimeStep, error) {
	raw, reward, done, lives, err := w.emulator.Step(action)
	if err != nil {
		return ts.TimeStep{}, fmt.Errorf("step: could not step emulator: %w",
			err)
	}
	w.step++

	var lifeLost bool
	if evaluation {
		lifeLost = done
	} else {
		died := lives < currentLives
		lifeLost = died || done
		if died {
			reward += dyingReward
		}
	}

	frame := Preprocess(raw, w.config.Width, w.config.Height)
	w.push(frame)
	w.lastLives = lives

	if (w.config.Render && !evaluation) ||
		(w.config.RenderOnEval && evaluation) {
		if err := w.render(raw); err != nil {
			w.logger.Warn().Err(err).Msg("could not render frame")
		}
	}

	stepType := ts.Mid
	if done {
		stepType = ts.Last
	}
	return ts.New(stepType, reward, frame, raw, lifeLost, lives, w.step), nil
}

// push adds a processed frame to the end of the state, dropping the
// oldest frame
func (w *Wrapper) push(frame *mat.Dense) {
	data := w.state.Data().([]float64)
	size := w.config.Width * w.config.Height

	copy(data, data[size:])
	copy(data[(w.config.Stack-1)*size:], frame.RawMatrix().Data)
}

// render saves a raw frame as a PNG in the render directory
func (w *Wrapper) render(raw image.Image) error {
	dc := gg.NewContextForImage(raw)
	filename := filepath.Join(w.config.RenderDir,
		fmt.Sprintf("frame_%08d.png", w.rendered))
	w.rendered++

	return dc.SavePNG(filename)
}

// Preprocess converts a raw frame to a processed frame. The frame is
// cropped to the playfield, converted to grayscale, resized to
// height x width with nearest-neighbour sampling, and scaled to [0, 1].
func Preprocess(raw image.Image, width, height int) *mat.Dense {
	src := raw.Bounds()
	if src.Dy() == nativeHeight {
		src = image.Rect(src.Min.X, src.Min.Y+cropTop, src.Max.X,
			src.Min.Y+cropBottom)
	}

	gray := image.NewGray(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(gray, gray.Bounds(), raw, src, draw.Src, nil)

	data := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			data[y*width+x] = float64(gray.GrayAt(x, y).Y) / 255.0
		}
	}

	return mat.NewDense(height, width, data)
}
