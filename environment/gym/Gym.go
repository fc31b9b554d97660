//go:build gogym
// +build gogym

package gym

import (
	"fmt"
	"image"
	"image/color"

	"github.com/samuelfneumann/gogym"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/breakoutdqn/environment"
	"github.com/samuelfneumann/breakoutdqn/environment/envconfig"
)

// Observation layout of Gym's Atari environments
const (
	FrameHeight   int = 210
	FrameWidth    int = 160
	FrameChannels int = 3
)

func init() {
	envconfig.Register(envconfig.Gym, func(c envconfig.Config,
		seed uint64) (environment.Emulator, error) {
		e, err := New(c.Name, seed)
		if err != nil {
			return nil, err
		}
		return e, nil
	})
	envconfig.RegisterFinalizer(envconfig.Gym, Shutdown)
}

// Emulator implements environment.Emulator using GoGym
type Emulator struct {
	gogym.Environment
	numActions int
}

// New returns a new Emulator for the Gym environment with the given
// name, e.g. "BreakoutDeterministic-v4"
func New(name string, seed uint64) (*Emulator, error) {
	goGymEnv, err := gogym.Make(name)
	if err != nil {
		return nil, fmt.Errorf("new: could not create environment: %w", err)
	}
	goGymEnv.Seed(int(seed))

	space, ok := goGymEnv.ActionSpace().(*gogym.DiscreteSpace)
	if !ok {
		return nil, fmt.Errorf("new: environment %v does not have "+
			"discrete actions", name)
	}
	numActions := int(space.High()[0].AtVec(0)) + 1

	return &Emulator{Environment: goGymEnv, numActions: numActions}, nil
}

// Reset implements the environment.Emulator interface
func (e *Emulator) Reset() (image.Image, int, error) {
	obs, err := e.Environment.Reset()
	if err != nil {
		return nil, 0, fmt.Errorf("reset: could not reset environment: %w",
			err)
	}

	frame, err := toImage(obs)
	if err != nil {
		return nil, 0, fmt.Errorf("reset: %w", err)
	}
	return frame, environment.StartingLives, nil
}

// Step implements the environment.Emulator interface
func (e *Emulator) Step(action int) (image.Image, float64, bool, int,
	error) {
	a := mat.NewVecDense(1, []float64{float64(action)})
	obs, reward, done, err := e.Environment.Step(a)
	if err != nil {
		return nil, 0, true, 0, fmt.Errorf("step: could not step GoGym "+
			"environment: %w", err)
	}

	frame, err := toImage(obs)
	if err != nil {
		return nil, 0, true, 0, fmt.Errorf("step: %w", err)
	}

	// Gym hides the lives counter, so no life is lost before the end
	lives := environment.StartingLives
	if done {
		lives = 0
	}
	return frame, reward, done, lives, nil
}

// NumActions implements the environment.Emulator interface
func (e *Emulator) NumActions() int {
	return e.numActions
}

// Close implements the environment.Emulator interface
func (e *Emulator) Close() error {
	e.Environment.Close()
	return nil
}

// Shutdown closes the GoGym package. No Emulator can be used afterwards.
func Shutdown() {
	gogym.Close()
}

// toImage converts a flattened height x width x channel observation to
// an image
func toImage(obs mat.Vector) (image.Image, error) {
	want := FrameHeight * FrameWidth * FrameChannels
	if obs.Len() != want {
		return nil, fmt.Errorf("invalid observation size \n\twant(%v)"+
			"\n\thave(%v)", want, obs.Len())
	}

	img := image.NewRGBA(image.Rect(0, 0, FrameWidth, FrameHeight))
	for y := 0; y < FrameHeight; y++ {
		for x := 0; x < FrameWidth; x++ {
			i := (y*FrameWidth + x) * FrameChannels
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(obs.AtVec(i)),
				G: uint8(obs.AtVec(i + 1)),
				B: uint8(obs.AtVec(i + 2)),
				A: 255,
			})
		}
	}
	return img, nil
}
