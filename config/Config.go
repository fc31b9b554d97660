// Package config loads the parameters of a Breakout DQN run from a JSON
// parameters file. The file has an "environment" and an "agent" section
// with upper case keys. Keys missing from the file keep their default
// values, and a few keys may be overridden from the process
// environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/samuelfneumann/breakoutdqn/agent/deepq"
	"github.com/samuelfneumann/breakoutdqn/environment/atari"
	"github.com/samuelfneumann/breakoutdqn/environment/envconfig"
	"github.com/samuelfneumann/breakoutdqn/experiment"
	"github.com/samuelfneumann/breakoutdqn/expreplay"
	"github.com/samuelfneumann/breakoutdqn/initwfn"
	"github.com/samuelfneumann/breakoutdqn/network"
	"github.com/samuelfneumann/breakoutdqn/solver"
)

// Environment variables which override the parameters file
const (
	EnvOutputDir = "BREAKOUT_OUTPUT_DIR"
	EnvSeed      = "BREAKOUT_SEED"
	EnvLogLevel  = "BREAKOUT_LOG_LEVEL"
)

// Params holds all parameters of a run
type Params struct {
	Environment envconfig.Config `json:"environment"`
	Agent       Agent            `json:"agent"`
}

// Agent holds the parameters of the agent and the training schedule
type Agent struct {
	MemorySize    int `json:"MEMORY_SIZE"`
	MiniBatchSize int `json:"MINI_BATCH_SIZE"`

	EpsilonMax             float64 `json:"EPSILON_MAX"`
	ConstantEpsilonFrames  int     `json:"NUMBER_OF_FRAMES_WITH_CONSTANT_EPSILON"`
	FirstEpsilonDecay      float64 `json:"FIRST_EPSILON_DECAY"`
	FirstEpsilonDecayFrame int     `json:"FRAMES_TO_FIRST_EPSILON_DECAY"`
	FinalEpsilon           float64 `json:"FINAL_EPSILON_VALUE"`
	FinalEpsilonFrame      int     `json:"FRAMES_TO_FINAL_EPSILON"`
	EvalEpsilon            float64 `json:"EXPLORATION_PROBABILITY_DURING_EVALUATION"`

	LearningRate float64      `json:"LEARNING_RATE"`
	Optimizer    solver.Type  `json:"OPTIMIZER"`
	WeightInit   initwfn.Type `json:"WEIGHT_INIT"`
	Tau          float64      `json:"TAU"`
	Activation   string       `json:"ACTIVATION"` // Hidden layers

	NoOpSteps        int     `json:"NO_OP_STEPS"`
	MaxFrames        int     `json:"MAX_FRAMES"`
	EvalFrequency    int     `json:"EVAL_FREQUENCY"`
	MaxEpisodeLength int     `json:"MAX_EPISODE_LENGTH"`
	DyingReward      float64 `json:"DYING_REWARD"`
	ClipReward       bool    `json:"CLIP_REWARD"`

	UpdateFrequency        int                    `json:"UPDATE_FREQUENCY"`
	UpdateCadence          experiment.CadenceMode `json:"UPDATE_CADENCE"`
	ReplayStartFrame       int                    `json:"REPLAY_MEMORY_START_FRAME"`
	Gamma                  float64                `json:"GAMMA"`
	NetworkUpdateFrequency int                    `json:"NETWORK_UPDATE_FREQ"`

	EvalSteps            int     `json:"EVAL_STEPS"`
	ResetEachEvalEpisode bool    `json:"RESET_EACH_EVAL_EPISODE"`
	PhasePauseSeconds    float64 `json:"PHASE_PAUSE_SECONDS"`

	OutputDir       string `json:"OUTPUT_DIR"`
	Training        bool   `json:"TRAINING"`
	Seed            uint64 `json:"SEED"`
	LogLevel        string `json:"LOG_LEVEL"`
	CheckpointEvery int    `json:"CHECKPOINT_EVERY"` // Epochs, 0 disables
}

// Default returns the default parameters
func Default() Params {
	return Params{
		Environment: envconfig.Default(),
		Agent: Agent{
			MemorySize:    100_000,
			MiniBatchSize: 32,

			EpsilonMax:             1.0,
			ConstantEpsilonFrames:  50_000,
			FirstEpsilonDecay:      0.1,
			FirstEpsilonDecayFrame: 1_000_000,
			FinalEpsilon:           0.01,
			FinalEpsilonFrame:      2_000_000,
			EvalEpsilon:            0.0,

			LearningRate: 0.00025,
			Optimizer:    solver.Adam,
			WeightInit:   initwfn.HeN,
			Tau:          1.0,
			Activation:   "relu",

			NoOpSteps:        30,
			MaxFrames:        10_000_000,
			EvalFrequency:    250_000,
			MaxEpisodeLength: 18_000,
			DyingReward:      0,
			ClipReward:       true,

			UpdateFrequency:        4,
			UpdateCadence:          experiment.CadenceModulo,
			ReplayStartFrame:       50_000,
			Gamma:                  0.99,
			NetworkUpdateFrequency: 10_000,

			EvalSteps: 125_000,

			OutputDir:       "output",
			Training:        true,
			LogLevel:        zerolog.LevelInfoValue,
			CheckpointEvery: 1,
		},
	}
}

// Load reads the parameters file at filename over the default
// parameters
func Load(filename string) (Params, error) {
	p := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		return p, fmt.Errorf("load: could not read parameters: %w", err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("load: could not decode %v: %w", filename, err)
	}
	return p, nil
}

// ApplyEnv overrides parameters with the values of the environment
// variables EnvOutputDir, EnvSeed and EnvLogLevel that lookup finds
func (p *Params) ApplyEnv(lookup func(string) (string, bool)) error {
	if dir, ok := lookup(EnvOutputDir); ok && dir != "" {
		p.Agent.OutputDir = dir
	}
	if level, ok := lookup(EnvLogLevel); ok && level != "" {
		p.Agent.LogLevel = level
	}
	if seed, ok := lookup(EnvSeed); ok && seed != "" {
		s, err := strconv.ParseUint(seed, 10, 64)
		if err != nil {
			return fmt.Errorf("applyEnv: invalid %v: %w", EnvSeed, err)
		}
		p.Agent.Seed = s
	}
	return nil
}

// Validate checks the parameters for errors, returning the first one
// found
func (p Params) Validate() error {
	if err := p.Environment.Validate(); err != nil {
		return fmt.Errorf("validate: environment: %w", err)
	}
	if _, err := p.Level(); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if p.Agent.MemorySize < p.Agent.MiniBatchSize {
		return fmt.Errorf("validate: memory size %d smaller than batch "+
			"size %d", p.Agent.MemorySize, p.Agent.MiniBatchSize)
	}
	if _, err := network.ParseActivation(p.Agent.Activation); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if p.Agent.CheckpointEvery < 0 {
		return fmt.Errorf("validate: checkpoint interval must be "+
			"non-negative, got %d", p.Agent.CheckpointEvery)
	}

	// Only the action count is unknown before the emulator exists
	if err := p.DeepQ(1).Validate(); err != nil {
		return fmt.Errorf("validate: agent: %w", err)
	}
	if err := p.Replay().Validate(); err != nil {
		return fmt.Errorf("validate: replay: %w", err)
	}
	if err := p.Session().Validate(); err != nil {
		return fmt.Errorf("validate: session: %w", err)
	}
	if err := p.Experiment().Validate(); err != nil {
		return fmt.Errorf("validate: experiment: %w", err)
	}
	return nil
}

// Level returns the configured log level
func (p Params) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(p.Agent.LogLevel)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("level: %w", err)
	}
	return level, nil
}

// DeepQ returns the configuration of the DeepQ agent for an emulator
// with numActions actions
func (p Params) DeepQ(numActions int) deepq.Config {
	a := p.Agent
	e := p.Environment

	// An unknown activation leaves the architecture invalid
	arch := network.NatureArchitecture(e.Stack, e.Height, e.Width, numActions)
	arch.Activation, _ = network.ParseActivation(a.Activation)

	return deepq.Config{
		Architecture: arch,
		Epsilon: deepq.EpsilonSchedule{
			Max:             a.EpsilonMax,
			ConstantFrames:  a.ConstantEpsilonFrames,
			FirstDecay:      a.FirstEpsilonDecay,
			FirstDecayFrame: a.FirstEpsilonDecayFrame,
			Final:           a.FinalEpsilon,
			FinalFrame:      a.FinalEpsilonFrame,
			Evaluation:      a.EvalEpsilon,
		},
		Solver:    p.solver(),
		InitWFn:   initwfn.Config{Type: a.WeightInit, Gain: 1.0},
		BatchSize: a.MiniBatchSize,
		Tau:       a.Tau,
		Seed:      a.Seed + agentSeedOffset,
	}
}

// solver returns the configuration of the optimizer named by OPTIMIZER
func (p Params) solver() solver.Config {
	a := p.Agent
	switch a.Optimizer {
	case solver.Adam:
		return solver.DefaultAdam(a.LearningRate, a.MiniBatchSize)
	case solver.RMSProp:
		return solver.DefaultRMSProp(a.LearningRate, a.MiniBatchSize)
	default:
		return solver.Config{
			Type:     a.Optimizer,
			StepSize: a.LearningRate,
			Batch:    a.MiniBatchSize,
		}
	}
}

// Offsets of each component's random stream from SEED, so that no two
// components draw from identical streams
const (
	emulatorSeedOffset uint64 = iota
	sessionSeedOffset
	replaySeedOffset
	agentSeedOffset
)

// EmulatorSeed returns the seed of the emulator
func (p Params) EmulatorSeed() uint64 {
	return p.Agent.Seed + emulatorSeedOffset
}

// ReplaySeed returns the seed of the replay memory's sampler
func (p Params) ReplaySeed() uint64 {
	return p.Agent.Seed + replaySeedOffset
}

// Replay returns the configuration of the replay memory
func (p Params) Replay() expreplay.Config {
	return expreplay.Config{
		Capacity: p.Agent.MemorySize,
		Width:    p.Environment.Width,
		Height:   p.Environment.Height,
		Stack:    p.Environment.Stack,
	}
}

// Session returns the configuration of the Atari session wrapper
func (p Params) Session() atari.Config {
	return atari.Config{
		Width:        p.Environment.Width,
		Height:       p.Environment.Height,
		Stack:        p.Environment.Stack,
		NoOpSteps:    p.Agent.NoOpSteps,
		Render:       p.Environment.Render,
		RenderOnEval: p.Environment.RenderOnEval,
		RenderDir:    filepath.Join(p.Agent.OutputDir, "render"),
		Seed:         p.Agent.Seed + sessionSeedOffset,
	}
}

// Experiment returns the configuration of the episode scheduler
func (p Params) Experiment() experiment.Config {
	a := p.Agent
	pause := time.Duration(a.PhasePauseSeconds * float64(time.Second))

	return experiment.Config{
		MaxFrames:              a.MaxFrames,
		EvalFrequency:          a.EvalFrequency,
		MaxEpisodeLength:       a.MaxEpisodeLength,
		EvalSteps:              a.EvalSteps,
		ReplayStartFrame:       a.ReplayStartFrame,
		UpdateFrequency:        a.UpdateFrequency,
		UpdateCadence:          a.UpdateCadence,
		NetworkUpdateFrequency: a.NetworkUpdateFrequency,
		BatchSize:              a.MiniBatchSize,
		Discount:               a.Gamma,
		DyingReward:            a.DyingReward,
		ClipReward:             a.ClipReward,
		GifOnEval:              p.Environment.GifOnEval,
		ResetEachEvalEpisode:   a.ResetEachEvalEpisode,
		PhasePause:             pause,
		OutputDir:              a.OutputDir,
		Separator:              p.Environment.Separator,
	}
}
