package experiment

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/samuelfneumann/breakoutdqn/agent"
	"github.com/samuelfneumann/breakoutdqn/environment"
	"github.com/samuelfneumann/breakoutdqn/experiment/animation"
	"github.com/samuelfneumann/breakoutdqn/experiment/checkpointer"
	"github.com/samuelfneumann/breakoutdqn/experiment/trackers"
	ts "github.com/samuelfneumann/breakoutdqn/timestep"
	"github.com/samuelfneumann/breakoutdqn/utils/progressbar"
)

// GIFWriter renders captured raw frames into filename
type GIFWriter func(filename string, frames []image.Image) error

// Scheduler is an Experiment which alternates training epochs and
// evaluation phases of an agent on a Session. Each training epoch runs
// whole episodes until the epoch's frame budget is used up. Each
// evaluation phase then runs a fixed number of steps without storing
// transitions or learning.
//
// All counters and reward aggregates are owned by the Scheduler. A
// Scheduler is not safe for concurrent use.
type Scheduler struct {
	config  Config
	session environment.Session
	memory  Memory
	agent   agent.Agent
	logger  zerolog.Logger

	trackers      []trackers.Tracker
	checkpointers []checkpointer.Checkpointer
	writeGIF      GIFWriter
	progress      *progressbar.ProgressBar

	frame       int       // Training frame counter over the whole run
	rewards     []float64 // Reward of every training episode
	epochsMeans []float64
	evaluations []EvaluationResult
}

// New creates and returns a new Scheduler. Trackers track every
// training step, and checkpointers are called after every epoch.
func New(c Config, s environment.Session, m Memory, a agent.Agent,
	logger zerolog.Logger, t []trackers.Tracker,
	check []checkpointer.Checkpointer) (*Scheduler, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	return &Scheduler{
		config:        c,
		session:       s,
		memory:        m,
		agent:         a,
		logger:        logger.With().Str("component", "scheduler").Logger(),
		trackers:      t,
		checkpointers: check,
		writeGIF:      animation.Save,
		progress:      progressbar.New(30, c.MaxFrames),
	}, nil
}

// SetGIFWriter replaces the function used to render evaluation GIFs
func (s *Scheduler) SetGIFWriter(w GIFWriter) {
	s.writeGIF = w
}

// Register registers a Tracker with the Scheduler so that training
// data can be tracked and saved
func (s *Scheduler) Register(t trackers.Tracker) {
	s.trackers = append(s.trackers, t)
}

// Frame returns the training frame counter
func (s *Scheduler) Frame() int {
	return s.frame
}

// Rewards returns the reward of every training episode so far
func (s *Scheduler) Rewards() []float64 {
	return append([]float64(nil), s.rewards...)
}

// EpochsMeans returns the mean training episode reward of every
// completed epoch
func (s *Scheduler) EpochsMeans() []float64 {
	return append([]float64(nil), s.epochsMeans...)
}

// Evaluations returns the results of all evaluation phases
func (s *Scheduler) Evaluations() []EvaluationResult {
	return append([]EvaluationResult(nil), s.evaluations...)
}

// Run alternates training epochs and evaluation phases until the
// training frame counter reaches the frame budget. The context is
// checked between steps.
func (s *Scheduler) Run(ctx context.Context) error {
	for s.frame < s.config.MaxFrames {
		if _, err := s.TrainEpoch(ctx); err != nil {
			return fmt.Errorf("run: %w", err)
		}

		if err := s.pause(ctx); err != nil {
			return fmt.Errorf("run: %w", err)
		}
		s.logger.Info().Msg("============ STARTING EVALUATION ============")

		if _, err := s.Evaluate(ctx); err != nil {
			return fmt.Errorf("run: %w", err)
		}
	}
	return nil
}

// Save saves all data tracked by the Scheduler's Trackers
func (s *Scheduler) Save() error {
	for _, t := range s.trackers {
		if err := t.Save(); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}
	return nil
}

// pause sleeps for the configured phase pause or until ctx is done
func (s *Scheduler) pause(ctx context.Context) error {
	if s.config.PhasePause <= 0 {
		return nil
	}

	timer := time.NewTimer(s.config.PhasePause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// TrainEpoch runs training episodes until at least EvalFrequency
// training frames have been taken in the epoch, and returns the mean
// episode reward of the epoch
func (s *Scheduler) TrainEpoch(ctx context.Context) (float64, error) {
	epochFrames := 0
	var epochRewards []float64

	for epochFrames < s.config.EvalFrequency {
		total, steps, err := s.trainEpisode(ctx, epochRewards)
		epochFrames += steps
		if err != nil {
			return 0, fmt.Errorf("trainEpoch: %w", err)
		}

		s.rewards = append(s.rewards, total)
		epochRewards = append(epochRewards, total)
		for _, t := range s.trackers {
			t.EndEpisode()
		}
	}

	mean := stat.Mean(epochRewards, nil)
	s.epochsMeans = append(s.epochsMeans, mean)

	s.logger.Info().
		Int("epoch", len(s.epochsMeans)).
		Int("frame", s.frame).
		Int("episodes", len(epochRewards)).
		Str("progress", s.progress.String(s.frame)).
		Msgf("============ EPOCH %d FINISHED ============",
			len(s.epochsMeans))
	for i, m := range s.epochsMeans {
		s.logger.Info().Int("epoch", i).Float64("meanReward", m).
			Msg("epoch mean reward")
	}

	for _, c := range s.checkpointers {
		if err := c.Checkpoint(len(s.epochsMeans)); err != nil {
			return 0, fmt.Errorf("trainEpoch: %w", err)
		}
	}
	return mean, nil
}

// trainEpisode runs a single training episode, returning the episode's
// unclipped reward and the number of steps taken
func (s *Scheduler) trainEpisode(ctx context.Context,
	epochRewards []float64) (float64, int, error) {
	if _, err := s.session.Reset(false); err != nil {
		return 0, 0, fmt.Errorf("trainEpisode: %w", err)
	}

	total := 0.0
	lives := environment.StartingLives
	fire := true

	steps := 0
	for ; steps < s.config.MaxEpisodeLength; steps++ {
		if err := ctx.Err(); err != nil {
			return total, steps, err
		}

		if s.config.Separator != "" {
			s.logger.Info().Msg(s.config.Separator)
		}

		action := environment.FireAction
		if !fire {
			var err error
			action, err = s.agent.SelectAction(s.frame, s.session.State(),
				false)
			if err != nil {
				return total, steps, fmt.Errorf("trainEpisode: %w", err)
			}
		}

		step, err := s.session.Step(action, s.config.DyingReward, lives,
			false)
		if err != nil {
			return total, steps, fmt.Errorf("trainEpisode: %w", err)
		}
		s.logStep(action, step.Reward, epochRewards)

		s.frame++
		total += step.Reward

		reward := step.Reward
		if s.config.ClipReward {
			reward = ClipReward(reward)
		}
		err = s.memory.Store(step.Observation, action, reward, step.LifeLost)
		if err != nil {
			return total, steps + 1, fmt.Errorf("trainEpisode: could not "+
				"store transition: %w", err)
		}
		for _, t := range s.trackers {
			t.Track(step)
		}

		if err := s.update(); err != nil {
			return total, steps + 1, fmt.Errorf("trainEpisode: %w", err)
		}

		fire, lives = s.checkLives(step, fire, lives)
		if step.Last() {
			steps++
			break
		}
	}

	return total, steps, nil
}

// update triggers learning and target synchronization once the replay
// warm-up has passed
func (s *Scheduler) update() error {
	if s.frame <= s.config.ReplayStartFrame {
		return nil
	}

	if s.config.UpdateCadence.Due(s.frame, s.config.UpdateFrequency) {
		_, err := s.agent.Learn(s.memory, s.config.Discount,
			s.config.BatchSize)
		if err != nil {
			return fmt.Errorf("update: could not learn: %w", err)
		}
	}

	if s.frame%s.config.NetworkUpdateFrequency == 0 {
		if err := s.agent.SynchronizeTarget(); err != nil {
			return fmt.Errorf("update: could not synchronize target: %w",
				err)
		}
	}
	return nil
}

// checkLives returns whether the serve action must be taken on the
// next step and the current number of lives, given the previous values
// and the latest step
func (s *Scheduler) checkLives(step ts.TimeStep, fire bool,
	lives int) (bool, int) {
	switch {
	case step.Lives < lives:
		return true, step.Lives
	case step.Lives == lives:
		return false, lives
	default:
		s.logger.Warn().
			Int("lives", lives).
			Int("reported", step.Lives).
			Msg("number of lives increased")
		return fire, lives
	}
}

// logStep logs the action taken at the current training frame together
// with the running reward means
func (s *Scheduler) logStep(action int, reward float64,
	epochRewards []float64) {
	s.logger.Debug().
		Int("action", action).
		Float64("reward", reward).
		Int("frame", s.frame).
		Msg("action performed")

	if s.logger.GetLevel() > zerolog.DebugLevel {
		return
	}
	if len(s.rewards) != 0 {
		s.logger.Debug().
			Float64("mean", stat.Mean(s.rewards, nil)).
			Msg("mean training reward")
	}
	if len(epochRewards) != 0 {
		s.logger.Debug().
			Float64("mean", stat.Mean(epochRewards, nil)).
			Msg("mean epoch reward")
	}
}

// Evaluate runs an evaluation phase of EvalSteps steps. No transitions
// are stored and no learning happens. If GIF output is enabled, raw
// frames of the first episode are rendered to a GIF once the phase
// ends. Failing to render the GIF is logged and not returned.
func (s *Scheduler) Evaluate(ctx context.Context) (EvaluationResult,
	error) {
	gif := s.config.GifOnEval
	var frames []image.Image
	var result EvaluationResult

	if _, err := s.session.Reset(true); err != nil {
		return result, fmt.Errorf("evaluate: %w", err)
	}

	lives := environment.StartingLives
	fire := true
	episodeReward := 0.0

	for i := 0; i < s.config.EvalSteps; i++ {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("evaluate: %w", err)
		}

		action := environment.FireAction
		if !fire {
			var err error
			action, err = s.agent.SelectAction(result.Frames,
				s.session.State(), true)
			if err != nil {
				return result, fmt.Errorf("evaluate: %w", err)
			}
		}

		step, err := s.session.Step(action, s.config.DyingReward, lives,
			true)
		if err != nil {
			return result, fmt.Errorf("evaluate: %w", err)
		}
		s.logger.Debug().
			Int("action", action).
			Float64("reward", step.Reward).
			Int("frame", result.Frames).
			Msg("action performed")

		result.Frames++
		episodeReward += step.Reward

		if gif {
			frames = append(frames, step.Raw)
		}

		fire, lives = s.checkLives(step, fire, lives)

		if step.Last() {
			result.Rewards = append(result.Rewards, episodeReward)
			episodeReward = 0
			fire = true
			gif = false

			if s.config.ResetEachEvalEpisode && i+1 < s.config.EvalSteps {
				if _, err := s.session.Reset(true); err != nil {
					return result, fmt.Errorf("evaluate: %w", err)
				}
				lives = environment.StartingLives
			}
		}
	}
	result.CapturedFrames = len(frames)
	s.evaluations = append(s.evaluations, result)

	mean, err := result.Mean()
	if errors.Is(err, ErrNoEpisodes) {
		s.logger.Warn().Int("steps", result.Frames).
			Msg("No evaluation game finished!")
		return result, nil
	}
	s.logger.Info().
		Float64("score", mean).
		Int("episodes", result.Episodes()).
		Msg("evaluation score")

	if s.config.GifOnEval {
		filename := GIFFilename(s.config.OutputDir, result.Frames,
			result.Rewards[0])
		if err := s.writeGIF(filename, frames); err != nil {
			s.logger.Error().Err(err).Str("file", filename).
				Msg("could not render evaluation GIF")
		} else {
			s.logger.Info().Str("file", filename).Msg("saved evaluation GIF")
		}
	}
	return result, nil
}
