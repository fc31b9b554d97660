package experiment

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// ErrNoEpisodes is returned when no evaluation episode finished within
// the evaluation step budget
var ErrNoEpisodes = errors.New("no evaluation game finished")

// EvaluationResult summarizes a single evaluation phase
type EvaluationResult struct {
	Rewards        []float64 // Reward of each finished episode
	Frames         int       // Steps taken during the phase
	CapturedFrames int       // Raw frames captured for the GIF
}

// Episodes returns the number of finished episodes
func (e EvaluationResult) Episodes() int {
	return len(e.Rewards)
}

// Mean returns the mean reward over finished episodes, or ErrNoEpisodes
// if no episode finished
func (e EvaluationResult) Mean() (float64, error) {
	if len(e.Rewards) == 0 {
		return 0, ErrNoEpisodes
	}
	return stat.Mean(e.Rewards, nil), nil
}

// GIFFilename returns the path of the evaluation GIF in dir, keyed by
// the number of evaluation frames and the reward of the first finished
// episode
func GIFFilename(dir string, frames int, reward float64) string {
	name := fmt.Sprintf("ATARI_frame_%d_reward_%v.gif", frames,
		formatReward(reward))
	return filepath.Join(dir, name)
}

// formatReward formats a reward with at least one decimal place
func formatReward(r float64) string {
	s := strconv.FormatFloat(r, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
