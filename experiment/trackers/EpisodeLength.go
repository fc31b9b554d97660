package trackers

import (
	"fmt"

	ts "github.com/samuelfneumann/breakoutdqn/timestep"
)

// EpisodeLength tracks and saves the lengths of episodes in an
// experiment.
// Note that an episode must end for this Tracker to save its data.
// If the last episode in an experiment does not end, that episode's
// length will not be saved.
type EpisodeLength struct {
	currentLength  int
	episodeLengths []int
	filename       string
}

// NewEpisodeLength returns a new EpisodeLength Tracker which will save
// its data at the specified location filename
func NewEpisodeLength(filename string) *EpisodeLength {
	return &EpisodeLength{filename: filename}
}

// Track counts a step of the current episode
func (e *EpisodeLength) Track(ts.TimeStep) {
	e.currentLength++
}

// EndEpisode caches the length of the current episode
func (e *EpisodeLength) EndEpisode() {
	e.episodeLengths = append(e.episodeLengths, e.currentLength)
	e.currentLength = 0
}

// Data returns the lengths of all ended episodes
func (e *EpisodeLength) Data() []int {
	return append([]int(nil), e.episodeLengths...)
}

// Save saves the data tracked by the EpisodeLength Tracker to disk.
func (e *EpisodeLength) Save() error {
	if err := SaveSeries(e.filename, e.episodeLengths); err != nil {
		return fmt.Errorf("save: could not save episode lengths: %w", err)
	}
	return nil
}
