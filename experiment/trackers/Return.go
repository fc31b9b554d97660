package trackers

import (
	"fmt"

	ts "github.com/samuelfneumann/breakoutdqn/timestep"
)

// Return tracks and saves the episodic return in an experiment. When
// a session returns a TimeStep, this Tracker will extract the reward
// and accumulate the return for each episode in the experiment.
//
// Note: rewards are tracked as returned by the session, so dying
// penalties are included in the return.
//
// Note: An episode must end for this Tracker to save its data.
// If the last episode in an experiment does not end, that episode's
// return will not be saved.
type Return struct {
	currentReturn  float64
	episodeReturns []float64
	filename       string
}

// NewReturn creates and returns a new *Return Tracker
func NewReturn(filename string) *Return {
	return &Return{filename: filename}
}

// Track accumulates the reward seen on a timestep into the return of
// the current episode
func (r *Return) Track(step ts.TimeStep) {
	r.currentReturn += step.Reward
}

// EndEpisode caches the return of the current episode and begins
// tracking the return of the next
func (r *Return) EndEpisode() {
	r.episodeReturns = append(r.episodeReturns, r.currentReturn)
	r.currentReturn = 0.0
}

// Data returns the returns of all ended episodes
func (r *Return) Data() []float64 {
	return append([]float64(nil), r.episodeReturns...)
}

// Save saves the data tracked by the Return Tracker to disk.
func (r *Return) Save() error {
	if err := SaveSeries(r.filename, r.episodeReturns); err != nil {
		return fmt.Errorf("save: could not save returns: %w", err)
	}
	return nil
}
