// Package trackers implements Trackers, which track and save data
// generated during an experiment
package trackers

import (
	"encoding/gob"
	"fmt"
	"os"

	ts "github.com/samuelfneumann/breakoutdqn/timestep"
)

// Tracker keeps track of experiment data and saves the data after the
// experiment has finished
type Tracker interface {
	// Track caches the data of a single training step
	Track(t ts.TimeStep)

	// EndEpisode marks the end of an episode, whether the episode
	// terminated or was cut off
	EndEpisode()

	// Save saves all cached data to disk
	Save() error
}

// SaveSeries gob encodes a series of values into filename
func SaveSeries(filename string, data interface{}) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("saveSeries: could not open save file: %w", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(data); err != nil {
		return fmt.Errorf("saveSeries: could not encode data: %w", err)
	}
	return file.Close()
}

// LoadData loads float64 data saved by a Tracker or by SaveSeries
func LoadData(filename string) ([]float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("loadData: could not open file: %w", err)
	}
	defer file.Close()

	var data []float64
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, fmt.Errorf("loadData: could not decode data: %w", err)
	}
	return data, nil
}
