// Package checkpointer implements Checkpointers, which periodically
// save serializable objects during an experiment
package checkpointer

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Serializable is an object that can be saved/serialized
type Serializable interface {
	gob.GobEncoder
	gob.GobDecoder
}

// Checkpointer checkpoints/saves serializable objects at the end of
// training epochs
type Checkpointer interface {
	Checkpoint(epoch int) error
}

// save gob encodes object into filename
func save(object Serializable, filename string) error {
	data, err := object.GobEncode()
	if err != nil {
		return fmt.Errorf("save: could not encode: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("save: could not write %v: %w", filename, err)
	}
	return nil
}

// Restore decodes the object saved in filename into object
func Restore(object Serializable, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("restore: could not read %v: %w", filename, err)
	}
	if err := object.GobDecode(data); err != nil {
		return fmt.Errorf("restore: could not decode: %w", err)
	}
	return nil
}
