package checkpointer

import "fmt"

// nStep implements checkpointing every N epochs
type nStep struct {
	interval int
	object   Serializable // Object to save

	// filename returns the string filename of the file to save the object
	// in.
	//
	// If each serialized object should be saved in a separate file with
	// each file having an incremented number as a suffix (e.g.
	// file1.bin, file2.bin, ..., fileK.bin), then simply use the
	// static function FilenameEnumerator, which will return a function
	// that will enumerate filenames.
	filename func() string
}

// NewNStep returns a checkpointer that checkpoints every n epochs.
func NewNStep(n int, object Serializable,
	filename func() string) (Checkpointer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("newNStep: interval must be positive, got %d",
			n)
	}
	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}, nil
}

// Checkpoint saves the Checkpointer's tracked object if epoch is a
// multiple of the checkpointing interval
func (n *nStep) Checkpoint(epoch int) error {
	if epoch%n.interval != 0 {
		return nil
	}
	if err := save(n.object, n.filename()); err != nil {
		return fmt.Errorf("checkpoint: epoch %d: %w", epoch, err)
	}
	return nil
}
