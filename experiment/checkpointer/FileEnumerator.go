package checkpointer

import (
	"fmt"
	"path/filepath"
)

// FilenameEnumerator returns a function which returns consecutive
// checkpoint filenames of the form {prefix}{n}{extension}, with n
// starting at start+1
func FilenameEnumerator(start int, prefix, extension string) func() string {
	n := start
	return func() string {
		n++
		return fmt.Sprintf("%v%d%v", prefix, n, extension)
	}
}

// EpochFilename returns a function which returns checkpoint filenames
// in dir of the form {name}_epoch_{n}{extension}, where n counts the
// checkpoints taken so far
func EpochFilename(dir, name, extension string, every int) func() string {
	n := 0
	return func() string {
		n += every
		return filepath.Join(dir, fmt.Sprintf("%v_epoch_%d%v", name, n,
			extension))
	}
}
