package checkpointer

import (
	"os"
	"path/filepath"
	"testing"
)

// counter is a Serializable integer
type counter struct {
	value byte
}

func (c *counter) GobEncode() ([]byte, error) {
	return []byte{c.value}, nil
}

func (c *counter) GobDecode(data []byte) error {
	c.value = data[0]
	return nil
}

func TestFilenameEnumerator(t *testing.T) {
	next := FilenameEnumerator(0, "dir/agent", ".bin")
	for _, want := range []string{"dir/agent1.bin", "dir/agent2.bin"} {
		if got := next(); got != want {
			t.Errorf("want %v, got %v", want, got)
		}
	}
}

func TestNStep(t *testing.T) {
	dir := t.TempDir()
	object := &counter{}
	c, err := NewNStep(2, object,
		FilenameEnumerator(0, filepath.Join(dir, "agent"), ".bin"))
	if err != nil {
		t.Fatal(err)
	}

	for epoch := 1; epoch <= 5; epoch++ {
		object.value = byte(epoch)
		if err := c.Checkpoint(epoch); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 checkpoints, got %d", len(entries))
	}

	restored := &counter{}
	if err := Restore(restored, filepath.Join(dir, "agent2.bin")); err != nil {
		t.Fatal(err)
	}
	if restored.value != 4 {
		t.Errorf("expected checkpoint of epoch 4, got %d", restored.value)
	}
}

func TestNStepInvalid(t *testing.T) {
	if _, err := NewNStep(0, &counter{}, nil); err == nil {
		t.Error("expected error for zero interval")
	}
}

func TestEpochFilename(t *testing.T) {
	next := EpochFilename("dir", "agent", ".bin", 5)
	for _, want := range []string{"agent_epoch_5.bin", "agent_epoch_10.bin"} {
		if got := next(); got != filepath.Join("dir", want) {
			t.Errorf("want %v, got %v", want, got)
		}
	}
}
