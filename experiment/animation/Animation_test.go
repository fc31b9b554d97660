package animation

import (
	"errors"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"testing"
)

func solid(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 160, 210))
	for y := 0; y < 210; y++ {
		for x := 0; x < 160; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestSave(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "anim.gif")
	frames := []image.Image{
		solid(color.White),
		solid(color.Black),
		solid(color.RGBA{R: 200, A: 255}),
	}

	if err := Save(filename, frames); err != nil {
		t.Fatal(err)
	}

	file, err := os.Open(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	anim, err := gif.DecodeAll(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(anim.Image) != len(frames) {
		t.Fatalf("want %d frames, got %d", len(frames), len(anim.Image))
	}
	for i, img := range anim.Image {
		b := img.Bounds()
		if b.Dx() != Width || b.Dy() != Height {
			t.Errorf("frame %d: want %vx%v, got %vx%v", i, Width, Height,
				b.Dx(), b.Dy())
		}
		if anim.Delay[i] != Delay {
			t.Errorf("frame %d: want delay %v, got %v", i, Delay,
				anim.Delay[i])
		}
	}

	r, g, b, _ := anim.Image[0].At(10, 10).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Errorf("first frame should be white, got (%v, %v, %v)", r>>8, g>>8,
			b>>8)
	}
}

func TestRenderNoFrames(t *testing.T) {
	if _, err := Render(nil, Width, Height, Delay); !errors.Is(err,
		ErrNoFrames) {
		t.Errorf("want ErrNoFrames, got %v", err)
	}
	filename := filepath.Join(t.TempDir(), "none.gif")
	if err := Save(filename, nil); err == nil {
		t.Error("expected error saving empty animation")
	}
	if _, err := os.Stat(filename); !os.IsNotExist(err) {
		t.Error("no file should be created for an empty animation")
	}
}
