// Package animation renders sequences of raw frames to animated GIFs
package animation

import (
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/gif"
	"os"

	"golang.org/x/image/draw"
)

// Default output resolution and frame delay of rendered GIFs
const (
	Height int = 420
	Width  int = 320

	// Delay between frames in hundredths of a second, about 1/30 s
	Delay int = 3
)

// ErrNoFrames is returned when asked to render an empty animation
var ErrNoFrames = errors.New("no frames to render")

// Save renders frames as an animated GIF of Height x Width pixels into
// filename. Frames are resized with nearest-neighbour sampling and
// mapped onto the Plan 9 palette.
func Save(filename string, frames []image.Image) error {
	anim, err := Render(frames, Width, Height, Delay)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("save: could not create %v: %w", filename, err)
	}
	defer file.Close()

	if err := gif.EncodeAll(file, anim); err != nil {
		return fmt.Errorf("save: could not encode: %w", err)
	}
	return file.Close()
}

// Render converts frames to an animated GIF with the given size and
// delay between frames
func Render(frames []image.Image, width, height, delay int) (*gif.GIF,
	error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("render: %w", ErrNoFrames)
	}
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("render: illegal size %vx%v", width, height)
	}

	bounds := image.Rect(0, 0, width, height)
	anim := &gif.GIF{
		Image: make([]*image.Paletted, 0, len(frames)),
		Delay: make([]int, 0, len(frames)),
	}
	scaled := image.NewRGBA(bounds)
	for i, frame := range frames {
		if frame == nil {
			return nil, fmt.Errorf("render: frame %d is nil", i)
		}
		draw.NearestNeighbor.Scale(scaled, bounds, frame, frame.Bounds(),
			draw.Src, nil)

		paletted := image.NewPaletted(bounds, palette.Plan9)
		draw.Draw(paletted, bounds, scaled, image.Point{}, draw.Src)

		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, delay)
	}
	return anim, nil
}
