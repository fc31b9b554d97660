// Package breakout provides a pure Go implementation of the Atari 2600
// game Breakout, drawn at the native Atari resolution so that it can be
// used in place of the Arcade Learning Environment.
package breakout

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/breakoutdqn/environment"
)

const (
	// Native Atari frame size
	Width  int = 160
	Height int = 210

	// Playfield bounds, in pixels
	WallTop   float64 = 32
	WallLeft  float64 = 8
	WallRight float64 = 152

	// Brick layout
	BrickRows   int     = 6
	BrickCols   int     = 18
	BrickTop    float64 = 57
	BrickHeight float64 = 6
	BrickWidth  float64 = 8

	PaddleY      float64 = 189
	PaddleHeight float64 = 4
	PaddleWidth  float64 = 16
	PaddleSpeed  float64 = 3

	BallWidth  float64 = 2
	BallHeight float64 = 4
	BallSpeed  float64 = 2

	// DefaultFrameSkip is the number of emulator frames each action is
	// repeated for, as in the deterministic ALE versions of Breakout
	DefaultFrameSkip int = 4
)

// Legal actions, in the order ALE uses for Breakout's minimal action set
const (
	NoOp int = iota
	Fire
	Right
	Left
	NumActions
)

var (
	// Points scored for a brick in each row, from the top row down
	RowPoints = [BrickRows]float64{7, 7, 4, 4, 1, 1}

	rowColours = [BrickRows]color.RGBA{
		{R: 200, G: 72, B: 72, A: 255},
		{R: 198, G: 108, B: 58, A: 255},
		{R: 180, G: 122, B: 48, A: 255},
		{R: 162, G: 162, B: 42, A: 255},
		{R: 72, G: 160, B: 72, A: 255},
		{R: 66, G: 72, B: 200, A: 255},
	}
	wallColour   = color.RGBA{R: 142, G: 142, B: 142, A: 255}
	paddleColour = color.RGBA{R: 200, G: 72, B: 72, A: 255}
)

// Breakout implements the game of Breakout as an environment.Emulator.
// A ball is only put into play when the Fire action is taken, so Fire
// must be taken at the start of each game and after every lost life.
type Breakout struct {
	rng       *rand.Rand
	frameSkip int

	bricks [BrickRows][BrickCols]bool
	left   int // Bricks left in the wall

	paddleX float64 // Left edge of the paddle

	ballX, ballY   float64
	ballVX, ballVY float64
	inPlay         bool

	lives int
	score float64
	over  bool
}

// New returns a new Breakout game. Each action is repeated frameSkip
// times with the rewards summed.
func New(seed uint64, frameSkip int) (*Breakout, error) {
	if frameSkip < 1 {
		return nil, fmt.Errorf("new: frame skip must be positive "+
			"\n\twant(>0)\n\thave(%v)", frameSkip)
	}

	b := &Breakout{
		rng:       rand.New(rand.NewSource(seed)),
		frameSkip: frameSkip,
	}
	b.restart()

	return b, nil
}

// restart sets up a fresh wall and a full set of lives
func (b *Breakout) restart() {
	for i := range b.bricks {
		for j := range b.bricks[i] {
			b.bricks[i][j] = true
		}
	}
	b.left = BrickRows * BrickCols
	b.paddleX = (WallLeft+WallRight)/2 - PaddleWidth/2
	b.inPlay = false
	b.lives = environment.StartingLives
	b.score = 0
	b.over = false
}

// Reset implements the environment.Emulator interface
func (b *Breakout) Reset() (image.Image, int, error) {
	b.restart()
	return b.Render(), b.lives, nil
}

// NumActions implements the environment.Emulator interface
func (b *Breakout) NumActions() int {
	return NumActions
}

// Close implements the environment.Emulator interface
func (b *Breakout) Close() error {
	return nil
}

// Lives returns the number of lives remaining
func (b *Breakout) Lives() int {
	return b.lives
}

// Step implements the environment.Emulator interface. Once the game is
// over, every further step returns the final frame with no reward until
// the game is reset.
func (b *Breakout) Step(action int) (image.Image, float64, bool, int,
	error) {
	if action < 0 || action >= NumActions {
		return nil, 0, false, b.lives, fmt.Errorf("step: illegal action "+
			"%v", action)
	}

	if b.over {
		return b.Render(), 0, true, b.lives, nil
	}

	reward := 0.0
	for i := 0; i < b.frameSkip && !b.over; i++ {
		reward += b.tick(action)
	}
	b.score += reward

	return b.Render(), reward, b.over, b.lives, nil
}

// tick advances the game by a single emulator frame and returns the
// reward gained during the frame
func (b *Breakout) tick(action int) float64 {
	switch action {
	case Right:
		b.paddleX = math.Min(b.paddleX+PaddleSpeed, WallRight-PaddleWidth)
	case Left:
		b.paddleX = math.Max(b.paddleX-PaddleSpeed, WallLeft)
	}

	if !b.inPlay {
		if action == Fire {
			b.serve()
		}
		return 0
	}

	b.ballX += b.ballVX
	b.ballY += b.ballVY

	// Walls
	if b.ballX < WallLeft {
		b.ballX = WallLeft
		b.ballVX = -b.ballVX
	} else if b.ballX+BallWidth > WallRight {
		b.ballX = WallRight - BallWidth
		b.ballVX = -b.ballVX
	}
	if b.ballY < WallTop {
		b.ballY = WallTop
		b.ballVY = -b.ballVY
	}

	reward := b.collideBricks()
	b.collidePaddle()

	// Missed the ball
	if b.ballY > float64(Height) {
		b.inPlay = false
		b.lives--
		if b.lives <= 0 {
			b.over = true
		}
	}

	return reward
}

// serve puts a new ball into play below the wall
func (b *Breakout) serve() {
	b.ballX = WallLeft + 8 + b.rng.Float64()*(WallRight-WallLeft-16)
	b.ballY = BrickTop + float64(BrickRows)*BrickHeight + 20
	b.ballVX = BallSpeed
	if b.rng.Intn(2) == 0 {
		b.ballVX = -BallSpeed
	}
	b.ballVY = BallSpeed
	b.inPlay = true
}

// collideBricks removes the brick the ball is touching, if any, and
// returns the points scored
func (b *Breakout) collideBricks() float64 {
	centreX := b.ballX + BallWidth/2
	centreY := b.ballY + BallHeight/2

	row := int(math.Floor((centreY - BrickTop) / BrickHeight))
	col := int(math.Floor((centreX - WallLeft) / BrickWidth))
	if row < 0 || row >= BrickRows || col < 0 || col >= BrickCols {
		return 0
	}
	if !b.bricks[row][col] {
		return 0
	}

	b.bricks[row][col] = false
	b.left--
	b.ballVY = -b.ballVY

	if b.left == 0 {
		b.over = true
	}
	return RowPoints[row]
}

// collidePaddle bounces the ball off the paddle. The horizontal
// velocity depends on where along the paddle the ball lands.
func (b *Breakout) collidePaddle() {
	if b.ballVY <= 0 {
		return
	}

	bottom := b.ballY + BallHeight
	if bottom < PaddleY || bottom > PaddleY+PaddleHeight+b.ballVY {
		return
	}
	if b.ballX+BallWidth < b.paddleX || b.ballX > b.paddleX+PaddleWidth {
		return
	}

	offset := (b.ballX + BallWidth/2 - (b.paddleX + PaddleWidth/2)) /
		(PaddleWidth / 2)
	offset = math.Max(-1, math.Min(1, offset))

	b.ballVX = offset * 1.5 * BallSpeed
	if math.Abs(b.ballVX) < 0.5 {
		b.ballVX = math.Copysign(0.5, offset)
	}
	b.ballVY = -BallSpeed
	b.ballY = PaddleY - BallHeight
}

// Render draws the current game frame
func (b *Breakout) Render() image.Image {
	dc := gg.NewContext(Width, Height)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	// Walls
	dc.SetColor(wallColour)
	dc.DrawRectangle(0, WallTop-15, float64(Width), 15)
	dc.DrawRectangle(0, WallTop, WallLeft, float64(Height)-WallTop)
	dc.DrawRectangle(WallRight, WallTop, float64(Width)-WallRight,
		float64(Height)-WallTop)
	dc.Fill()

	// Score and lives
	dc.DrawString(fmt.Sprintf("%03.0f   %d", b.score, b.lives), WallLeft+4,
		WallTop-20)

	// Bricks
	for i := range b.bricks {
		dc.SetColor(rowColours[i])
		for j := range b.bricks[i] {
			if !b.bricks[i][j] {
				continue
			}
			x := WallLeft + float64(j)*BrickWidth
			y := BrickTop + float64(i)*BrickHeight
			dc.DrawRectangle(x, y, BrickWidth, BrickHeight)
		}
		dc.Fill()
	}

	// Paddle and ball
	dc.SetColor(paddleColour)
	dc.DrawRectangle(b.paddleX, PaddleY, PaddleWidth, PaddleHeight)
	if b.inPlay {
		dc.DrawRectangle(b.ballX, b.ballY, BallWidth, BallHeight)
	}
	dc.Fill()

	return dc.Image()
}
