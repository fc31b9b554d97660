package atari

import (
	"image"
	"image/color"
	"testing"

	"github.com/rs/zerolog"

	"github.com/samuelfneumann/breakoutdqn/environment"
	"github.com/samuelfneumann/breakoutdqn/environment/breakout"
)

// scripted is an environment.Emulator that draws every frame in a
// single shade and follows a fixed schedule of lives and rewards
type scripted struct {
	steps   int
	resets  int
	lives   []int // Lives after step i
	rewards []float64
}

func (s *scripted) frame() image.Image {
	img := image.NewGray(image.Rect(0, 0, 160, 210))
	shade := uint8(10 * (s.steps % 25))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	return img
}

func (s *scripted) Reset() (image.Image, int, error) {
	s.resets++
	s.steps = 0
	return s.frame(), environment.StartingLives, nil
}

func (s *scripted) Step(int) (image.Image, float64, bool, int, error) {
	i := s.steps
	s.steps++

	lives := environment.StartingLives
	if i < len(s.lives) {
		lives = s.lives[i]
	}
	reward := 0.0
	if i < len(s.rewards) {
		reward = s.rewards[i]
	}
	return s.frame(), reward, lives == 0, lives, nil
}

func (s *scripted) NumActions() int { return 4 }
func (s *scripted) Close() error    { return nil }

func newWrapper(t *testing.T, e environment.Emulator, noOps int) *Wrapper {
	t.Helper()
	w, err := New(e, Config{Width: 8, Height: 6, Stack: 4, NoOpSteps: noOps},
		zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestPreprocess(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 160, 210))
	for y := 0; y < 210; y++ {
		for x := 0; x < 160; x++ {
			img.Set(x, y, color.White)
		}
	}

	frame := Preprocess(img, 84, 84)
	if r, c := frame.Dims(); r != 84 || c != 84 {
		t.Fatalf("preprocess: invalid dims \n\twant(84x84)\n\thave(%vx%v)", r, c)
	}
	for _, v := range frame.RawMatrix().Data {
		if v != 1.0 {
			t.Fatalf("preprocess: white pixel should be 1.0, have %v", v)
		}
	}
}

func TestResetFillsStack(t *testing.T) {
	w := newWrapper(t, &scripted{}, 0)

	lifeLost, err := w.Reset(false)
	if err != nil {
		t.Fatal(err)
	}
	if !lifeLost {
		t.Error("reset: first state should be flagged as a life loss")
	}

	shape := w.State().Shape()
	if shape[0] != 4 || shape[1] != 6 || shape[2] != 8 {
		t.Errorf("reset: invalid state shape %v", shape)
	}
	for _, v := range w.State().Data().([]float64) {
		if v != 0 {
			t.Fatalf("reset: all stacked frames should be the first frame")
		}
	}
}

func TestStepShiftsStack(t *testing.T) {
	e := &scripted{}
	w := newWrapper(t, e, 0)
	w.Reset(false)

	step, err := w.Step(breakout.NoOp, 0, environment.StartingLives, false)
	if err != nil {
		t.Fatal(err)
	}

	data := w.State().Data().([]float64)
	size := 6 * 8
	newest := data[3*size]
	if newest != step.Observation.At(0, 0) {
		t.Errorf("step: newest frame should be last in the stack")
	}
	if data[0] != 0 {
		t.Errorf("step: oldest frames should be unchanged")
	}
}

func TestDyingReward(t *testing.T) {
	e := &scripted{lives: []int{5, 4, 4}, rewards: []float64{1, 0, 0}}
	w := newWrapper(t, e, 0)
	w.Reset(false)

	step, _ := w.Step(breakout.NoOp, -1, 5, false)
	if step.LifeLost || step.Reward != 1 {
		t.Errorf("step 0: want(reward 1, no life lost) have(%v)", step)
	}

	step, _ = w.Step(breakout.NoOp, -1, 5, false)
	if !step.LifeLost || step.Reward != -1 || step.Lives != 4 {
		t.Errorf("step 1: want(reward -1, life lost, 4 lives) have(%v)", step)
	}

	step, _ = w.Step(breakout.NoOp, -1, 4, false)
	if step.LifeLost || step.Reward != 0 {
		t.Errorf("step 2: want(reward 0, no life lost) have(%v)", step)
	}
}

func TestEvaluationIsUnshaped(t *testing.T) {
	e := &scripted{lives: []int{4}}
	w := newWrapper(t, e, 0)
	w.Reset(true)

	step, _ := w.Step(breakout.NoOp, -1, 5, true)
	if step.LifeLost || step.Reward != 0 {
		t.Errorf("eval: lives lost should not shape rewards, have(%v)", step)
	}
}

func TestGameOverIsLast(t *testing.T) {
	e := &scripted{lives: []int{0}}
	w := newWrapper(t, e, 0)
	w.Reset(false)

	step, _ := w.Step(breakout.NoOp, 0, 1, false)
	if !step.Last() || !step.LifeLost {
		t.Errorf("game over: want(last, life lost) have(%v)", step)
	}
}

func TestEvaluationNoOps(t *testing.T) {
	e := &scripted{}
	w := newWrapper(t, e, 5)
	w.Reset(true)

	if e.steps < 1 || e.steps > 5 {
		t.Errorf("no-ops: want(1 <= steps <= 5) have(%v)", e.steps)
	}

	e2 := &scripted{}
	w2 := newWrapper(t, e2, 5)
	w2.Reset(false)
	if e2.steps != 0 {
		t.Errorf("no-ops: training resets should take no steps, have(%v)",
			e2.steps)
	}
}
