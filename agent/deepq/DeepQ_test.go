package deepq

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/samuelfneumann/breakoutdqn/expreplay"
	"github.com/samuelfneumann/breakoutdqn/initwfn"
	"github.com/samuelfneumann/breakoutdqn/network"
	"github.com/samuelfneumann/breakoutdqn/solver"
	"gorgonia.org/tensor"
)

const (
	stack   = 2
	height  = 12
	width   = 12
	actions = 4
	batch   = 4
)

// fixedSampler always returns the same batch
type fixedSampler struct {
	batch expreplay.Batch
	calls int
}

func (f *fixedSampler) Sample(int) (expreplay.Batch, error) {
	f.calls++
	return f.batch, nil
}

func testConfig(eps EpsilonSchedule) Config {
	return Config{
		Architecture: network.Architecture{
			Stack:      stack,
			Height:     height,
			Width:      width,
			Outputs:    actions,
			Conv:       []network.ConvSpec{{Filters: 4, Kernel: 4, Stride: 2}},
			Hidden:     []int{16},
			Activation: network.ReLU(),
		},
		Epsilon: eps,
		Solver: solver.Config{
			Type:     solver.Vanilla,
			StepSize: 1e-3,
			Batch:    batch,
		},
		InitWFn:   initwfn.Config{Type: initwfn.GlorotU, Gain: 1.0},
		BatchSize: batch,
		Tau:       1.0,
		Seed:      1,
	}
}

func greedy() EpsilonSchedule {
	return EpsilonSchedule{}
}

func newTestAgent(t *testing.T, eps EpsilonSchedule) *DeepQ {
	t.Helper()
	d, err := New(testConfig(eps), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func testState(offset float64) *tensor.Dense {
	data := make([]float64, stack*height*width)
	for i := range data {
		data[i] = math.Mod(float64(i)*0.37+offset, 1.0)
	}
	return tensor.New(tensor.WithShape(stack, height, width),
		tensor.WithBacking(data))
}

func testBatch(terminal bool) expreplay.Batch {
	size := stack * height * width
	b := expreplay.Batch{
		States:     make([]float64, batch*size),
		NextStates: make([]float64, batch*size),
		Actions:    make([]int, batch),
		Rewards:    make([]float64, batch),
		Terminals:  make([]bool, batch),
	}
	for i := 0; i < batch; i++ {
		copy(b.States[i*size:], testState(float64(i)*0.1).Data().([]float64))
		copy(b.NextStates[i*size:],
			testState(float64(i)*0.1+0.05).Data().([]float64))
		b.Actions[i] = i % actions
		b.Rewards[i] = 1.0
		b.Terminals[i] = terminal
	}
	return b
}

func TestSelectActionInRange(t *testing.T) {
	d := newTestAgent(t, greedy())
	for i := 0; i < 5; i++ {
		a, err := d.SelectAction(i, testState(float64(i)*0.2), false)
		if err != nil {
			t.Fatal(err)
		}
		if a < 0 || a >= actions {
			t.Errorf("action %d out of range", a)
		}
	}
}

func TestSelectActionGreedyIsArgmax(t *testing.T) {
	d := newTestAgent(t, greedy())
	state := testState(0.3)

	values, err := d.ActionValues(state)
	if err != nil {
		t.Fatal(err)
	}
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}

	a, err := d.SelectAction(0, state, true)
	if err != nil {
		t.Fatal(err)
	}
	if a != best {
		t.Errorf("greedy action: want %d, got %d (values %v)", best, a,
			values)
	}
}

func TestSelectActionExplores(t *testing.T) {
	d := newTestAgent(t, EpsilonSchedule{Max: 1, Evaluation: 1})
	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		a, err := d.SelectAction(i, testState(0), i%2 == 0)
		if err != nil {
			t.Fatal(err)
		}
		seen[a] = true
	}
	if len(seen) != actions {
		t.Errorf("expected all %d actions to be explored, saw %v", actions,
			seen)
	}
}

func TestSelectActionInvalidState(t *testing.T) {
	d := newTestAgent(t, greedy())
	state := tensor.New(tensor.WithShape(2), tensor.WithBacking([]float64{1,
		2}))
	if _, err := d.SelectAction(0, state, false); err == nil {
		t.Error("expected error for wrongly sized state")
	}
}

func TestLearnReducesLoss(t *testing.T) {
	d := newTestAgent(t, greedy())
	sampler := &fixedSampler{batch: testBatch(true)}

	first, err := d.Learn(sampler, 0.99, batch)
	if err != nil {
		t.Fatal(err)
	}
	if first.Skipped {
		t.Fatal("learning step should not be skipped")
	}

	var last float64
	for i := 0; i < 50; i++ {
		loss, err := d.Learn(sampler, 0.99, batch)
		if err != nil {
			t.Fatal(err)
		}
		last = loss.Value
	}

	if last >= first.Value {
		t.Errorf("expected loss to decrease: first %v, last %v",
			first.Value, last)
	}
	if d.GradientSteps() != 51 {
		t.Errorf("expected 51 gradient steps, got %d", d.GradientSteps())
	}
}

func TestLearnUpdatesBehaviour(t *testing.T) {
	d := newTestAgent(t, greedy())
	state := testState(0.1)

	before, err := d.ActionValues(state)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Learn(&fixedSampler{batch: testBatch(false)}, 0.99,
		batch); err != nil {
		t.Fatal(err)
	}
	after, err := d.ActionValues(state)
	if err != nil {
		t.Fatal(err)
	}

	changed := false
	for i := range before {
		if before[i] != after[i] {
			changed = true
		}
	}
	if !changed {
		t.Error("behaviour network did not change after learning")
	}
}

// maxWeightDiff returns the largest absolute difference between two
// sets of weights of the same shape
func maxWeightDiff(t *testing.T, a, b [][]float64) float64 {
	t.Helper()
	if len(a) != len(b) {
		t.Fatalf("weights have %d and %d learnables", len(a), len(b))
	}
	var diff float64
	for i := range a {
		if len(a[i]) != len(b[i]) {
			t.Fatalf("learnable %d has %d and %d values", i, len(a[i]),
				len(b[i]))
		}
		for j := range a[i] {
			diff = math.Max(diff, math.Abs(a[i][j]-b[i][j]))
		}
	}
	return diff
}

func TestTargetFixedUntilSynchronized(t *testing.T) {
	d := newTestAgent(t, greedy())
	sampler := &fixedSampler{batch: testBatch(false)}

	initial := d.targetNet.Weights()
	for i := 0; i < 5; i++ {
		if _, err := d.Learn(sampler, 0.99, batch); err != nil {
			t.Fatal(err)
		}
	}

	if diff := maxWeightDiff(t, initial, d.targetNet.Weights()); diff != 0 {
		t.Errorf("target network changed by %v while learning", diff)
	}
	if maxWeightDiff(t, d.trainNet.Weights(), d.targetNet.Weights()) == 0 {
		t.Fatal("learned weights should differ from the target weights")
	}

	if err := d.SynchronizeTarget(); err != nil {
		t.Fatal(err)
	}
	diff := maxWeightDiff(t, d.trainNet.Weights(), d.targetNet.Weights())
	if diff != 0 {
		t.Errorf("target differs from learned weights by %v after "+
			"synchronizing", diff)
	}
}

func TestTargetPolyakSynchronize(t *testing.T) {
	const tau = 0.5
	c := testConfig(greedy())
	c.Tau = tau
	d, err := New(c, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	sampler := &fixedSampler{batch: testBatch(false)}
	for i := 0; i < 5; i++ {
		if _, err := d.Learn(sampler, 0.99, batch); err != nil {
			t.Fatal(err)
		}
	}

	learned := d.trainNet.Weights()
	before := d.targetNet.Weights()
	if maxWeightDiff(t, learned, before) == 0 {
		t.Fatal("learned weights should differ from the target weights")
	}

	if err := d.SynchronizeTarget(); err != nil {
		t.Fatal(err)
	}

	want := make([][]float64, len(before))
	for i := range before {
		want[i] = make([]float64, len(before[i]))
		for j := range before[i] {
			want[i][j] = tau*learned[i][j] + (1-tau)*before[i][j]
		}
	}
	if diff := maxWeightDiff(t, want, d.targetNet.Weights()); diff > 1e-12 {
		t.Errorf("target is %v away from the Polyak average", diff)
	}
	if diff := maxWeightDiff(t, learned, d.trainNet.Weights()); diff != 0 {
		t.Errorf("synchronizing changed the learned weights by %v", diff)
	}
}

func TestLearnSkipsUntilPopulated(t *testing.T) {
	d := newTestAgent(t, greedy())
	memory, err := expreplay.New(expreplay.Config{
		Capacity: 100,
		Width:    width,
		Height:   height,
		Stack:    stack,
	}, expreplay.NewUniformSelector(1))
	if err != nil {
		t.Fatal(err)
	}

	loss, err := d.Learn(memory, 0.99, batch)
	if err != nil {
		t.Fatal(err)
	}
	if !loss.Skipped {
		t.Error("expected learning step to be skipped on empty memory")
	}
	if d.GradientSteps() != 0 {
		t.Errorf("expected no gradient steps, got %d", d.GradientSteps())
	}
}

func TestLearnBatchMismatch(t *testing.T) {
	d := newTestAgent(t, greedy())
	sampler := &fixedSampler{batch: testBatch(false)}
	if _, err := d.Learn(sampler, 0.99, batch+1); err == nil {
		t.Error("expected error for mismatched batch size")
	}
	if sampler.calls != 0 {
		t.Errorf("sampler should not be called, got %d calls", sampler.calls)
	}
}

func TestSaveLoad(t *testing.T) {
	source := newTestAgent(t, greedy())
	if _, err := source.Learn(&fixedSampler{batch: testBatch(true)}, 0.99,
		batch); err != nil {
		t.Fatal(err)
	}
	if err := source.SynchronizeTarget(); err != nil {
		t.Fatal(err)
	}

	filename := filepath.Join(t.TempDir(), "agent.bin")
	if err := source.Save(filename); err != nil {
		t.Fatal(err)
	}

	dest := newTestAgent(t, greedy())
	if err := dest.Load(filename); err != nil {
		t.Fatal(err)
	}
	if dest.GradientSteps() != 1 {
		t.Errorf("expected 1 gradient step, got %d", dest.GradientSteps())
	}

	state := testState(0.7)
	want, err := source.ActionValues(state)
	if err != nil {
		t.Fatal(err)
	}
	got, err := dest.ActionValues(state)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if want[i] != got[i] {
			t.Errorf("action %d: want value %v, got %v", i, want[i], got[i])
		}
	}
}

func TestNewInvalidConfig(t *testing.T) {
	c := testConfig(greedy())
	c.Solver.Batch = batch + 1
	if _, err := New(c, zerolog.Nop()); err == nil {
		t.Error("expected error for mismatched solver batch size")
	}

	c = testConfig(greedy())
	c.Tau = 0
	if _, err := New(c, zerolog.Nop()); err == nil {
		t.Error("expected error for zero τ")
	}

	c = testConfig(EpsilonSchedule{ConstantFrames: 10, FirstDecayFrame: 5})
	if _, err := New(c, zerolog.Nop()); err == nil {
		t.Error("expected error for unordered ε breakpoints")
	}
}
