package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/samuelfneumann/breakoutdqn/experiment"
	"github.com/samuelfneumann/breakoutdqn/solver"
)

func writeParams(t *testing.T, data string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "parameters.json")
	if err := os.WriteFile(filename, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return filename
}

func TestDefaultValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Error(err)
	}
}

func TestLoadSampleParameters(t *testing.T) {
	p, err := Load(filepath.Join("..", "parameters.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
	if !p.Environment.GifOnEval {
		t.Error("expected GIF_ON_EVAL to be loaded")
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	filename := writeParams(t, `{
		"environment": {"GIF_ON_EVAL": true, "SEPARATOR": "====="},
		"agent": {
			"EVAL_STEPS": 10,
			"OPTIMIZER": "RMSProp",
			"UPDATE_CADENCE": "source",
			"PHASE_PAUSE_SECONDS": 1.5,
			"UNKNOWN_KEY": 3
		}
	}`)

	p, err := Load(filename)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}

	want := Default()
	want.Environment.GifOnEval = true
	want.Environment.Separator = "====="
	want.Agent.EvalSteps = 10
	want.Agent.Optimizer = solver.RMSProp
	want.Agent.UpdateCadence = experiment.CadenceSource
	want.Agent.PhasePauseSeconds = 1.5
	if !reflect.DeepEqual(p, want) {
		t.Errorf("want %+v, got %+v", want, p)
	}

	e := p.Experiment()
	if e.PhasePause != 1500*time.Millisecond {
		t.Errorf("want phase pause of 1.5s, got %v", e.PhasePause)
	}
	if e.Separator != "=====" || !e.GifOnEval {
		t.Errorf("environment options not passed to the experiment: %+v", e)
	}
	if s := p.DeepQ(4).Solver; s.Type != solver.RMSProp || s.Rho <= 0 {
		t.Errorf("expected RMSProp solver with defaults, got %+v", s)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeParams(t, `{"agent": `)); err == nil {
		t.Error("expected error for malformed JSON")
	}
	if _, err := Load(writeParams(t, `{"agent": {"MAX_FRAMES": "many"}}`)); err == nil {
		t.Error("expected error for mistyped value")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvOutputDir: "/tmp/run",
		EnvSeed:      "42",
		EnvLogLevel:  "debug",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	p := Default()
	if err := p.ApplyEnv(lookup); err != nil {
		t.Fatal(err)
	}
	if p.Agent.OutputDir != "/tmp/run" || p.Agent.Seed != 42 {
		t.Errorf("overrides not applied: %+v", p.Agent)
	}
	level, err := p.Level()
	if err != nil {
		t.Fatal(err)
	}
	if level != zerolog.DebugLevel {
		t.Errorf("want debug level, got %v", level)
	}

	env[EnvSeed] = "-1"
	if err := p.ApplyEnv(lookup); err == nil {
		t.Error("expected error for invalid seed")
	}
}

func TestValidate(t *testing.T) {
	invalid := []func(*Params){
		func(p *Params) { p.Environment.Stack = 0 },
		func(p *Params) { p.Agent.LogLevel = "loud" },
		func(p *Params) { p.Agent.MemorySize = 8 },
		func(p *Params) { p.Agent.CheckpointEvery = -1 },
		func(p *Params) { p.Agent.Optimizer = "SGD" },
		func(p *Params) { p.Agent.WeightInit = "Random" },
		func(p *Params) { p.Agent.Gamma = 2 },
		func(p *Params) { p.Agent.EpsilonMax = 1.5 },
		func(p *Params) { p.Agent.MaxFrames = 0 },
		func(p *Params) { p.Agent.UpdateCadence = "" },
		func(p *Params) { p.Environment.Width = 16 },
		func(p *Params) { p.Agent.NoOpSteps = -1 },
		func(p *Params) { p.Agent.Activation = "sigmoid" },
	}
	for i, modify := range invalid {
		p := Default()
		modify(&p)
		if err := p.Validate(); err == nil {
			t.Errorf("case %d: expected parameters to be invalid", i)
		}
	}
}

func TestConverters(t *testing.T) {
	p := Default()

	d := p.DeepQ(4)
	if err := d.Validate(); err != nil {
		t.Fatal(err)
	}
	if d.Architecture.Outputs != 4 || d.BatchSize != 32 {
		t.Errorf("unexpected agent config %+v", d)
	}

	r := p.Replay()
	if r.Capacity != p.Agent.MemorySize || r.Stack != p.Environment.Stack {
		t.Errorf("unexpected replay config %+v", r)
	}

	s := p.Session()
	if s.RenderDir != filepath.Join("output", "render") {
		t.Errorf("unexpected render directory %v", s.RenderDir)
	}

	e := p.Experiment()
	if e.Discount != p.Agent.Gamma || e.BatchSize != p.Agent.MiniBatchSize {
		t.Errorf("unexpected experiment config %+v", e)
	}
}

func TestActivation(t *testing.T) {
	p := Default()
	if got := p.DeepQ(4).Architecture.Activation.String(); got != "relu" {
		t.Errorf("default activation: got %v, want relu", got)
	}

	p.Agent.Activation = "tanh"
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
	if got := p.DeepQ(4).Architecture.Activation.String(); got != "tanh" {
		t.Errorf("activation: got %v, want tanh", got)
	}

	p.Agent.Activation = "sigmoid"
	if err := p.DeepQ(4).Validate(); err == nil {
		t.Error("expected unknown activation to invalidate the agent")
	}
}

func TestSeedsDistinct(t *testing.T) {
	for _, seed := range []uint64{0, 7} {
		p := Default()
		p.Agent.Seed = seed
		seeds := map[string]uint64{
			"emulator": p.EmulatorSeed(),
			"session":  p.Session().Seed,
			"replay":   p.ReplaySeed(),
			"agent":    p.DeepQ(4).Seed,
		}
		seen := make(map[uint64]string)
		for name, s := range seeds {
			if other, ok := seen[s]; ok {
				t.Errorf("seed %d: %v and %v share seed %d", seed, name,
					other, s)
			}
			seen[s] = name
		}
		if p.EmulatorSeed() != seed {
			t.Errorf("emulator seed: got %d, want %d", p.EmulatorSeed(), seed)
		}
	}
}
