package deepq

import (
	"math"
	"testing"
)

func schedule() EpsilonSchedule {
	return EpsilonSchedule{
		Max:             1.0,
		ConstantFrames:  10,
		FirstDecay:      0.1,
		FirstDecayFrame: 20,
		Final:           0.01,
		FinalFrame:      120,
		Evaluation:      0.05,
	}
}

func TestEpsilon(t *testing.T) {
	s := schedule()
	cases := []struct {
		frame int
		want  float64
		phase EpsilonPhase
	}{
		{0, 1.0, ConstantHigh},
		{9, 1.0, ConstantHigh},
		{10, 1.0, FirstDecay},
		{15, 0.55, FirstDecay},
		{20, 0.1, SecondDecay},
		{70, 0.055, SecondDecay},
		{120, 0.01, FinalConstant},
		{1000000, 0.01, FinalConstant},
	}

	for _, c := range cases {
		if got := s.Epsilon(c.frame, false); math.Abs(got-c.want) > 1e-12 {
			t.Errorf("frame %d: want ε %v, got %v", c.frame, c.want, got)
		}
		if got := s.Phase(c.frame); got != c.phase {
			t.Errorf("frame %d: want phase %v, got %v", c.frame, c.phase, got)
		}
	}
}

func TestEpsilonEvaluationIgnoresFrame(t *testing.T) {
	s := schedule()
	for _, frame := range []int{0, 15, 70, 1000} {
		if got := s.Epsilon(frame, true); got != s.Evaluation {
			t.Errorf("frame %d: want evaluation ε %v, got %v", frame,
				s.Evaluation, got)
		}
	}
}

func TestEpsilonMonotone(t *testing.T) {
	s := schedule()
	prev := s.Epsilon(0, false)
	for frame := 1; frame < 200; frame++ {
		ε := s.Epsilon(frame, false)
		if ε > prev {
			t.Fatalf("ε increased at frame %d: %v > %v", frame, ε, prev)
		}
		prev = ε
	}
}

func TestEpsilonEmptyDecay(t *testing.T) {
	s := schedule()
	s.FirstDecayFrame = s.ConstantFrames
	if got := s.Epsilon(s.ConstantFrames, false); got != s.FirstDecay {
		t.Errorf("want ε %v at collapsed breakpoint, got %v", s.FirstDecay,
			got)
	}
}

func TestEpsilonValidate(t *testing.T) {
	if err := schedule().Validate(); err != nil {
		t.Fatal(err)
	}

	invalid := []func(*EpsilonSchedule){
		func(s *EpsilonSchedule) { s.Max = 1.5 },
		func(s *EpsilonSchedule) { s.Evaluation = -0.1 },
		func(s *EpsilonSchedule) { s.ConstantFrames = -1 },
		func(s *EpsilonSchedule) { s.FirstDecayFrame = 5 },
		func(s *EpsilonSchedule) { s.FinalFrame = 15 },
	}
	for i, modify := range invalid {
		s := schedule()
		modify(&s)
		if err := s.Validate(); err == nil {
			t.Errorf("case %d: expected invalid schedule %+v", i, s)
		}
	}
}
