package timestep

import "testing"

func TestStepTypes(t *testing.T) {
	step := New(First, 0, nil, nil, true, 5, 0)
	if !step.First() || step.Mid() || step.Last() {
		t.Errorf("first: wrong step type predicates for %v", step)
	}

	step.StepType = Last
	if step.First() || step.Mid() || !step.Last() {
		t.Errorf("last: wrong step type predicates for %v", step)
	}

	if Mid.String() != "Mid" {
		t.Errorf("string: want(Mid) have(%v)", Mid.String())
	}
}
