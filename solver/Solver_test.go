package solver

import "testing"

func TestCreate(t *testing.T) {
	configs := []Config{
		DefaultAdam(1e-4, 32),
		DefaultRMSProp(2.5e-4, 32),
		{Type: Vanilla, StepSize: 0.01, Batch: 1},
		{Type: Vanilla, StepSize: 0.01, Batch: 1, Clip: 1.0},
	}

	for _, c := range configs {
		s, err := c.Create()
		if err != nil {
			t.Errorf("%v: could not create solver: %v", c.Type, err)
		}
		if s == nil {
			t.Errorf("%v: nil solver", c.Type)
		}
	}
}

func TestValidate(t *testing.T) {
	invalid := []Config{
		{Type: "Adagrad", StepSize: 1, Batch: 1},
		{Type: Vanilla, StepSize: 0, Batch: 1},
		{Type: Vanilla, StepSize: 1, Batch: 0},
		{Type: Adam, StepSize: 1, Batch: 1, Beta1: 1},
		{Type: RMSProp, StepSize: 1, Batch: 1, Rho: 0},
	}

	for _, c := range invalid {
		if err := c.Validate(); err == nil {
			t.Errorf("expected %+v to be invalid", c)
		}
	}
}
