package deepq

import "fmt"

// EpsilonPhase is a phase of an EpsilonSchedule
type EpsilonPhase int

const (
	// ConstantHigh is the initial phase where ε is held at its maximum
	ConstantHigh EpsilonPhase = iota

	// FirstDecay linearly anneals ε from its maximum to the
	// intermediate value
	FirstDecay

	// SecondDecay linearly anneals ε from the intermediate value to its
	// final value
	SecondDecay

	// FinalConstant holds ε at its final value
	FinalConstant
)

// String implements the fmt.Stringer interface
func (e EpsilonPhase) String() string {
	switch e {
	case ConstantHigh:
		return "ConstantHigh"
	case FirstDecay:
		return "FirstDecay"
	case SecondDecay:
		return "SecondDecay"
	case FinalConstant:
		return "FinalConstant"
	}
	return fmt.Sprintf("EpsilonPhase(%d)", int(e))
}

// EpsilonSchedule is a piecewise linear exploration schedule over the
// training frame counter. All frame breakpoints are absolute frame
// numbers and must satisfy ConstantFrames <= FirstDecayFrame <=
// FinalFrame.
type EpsilonSchedule struct {
	Max             float64 // ε before ConstantFrames
	ConstantFrames  int
	FirstDecay      float64 // ε reached at FirstDecayFrame
	FirstDecayFrame int
	Final           float64 // ε from FinalFrame onwards
	FinalFrame      int

	// Evaluation is the fixed ε used in evaluation mode
	Evaluation float64
}

// Validate checks that all exploration probabilities are in [0, 1] and
// that the breakpoints are ordered
func (e EpsilonSchedule) Validate() error {
	probs := map[string]float64{
		"maximum":     e.Max,
		"first decay": e.FirstDecay,
		"final":       e.Final,
		"evaluation":  e.Evaluation,
	}
	for name, p := range probs {
		if p < 0 || p > 1 {
			return fmt.Errorf("validate: %v ε must be in [0, 1], got %v",
				name, p)
		}
	}

	if e.ConstantFrames < 0 {
		return fmt.Errorf("validate: constant frames must be "+
			"non-negative, got %d", e.ConstantFrames)
	}
	if e.FirstDecayFrame < e.ConstantFrames {
		return fmt.Errorf("validate: first decay frame %d before end of "+
			"constant phase %d", e.FirstDecayFrame, e.ConstantFrames)
	}
	if e.FinalFrame < e.FirstDecayFrame {
		return fmt.Errorf("validate: final frame %d before first decay "+
			"frame %d", e.FinalFrame, e.FirstDecayFrame)
	}
	return nil
}

// Phase returns the phase of the schedule at the given training frame
func (e EpsilonSchedule) Phase(frame int) EpsilonPhase {
	switch {
	case frame < e.ConstantFrames:
		return ConstantHigh
	case frame < e.FirstDecayFrame:
		return FirstDecay
	case frame < e.FinalFrame:
		return SecondDecay
	default:
		return FinalConstant
	}
}

// Epsilon returns the exploration probability at the given training
// frame. In evaluation mode the frame is ignored.
func (e EpsilonSchedule) Epsilon(frame int, evaluation bool) float64 {
	if evaluation {
		return e.Evaluation
	}

	switch e.Phase(frame) {
	case ConstantHigh:
		return e.Max

	case FirstDecay:
		progress := float64(frame-e.ConstantFrames) /
			float64(e.FirstDecayFrame-e.ConstantFrames)
		return e.Max + (e.FirstDecay-e.Max)*progress

	case SecondDecay:
		progress := float64(frame-e.FirstDecayFrame) /
			float64(e.FinalFrame-e.FirstDecayFrame)
		return e.FirstDecay + (e.Final-e.FirstDecay)*progress

	default:
		return e.Final
	}
}
