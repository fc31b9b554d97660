package experiment

import "github.com/samuelfneumann/breakoutdqn/utils/floatutils"

// ClipReward clips a reward to its sign: +1 for positive rewards, -1
// for negative rewards and 0 otherwise
func ClipReward(r float64) float64 {
	return floatutils.Sign(r)
}
