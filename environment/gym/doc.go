// Package gym provides access to the Atari environments of OpenAI's Gym
// as an environment.Emulator.
//
// This is made possible through the Go bindings for OpenAI Gym,
// found at https://github.com/samuelfneumann/GoGym. The bindings
// require a Python installation with gym[atari], so the Emulator is
// only built with the gogym build tag. With the tag, importing the
// package registers the envconfig.Gym backend. Without it, importing
// the package does nothing.
//
// GoGym does not expose the info dictionary of Gym environments, so the
// number of lives remaining is unknown. The Emulator reports
// environment.StartingLives lives until the game ends, and life losses
// are never detected.
package gym
