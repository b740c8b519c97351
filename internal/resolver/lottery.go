package resolver

import "errors"

// ErrEmptyGroup is returned when a lottery is asked to pick from nothing.
// Unreachable through GroupOverlapping (it never emits empty groups), but
// guarded anyway.
var ErrEmptyGroup = errors.New("resolver: empty group")

// Rand is the injectable randomness source for winner selection. Production
// uses a math/rand generator; tests supply a scripted one to force exact
// outcomes.
type Rand interface {
	Intn(n int) int
}

// PickWinner selects one member of group with uniform probability
// 1/len(group).
func PickWinner(group []Event, rng Rand) (Event, error) {
	if len(group) == 0 {
		return Event{}, ErrEmptyGroup
	}
	if len(group) == 1 {
		return group[0], nil
	}
	return group[rng.Intn(len(group))], nil
}
