package resolver

// Resolve decides one group's outcome. A singleton confirms its sole member
// without invoking the lottery; larger groups confirm one random winner and
// fail the rest. Pure computation, no I/O.
func Resolve(group []Event, rng Rand) (Decision, error) {
	if len(group) == 0 {
		return Decision{}, ErrEmptyGroup
	}

	d := Decision{Members: make([]int64, 0, len(group))}
	for _, e := range group {
		d.Members = append(d.Members, e.ID)
	}

	if len(group) == 1 {
		d.WinnerID = group[0].ID
		return d, nil
	}

	winner, err := PickWinner(group, rng)
	if err != nil {
		return Decision{}, err
	}
	d.WinnerID = winner.ID
	d.LoserIDs = make([]int64, 0, len(group)-1)
	for _, e := range group {
		if e.ID != winner.ID {
			d.LoserIDs = append(d.LoserIDs, e.ID)
		}
	}
	return d, nil
}
