package leaderboard

// assignPositions implements competition ranking ("1224") over an already
// sorted sequence: entries tied with their predecessor share its position,
// and the next distinct entry is placed at previousPosition + tieGroupSize.
// Entries for which hasValue is false receive no position (0); the sort
// guarantees they trail the valued entries. tied reports whether entries i
// and j compare equal on the ranking value.
func assignPositions(n int, hasValue func(i int) bool, tied func(i, j int) bool) []int {
	positions := make([]int, n)
	pos := 0
	groupSize := 0
	prev := -1
	for i := 0; i < n; i++ {
		if !hasValue(i) {
			continue
		}
		switch {
		case prev < 0:
			pos = 1
			groupSize = 1
		case tied(prev, i):
			groupSize++
		default:
			pos += groupSize
			groupSize = 1
		}
		positions[i] = pos
		prev = i
	}
	return positions
}
