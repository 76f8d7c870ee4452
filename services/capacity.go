package services

const (
	DefaultTournamentCapacity = 20
	ReducedTournamentCapacity = 13
)

// CapacityPolicy задает лимит мест в зависимости от игры.
type CapacityPolicy struct {
	defaultCapacity int
	reducedCapacity int
	reducedGames    map[string]struct{}
}

func NewCapacityPolicy(defaultCapacity, reducedCapacity int, reducedGames []string) CapacityPolicy {
	games := make(map[string]struct{}, len(reducedGames))
	for _, g := range reducedGames {
		games[g] = struct{}{}
	}
	return CapacityPolicy{
		defaultCapacity: defaultCapacity,
		reducedCapacity: reducedCapacity,
		reducedGames:    games,
	}
}

// DefaultCapacityPolicy: 13 seats for the fighting-game titles, 20 for the rest.
func DefaultCapacityPolicy() CapacityPolicy {
	return NewCapacityPolicy(DefaultTournamentCapacity, ReducedTournamentCapacity,
		[]string{"TEKKEN 7", "Naruto Storm 4", "Mortal Kombat 11"})
}

func (p CapacityPolicy) Capacity(game string) int {
	if _, ok := p.reducedGames[game]; ok {
		return p.reducedCapacity
	}
	return p.defaultCapacity
}

func (p CapacityPolicy) Default() int {
	return p.defaultCapacity
}
