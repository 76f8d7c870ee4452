package models

import "time"

// TournamentStatus представляет статусы турнира, соответствующие CHECK в БД.
type TournamentStatus string

const (
	StatusActive TournamentStatus = "active"
	StatusClosed TournamentStatus = "closed"
)

// Tournament представляет одну редакцию турнира по игре.
type Tournament struct {
	ID        string           `json:"id" db:"id"`
	Game      string           `json:"game" db:"game"`
	Edition   int              `json:"edition" db:"edition"`
	Status    TournamentStatus `json:"status" db:"status"`
	StartDate time.Time        `json:"start_date" db:"start_date"`
}

func (t Tournament) IsActive() bool {
	return t.Status == StatusActive
}

// TournamentSpots is the read model the front end renders for each tournament card.
type TournamentSpots struct {
	Tournament        Tournament `json:"tournament"`
	RegistrationCount int        `json:"registration_count"`
	Capacity          int        `json:"capacity"`
	RemainingSpots    int        `json:"remaining_spots"`
}
