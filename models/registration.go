package models

import "time"

// Registration - заявка игрока на конкретный турнир.
type Registration struct {
	ID             string    `json:"id" db:"id"`
	FullName       string    `json:"full_name" db:"full_name"`
	WhatsappNumber string    `json:"whatsapp_number" db:"whatsapp_number"`
	TournamentID   string    `json:"tournament_id" db:"tournament_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
