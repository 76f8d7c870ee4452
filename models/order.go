package models

// OrderLine - позиция корзины, передаваемая в мессенджер.
type OrderLine struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type OrderHandoff struct {
	Message string  `json:"message"`
	URL     string  `json:"url"`
	Total   float64 `json:"total"`
}
