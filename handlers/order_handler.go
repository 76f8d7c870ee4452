package handlers

import (
	"net/http"

	"github.com/Dosada05/venue-tournaments/models"
	"github.com/Dosada05/venue-tournaments/services"
)

type OrderHandler struct {
	orders *services.OrderService
}

func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type handoffInput struct {
	Items []models.OrderLine `json:"items"`
}

type waitlistInput struct {
	Game string `json:"game"`
}

func (h *OrderHandler) Handoff(w http.ResponseWriter, r *http.Request) {
	var input handoffInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	handoff, err := h.orders.Handoff(input.Items)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err, nil)
		return
	}
	successResponse(w, r, http.StatusOK, jsonResponse{"handoff": handoff})
}

func (h *OrderHandler) Waitlist(w http.ResponseWriter, r *http.Request) {
	var input waitlistInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	handoff, err := h.orders.WaitlistHandoff(input.Game)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err, nil)
		return
	}
	successResponse(w, r, http.StatusOK, jsonResponse{"handoff": handoff})
}
