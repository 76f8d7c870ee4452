package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Dosada05/venue-tournaments/services"
	"github.com/go-chi/chi/v5"
)

type RegistrationHandler struct {
	registry *services.TournamentRegistry
	exports  *services.ExportService
}

func NewRegistrationHandler(registry *services.TournamentRegistry, exports *services.ExportService) *RegistrationHandler {
	return &RegistrationHandler{registry: registry, exports: exports}
}

type registerInput struct {
	FullName       string `json:"full_name"`
	WhatsappNumber string `json:"whatsapp_number"`
}

func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	tournamentID := chi.URLParam(r, "tournamentID")

	var input registerInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if strings.TrimSpace(input.FullName) == "" || strings.TrimSpace(input.WhatsappNumber) == "" {
		badRequestResponse(w, r, errors.New("full_name and whatsapp_number are required"))
		return
	}

	reg, err := h.registry.RegisterPlayer(r.Context(), tournamentID, input.FullName, input.WhatsappNumber)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err, nil)
		return
	}
	successResponse(w, r, http.StatusCreated, jsonResponse{
		"registration":    reg,
		"remaining_spots": h.registry.RemainingSpots(tournamentID),
	})
}

func (h *RegistrationHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	tournamentID := chi.URLParam(r, "tournamentID")

	regs, err := h.registry.RefreshRegistrationsForTournament(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err, nil)
		return
	}
	successResponse(w, r, http.StatusOK, jsonResponse{
		"registrations":   regs,
		"count":           len(regs),
		"remaining_spots": h.registry.RemainingSpots(tournamentID),
	})
}

func (h *RegistrationHandler) ExportRegistrations(w http.ResponseWriter, r *http.Request) {
	export, err := h.exports.ExportRegistrations(r.Context(), chi.URLParam(r, "tournamentID"))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err, nil)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName))
	if export.URL != "" {
		w.Header().Set("X-Export-URL", export.URL)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(export.Content); err != nil {
		serverErrorResponse(w, r, err)
	}
}
