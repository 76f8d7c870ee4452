package handlers

import (
	"net/http"

	"github.com/Dosada05/venue-tournaments/models"
	"github.com/Dosada05/venue-tournaments/services"
	"github.com/go-chi/chi/v5"
)

type TournamentHandler struct {
	registry *services.TournamentRegistry
}

func NewTournamentHandler(registry *services.TournamentRegistry) *TournamentHandler {
	return &TournamentHandler{registry: registry}
}

type createEditionInput struct {
	Game           string `json:"game"`
	CurrentEdition int    `json:"current_edition"`
}

// ListTournaments отдает кэш даже при ошибке хранилища, чтобы фронт не терял данные.
func (h *TournamentHandler) ListTournaments(w http.ResponseWriter, r *http.Request) {
	err := h.refresh(r)
	body := jsonResponse{"tournaments": h.spotsFor(h.registry.Tournaments())}
	if err != nil {
		mapServiceErrorToHTTP(w, r, err, body)
		return
	}
	successResponse(w, r, http.StatusOK, body)
}

func (h *TournamentHandler) ListActiveTournaments(w http.ResponseWriter, r *http.Request) {
	err := h.refresh(r)
	body := jsonResponse{"tournaments": h.spotsFor(h.registry.ActiveTournaments())}
	if err != nil {
		mapServiceErrorToHTTP(w, r, err, body)
		return
	}
	successResponse(w, r, http.StatusOK, body)
}

func (h *TournamentHandler) GetSpots(w http.ResponseWriter, r *http.Request) {
	tournamentID := chi.URLParam(r, "tournamentID")

	spots, ok := h.registry.Spots(tournamentID)
	if !ok {
		if err := h.refresh(r); err != nil {
			mapServiceErrorToHTTP(w, r, err, nil)
			return
		}
		if spots, ok = h.registry.Spots(tournamentID); !ok {
			mapServiceErrorToHTTP(w, r, services.ErrTournamentNotFound, nil)
			return
		}
	}
	successResponse(w, r, http.StatusOK, jsonResponse{"spots": spots})
}

func (h *TournamentHandler) CreateEdition(w http.ResponseWriter, r *http.Request) {
	var input createEditionInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.registry.CreateNewEdition(r.Context(), input.Game, input.CurrentEdition)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err, nil)
		return
	}
	successResponse(w, r, http.StatusCreated, jsonResponse{"tournament": tournament})
}

func (h *TournamentHandler) ResetTournament(w http.ResponseWriter, r *http.Request) {
	removed, err := h.registry.ResetTournament(r.Context(), chi.URLParam(r, "tournamentID"))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err, nil)
		return
	}
	successResponse(w, r, http.StatusOK, jsonResponse{"removed": removed})
}

func (h *TournamentHandler) DeleteTournament(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.DeleteTournament(r.Context(), chi.URLParam(r, "tournamentID")); err != nil {
		mapServiceErrorToHTTP(w, r, err, nil)
		return
	}
	successResponse(w, r, http.StatusOK, nil)
}

// refresh возвращает ошибку обновления или, если обновление пропущено окном,
// последнюю сохраненную ошибку.
func (h *TournamentHandler) refresh(r *http.Request) error {
	if err := h.registry.RefreshTournaments(r.Context()); err != nil {
		return err
	}
	return h.registry.LastError()
}

func (h *TournamentHandler) spotsFor(tournaments []models.Tournament) []models.TournamentSpots {
	out := make([]models.TournamentSpots, 0, len(tournaments))
	for _, t := range tournaments {
		if spots, ok := h.registry.Spots(t.ID); ok {
			out = append(out, spots)
		}
	}
	return out
}
