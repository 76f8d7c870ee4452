package handlers

import (
	"net/http"

	"github.com/Dosada05/venue-tournaments/services"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input services.LoginInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	admin, token, err := h.authService.SignIn(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err, nil)
		return
	}
	successResponse(w, r, http.StatusOK, jsonResponse{"token": token, "admin": admin})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	admin, _ := h.authService.CurrentUser(r.Context())
	if err := h.authService.SignOut(r.Context(), admin); err != nil {
		mapServiceErrorToHTTP(w, r, err, nil)
		return
	}
	successResponse(w, r, http.StatusOK, nil)
}

// Me отвечает 200 и для анонимного посетителя: фронт лишь решает, показывать ли админку.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.authService.CurrentUser(r.Context())
	body := jsonResponse{"is_administrator": ok && h.authService.IsAdministrator(r.Context())}
	if ok {
		body["admin"] = admin
	}
	successResponse(w, r, http.StatusOK, body)
}
