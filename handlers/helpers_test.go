package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dosada05/venue-tournaments/repositories"
	"github.com/Dosada05/venue-tournaments/services"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapServiceErrorToHTTP(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"unauthorized", services.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"bad credentials", services.ErrAuthInvalidCredentials, http.StatusUnauthorized, services.ErrAuthInvalidCredentials.Error()},
		{"not found hides driver text", fmt.Errorf("lookup: %w: %w", services.ErrTournamentNotFound, repositories.ErrReferenceViolation),
			http.StatusNotFound, services.ErrTournamentNotFound.Error()},
		{"duplicate", services.ErrDuplicateRegistration, http.StatusConflict, services.ErrDuplicateRegistration.Error()},
		{"full", services.ErrTournamentFull, http.StatusConflict, services.ErrTournamentFull.Error()},
		{"validation", fmt.Errorf("%w: name required", services.ErrValidationFailed), http.StatusBadRequest, "validation failed: name required"},
		{"validation from store constraint", fmt.Errorf("register: %w: %w", services.ErrValidationFailed,
			fmt.Errorf("insert: %w: %w", repositories.ErrConstraint, &pq.Error{Code: "23514", Message: "new row violates check constraint"})),
			http.StatusBadRequest, services.ErrValidationFailed.Error()},
		{"edition conflict keeps detail", fmt.Errorf("%w: got 1, latest is 2", services.ErrEditionConflict),
			http.StatusConflict, "current edition does not match the latest edition for this game: got 1, latest is 2"},
		{"edition conflict hides driver text", fmt.Errorf("create edition: %w: %w", services.ErrEditionConflict,
			fmt.Errorf("insert tournament: %w: %w", repositories.ErrConflict, &pq.Error{Code: "23505", Message: "duplicate key value"})),
			http.StatusConflict, services.ErrEditionConflict.Error()},
		{"in use hides driver text", fmt.Errorf("delete tournament: %w: %w", services.ErrTournamentInUse,
			fmt.Errorf("delete tournaments: %w: %w", repositories.ErrReferenceViolation, &pq.Error{Code: "23503"})),
			http.StatusConflict, services.ErrTournamentInUse.Error()},
		{"connectivity", fmt.Errorf("x: %w", services.ErrConnectivity), http.StatusServiceUnavailable, services.ErrConnectivity.Error()},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "the server encountered a problem and could not process your request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mapServiceErrorToHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err, nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantMessage, body["error"])
		})
	}
}

func TestMapServiceErrorToHTTP_NotConfiguredKeepsExtra(t *testing.T) {
	rec := httptest.NewRecorder()
	mapServiceErrorToHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil),
		fmt.Errorf("refresh: %w", services.ErrNotConfigured), jsonResponse{"tournaments": []string{}})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["setup_required"])
	assert.Contains(t, body, "tournaments")
}

func TestReadJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"full_name":"Ana"}`, ""},
		{"empty", ``, "body must not be empty"},
		{"unknown key", `{"nick":"x"}`, "unknown key"},
		{"two values", `{"full_name":"Ana"}{}`, "single JSON value"},
		{"wrong type", `{"full_name":1}`, "incorrect JSON type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst registerInput
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			err := readJSON(httptest.NewRecorder(), req, &dst)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "Ana", dst.FullName)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
