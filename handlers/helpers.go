package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Dosada05/venue-tournaments/repositories"
	"github.com/Dosada05/venue-tournaments/services"
)

type jsonResponse map[string]interface{}

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	maxBytes := 1_048_576 // 1MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytes)
		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}, headers http.Header) error {
	js, err := json.Marshal(data)
	if err != nil {
		return err
	}
	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

func successResponse(w http.ResponseWriter, r *http.Request, status int, body jsonResponse) {
	if body == nil {
		body = jsonResponse{}
	}
	body["success"] = true
	if err := writeJSON(w, status, body, nil); err != nil {
		slog.ErrorContext(r.Context(), "failed to write response", slog.Any("error", err))
	}
}

// errorResponse пишет {"success": false, "error": ...}; extra дополняет тело.
func errorResponse(w http.ResponseWriter, r *http.Request, status int, message string, extra jsonResponse) {
	env := jsonResponse{"success": false, "error": message}
	for k, v := range extra {
		env[k] = v
	}
	if err := writeJSON(w, status, env, nil); err != nil {
		slog.ErrorContext(r.Context(), "failed to write error response", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "internal server error",
		slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("error", err))
	errorResponse(w, r, http.StatusInternalServerError, "the server encountered a problem and could not process your request", nil)
}

func badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(w, r, http.StatusBadRequest, err.Error(), nil)
}

// mapServiceErrorToHTTP преобразует ошибки сервисного слоя в HTTP-ответы.
// extra попадает в тело ответа (например, закэшированные турниры).
func mapServiceErrorToHTTP(w http.ResponseWriter, r *http.Request, err error, extra jsonResponse) {
	switch {
	// Авторизация: без подробностей
	case errors.Is(err, services.ErrUnauthorized):
		errorResponse(w, r, http.StatusUnauthorized, services.ErrUnauthorized.Error(), nil)
	case errors.Is(err, services.ErrAuthInvalidCredentials):
		errorResponse(w, r, http.StatusUnauthorized, services.ErrAuthInvalidCredentials.Error(), nil)

	// Хранилище
	case errors.Is(err, services.ErrNotConfigured):
		slog.ErrorContext(r.Context(), "data store is not provisioned", slog.Any("error", err))
		if extra == nil {
			extra = jsonResponse{}
		}
		extra["setup_required"] = true
		errorResponse(w, r, http.StatusServiceUnavailable, services.ErrNotConfigured.Error(), extra)
	case errors.Is(err, services.ErrConnectivity):
		slog.WarnContext(r.Context(), "data store unavailable", slog.Any("error", err))
		errorResponse(w, r, http.StatusServiceUnavailable, services.ErrConnectivity.Error(), extra)

	// Бизнес-правила
	case errors.Is(err, services.ErrTournamentNotFound):
		errorResponse(w, r, http.StatusNotFound, services.ErrTournamentNotFound.Error(), nil)
	case errors.Is(err, services.ErrDuplicateRegistration):
		errorResponse(w, r, http.StatusConflict, services.ErrDuplicateRegistration.Error(), nil)
	case errors.Is(err, services.ErrTournamentFull):
		errorResponse(w, r, http.StatusConflict, services.ErrTournamentFull.Error(), nil)
	case errors.Is(err, services.ErrEditionConflict):
		errorResponse(w, r, http.StatusConflict, clientMessage(r, err, services.ErrEditionConflict), nil)
	case errors.Is(err, services.ErrTournamentInUse):
		errorResponse(w, r, http.StatusConflict, clientMessage(r, err, services.ErrTournamentInUse), nil)
	case errors.Is(err, services.ErrValidationFailed):
		errorResponse(w, r, http.StatusBadRequest, clientMessage(r, err, services.ErrValidationFailed), nil)

	default:
		serverErrorResponse(w, r, err)
	}
}

// clientMessage отдает клиенту текст ошибки сервиса, но если в цепочке есть
// ошибка хранилища, только текст sentinel; полная ошибка уходит в лог.
func clientMessage(r *http.Request, err, sentinel error) string {
	if errors.Is(err, repositories.ErrConstraint) {
		slog.WarnContext(r.Context(), "request rejected by data store constraint", slog.Any("error", err))
		return sentinel.Error()
	}
	return err.Error()
}
