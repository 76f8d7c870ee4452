package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Dosada05/venue-tournaments/models"
	"github.com/Dosada05/venue-tournaments/services"
)

// TokenAuthenticator проверяет токен сессии.
type TokenAuthenticator interface {
	Authenticate(tokenString string) (*models.Admin, error)
}

// AdminChecker решает, дает ли сессия в контексте права администратора.
type AdminChecker interface {
	IsAdministrator(ctx context.Context) bool
}

// Authenticate кладет администратора в контекст, если запрос несет валидный
// Bearer-токен. Запросы без токена или с плохим токеном проходят как анонимные.
func Authenticate(auth TokenAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			admin, err := auth.Authenticate(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(services.ContextWithAdmin(r.Context(), admin)))
		})
	}
}

// RequireAdmin отвечает 401 без подробностей, если в контексте нет сессии.
func RequireAdmin(checker AdminChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !checker.IsAdministrator(r.Context()) {
				writeError(w, http.StatusUnauthorized, services.ErrUnauthorized.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
