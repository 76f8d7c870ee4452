package services

import (
	"context"

	"github.com/Dosada05/venue-tournaments/models"
)

// AdminChecker is the boolean capability the registry needs from the identity provider.
type AdminChecker interface {
	IsAdministrator(ctx context.Context) bool
}

type adminContextKey struct{}

func ContextWithAdmin(ctx context.Context, admin *models.Admin) context.Context {
	return context.WithValue(ctx, adminContextKey{}, admin)
}

func AdminFromContext(ctx context.Context) (*models.Admin, bool) {
	admin, ok := ctx.Value(adminContextKey{}).(*models.Admin)
	return admin, ok && admin != nil
}

// SessionAdminChecker считает администратором любого, у кого в контексте есть сессия.
type SessionAdminChecker struct{}

func (SessionAdminChecker) IsAdministrator(ctx context.Context) bool {
	_, ok := AdminFromContext(ctx)
	return ok
}
