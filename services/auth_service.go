package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Dosada05/venue-tournaments/models"
	"github.com/Dosada05/venue-tournaments/utils"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// AuthService - провайдер идентичности. Единственный оператор задается конфигурацией,
// любая действующая сессия дает права администратора.
type AuthService interface {
	SignIn(ctx context.Context, input LoginInput) (*models.Admin, string, error)
	SignOut(ctx context.Context, admin *models.Admin) error
	Authenticate(tokenString string) (*models.Admin, error)
	CurrentUser(ctx context.Context) (*models.Admin, bool)
	IsAdministrator(ctx context.Context) bool
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthConfig struct {
	AdminEmail        string
	AdminPasswordHash string
	JWTSecret         string
	TokenTTL          time.Duration
	Clock             func() time.Time
}

type authService struct {
	email     string
	hash      string
	jwtSecret []byte
	ttl       time.Duration
	now       func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewAuthService(cfg AuthConfig) AuthService {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	return &authService{
		email:     strings.TrimSpace(cfg.AdminEmail),
		hash:      cfg.AdminPasswordHash,
		jwtSecret: []byte(cfg.JWTSecret),
		ttl:       cfg.TokenTTL,
		now:       cfg.Clock,
		revoked:   make(map[string]time.Time),
	}
}

func (s *authService) SignIn(ctx context.Context, input LoginInput) (*models.Admin, string, error) {
	email := strings.TrimSpace(input.Email)
	if email == "" || input.Password == "" {
		return nil, "", fmt.Errorf("%w: email and password are required", ErrValidationFailed)
	}

	// хеш проверяется и при чужом email, чтобы время ответа не выдавало адрес
	passwordOK := utils.CheckPasswordHash(input.Password, s.hash)
	if !strings.EqualFold(email, s.email) || !passwordOK {
		return nil, "", ErrAuthInvalidCredentials
	}

	now := s.now()
	admin := &models.Admin{
		Email:     s.email,
		TokenID:   uuid.NewString(),
		ExpiresAt: now.Add(s.ttl).Truncate(time.Second),
	}
	claims := jwt.RegisteredClaims{
		Subject:   admin.Email,
		ID:        admin.TokenID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(admin.ExpiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign token: %w", err)
	}
	return admin, tokenString, nil
}

// SignOut revokes the session token until it would have expired anyway.
func (s *authService) SignOut(ctx context.Context, admin *models.Admin) error {
	if admin == nil || admin.TokenID == "" {
		return ErrUnauthorized
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
		}
	}
	s.revoked[admin.TokenID] = admin.ExpiresAt
	return nil
}

func (s *authService) Authenticate(tokenString string) (*models.Admin, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.Join(ErrUnauthorized, err)
	}
	if claims.ExpiresAt == nil || claims.ID == "" || !strings.EqualFold(claims.Subject, s.email) {
		return nil, ErrUnauthorized
	}
	if !s.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrUnauthorized
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return nil, ErrUnauthorized
	}

	return &models.Admin{
		Email:     claims.Subject,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *authService) CurrentUser(ctx context.Context) (*models.Admin, bool) {
	return AdminFromContext(ctx)
}

func (s *authService) IsAdministrator(ctx context.Context) bool {
	admin, ok := AdminFromContext(ctx)
	if !ok {
		return false
	}
	s.mu.Lock()
	_, revoked := s.revoked[admin.TokenID]
	s.mu.Unlock()
	return !revoked && s.now().Before(admin.ExpiresAt)
}
