package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"social-api/internal/domain"
	"social-api/internal/repository"
)

var (
	ErrNotLoggedIn        = domain.NewAuthenticationError("You are not logged in! Please log in to get access.")
	ErrTokenUserGone      = domain.NewAuthenticationError("The user belonging to this token no longer exists.")
	ErrAccountDeactivated = domain.NewAuthenticationError("This account has been deactivated.")
	ErrPasswordChanged    = domain.NewAuthenticationError("User recently changed password! Please log in again.")
	ErrForbidden          = domain.NewAuthorizationError("You do not have permission to perform this action")
)

// AuthGate resuelve un token bearer al usuario vigente que lo posee.
type AuthGate struct {
	logger *zap.Logger
	users  repository.UserRepository
	tokens TokenVerifier
}

func NewAuthGate(logger *zap.Logger, users repository.UserRepository, tokens TokenVerifier) *AuthGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthGate{logger: logger, users: users, tokens: tokens}
}

// Authenticate recorre la secuencia token presente, token válido, usuario
// cargado y sesión vigente. Cualquier fallo termina en un error de
// autenticación; no hay reintentos.
func (g *AuthGate) Authenticate(ctx context.Context, rawToken string) (domain.User, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return domain.User{}, ErrNotLoggedIn
	}

	claims, err := g.tokens.Verify(rawToken)
	if err != nil {
		return domain.User{}, err
	}

	user, err := g.users.FindByIDIncludingInactive(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, ErrTokenUserGone
		}
		return domain.User{}, err
	}
	if !user.Active {
		return domain.User{}, ErrAccountDeactivated
	}
	if user.ChangedPasswordAfter(claims.IssuedAtTime()) {
		g.logger.Debug("rejecting token issued before password change", zap.String("user_id", user.ID))
		return domain.User{}, ErrPasswordChanged
	}
	return user, nil
}

// Authorize falla con 403 si el rol del usuario no está en allowed.
func Authorize(user domain.User, allowed ...domain.Role) error {
	if !user.Role.In(allowed...) {
		return ErrForbidden
	}
	return nil
}
