package http

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-api/internal/domain"
	"social-api/internal/service"
)

const (
	currentUserKey  = "current_user"
	tokenCookieName = "jwt"
	loggedOutValue  = "loggedout"
)

// Authenticator resuelve un token bearer a su usuario vigente.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (domain.User, error)
}

// AuthMiddleware adapta el guardia de autenticación a Gin.
type AuthMiddleware struct {
	logger  *zap.Logger
	gate    Authenticator
	metrics *Metrics
}

func NewAuthMiddleware(logger *zap.Logger, gate Authenticator, metrics *Metrics) *AuthMiddleware {
	return &AuthMiddleware{logger: logger, gate: gate, metrics: metrics}
}

// RequireAuth exige un token válido y deja el usuario en el contexto.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := m.gate.Authenticate(c.Request.Context(), extractToken(c))
		if err != nil {
			m.metrics.observeAuthRejection(err)
			respondError(c, m.logger, err)
			return
		}
		c.Set(currentUserKey, user)
		c.Next()
	}
}

// RestrictTo se apila detrás de RequireAuth y corta con 403 si el rol no
// está permitido.
func (m *AuthMiddleware) RestrictTo(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			respondError(c, m.logger, service.ErrNotLoggedIn)
			return
		}
		if err := service.Authorize(user, roles...); err != nil {
			m.metrics.observeAuthRejection(err)
			respondError(c, m.logger, err)
			return
		}
		c.Next()
	}
}

// extractToken prioriza el header Authorization sobre la cookie jwt.
func extractToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) > len("bearer ") && strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	if cookie, err := c.Cookie(tokenCookieName); err == nil && cookie != loggedOutValue {
		return cookie
	}
	return ""
}

// CurrentUser obtiene el usuario autenticado desde el contexto.
func CurrentUser(c *gin.Context) (domain.User, bool) {
	val, ok := c.Get(currentUserKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := val.(domain.User)
	return user, ok
}
