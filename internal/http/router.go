package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-api/internal/domain"
)

// Pinger lo implementa *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterOptions agrupa los parámetros globales del router.
type RouterOptions struct {
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter configura el router de Gin con middlewares y rutas de la API.
func NewRouter(
	logger *zap.Logger,
	opts RouterOptions,
	metrics *Metrics,
	authMW *AuthMiddleware,
	authH *AuthHandler,
	userH *UserHandler,
	postH *PostHandler,
	db Pinger,
) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(
		requestIDMiddleware(),
		zapLoggerMiddleware(logger),
		recoveryMiddleware(logger),
		metrics.Middleware(),
	)
	r.NoRoute(func(c *gin.Context) {
		respondFail(c, http.StatusNotFound, "Can't find "+c.Request.URL.Path+" on this server!")
	})

	r.GET("/healthz", healthHandler(logger, db))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api/v1", rateLimitMiddleware(logger, newIPRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst)))
	requireAuth := authMW.RequireAuth()
	adminOnly := authMW.RestrictTo(domain.RoleAdmin)

	users := api.Group("/users")
	users.POST("/sign-up", authH.SignUp)
	users.POST("/login", authH.Login)
	users.GET("/logout", authH.Logout)
	users.POST("/forgot-password", authH.ForgotPassword)
	users.PATCH("/reset-password/:token", authH.ResetPassword)

	me := users.Group("", requireAuth)
	me.PATCH("/update-my-password", authH.UpdateMyPassword)
	me.GET("/me", userH.GetMe)
	me.PATCH("/update-me", userH.UpdateMe)
	me.PATCH("/delete-me", userH.DeleteMe)
	me.PUT("/follow", userH.Follow)
	me.PUT("/unfollow", userH.Unfollow)
	me.POST("/search", userH.Search)
	me.GET("/:id", userH.GetUser)

	usersAdmin := users.Group("", requireAuth, adminOnly)
	usersAdmin.POST("/sign-up/admin", authH.CreateAdmin)
	usersAdmin.GET("", userH.ListUsers)
	usersAdmin.PATCH("/:id", userH.UpdateUser)
	usersAdmin.DELETE("/:id", userH.DeleteUser)

	posts := api.Group("/posts", requireAuth)
	posts.GET("/all", postH.ListAll)
	posts.GET("", postH.Feed)
	posts.GET("/mine", postH.ListMine)
	posts.POST("", postH.Create)
	posts.PUT("/like", postH.Like)
	posts.PUT("/unlike", postH.Unlike)
	posts.PUT("/comment", postH.Comment)
	posts.PUT("/remove-comment", postH.RemoveComment)
	posts.DELETE("/mine/:id", postH.DeleteMine)
	posts.GET("/:id", postH.Get)
	posts.PATCH("/:id", postH.Update)
	posts.DELETE("/:id", adminOnly, postH.Delete)

	return r
}

// healthHandler responde 200 si la base de datos contesta al ping.
func healthHandler(logger *zap.Logger, db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			logger.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
