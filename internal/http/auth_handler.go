package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-api/internal/service"
)

// CookieConfig controla la cookie jwt que acompaña al token.
type CookieConfig struct {
	TTL    time.Duration
	Secure bool
}

// AuthHandler expone registro, login y el ciclo de vida de contraseñas.
type AuthHandler struct {
	logger   *zap.Logger
	authServ *service.AuthService
	cookie   CookieConfig
}

func NewAuthHandler(logger *zap.Logger, authServ *service.AuthService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{logger: logger, authServ: authServ, cookie: cookie}
}

type signUpRequest struct {
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Photo           string `json:"photo"`
	Password        string `json:"password" binding:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required,eqfield=Password"`
}

func (r signUpRequest) input() service.SignUpInput {
	return service.SignUpInput{
		Name:            r.Name,
		Email:           r.Email,
		Photo:           r.Photo,
		Password:        r.Password,
		PasswordConfirm: r.PasswordConfirm,
	}
}

// SignUp maneja POST /api/v1/users/sign-up.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req signUpRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	res, err := h.authServ.SignUp(c.Request.Context(), req.input())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.sendToken(c, http.StatusCreated, res)
}

// CreateAdmin maneja POST /api/v1/users/sign-up/admin (solo admin). No
// emite cookie: quien llama sigue siendo el administrador actual.
func (h *AuthHandler) CreateAdmin(c *gin.Context) {
	var req signUpRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	res, err := h.authServ.CreateAdmin(c.Request.Context(), req.input())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusCreated, gin.H{"user": res.User.AdminView()})
}

// Login maneja POST /api/v1/users/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !bindJSON(c, h.logger, &req) {
		return
	}
	res, err := h.authServ.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.sendToken(c, http.StatusOK, res)
}

// Logout sobrescribe la cookie; el token en sí sigue siendo válido hasta
// expirar.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(tokenCookieName, loggedOutValue, 10, "/", "", h.cookie.Secure, true)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// ForgotPassword maneja POST /api/v1/users/forgot-password.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if !bindJSON(c, h.logger, &req) {
		return
	}
	if err := h.authServ.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Token sent to email!"})
}

type newPasswordRequest struct {
	Password        string `json:"password" binding:"required"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required"`
}

// ResetPassword maneja PATCH /api/v1/users/reset-password/:token.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req newPasswordRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	res, err := h.authServ.ResetPassword(c.Request.Context(), c.Param("token"), req.Password, req.PasswordConfirm)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.sendToken(c, http.StatusOK, res)
}

// UpdateMyPassword maneja PATCH /api/v1/users/update-my-password.
func (h *AuthHandler) UpdateMyPassword(c *gin.Context) {
	user, _ := CurrentUser(c)
	var req struct {
		PasswordCurrent string `json:"passwordCurrent" binding:"required"`
		newPasswordRequest
	}
	if !bindJSON(c, h.logger, &req) {
		return
	}
	res, err := h.authServ.UpdatePassword(c.Request.Context(), user.ID, req.PasswordCurrent, req.Password, req.PasswordConfirm)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.sendToken(c, http.StatusOK, res)
}

func (h *AuthHandler) sendToken(c *gin.Context, status int, res service.AuthResult) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(tokenCookieName, res.Token, int(h.cookie.TTL.Seconds()), "/", "", h.cookie.Secure, true)
	c.JSON(status, gin.H{
		"status": "success",
		"token":  res.Token,
		"data":   gin.H{"user": res.User},
	})
}
