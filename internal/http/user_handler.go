package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-api/internal/domain"
	"social-api/internal/service"
)

// UserHandler mantiene dependencias para endpoints de usuarios.
type UserHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(logger *zap.Logger, userServ *service.UserService) *UserHandler {
	return &UserHandler{
		logger:   logger,
		userServ: userServ,
	}
}

// GetMe maneja GET /api/v1/users/me.
func (h *UserHandler) GetMe(c *gin.Context) {
	user, _ := CurrentUser(c)
	h.respondProfile(c, user.ID)
}

// GetUser maneja GET /api/v1/users/:id.
func (h *UserHandler) GetUser(c *gin.Context) {
	h.respondProfile(c, c.Param("id"))
}

func (h *UserHandler) respondProfile(c *gin.Context, id string) {
	profile, err := h.userServ.Profile(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"user": profile.User, "posts": profile.Posts})
}

type profileRequest struct {
	Name            *string `json:"name"`
	Email           *string `json:"email" binding:"omitempty,email"`
	Photo           *string `json:"photo"`
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
}

func (r profileRequest) update() domain.ProfileUpdate {
	return domain.ProfileUpdate{Name: r.Name, Email: r.Email, Photo: r.Photo}
}

// UpdateMe maneja PATCH /api/v1/users/update-me. Los campos de contraseña se
// rechazan; el rol no se puede cambiar por esta vía.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	user, _ := CurrentUser(c)
	var req profileRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	if req.Password != nil || req.PasswordConfirm != nil {
		respondError(c, h.logger, service.ErrPasswordUpdateNotAllowed)
		return
	}
	updated, err := h.userServ.UpdateMe(c.Request.Context(), user.ID, req.update())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"user": updated})
}

// DeleteMe maneja PATCH /api/v1/users/delete-me (baja lógica).
func (h *UserHandler) DeleteMe(c *gin.Context) {
	user, _ := CurrentUser(c)
	if err := h.userServ.DeleteMe(c.Request.Context(), user.ID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type targetRequest struct {
	ID string `json:"id" binding:"required"`
}

// Follow maneja PUT /api/v1/users/follow.
func (h *UserHandler) Follow(c *gin.Context) {
	user, _ := CurrentUser(c)
	var req targetRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	followed, err := h.userServ.Follow(c.Request.Context(), user.ID, req.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"user": followed})
}

// Unfollow maneja PUT /api/v1/users/unfollow.
func (h *UserHandler) Unfollow(c *gin.Context) {
	user, _ := CurrentUser(c)
	var req targetRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	unfollowed, err := h.userServ.Unfollow(c.Request.Context(), user.ID, req.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"user": unfollowed})
}

// Search maneja POST /api/v1/users/search. El prefijo llega en ?email= o en
// el cuerpo JSON.
func (h *UserHandler) Search(c *gin.Context) {
	prefix := c.Query("email")
	if prefix == "" && c.Request.ContentLength != 0 {
		var req struct {
			Email string `json:"email"`
		}
		if !bindJSON(c, h.logger, &req) {
			return
		}
		prefix = req.Email
	}
	found, err := h.userServ.Search(c.Request.Context(), prefix)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, "users", found, len(found))
}

// ListUsers maneja GET /api/v1/users (admin).
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.userServ.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	views := make([]domain.AdminUserView, 0, len(users))
	for _, u := range users {
		views = append(views, u.AdminView())
	}
	respondList(c, "users", views, len(views))
}

// UpdateUser maneja PATCH /api/v1/users/:id (admin).
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req struct {
		profileRequest
		Role *string `json:"role" binding:"omitempty,oneof=user admin"`
	}
	if !bindJSON(c, h.logger, &req) {
		return
	}
	if req.Password != nil || req.PasswordConfirm != nil {
		respondError(c, h.logger, service.ErrPasswordUpdateNotAllowed)
		return
	}
	upd := req.update()
	if req.Role != nil {
		role := domain.Role(*req.Role)
		upd.Role = &role
	}
	updated, err := h.userServ.UpdateUser(c.Request.Context(), c.Param("id"), upd)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"user": updated.AdminView()})
}

// DeleteUser maneja DELETE /api/v1/users/:id (admin, borrado definitivo).
func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.userServ.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
