package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-api/internal/domain"
	"social-api/internal/service"
)

// PostHandler expone posts, likes y comentarios.
type PostHandler struct {
	logger   *zap.Logger
	postServ *service.PostService
}

func NewPostHandler(logger *zap.Logger, postServ *service.PostService) *PostHandler {
	return &PostHandler{logger: logger, postServ: postServ}
}

// postRef acepta el id del post como postId o id.
type postRef struct {
	PostID string `json:"postId"`
	ID     string `json:"id"`
}

func (r postRef) postID() string {
	if r.PostID != "" {
		return r.PostID
	}
	return r.ID
}

// ListAll maneja GET /api/v1/posts/all.
func (h *PostHandler) ListAll(c *gin.Context) {
	posts, err := h.postServ.ListAll(c.Request.Context())
	h.respondPosts(c, posts, err)
}

// Feed maneja GET /api/v1/posts.
func (h *PostHandler) Feed(c *gin.Context) {
	user, _ := CurrentUser(c)
	posts, err := h.postServ.Feed(c.Request.Context(), user.ID)
	h.respondPosts(c, posts, err)
}

// ListMine maneja GET /api/v1/posts/mine.
func (h *PostHandler) ListMine(c *gin.Context) {
	user, _ := CurrentUser(c)
	posts, err := h.postServ.ListMine(c.Request.Context(), user.ID)
	h.respondPosts(c, posts, err)
}

func (h *PostHandler) respondPosts(c *gin.Context, posts []domain.PostView, err error) {
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, "posts", posts, len(posts))
}

// Create maneja POST /api/v1/posts.
func (h *PostHandler) Create(c *gin.Context) {
	user, _ := CurrentUser(c)
	var req struct {
		Title string `json:"title" binding:"required"`
		Body  string `json:"body" binding:"required"`
		Photo string `json:"photo" binding:"required"`
	}
	if !bindJSON(c, h.logger, &req) {
		return
	}
	post, err := h.postServ.Create(c.Request.Context(), user.ID, service.CreatePostInput{
		Title: req.Title,
		Body:  req.Body,
		Photo: req.Photo,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusCreated, gin.H{"post": post})
}

// Get maneja GET /api/v1/posts/:id.
func (h *PostHandler) Get(c *gin.Context) {
	post, err := h.postServ.Get(c.Request.Context(), c.Param("id"))
	h.respondPost(c, post, err)
}

// Update maneja PATCH /api/v1/posts/:id; solo el autor puede editar.
func (h *PostHandler) Update(c *gin.Context) {
	user, _ := CurrentUser(c)
	var req struct {
		Title *string `json:"title"`
		Body  *string `json:"body"`
		Photo *string `json:"photo"`
	}
	if !bindJSON(c, h.logger, &req) {
		return
	}
	post, err := h.postServ.Update(c.Request.Context(), user, c.Param("id"), domain.PostUpdate{
		Title: req.Title,
		Body:  req.Body,
		Photo: req.Photo,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"post": post})
}

// DeleteMine maneja DELETE /api/v1/posts/mine/:id.
func (h *PostHandler) DeleteMine(c *gin.Context) {
	user, _ := CurrentUser(c)
	if err := h.postServ.DeleteOwn(c.Request.Context(), user, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete maneja DELETE /api/v1/posts/:id (admin).
func (h *PostHandler) Delete(c *gin.Context) {
	if err := h.postServ.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Like maneja PUT /api/v1/posts/like.
func (h *PostHandler) Like(c *gin.Context) {
	user, _ := CurrentUser(c)
	var req postRef
	if !bindJSON(c, h.logger, &req) {
		return
	}
	post, err := h.postServ.Like(c.Request.Context(), user.ID, req.postID())
	h.respondPost(c, post, err)
}

// Unlike maneja PUT /api/v1/posts/unlike.
func (h *PostHandler) Unlike(c *gin.Context) {
	user, _ := CurrentUser(c)
	var req postRef
	if !bindJSON(c, h.logger, &req) {
		return
	}
	post, err := h.postServ.Unlike(c.Request.Context(), user.ID, req.postID())
	h.respondPost(c, post, err)
}

// Comment maneja PUT /api/v1/posts/comment.
func (h *PostHandler) Comment(c *gin.Context) {
	user, _ := CurrentUser(c)
	var req struct {
		postRef
		Comment string `json:"comment" binding:"required"`
	}
	if !bindJSON(c, h.logger, &req) {
		return
	}
	post, err := h.postServ.Comment(c.Request.Context(), user.ID, req.postID(), req.Comment)
	h.respondPost(c, post, err)
}

// RemoveComment maneja PUT /api/v1/posts/remove-comment.
func (h *PostHandler) RemoveComment(c *gin.Context) {
	user, _ := CurrentUser(c)
	var req struct {
		CommentID string `json:"commentId" binding:"required"`
	}
	if !bindJSON(c, h.logger, &req) {
		return
	}
	post, err := h.postServ.RemoveComment(c.Request.Context(), user.ID, req.CommentID)
	h.respondPost(c, post, err)
}

func (h *PostHandler) respondPost(c *gin.Context, post domain.PostView, err error) {
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"post": post})
}
