package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"social-api/internal/domain"
	"social-api/internal/repository"
)

var (
	ErrPostNotFound      = domain.NewNotFoundError("No post found with that ID")
	ErrCommentNotFound   = domain.NewNotFoundError("No comment found with that ID")
	ErrPostFieldsMissing = domain.NewValidationError("Please add all the fields")
	ErrEmptyComment      = domain.NewValidationError("Comment cannot be empty")
	ErrNotPostOwner      = domain.NewAuthorizationError("You can only modify your own posts")
	ErrNotCommentOwner   = domain.NewAuthorizationError("You can only remove your own comments")
)

// PostService aplica las reglas de propiedad sobre posts y comentarios.
type PostService struct {
	logger *zap.Logger
	posts  repository.PostRepository
	now    func() time.Time
}

func NewPostService(logger *zap.Logger, posts repository.PostRepository) *PostService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostService{logger: logger, posts: posts, now: time.Now}
}

type CreatePostInput struct {
	Title string
	Body  string
	Photo string
}

func (s *PostService) ListAll(ctx context.Context) ([]domain.PostView, error) {
	return s.posts.ListAll(ctx)
}

// Feed devuelve los posts de las cuentas que sigue userID.
func (s *PostService) Feed(ctx context.Context, userID string) ([]domain.PostView, error) {
	return s.posts.ListFeed(ctx, userID)
}

func (s *PostService) ListMine(ctx context.Context, userID string) ([]domain.PostView, error) {
	return s.posts.ListByAuthor(ctx, userID)
}

func (s *PostService) Get(ctx context.Context, id string) (domain.PostView, error) {
	if err := checkID(id); err != nil {
		return domain.PostView{}, err
	}
	view, err := s.posts.GetView(ctx, id)
	if err != nil {
		return domain.PostView{}, notFoundAs(err, ErrPostNotFound)
	}
	return view, nil
}

func (s *PostService) Create(ctx context.Context, authorID string, input CreatePostInput) (domain.Post, error) {
	title := strings.TrimSpace(input.Title)
	body := strings.TrimSpace(input.Body)
	photo := strings.TrimSpace(input.Photo)
	if title == "" || body == "" || photo == "" {
		return domain.Post{}, ErrPostFieldsMissing
	}
	now := s.now().UTC()
	post := domain.Post{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Title:     title,
		Body:      body,
		Photo:     photo,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return domain.Post{}, err
	}
	return post, nil
}

// Update solo lo permite al autor del post.
func (s *PostService) Update(ctx context.Context, user domain.User, id string, upd domain.PostUpdate) (domain.Post, error) {
	if _, err := s.ownedPost(ctx, user, id); err != nil {
		return domain.Post{}, err
	}
	for _, field := range []**string{&upd.Title, &upd.Body, &upd.Photo} {
		if *field == nil {
			continue
		}
		v := strings.TrimSpace(**field)
		if v == "" {
			return domain.Post{}, ErrPostFieldsMissing
		}
		*field = &v
	}
	if upd.Empty() {
		return domain.Post{}, ErrNothingToUpdate
	}
	post, err := s.posts.Update(ctx, id, upd)
	if err != nil {
		return domain.Post{}, notFoundAs(err, ErrPostNotFound)
	}
	return post, nil
}

// DeleteOwn borra un post del propio usuario; el de otro devuelve 403.
func (s *PostService) DeleteOwn(ctx context.Context, user domain.User, id string) error {
	if _, err := s.ownedPost(ctx, user, id); err != nil {
		return err
	}
	return s.Delete(ctx, id)
}

// Delete borra cualquier post; reservado a administradores.
func (s *PostService) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, id); err != nil {
		return notFoundAs(err, ErrPostNotFound)
	}
	s.logger.Info("post deleted", zap.String("post_id", id))
	return nil
}

func (s *PostService) ownedPost(ctx context.Context, user domain.User, id string) (domain.Post, error) {
	if err := checkID(id); err != nil {
		return domain.Post{}, err
	}
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return domain.Post{}, notFoundAs(err, ErrPostNotFound)
	}
	if post.AuthorID != user.ID {
		return domain.Post{}, ErrNotPostOwner
	}
	return post, nil
}

func (s *PostService) Like(ctx context.Context, userID, postID string) (domain.PostView, error) {
	if err := checkID(postID); err != nil {
		return domain.PostView{}, err
	}
	if err := s.posts.Like(ctx, postID, userID); err != nil {
		return domain.PostView{}, notFoundAs(err, ErrPostNotFound)
	}
	return s.Get(ctx, postID)
}

func (s *PostService) Unlike(ctx context.Context, userID, postID string) (domain.PostView, error) {
	if err := checkID(postID); err != nil {
		return domain.PostView{}, err
	}
	if err := s.posts.Unlike(ctx, postID, userID); err != nil {
		return domain.PostView{}, notFoundAs(err, ErrPostNotFound)
	}
	return s.Get(ctx, postID)
}

func (s *PostService) Comment(ctx context.Context, userID, postID, text string) (domain.PostView, error) {
	if err := checkID(postID); err != nil {
		return domain.PostView{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.PostView{}, ErrEmptyComment
	}
	comment := domain.Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		UserID:    userID,
		Body:      text,
		CreatedAt: s.now().UTC(),
	}
	if err := s.posts.AddComment(ctx, comment); err != nil {
		return domain.PostView{}, notFoundAs(err, ErrPostNotFound)
	}
	return s.Get(ctx, postID)
}

// RemoveComment borra un comentario propio y devuelve el post actualizado.
func (s *PostService) RemoveComment(ctx context.Context, userID, commentID string) (domain.PostView, error) {
	if err := checkID(commentID); err != nil {
		return domain.PostView{}, err
	}
	comment, err := s.posts.GetComment(ctx, commentID)
	if err != nil {
		return domain.PostView{}, notFoundAs(err, ErrCommentNotFound)
	}
	if comment.UserID != userID {
		return domain.PostView{}, ErrNotCommentOwner
	}
	if err := s.posts.DeleteComment(ctx, commentID); err != nil {
		return domain.PostView{}, notFoundAs(err, ErrCommentNotFound)
	}
	return s.Get(ctx, comment.PostID)
}
