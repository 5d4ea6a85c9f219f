package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"social-api/internal/domain"
	"social-api/internal/repository"
)

const searchLimit = 20

var (
	ErrUserNotFound             = domain.NewNotFoundError("No user found with that ID")
	ErrCannotFollowSelf         = domain.NewValidationError("You cannot follow yourself")
	ErrEmptySearch              = domain.NewValidationError("Please provide an email to search for")
	ErrNothingToUpdate          = domain.NewValidationError("Please provide at least one field to update")
	ErrInvalidRole              = domain.NewValidationError("Role must be either user or admin")
	ErrPasswordUpdateNotAllowed = domain.NewValidationError("This route is not for password updates. Please use /update-my-password.")
)

// UserService coordina reglas de negocio para perfiles y el grafo de
// seguidores.
type UserService struct {
	logger   *zap.Logger
	users    repository.UserRepository
	posts    repository.PostRepository
	validate *validator.Validate
}

func NewUserService(logger *zap.Logger, users repository.UserRepository, posts repository.PostRepository) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		logger:   logger,
		users:    users,
		posts:    posts,
		validate: validator.New(),
	}
}

// Profile devuelve un usuario activo con sus publicaciones.
func (s *UserService) Profile(ctx context.Context, id string) (domain.UserProfile, error) {
	if err := checkID(id); err != nil {
		return domain.UserProfile{}, err
	}
	user, err := s.users.FindActiveByID(ctx, id)
	if err != nil {
		return domain.UserProfile{}, notFoundAs(err, ErrUserNotFound)
	}
	posts, err := s.posts.ListByAuthor(ctx, user.ID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return domain.UserProfile{User: user, Posts: posts}, nil
}

// UpdateMe aplica cambios de nombre, email o foto; el rol nunca se toca.
func (s *UserService) UpdateMe(ctx context.Context, userID string, upd domain.ProfileUpdate) (domain.User, error) {
	upd.Role = nil
	return s.update(ctx, userID, upd)
}

// UpdateUser es la variante de administración y admite cambio de rol.
func (s *UserService) UpdateUser(ctx context.Context, id string, upd domain.ProfileUpdate) (domain.User, error) {
	if err := checkID(id); err != nil {
		return domain.User{}, err
	}
	if upd.Role != nil && !upd.Role.Valid() {
		return domain.User{}, ErrInvalidRole
	}
	return s.update(ctx, id, upd)
}

func (s *UserService) update(ctx context.Context, id string, upd domain.ProfileUpdate) (domain.User, error) {
	upd, err := s.cleanProfileUpdate(upd)
	if err != nil {
		return domain.User{}, err
	}
	if upd.Empty() {
		return domain.User{}, ErrNothingToUpdate
	}
	user, err := s.users.UpdateProfile(ctx, id, upd)
	if err != nil {
		return domain.User{}, notFoundAs(err, ErrUserNotFound)
	}
	return user, nil
}

func (s *UserService) cleanProfileUpdate(upd domain.ProfileUpdate) (domain.ProfileUpdate, error) {
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return upd, ErrNameRequired
		}
		upd.Name = &name
	}
	if upd.Email != nil {
		emailAddr := strings.ToLower(strings.TrimSpace(*upd.Email))
		if err := s.validate.Var(emailAddr, "required,email"); err != nil {
			return upd, ErrInvalidEmail
		}
		upd.Email = &emailAddr
	}
	if upd.Photo != nil {
		photo := strings.TrimSpace(*upd.Photo)
		if photo == "" {
			photo = domain.DefaultPhoto
		}
		upd.Photo = &photo
	}
	return upd, nil
}

// DeleteMe desactiva la cuenta; los datos se conservan.
func (s *UserService) DeleteMe(ctx context.Context, userID string) error {
	if err := s.users.Deactivate(ctx, userID); err != nil {
		return notFoundAs(err, ErrUserNotFound)
	}
	s.logger.Info("user deactivated", zap.String("user_id", userID))
	return nil
}

// DeleteUser borra al usuario definitivamente junto con sus posts y aristas.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return notFoundAs(err, ErrUserNotFound)
	}
	s.logger.Info("user deleted", zap.String("user_id", id))
	return nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.users.ListActive(ctx)
}

// Follow devuelve el usuario seguido con sus contadores ya actualizados.
func (s *UserService) Follow(ctx context.Context, followerID, targetID string) (domain.User, error) {
	if err := s.checkFollowTarget(followerID, targetID); err != nil {
		return domain.User{}, err
	}
	user, err := s.users.Follow(ctx, followerID, targetID)
	if err != nil {
		return domain.User{}, notFoundAs(err, ErrUserNotFound)
	}
	return user, nil
}

func (s *UserService) Unfollow(ctx context.Context, followerID, targetID string) (domain.User, error) {
	if err := s.checkFollowTarget(followerID, targetID); err != nil {
		return domain.User{}, err
	}
	user, err := s.users.Unfollow(ctx, followerID, targetID)
	if err != nil {
		return domain.User{}, notFoundAs(err, ErrUserNotFound)
	}
	return user, nil
}

func (s *UserService) checkFollowTarget(followerID, targetID string) error {
	if err := checkID(targetID); err != nil {
		return err
	}
	if followerID == targetID {
		return ErrCannotFollowSelf
	}
	return nil
}

// Search busca usuarios activos cuyo email empieza por prefix.
func (s *UserService) Search(ctx context.Context, prefix string) ([]domain.UserSummary, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil, ErrEmptySearch
	}
	return s.users.SearchActiveByEmailPrefix(ctx, prefix, searchLimit)
}

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.NewValidationError(fmt.Sprintf("Invalid id: %s", id))
	}
	return nil
}

// notFoundAs sustituye ErrNotFound del repositorio por un mensaje específico.
func notFoundAs(err, replacement error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return replacement
	}
	return err
}
