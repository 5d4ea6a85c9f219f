package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"social-api/internal/domain"
	"social-api/internal/email"
	"social-api/internal/repository"
)

const (
	minPasswordLength = 8
	// bcrypt solo acepta hasta 72 bytes.
	maxPasswordLength = 72
)

var (
	ErrInvalidCredentials   = domain.NewAuthenticationError("Incorrect email or password")
	ErrResetTokenInvalid    = domain.NewAuthenticationError("Token is invalid or has expired")
	ErrWrongCurrentPassword = domain.NewAuthenticationError("Your current password is wrong.")
	ErrNoUserWithEmail      = domain.NewNotFoundError("There is no user with that email address.")
	ErrPasswordTooShort     = domain.NewValidationError(fmt.Sprintf("Password must be at least %d characters long", minPasswordLength))
	ErrPasswordTooLong      = domain.NewValidationError(fmt.Sprintf("Password must be at most %d bytes long", maxPasswordLength))
	ErrPasswordMismatch     = domain.NewValidationError("Passwords are not the same!")
	ErrNameRequired         = domain.NewValidationError("Please tell us your name!")
	ErrInvalidEmail         = domain.NewValidationError("Please provide a valid email")
	ErrTooManyResetRequests = domain.NewRateLimitError("Too many password reset requests. Please try again later.")
	ErrTooManyLoginAttempts = domain.NewRateLimitError("Too many login attempts. Please try again later.")
	ErrEmailSendFailure     = domain.NewInternalError("There was an error sending the email. Try again later!", nil)
)

// AuthOptions agrupa parámetros opcionales del flujo de credenciales.
type AuthOptions struct {
	ResetTTL     time.Duration
	ResetURLBase string
	ResetLimiter RateLimiter
	LoginLimiter RateLimiter
}

// AuthService implementa registro, login y el ciclo de vida de contraseñas.
type AuthService struct {
	logger   *zap.Logger
	users    repository.UserRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	mailer   email.Sender
	validate *validator.Validate
	opts     AuthOptions
	now      func() time.Time

	dummyOnce sync.Once
	dummy     string
}

func NewAuthService(logger *zap.Logger, users repository.UserRepository, hasher PasswordHasher, tokens TokenIssuer, mailer email.Sender, opts AuthOptions) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = 10 * time.Minute
	}
	if opts.ResetLimiter == nil {
		opts.ResetLimiter = allowAll{}
	}
	if opts.LoginLimiter == nil {
		opts.LoginLimiter = allowAll{}
	}
	opts.ResetURLBase = strings.TrimRight(opts.ResetURLBase, "/")
	return &AuthService{
		logger:   logger,
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		mailer:   mailer,
		validate: validator.New(),
		opts:     opts,
		now:      time.Now,
	}
}

type SignUpInput struct {
	Name            string
	Email           string
	Photo           string
	Password        string
	PasswordConfirm string
}

// AuthResult es un usuario autenticado junto con su token recién emitido.
type AuthResult struct {
	User  domain.User
	Token string
}

// SignUp registra un usuario con rol user.
func (s *AuthService) SignUp(ctx context.Context, input SignUpInput) (AuthResult, error) {
	return s.register(ctx, input, domain.RoleUser)
}

// CreateAdmin registra un usuario con rol admin; la ruta está restringida a
// administradores.
func (s *AuthService) CreateAdmin(ctx context.Context, input SignUpInput) (AuthResult, error) {
	return s.register(ctx, input, domain.RoleAdmin)
}

func (s *AuthService) register(ctx context.Context, input SignUpInput, role domain.Role) (AuthResult, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return AuthResult{}, ErrNameRequired
	}
	emailAddr, err := s.normalizeEmail(input.Email)
	if err != nil {
		return AuthResult{}, err
	}
	if err := checkNewPassword(input.Password, input.PasswordConfirm); err != nil {
		return AuthResult{}, err
	}
	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	photo := strings.TrimSpace(input.Photo)
	if photo == "" {
		photo = domain.DefaultPhoto
	}
	now := s.now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        emailAddr,
		Photo:        photo,
		Role:         role,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return AuthResult{}, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(role)))
	return s.issue(user)
}

// Login responde igual, y con el mismo costo de bcrypt, ante email
// desconocido y contraseña incorrecta. El límite se cuenta por email e IP.
func (s *AuthService) Login(ctx context.Context, emailAddr, password, clientIP string) (AuthResult, error) {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	if emailAddr == "" || password == "" {
		return AuthResult{}, domain.NewValidationError("Please provide email and password!")
	}
	if ok, wait := s.opts.LoginLimiter.Allow(ctx, loginLimiterKey(emailAddr, clientIP)); !ok {
		return AuthResult{}, domain.RetryLater(ErrTooManyLoginAttempts, wait)
	}

	user, err := s.users.FindActiveByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.hasher.Verify(password, s.dummyHash())
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return AuthResult{}, ErrInvalidCredentials
	}
	return s.issue(user)
}

// ForgotPassword genera un token de reseteo y lo envía por correo. Si el
// envío falla, los campos de reseteo se limpian antes de devolver el error.
func (s *AuthService) ForgotPassword(ctx context.Context, emailAddr string) error {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	if emailAddr == "" {
		return ErrInvalidEmail
	}
	if ok, wait := s.opts.ResetLimiter.Allow(ctx, emailAddr); !ok {
		return domain.RetryLater(ErrTooManyResetRequests, wait)
	}

	user, err := s.users.FindActiveByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrNoUserWithEmail
		}
		return err
	}

	plain, hash, err := newResetToken()
	if err != nil {
		return err
	}
	expiresAt := s.now().UTC().Add(s.opts.ResetTTL)
	if err := s.users.SetPasswordResetToken(ctx, user.ID, hash, expiresAt); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/api/v1/users/reset-password/%s", s.opts.ResetURLBase, plain)
	msg := email.Message{
		To:      user.Email,
		Subject: fmt.Sprintf("Your password reset token (valid for %d min)", int(s.opts.ResetTTL.Minutes())),
		Body: fmt.Sprintf(
			"Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s.\n"+
				"If you didn't forget your password, please ignore this email!",
			resetURL,
		),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warn("send password reset email failed", zap.Error(err), zap.String("user_id", user.ID))
		if clearErr := s.users.ClearPasswordResetToken(context.WithoutCancel(ctx), user.ID); clearErr != nil {
			s.logger.Error("clear password reset token failed", zap.Error(clearErr), zap.String("user_id", user.ID))
		}
		return ErrEmailSendFailure
	}
	return nil
}

// ResetPassword consume el token de reseteo y fija la nueva contraseña. No
// distingue entre token desconocido, vencido o ya usado.
func (s *AuthService) ResetPassword(ctx context.Context, token, password, passwordConfirm string) (AuthResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return AuthResult{}, ErrResetTokenInvalid
	}
	hash := hashResetToken(token)
	user, err := s.users.FindActiveByResetToken(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return AuthResult{}, ErrResetTokenInvalid
		}
		return AuthResult{}, err
	}
	now := s.now().UTC()
	if !user.HasValidResetToken(now) || !resetTokenMatches(token, user.PasswordResetToken) {
		return AuthResult{}, ErrResetTokenInvalid
	}
	if err := checkNewPassword(password, passwordConfirm); err != nil {
		return AuthResult{}, err
	}
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		return AuthResult{}, err
	}

	changedAt := passwordChangedAt(now)
	if err := s.users.ConsumePasswordResetToken(ctx, user.ID, hash, newHash, changedAt); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return AuthResult{}, ErrResetTokenInvalid
		}
		return AuthResult{}, err
	}
	user.PasswordHash = newHash
	user.PasswordChangedAt = &changedAt
	user.PasswordResetToken = ""
	user.PasswordResetExpires = nil
	return s.issue(user)
}

// UpdatePassword exige la contraseña actual y devuelve un token nuevo; los
// tokens anteriores quedan invalidados por passwordChangedAt.
func (s *AuthService) UpdatePassword(ctx context.Context, userID, current, password, passwordConfirm string) (AuthResult, error) {
	user, err := s.users.FindActiveByID(ctx, userID)
	if err != nil {
		return AuthResult{}, err
	}
	if !s.hasher.Verify(current, user.PasswordHash) {
		return AuthResult{}, ErrWrongCurrentPassword
	}
	if err := checkNewPassword(password, passwordConfirm); err != nil {
		return AuthResult{}, err
	}
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		return AuthResult{}, err
	}
	changedAt := passwordChangedAt(s.now().UTC())
	if err := s.users.UpdatePassword(ctx, user.ID, newHash, changedAt); err != nil {
		return AuthResult{}, err
	}
	user.PasswordHash = newHash
	user.PasswordChangedAt = &changedAt
	return s.issue(user)
}

// dummyHash se calcula una sola vez con el mismo hasher y costo que las
// contraseñas reales.
func (s *AuthService) dummyHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("not-a-real-password")
		if err != nil {
			s.logger.Warn("dummy password hash failed", zap.Error(err))
			return
		}
		s.dummy = h
	})
	return s.dummy
}

func (s *AuthService) issue(user domain.User) (AuthResult, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) normalizeEmail(raw string) (string, error) {
	emailAddr := strings.ToLower(strings.TrimSpace(raw))
	if err := s.validate.Var(emailAddr, "required,email"); err != nil {
		return "", ErrInvalidEmail
	}
	return emailAddr, nil
}

func checkNewPassword(password, confirm string) error {
	if len(password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > maxPasswordLength {
		return ErrPasswordTooLong
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}

// passwordChangedAt se adelanta un segundo para que el token emitido en la
// misma operación no quede rechazado por redondeo de iat.
func passwordChangedAt(now time.Time) time.Time {
	return now.Add(-time.Second)
}
