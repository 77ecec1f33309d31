package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/apperror"
	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/identity/domain"
	"github.com/dejobratic/storefront/internal/identity/ports"
	"github.com/dejobratic/storefront/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const invalidCredentials = "invalid email or password"

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type ChangePasswordInput struct {
	OldPassword     string
	NewPassword     string
	ConfirmPassword string
}

// Session is a user together with a freshly issued token.
type Session struct {
	User  *domain.User
	Token string
}

// Service implements registration, login and user administration.
type Service struct {
	repo   ports.UserRepository
	hasher ports.PasswordHasher
	tokens ports.TokenIssuer
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewService(repo ports.UserRepository, hasher ports.PasswordHasher, tokens ports.TokenIssuer, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	ctx, span := telemetry.StartSpan(ctx, "identity.Register")
	defer span.End()

	now := s.now()
	user := domain.User{
		ID:        s.newID(),
		Name:      strings.TrimSpace(in.Name),
		Email:     domain.NormalizeEmail(in.Email),
		Role:      auth.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := user.Validate(); err != nil {
		return Session{}, apperror.Wrap(apperror.KindValidation, err.Error(), err)
	}
	if err := domain.ValidatePassword(in.Password); err != nil {
		return Session{}, apperror.Wrap(apperror.KindValidation, err.Error(), err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		telemetry.RecordSpanError(span, err)
		return Session{}, apperror.Internal(err)
	}
	user.PasswordHash = hash

	if err := s.repo.Create(ctx, user); err != nil {
		telemetry.RecordSpanError(span, err)
		return Session{}, repoError("create user", err)
	}

	telemetry.AddSpanAttributes(span, attribute.String("user.id", user.ID))
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)

	return s.session(&user)
}

// Login checks the credentials. Unknown emails and wrong passwords fail the same way.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	ctx, span := telemetry.StartSpan(ctx, "identity.Login")
	defer span.End()

	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, apperror.Validation("email and password are required")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return Session{}, apperror.Unauthorized(invalidCredentials)
		}
		telemetry.RecordSpanError(span, err)
		return Session{}, repoError("load user", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if errors.Is(err, ports.ErrPasswordMismatch) {
			s.logger.InfoContext(ctx, "login rejected", "user_id", user.ID)
			return Session{}, apperror.Unauthorized(invalidCredentials)
		}
		telemetry.RecordSpanError(span, err)
		return Session{}, apperror.Internal(err)
	}

	telemetry.AddSpanAttributes(span, attribute.String("user.id", user.ID))
	return s.session(user)
}

func (s *Service) Profile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, repoError("load user", err)
	}
	return user, nil
}

// UpdateProfile changes the caller's name and email. Empty values keep the current ones.
func (s *Service) UpdateProfile(ctx context.Context, userID, name, email string) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, repoError("load user", err)
	}

	if name = strings.TrimSpace(name); name != "" {
		user.Name = name
	}
	if email = domain.NormalizeEmail(email); email != "" {
		user.Email = email
	}
	if err := user.Validate(); err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, err.Error(), err)
	}
	user.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, *user); err != nil {
		return nil, repoError("update user", err)
	}
	return user, nil
}

// ChangePassword replaces the password and issues a new token.
func (s *Service) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) (Session, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return Session{}, repoError("load user", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, in.OldPassword); err != nil {
		if errors.Is(err, ports.ErrPasswordMismatch) {
			return Session{}, apperror.Validation("old password is incorrect")
		}
		return Session{}, apperror.Internal(err)
	}
	if in.NewPassword != in.ConfirmPassword {
		return Session{}, apperror.Validation("passwords do not match")
	}
	if err := domain.ValidatePassword(in.NewPassword); err != nil {
		return Session{}, apperror.Wrap(apperror.KindValidation, err.Error(), err)
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return Session{}, apperror.Internal(err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, *user); err != nil {
		return Session{}, repoError("update user", err)
	}

	s.logger.InfoContext(ctx, "password changed", "user_id", user.ID)
	return s.session(user)
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, repoError("list users", err)
	}
	return users, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.Profile(ctx, id)
}

// DisplayName returns the user's name for use on reviews.
func (s *Service) DisplayName(ctx context.Context, userID string) (string, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load user %s: %w", userID, err)
	}
	return user.Name, nil
}

// UpdateRole changes another user's role. Admins cannot change their own role.
func (s *Service) UpdateRole(ctx context.Context, actor auth.Principal, id string, role auth.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, apperror.Validation("role must be one of [user admin]")
	}
	if actor.UserID == id {
		return nil, apperror.Validation("you cannot change your own role")
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, repoError("load user", err)
	}
	if user.Role == role {
		return user, nil
	}

	user.Role = role
	user.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, *user); err != nil {
		return nil, repoError("update user", err)
	}

	s.logger.InfoContext(ctx, "user role changed",
		"user_id", user.ID,
		"role", role,
		"changed_by", actor.UserID,
	)
	return user, nil
}

// DeleteUser removes another user's account.
func (s *Service) DeleteUser(ctx context.Context, actor auth.Principal, id string) error {
	if actor.UserID == id {
		return apperror.Validation("you cannot delete your own account")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return repoError("delete user", err)
	}

	s.logger.InfoContext(ctx, "user deleted", "user_id", id, "deleted_by", actor.UserID)
	return nil
}

// EnsureAdmin creates the bootstrap admin account, or promotes an existing
// account with that email. It reports whether anything changed.
func (s *Service) EnsureAdmin(ctx context.Context, in RegisterInput) (bool, error) {
	existing, err := s.repo.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		if existing.Role == auth.RoleAdmin {
			return false, nil
		}
		existing.Role = auth.RoleAdmin
		existing.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, *existing); err != nil {
			return false, fmt.Errorf("promote admin: %w", err)
		}
		return true, nil
	case !errors.Is(err, ports.ErrNotFound):
		return false, fmt.Errorf("load admin: %w", err)
	}

	session, err := s.Register(ctx, in)
	if err != nil {
		return false, fmt.Errorf("register admin: %w", err)
	}
	session.User.Role = auth.RoleAdmin
	if err := s.repo.Update(ctx, *session.User); err != nil {
		return false, fmt.Errorf("promote admin: %w", err)
	}
	return true, nil
}

func (s *Service) session(user *domain.User) (Session, error) {
	token, err := s.tokens.Issue(user.Principal())
	if err != nil {
		return Session{}, apperror.Internal(fmt.Errorf("issue token: %w", err))
	}
	return Session{User: user, Token: token}, nil
}

func repoError(op string, err error) error {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return apperror.Wrap(apperror.KindNotFound, "user not found", err)
	case errors.Is(err, ports.ErrDuplicateEmail):
		return apperror.Wrap(apperror.KindValidation, "email is already registered", err)
	default:
		return apperror.Internal(fmt.Errorf("%s: %w", op, err))
	}
}
