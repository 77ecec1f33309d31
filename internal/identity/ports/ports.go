package ports

import (
	"context"
	"errors"

	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/identity/domain"
)

// UserRepository persists accounts. Emails are stored normalized and are unique.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// List returns every user, oldest first.
	List(ctx context.Context) ([]domain.User, error)
	Update(ctx context.Context, user domain.User) error
	Delete(ctx context.Context, id string) error
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	// Compare returns ErrPasswordMismatch when plain does not match hashed.
	Compare(hashed, plain string) error
}

// TokenIssuer signs session tokens for a principal.
type TokenIssuer interface {
	Issue(p auth.Principal) (string, error)
}

var (
	ErrNotFound         = errors.New("user not found")
	ErrDuplicateEmail   = errors.New("email already registered")
	ErrPasswordMismatch = errors.New("password mismatch")
)
