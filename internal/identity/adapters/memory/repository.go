package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dejobratic/storefront/internal/identity/domain"
	"github.com/dejobratic/storefront/internal/identity/ports"
)

// Repository keeps users in memory for local development and tests.
type Repository struct {
	mu    sync.RWMutex
	users map[string]domain.User
	// byEmail maps a normalized email to a user id.
	byEmail map[string]string
}

func NewRepository() *Repository {
	return &Repository{
		users:   make(map[string]domain.User),
		byEmail: make(map[string]string),
	}
}

func (r *Repository) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.ID]; exists {
		return fmt.Errorf("user %s already exists", user.ID)
	}
	email := domain.NormalizeEmail(user.Email)
	if _, taken := r.byEmail[email]; taken {
		return ports.ErrDuplicateEmail
	}

	r.users[user.ID] = user
	r.byEmail[email] = user.ID
	return nil
}

func (r *Repository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &user, nil
}

func (r *Repository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, ports.ErrNotFound
	}
	user := r.users[id]
	return &user, nil
}

func (r *Repository) List(_ context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return users, nil
}

func (r *Repository) Update(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.users[user.ID]
	if !ok {
		return ports.ErrNotFound
	}

	oldEmail := domain.NormalizeEmail(current.Email)
	newEmail := domain.NormalizeEmail(user.Email)
	if newEmail != oldEmail {
		if _, taken := r.byEmail[newEmail]; taken {
			return ports.ErrDuplicateEmail
		}
		delete(r.byEmail, oldEmail)
		r.byEmail[newEmail] = user.ID
	}

	r.users[user.ID] = user
	return nil
}

func (r *Repository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return ports.ErrNotFound
	}
	delete(r.byEmail, domain.NormalizeEmail(user.Email))
	delete(r.users, id)
	return nil
}
