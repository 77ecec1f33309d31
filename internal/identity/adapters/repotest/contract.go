// Package repotest holds behavior checks shared by every UserRepository implementation.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/identity/domain"
	"github.com/dejobratic/storefront/internal/identity/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func NewUser(id, email string, createdAt time.Time) domain.User {
	createdAt = createdAt.UTC().Truncate(time.Microsecond)
	return domain.User{
		ID:           id,
		Name:         "User " + id,
		Email:        email,
		PasswordHash: "$2a$10$hash-" + id,
		Role:         auth.RoleUser,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}

// Run exercises the repository contract. newRepo must return an empty
// repository on every call.
func Run(t *testing.T, newRepo func(t *testing.T) ports.UserRepository) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		user := NewUser("u-1", "ana@example.com", time.Now())
		require.NoError(t, repo.Create(ctx, user))

		byID, err := repo.GetByID(ctx, "u-1")
		require.NoError(t, err)
		assertSameUser(t, user, *byID)

		byEmail, err := repo.GetByEmail(ctx, "ANA@example.com")
		require.NoError(t, err)
		assert.Equal(t, "u-1", byEmail.ID)
		assert.Equal(t, user.PasswordHash, byEmail.PasswordHash)
	})

	t.Run("missing", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, ports.ErrNotFound)
		_, err = repo.GetByEmail(ctx, "missing@example.com")
		assert.ErrorIs(t, err, ports.ErrNotFound)
		assert.ErrorIs(t, repo.Update(ctx, NewUser("missing", "m@example.com", time.Now())), ports.ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, "missing"), ports.ErrNotFound)
	})

	t.Run("email is unique ignoring case", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, NewUser("u-1", "ana@example.com", time.Now())))

		err := repo.Create(ctx, NewUser("u-2", "Ana@Example.com", time.Now()))
		assert.ErrorIs(t, err, ports.ErrDuplicateEmail)
	})

	t.Run("update", func(t *testing.T) {
		repo := newRepo(t)
		user := NewUser("u-1", "ana@example.com", time.Now())
		require.NoError(t, repo.Create(ctx, user))
		require.NoError(t, repo.Create(ctx, NewUser("u-2", "ben@example.com", time.Now())))

		user.Name = "Ana Updated"
		user.Email = "ana.new@example.com"
		user.Role = auth.RoleAdmin
		user.UpdatedAt = user.UpdatedAt.Add(time.Minute)
		require.NoError(t, repo.Update(ctx, user))

		got, err := repo.GetByEmail(ctx, "ana.new@example.com")
		require.NoError(t, err)
		assertSameUser(t, user, *got)
		_, err = repo.GetByEmail(ctx, "ana@example.com")
		assert.ErrorIs(t, err, ports.ErrNotFound)

		user.Email = "ben@example.com"
		assert.ErrorIs(t, repo.Update(ctx, user), ports.ErrDuplicateEmail)
	})

	t.Run("list oldest first", func(t *testing.T) {
		repo := newRepo(t)
		base := time.Now().Add(-time.Hour)
		require.NoError(t, repo.Create(ctx, NewUser("u-2", "b@example.com", base.Add(2*time.Minute))))
		require.NoError(t, repo.Create(ctx, NewUser("u-1", "a@example.com", base.Add(time.Minute))))
		require.NoError(t, repo.Create(ctx, NewUser("u-3", "c@example.com", base.Add(3*time.Minute))))

		users, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, users, 3)
		assert.Equal(t, []string{"u-1", "u-2", "u-3"}, []string{users[0].ID, users[1].ID, users[2].ID})
	})

	t.Run("delete frees the email", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, NewUser("u-1", "ana@example.com", time.Now())))
		require.NoError(t, repo.Delete(ctx, "u-1"))

		_, err := repo.GetByID(ctx, "u-1")
		assert.ErrorIs(t, err, ports.ErrNotFound)
		assert.NoError(t, repo.Create(ctx, NewUser("u-2", "ana@example.com", time.Now())))
	})
}

// assertSameUser compares timestamps by instant; stores may return another location.
func assertSameUser(t *testing.T, want, got domain.User) {
	t.Helper()
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at: want %s, got %s", want.CreatedAt, got.CreatedAt)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "updated_at: want %s, got %s", want.UpdatedAt, got.UpdatedAt)
	want.CreatedAt, want.UpdatedAt = got.CreatedAt, got.UpdatedAt
	assert.Equal(t, want, got)
}
