package domain_test

import (
	"strings"
	"testing"

	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/identity/domain"
	"github.com/stretchr/testify/assert"
)

func TestUserValidate(t *testing.T) {
	valid := func() domain.User {
		return domain.User{ID: "u-1", Name: "Ana Marić", Email: "ana@example.com", Role: auth.RoleUser}
	}

	tests := []struct {
		name    string
		mutate  func(*domain.User)
		wantErr error
	}{
		{"valid", func(*domain.User) {}, nil},
		{"name too short", func(u *domain.User) { u.Name = "Al" }, domain.ErrInvalidName},
		{"name too long", func(u *domain.User) { u.Name = strings.Repeat("a", 26) }, domain.ErrInvalidName},
		{"name of spaces", func(u *domain.User) { u.Name = "     " }, domain.ErrInvalidName},
		{"bad email", func(u *domain.User) { u.Email = "not-an-email" }, domain.ErrInvalidEmail},
		{"display name email", func(u *domain.User) { u.Email = "Ana <ana@example.com>" }, domain.ErrInvalidEmail},
		{"unknown role", func(u *domain.User) { u.Role = "root" }, domain.ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := valid()
			tt.mutate(&u)

			err := u.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidatePassword(t *testing.T) {
	assert.ErrorIs(t, domain.ValidatePassword("short"), domain.ErrInvalidPassword)
	assert.NoError(t, domain.ValidatePassword("long enough"))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ana@example.com", domain.NormalizeEmail("  Ana@Example.COM "))
}

func TestUserPrincipal(t *testing.T) {
	u := domain.User{ID: "u-1", Email: "ana@example.com", Role: auth.RoleAdmin}
	assert.Equal(t, auth.Principal{UserID: "u-1", Email: "ana@example.com", Role: auth.RoleAdmin}, u.Principal())
}
