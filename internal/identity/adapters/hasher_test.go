package adapters_test

import (
	"testing"

	"github.com/dejobratic/storefront/internal/identity/adapters"
	"github.com/dejobratic/storefront/internal/identity/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := adapters.NewBcryptHasher(bcrypt.MinCost)

	hashed, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hashed)

	assert.NoError(t, h.Compare(hashed, "correct horse"))
	assert.ErrorIs(t, h.Compare(hashed, "wrong horse"), ports.ErrPasswordMismatch)
}

func TestBcryptHasherMalformedHash(t *testing.T) {
	h := adapters.NewBcryptHasher(bcrypt.MinCost)

	err := h.Compare("not-a-hash", "anything")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrPasswordMismatch)
}

func TestBcryptHasherDefaultsCost(t *testing.T) {
	hashed, err := adapters.NewBcryptHasher(0).Hash("correct horse")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hashed))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}
