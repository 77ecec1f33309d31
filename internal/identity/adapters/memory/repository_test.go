package memory_test

import (
	"testing"

	"github.com/dejobratic/storefront/internal/identity/adapters/memory"
	"github.com/dejobratic/storefront/internal/identity/adapters/repotest"
	"github.com/dejobratic/storefront/internal/identity/ports"
)

func TestRepositoryContract(t *testing.T) {
	repotest.Run(t, func(*testing.T) ports.UserRepository {
		return memory.NewRepository()
	})
}
