package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dejobratic/storefront/internal/apperror"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// Handler executes one command.
type Handler[C any, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

// Clock returns the current time. Tests replace it.
type Clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}

// repoError classifies a repository failure for the API boundary.
func repoError(op string, err error) error {
	if errors.Is(err, ports.ErrNotFound) {
		return apperror.Wrap(apperror.KindNotFound, "order not found", err)
	}
	return apperror.Internal(fmt.Errorf("%s: %w", op, err))
}
