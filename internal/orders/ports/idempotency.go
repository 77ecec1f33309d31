package ports

import "context"

// StoredResponse contains the response data to replay for a reused key.
type StoredResponse struct {
	StatusCode int
	Body       []byte
	OrderID    string
}

// IdempotencyStore ensures create operations can be retried safely. Keys are
// scoped per caller so two users cannot collide on the same key.
type IdempotencyStore interface {
	Get(ctx context.Context, scope, key string) (*StoredResponse, error)
	Save(ctx context.Context, scope, key string, response StoredResponse) error
}
