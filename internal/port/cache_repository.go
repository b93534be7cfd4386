package port

import "context"

type RequestGuard interface {
	// Claim records key, returns false if it is already claimed
	Claim(ctx context.Context, key string) (bool, error)

	// Release forgets key so the request can be submitted again
	Release(ctx context.Context, key string) error
}
