package auth

import (
	"context"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// DefaultCost is the bcrypt work factor applied to new passwords.
const DefaultCost = 12

// maxPasswordBytes is the longest input bcrypt reads. Longer passwords are
// truncated before hashing and verifying, so they behave like their prefix.
const maxPasswordBytes = 72

// Hasher produces and verifies bcrypt password digests. The number of
// concurrent bcrypt computations is bounded so a burst of logins cannot
// monopolise every CPU.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted
}

// NewHasher constructs a Hasher. Costs outside bcrypt's range fall back to DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{
		cost: cost,
		sem:  semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
	}
}

// Hash returns the bcrypt digest of password.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	digest, err := bcrypt.GenerateFromPassword(bcryptInput(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether password matches digest. Mismatches, malformed
// digests and cancelled contexts all yield false.
func (h *Hasher) Verify(ctx context.Context, password, digest string) bool {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.sem.Release(1)

	return bcrypt.CompareHashAndPassword([]byte(digest), bcryptInput(password)) == nil
}

func bcryptInput(password string) []byte {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b
}
