package pop

import (
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ErrChallengeUnknown is returned when redeeming a nonce the registry never
// issued, or one that was already redeemed.
var ErrChallengeUnknown = errors.New("challenge unknown or already redeemed")

// Registry issues challenges and redeems their responses. Each nonce is
// single-use: redemption removes it whether verification passed or not, so
// a captured response cannot be replayed.
type Registry struct {
	cache *gocache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// RegistryConfig holds registry configuration.
type RegistryConfig struct {
	// TTL bounds challenge life. Defaults to DefaultChallengeTTL.
	TTL time.Duration

	// Now overrides the clock (for testing).
	Now func() time.Time
}

// NewRegistry creates a challenge registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		cache: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
		now:   now,
	}
}

// Issue creates and tracks a challenge for subjectDID.
func (r *Registry) Issue(subjectDID string) (*Challenge, error) {
	challenge, err := NewChallenge(subjectDID, r.ttl)
	if err != nil {
		return nil, err
	}
	r.cache.SetDefault(challenge.Nonce, challenge)
	return challenge, nil
}

// Redeem verifies a response against the tracked challenge for its nonce and
// consumes the nonce. A second redemption of the same nonce fails with
// ErrChallengeUnknown regardless of the first outcome.
func (r *Registry) Redeem(response *Response) error {
	entry, ok := r.cache.Get(response.Nonce)
	if !ok {
		return ErrChallengeUnknown
	}
	r.cache.Delete(response.Nonce)

	challenge := entry.(*Challenge)
	return VerifyResponse(challenge, response, r.now().UTC())
}

// Pending reports how many unredeemed challenges the registry tracks.
func (r *Registry) Pending() int {
	return r.cache.ItemCount()
}
