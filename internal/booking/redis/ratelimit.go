package redis

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimiter blocks repeat booking submissions from the same email for
// a cooldown window. The SETNX claim is atomic with the check, so two
// near-simultaneous submissions cannot both pass.
type RateLimiter struct {
	Client   *redis.Client
	Cooldown time.Duration
	Logger   *log.Logger
}

func NewRateLimiter(client *redis.Client, cooldown time.Duration) *RateLimiter {
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	return &RateLimiter{
		Client:   client,
		Cooldown: cooldown,
		Logger:   log.Default(),
	}
}

func cooldownKey(email string) string {
	return "booking_cooldown:" + strings.ToLower(strings.TrimSpace(email))
}

// Claim attempts to take the submission slot for an email. When the slot
// is already held it reports how long the caller has to wait.
func (r *RateLimiter) Claim(ctx context.Context, email string) (bool, time.Duration, error) {
	key := cooldownKey(email)

	ok, err := r.Client.SetNX(ctx, key, time.Now().Unix(), r.Cooldown).Result()
	if err != nil {
		return false, 0, err
	}
	if ok {
		return true, 0, nil
	}

	ttl, err := r.Client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		// Can't read the remaining window; report the full cooldown
		ttl = r.Cooldown
	}
	r.Logger.Printf("RATELIMIT: submission from %s blocked for %s", email, ttl)
	return false, ttl, nil
}

// Release frees the slot early, for submissions that claimed it but were
// never stored.
func (r *RateLimiter) Release(ctx context.Context, email string) error {
	_, err := r.Client.Del(ctx, cooldownKey(email)).Result()
	return err
}
