package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"

	bookingredis "ms-booking/internal/booking/redis"
)

func setupLimiter(t *testing.T, cooldown time.Duration) (*bookingredis.RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return bookingredis.NewRateLimiter(client, cooldown), mr
}

func TestClaimBlocksRepeatSubmission(t *testing.T) {
	limiter, _ := setupLimiter(t, 5*time.Minute)
	ctx := context.Background()

	ok, _, err := limiter.Claim(ctx, "jordan@example.com")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, retryAfter, err := limiter.Claim(ctx, "jordan@example.com")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, 5*time.Minute)
}

func TestClaimIsPerEmail(t *testing.T) {
	limiter, _ := setupLimiter(t, 5*time.Minute)
	ctx := context.Background()

	ok, _, err := limiter.Claim(ctx, "jordan@example.com")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, _, err = limiter.Claim(ctx, "sam@example.com")
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestClaimNormalizesEmail(t *testing.T) {
	limiter, _ := setupLimiter(t, 5*time.Minute)
	ctx := context.Background()

	ok, _, _ := limiter.Claim(ctx, "jordan@example.com")
	assert.True(t, ok)

	ok, _, _ = limiter.Claim(ctx, "  Jordan@Example.com ")
	assert.False(t, ok)
}

func TestClaimAfterCooldownExpires(t *testing.T) {
	limiter, mr := setupLimiter(t, time.Minute)
	ctx := context.Background()

	ok, _, _ := limiter.Claim(ctx, "jordan@example.com")
	assert.True(t, ok)

	mr.FastForward(time.Minute + time.Second)

	ok, _, err := limiter.Claim(ctx, "jordan@example.com")
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseFreesSlotEarly(t *testing.T) {
	limiter, _ := setupLimiter(t, 5*time.Minute)
	ctx := context.Background()

	ok, _, _ := limiter.Claim(ctx, "jordan@example.com")
	assert.True(t, ok)

	assert.NoError(t, limiter.Release(ctx, "jordan@example.com"))

	ok, _, err := limiter.Claim(ctx, "jordan@example.com")
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestDefaultCooldownApplied(t *testing.T) {
	limiter, _ := setupLimiter(t, 0)
	assert.Equal(t, 5*time.Minute, limiter.Cooldown)
}
