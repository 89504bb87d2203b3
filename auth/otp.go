package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultOTPTTL is how long an issued passcode can be redeemed.
const DefaultOTPTTL = 5 * time.Minute

// generateOTP returns a uniformly random 6-digit code in [100000, 999999].
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// OTPLimiter decides whether another passcode may be issued for an email.
type OTPLimiter interface {
	Allow(ctx context.Context, email string) (bool, error)
}

// RedisOTPLimiter allows at most max issuances per email within window.
type RedisOTPLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
}

func NewRedisOTPLimiter(client *redis.Client, max int, window time.Duration) *RedisOTPLimiter {
	if max <= 0 {
		max = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RedisOTPLimiter{client: client, max: max, window: window}
}

func (l *RedisOTPLimiter) Allow(ctx context.Context, email string) (bool, error) {
	key := "auth:otp:" + email

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(l.max), nil
}
