package ratelimit

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// LoginLimiter throttles login attempts per client IP and per email, so
// neither a single source nor a spread of sources can hammer one account.
type LoginLimiter struct {
	ip    Counter
	email Counter
	log   *zap.Logger
}

// NewLoginLimiter uses in-process limiters: 10 attempts per IP per minute,
// 5 per email per 5 minutes.
func NewLoginLimiter() *LoginLimiter {
	return NewLoginLimiterWith(New(10, time.Minute), New(5, 5*time.Minute), nil)
}

// NewLoginLimiterWith uses the given counters, for example RedisLimiters.
func NewLoginLimiterWith(ip, email Counter, log *zap.Logger) *LoginLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoginLimiter{ip: ip, email: email, log: log}
}

// Check records an attempt. Returns (allowed, reason). Counter errors fail
// open and are logged.
func (ll *LoginLimiter) Check(r *http.Request, email string) (bool, string) {
	ctx := r.Context()
	if !ll.hit(ctx, ll.ip, "ip:"+ClientIP(r)) {
		return false, "Too many login attempts. Please wait a minute before trying again."
	}
	if key := emailKey(email); key != "" {
		if !ll.hit(ctx, ll.email, "email:"+key) {
			return false, "Too many login attempts for this account. Please wait a few minutes."
		}
	}
	return true, ""
}

// ResetEmail clears the per-email window after a successful login.
func (ll *LoginLimiter) ResetEmail(ctx context.Context, email string) {
	if key := emailKey(email); key != "" {
		if err := ll.email.Clear(ctx, "email:"+key); err != nil {
			ll.log.Warn("login limiter reset failed", zap.Error(err))
		}
	}
}

func (ll *LoginLimiter) hit(ctx context.Context, c Counter, key string) bool {
	ok, err := c.Hit(ctx, key)
	if err != nil {
		ll.log.Warn("login limiter unavailable, allowing attempt", zap.Error(err))
		return true
	}
	return ok
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
