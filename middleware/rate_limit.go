package middleware

import (
	"context"
	"fmt"
	"saathi/utils"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Redis        *redis.Client // nil keeps counters in an in-process limiter store
	Requests     int
	Window       time.Duration
	KeyPrefix    string
	ErrorMessage string
}

// RateLimitStrategy defines different rate limiting strategies
type RateLimitStrategy string

const (
	StrategyIP       RateLimitStrategy = "ip"
	StrategyUserOrIP RateLimitStrategy = "user_or_ip"
)

// RateLimiter provides rate limiting functionality
type RateLimiter struct {
	config   RateLimitConfig
	strategy RateLimitStrategy
	local    *limiter.Limiter
}

func NewRateLimiter(config RateLimitConfig, strategy RateLimitStrategy) *RateLimiter {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "rate_limit"
	}
	if config.ErrorMessage == "" {
		config.ErrorMessage = "Rate limit exceeded"
	}

	rl := &RateLimiter{
		config:   config,
		strategy: strategy,
	}
	if config.Redis == nil {
		rl.local = limiter.New(memory.NewStore(), limiter.Rate{
			Period: config.Window,
			Limit:  int64(config.Requests),
		})
	}
	return rl
}

// Middleware returns the rate limiting middleware. Store failures let the
// request through.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		key := rl.getKey(c)

		allowed, resetTime, remaining, err := rl.checkRateLimit(c.Request.Context(), key)
		if err != nil {
			logrus.Errorf("Rate limit check failed: %v", err)
			c.Next()
			return
		}

		rl.setRateLimitHeaders(c, remaining, resetTime)

		if !allowed {
			rl.handleRateLimitExceeded(c, resetTime)
			return
		}

		c.Next()
	})
}

func (rl *RateLimiter) checkRateLimit(ctx context.Context, key string) (bool, time.Time, int, error) {
	if rl.config.Redis == nil {
		return rl.checkLocal(ctx, key)
	}
	return rl.checkRedis(ctx, key)
}

// checkRedis uses a sliding window log kept in a sorted set.
func (rl *RateLimiter) checkRedis(ctx context.Context, key string) (allowed bool, resetTime time.Time, remaining int, err error) {
	now := time.Now()
	window := rl.config.Window
	member := fmt.Sprintf("%d", now.UnixNano())

	pipe := rl.config.Redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", now.Add(-window).UnixNano()))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, &redis.Z{
		Score:  float64(now.UnixNano()),
		Member: member,
	})
	pipe.Expire(ctx, key, window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, time.Time{}, 0, err
	}

	currentCount := countCmd.Val()
	remaining = rl.config.Requests - int(currentCount) - 1
	if remaining < 0 {
		remaining = 0
	}
	resetTime = now.Add(window)
	allowed = currentCount < int64(rl.config.Requests)

	if !allowed {
		rl.config.Redis.ZRem(ctx, key, member)
	}

	return allowed, resetTime, remaining, nil
}

func (rl *RateLimiter) checkLocal(ctx context.Context, key string) (bool, time.Time, int, error) {
	result, err := rl.local.Get(ctx, key)
	if err != nil {
		return false, time.Time{}, 0, err
	}
	return !result.Reached, time.Unix(result.Reset, 0), int(result.Remaining), nil
}

func (rl *RateLimiter) getKey(c *gin.Context) string {
	prefix := rl.config.KeyPrefix

	if rl.strategy == StrategyUserOrIP {
		if userID := c.GetString("userID"); userID != "" {
			return fmt.Sprintf("%s:user:%s", prefix, userID)
		}
	}
	return fmt.Sprintf("%s:ip:%s", prefix, getClientIP(c))
}

func getClientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := c.GetHeader("X-Real-IP"); xri != "" {
		return xri
	}

	return c.ClientIP()
}

func (rl *RateLimiter) setRateLimitHeaders(c *gin.Context, remaining int, resetTime time.Time) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Requests))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))
}

func (rl *RateLimiter) handleRateLimitExceeded(c *gin.Context, resetTime time.Time) {
	retryAfter := time.Until(resetTime).Seconds()
	if retryAfter < 0 {
		retryAfter = 0
	}

	c.Header("Retry-After", strconv.Itoa(int(retryAfter)))

	logrus.WithFields(logrus.Fields{
		"client_ip":   getClientIP(c),
		"user_id":     c.GetString("userID"),
		"path":        c.Request.URL.Path,
		"retry_after": retryAfter,
	}).Warn("Rate limit exceeded")

	utils.HandleServiceError(c, utils.NewRateLimitError(rl.config.ErrorMessage), rl.config.ErrorMessage)
	c.Abort()
}

// TriggerRateLimit limits SOS triggers per user, or per IP for anonymous
// callers. Run it after OptionalAuth.
func TriggerRateLimit(client *redis.Client, requests int, window time.Duration) gin.HandlerFunc {
	limiter := NewRateLimiter(RateLimitConfig{
		Redis:        client,
		Requests:     requests,
		Window:       window,
		KeyPrefix:    "sos_trigger_rate_limit",
		ErrorMessage: "Too many SOS triggers. Please call your local emergency number if you need help.",
	}, StrategyUserOrIP)
	return limiter.Middleware()
}

// APIRateLimit is the general per-client limit for the rest of the API.
func APIRateLimit(client *redis.Client) gin.HandlerFunc {
	limiter := NewRateLimiter(RateLimitConfig{
		Redis:        client,
		Requests:     600,
		Window:       time.Minute,
		KeyPrefix:    "api_rate_limit",
		ErrorMessage: "API rate limit exceeded. Please try again later.",
	}, StrategyUserOrIP)
	return limiter.Middleware()
}
