package http

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"feedbackbot/internal/entities"
	"feedbackbot/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"golang.org/x/time/rate"
)

const (
	rawBodyKey = "raw_body"

	// limiterIdleTTL is how long a client's limiter survives without traffic.
	limiterIdleTTL = 10 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type Middleware struct {
	signingSecret string
	logger        zerolog.Logger
	rateLimiters  map[string]*clientLimiter
	lastSweep     time.Time
	now           func() time.Time
	mu            sync.Mutex
}

// NewMiddleware creates the middleware set. An empty signing secret turns
// signature verification off.
func NewMiddleware(signingSecret string, logger zerolog.Logger) *Middleware {
	return &Middleware{
		signingSecret: signingSecret,
		logger:        logger,
		rateLimiters:  make(map[string]*clientLimiter),
		now:           time.Now,
	}
}

// VerifySlackSignature authenticates requests signed with the Slack signing
// secret: HMAC-SHA256 over "v0:<timestamp>:<body>", timestamps older than
// five minutes rejected. The raw body is kept for the handler.
func (m *Middleware) VerifySlackSignature() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Set(rawBodyKey, body)

		if m.signingSecret == "" {
			c.Next()
			return
		}

		if err := VerifySignature(c.Request.Header, body, m.signingSecret); err != nil {
			var authErr *entities.AuthError
			reason := "invalid"
			if errors.As(err, &authErr) {
				reason = authErr.Reason
			}
			metrics.AuthFailures.WithLabelValues(reason).Inc()
			m.logger.Warn().Err(err).Str("remote_addr", c.ClientIP()).Msg("rejected unsigned request")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid request"})
			return
		}
		c.Next()
	}
}

// VerifySignature checks the X-Slack-Signature and X-Slack-Request-Timestamp
// headers against body.
func VerifySignature(header http.Header, body []byte, secret string) error {
	sv, err := slack.NewSecretsVerifier(header, secret)
	if err != nil {
		reason := "bad_headers"
		if errors.Is(err, slack.ErrExpiredTimestamp) {
			reason = "expired_timestamp"
		}
		return &entities.AuthError{Reason: reason, Err: err}
	}
	if _, err := sv.Write(body); err != nil {
		return &entities.AuthError{Reason: "bad_body", Err: err}
	}
	if err := sv.Ensure(); err != nil {
		return &entities.AuthError{Reason: "signature_mismatch", Err: err}
	}
	return nil
}

// RateLimitPerIP limits requests per client IP. Limiters idle for longer
// than limiterIdleTTL are dropped.
func (m *Middleware) RateLimitPerIP(r rate.Limit, b int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()

		m.mu.Lock()
		now := m.now()
		if now.Sub(m.lastSweep) >= limiterIdleTTL {
			m.sweepLimiters(now)
		}
		entry, exists := m.rateLimiters[key]
		if !exists {
			entry = &clientLimiter{limiter: rate.NewLimiter(r, b)}
			m.rateLimiters[key] = entry
		}
		entry.lastSeen = now
		limiter := entry.limiter
		m.mu.Unlock()

		if !limiter.Allow() {
			metrics.RateLimitHits.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		c.Next()
	}
}

// sweepLimiters must be called with m.mu held.
func (m *Middleware) sweepLimiters(now time.Time) {
	for key, entry := range m.rateLimiters {
		if now.Sub(entry.lastSeen) >= limiterIdleTTL {
			delete(m.rateLimiters, key)
		}
	}
	m.lastSweep = now
}

// RequestLogger logs one line per request.
func (m *Middleware) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		m.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("remote_addr", c.ClientIP()).
			Msg("request completed")
	}
}

// Metrics records Prometheus request metrics.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// SecurityHeaders adds security headers to prevent common attacks
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")
		c.Writer.Header().Set("X-Frame-Options", "DENY")
		c.Writer.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Writer.Header().Set("Content-Security-Policy", "default-src 'none'")

		c.Next()
	}
}

// RequestSizeLimiter limits request body size
func RequestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
