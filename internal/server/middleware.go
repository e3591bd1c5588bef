package server

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	applog "github.com/dudu/emoface/internal/log"
)

const RequestIDHeader = "X-Request-ID"

func newULID(t time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(t), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// requestIDMiddleware echoes the client's X-Request-ID or assigns a ULID
func requestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if id == "" {
			id, _ = newULID(time.Now())
		}

		c.Locals(applog.RequestIDKey, id)
		c.Set(RequestIDHeader, id)

		return c.Next()
	}
}

func requestID(c *fiber.Ctx) string {
	id, ok := c.Locals(applog.RequestIDKey).(string)
	if !ok || id == "" {
		return "unknown"
	}
	return id
}

func (s *Server) loggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		fields := applog.Fields{
			applog.RequestIDKey: requestID(c),
			"method":            c.Method(),
			"path":              c.Path(),
			"status":            status,
			"latency_ms":        time.Since(start).Milliseconds(),
			"ip":                c.IP(),
			"user_agent":        c.Get("User-Agent"),
			"response_size":     len(c.Response().Body()),
		}

		entry := s.log.WithFields(fields)
		switch {
		case status >= fiber.StatusInternalServerError:
			entry.Error("Server error")
		case status >= fiber.StatusBadRequest:
			entry.Warn("Client error")
		default:
			entry.Info("Success")
		}

		return err
	}
}

// visitorTTL is how long an idle client keeps its bucket
const visitorTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter hands out one token bucket per client IP. Buckets idle for
// longer than ttl are dropped on a later lookup.
type rateLimiter struct {
	visitors  map[string]*visitor
	rate      rate.Limit
	burstSize int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
	mutex     sync.Mutex
}

func newRateLimiter(reqRate rate.Limit, burstSize int) *rateLimiter {
	return &rateLimiter{
		visitors:  make(map[string]*visitor),
		rate:      reqRate,
		burstSize: burstSize,
		ttl:       visitorTTL,
		now:       time.Now,
	}
}

func (r *rateLimiter) limiterFor(ip string) *rate.Limiter {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := r.now()
	if now.Sub(r.lastSweep) >= r.ttl {
		r.sweep(now)
	}

	v, exist := r.visitors[ip]
	if !exist {
		v = &visitor{limiter: rate.NewLimiter(r.rate, r.burstSize)}
		r.visitors[ip] = v
	}
	v.lastSeen = now

	return v.limiter
}

// sweep drops idle visitors; the caller holds the mutex
func (r *rateLimiter) sweep(now time.Time) {
	for ip, v := range r.visitors {
		if now.Sub(v.lastSeen) > r.ttl {
			delete(r.visitors, ip)
		}
	}
	r.lastSweep = now
}

func (r *rateLimiter) size() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.visitors)
}

func (s *Server) rateLimitMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientIP := c.IP()
		if !s.limiter.limiterFor(clientIP).Allow() {
			s.log.Warnf("too many requests for IP %s", clientIP)
			return s.handleError(c, ErrTooManyRequests, "rate_limit")
		}
		return c.Next()
	}
}
