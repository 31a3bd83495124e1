package middleware

import (
	"strconv"
	"sync"
	"time"

	apperrors "devconnect/pkg/errors"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterTTL           = 10 * time.Minute
	limiterCleanupPeriod = time.Minute
)

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// limiterPool 每个调用方一个令牌桶, 长时间未出现的条目会被清理
type limiterPool struct {
	mu           sync.Mutex
	m            map[string]*limiterEntry
	rps          rate.Limit
	burst        int
	startCleanup sync.Once
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = 40
	}
	return &limiterPool{m: make(map[string]*limiterEntry), rps: rate.Limit(rps), burst: burst}
}

func (p *limiterPool) allow(key string) bool {
	p.startCleanup.Do(func() { go p.cleanupLoop() })

	p.mu.Lock()
	e, ok := p.m[key]
	if !ok {
		e = &limiterEntry{l: rate.NewLimiter(p.rps, p.burst)}
		p.m[key] = e
	}
	e.lastSeen = time.Now()
	p.mu.Unlock()
	return e.l.Allow()
}

func (p *limiterPool) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupPeriod)
	defer ticker.Stop()
	for range ticker.C {
		p.evict(time.Now().Add(-limiterTTL))
	}
}

func (p *limiterPool) evict(cutoff time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
		}
	}
}

// RateLimit 已登录用户按用户ID限流, 否则按客户端IP
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	pool := newLimiterPool(rps, burst)
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if userID, ok := CurrentUserID(c); ok {
			key = "user:" + strconv.FormatUint(uint64(userID), 10)
		}
		if !pool.allow(key) {
			abortWithError(c, apperrors.RateLimited())
			return
		}
		c.Next()
	}
}
