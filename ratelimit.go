package tgrelay

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/throttled/throttled"
	"github.com/throttled/throttled/store/memstore"
)

// number of client IPs tracked by the limiter
const rateLimitMaxKeys = 65536

// newRateLimiter returns nil when limiting is disabled
func newRateLimiter(c *Config) (throttled.RateLimiter, error) {
	if c.RateLimit <= 0 {
		return nil, nil
	}

	store, err := memstore.New(rateLimitMaxKeys)
	if err != nil {
		return nil, err
	}

	burst := c.RateBurst
	if burst < 0 {
		burst = 0
	}

	return throttled.NewGCRARateLimiter(store, throttled.RateQuota{MaxRate: throttled.PerSec(c.RateLimit), MaxBurst: burst})
}

// rateLimitMiddleware rejects requests with 429 once the client IP exceeds its quota
func rateLimitMiddleware(limiter throttled.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		limited, result, err := limiter.RateLimit(c.ClientIP(), 1)
		if err != nil {
			// don't drop updates because of the limiter itself
			log.WithError(err).Error("rate limiter failed")
			c.Next()
			return
		}

		if limited {
			log.WithField("ip", c.ClientIP()).Warn("Rate limit exceeded")
			if result.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
			}
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
