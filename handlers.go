package tgrelay

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	tg "github.com/requilence/telegram-bot-api"
	log "github.com/sirupsen/logrus"
)

// SecretTokenHeader carries the secret_token declared on setWebhook
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// Telegram never sends updates bigger than this
const maxUpdateSize = 1 << 20

func ginLogger(c *gin.Context) {
	c.Next()

	statusCode := c.Writer.Status()
	if statusCode < 200 || statusCode > 299 && statusCode != 404 {
		log.WithFields(log.Fields{
			"path":   c.Request.URL.Path,
			"ip":     c.ClientIP(),
			"method": c.Request.Method,
			"ua":     c.Request.UserAgent(),
			"code":   statusCode,
		}).Warn(c.Errors.ByType(gin.ErrorTypePrivate).String())
	}
}

func ginRecovery(c *gin.Context) {
	defer func() {
		if err := recover(); err != nil {
			stack := stack(3)
			log.WithFields(log.Fields{
				"path":   c.Request.URL.Path,
				"ip":     c.ClientIP(),
				"method": c.Request.Method,
				"ua":     c.Request.UserAgent(),
				"code":   500,
			}).Errorf("Panic recovery -> %s\n%s\n", err, stack)
			c.AbortWithStatus(http.StatusInternalServerError)
		}
	}()
	c.Next()
}

// NewRouter returns the HTTP handler with health routes and the Telegram webhook receiver
func NewRouter(cfg *Config, queue *UpdateQueue) (*gin.Engine, error) {
	router := gin.New()

	// without trusted proxies ClientIP is the peer address and X-Forwarded-For is ignored
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid RELAY_TRUSTED_PROXIES: %w", err)
	}

	router.Use(ginRecovery)
	router.Use(ginLogger)

	if cfg.Debug {
		router.Use(gin.Logger())
	}

	health := healthcheckHandler(cfg)
	router.GET("/", health)
	router.HEAD("/", health)
	router.GET("/healthcheck", health)
	router.HEAD("/healthcheck", health)

	limiter, err := newRateLimiter(cfg)
	if err != nil {
		return nil, fmt.Errorf("can't create rate limiter: %w", err)
	}

	// the limiter only charges requests that carry the right secret
	handlers := []gin.HandlerFunc{secretTokenMiddleware(cfg)}
	if limiter != nil {
		handlers = append(handlers, rateLimitMiddleware(limiter))
	}
	handlers = append(handlers, telegramHandler(queue))

	router.POST("/telegram", handlers...)

	return router, nil
}

func healthcheckHandler(cfg *Config) gin.HandlerFunc {
	text := fmt.Sprintf("The bot is still running fine :) - from %s", cfg.AppID)

	return func(c *gin.Context) {
		c.String(http.StatusOK, text)
	}
}

// secretTokenMiddleware rejects webhook calls without the secret declared on setWebhook
func secretTokenMiddleware(cfg *Config) gin.HandlerFunc {
	secret := []byte(cfg.CallbackSecret)

	return func(c *gin.Context) {
		requestID := uuid.NewString()
		c.Set("request_id", requestID)

		token := c.GetHeader(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(token), secret) != 1 {
			log.WithField("request_id", requestID).WithField("ip", c.ClientIP()).Warn("Webhook secret mismatch")
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

// decodeUpdate accepts only a JSON object, so bodies like `null` or `[]` are rejected
func decodeUpdate(c *gin.Context) (*tg.Update, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUpdateSize)

	body, err := c.GetRawData()
	if err != nil {
		return nil, err
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return nil, errors.New("update must be a JSON object")
	}

	u := &tg.Update{}
	if err := binding.JSON.BindBody(body, u); err != nil {
		return nil, err
	}
	return u, nil
}

// telegramHandler puts the authenticated update to the queue
func telegramHandler(queue *UpdateQueue) gin.HandlerFunc {
	return func(c *gin.Context) {
		entry := log.WithField("request_id", c.GetString("request_id"))

		u, err := decodeUpdate(c)
		if err != nil {
			entry.WithError(err).Warn("Can't decode the update")
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}

		entry = entry.WithField("update_id", u.UpdateID)

		if err := queue.Put(c.Request.Context(), u); err != nil {
			if errors.Is(err, ErrQueueClosed) {
				entry.Warn("Update received while shutting down")
			} else {
				entry.WithError(err).Error("Can't enqueue the update")
			}
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}

		entry.Debug("Update queued")
		c.Status(http.StatusOK)
	}
}
