package tgrelay

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/requilence/tgrelay/url"
)

// DefaultAppID is reported when APP_ID is not set
const DefaultAppID = "Invalid App ID"

// ErrMissingConfig is returned when one of the required variables is absent or empty
var ErrMissingConfig = errors.New("please set the WEBHOOK_URL, TELEGRAM_BOT_TOKEN and TELEGRAM_CALLBACK_SECRET environment variables")

// Config is read once from the environment and never mutated afterwards
type Config struct {
	WebhookURL     string `envconfig:"WEBHOOK_URL"`
	Port           int    `envconfig:"WEBHOOK_PORT" default:"3000"`
	BotToken       string `envconfig:"TELEGRAM_BOT_TOKEN"`
	CallbackSecret string `envconfig:"TELEGRAM_CALLBACK_SECRET"`
	AppID          string `envconfig:"APP_ID" default:"Invalid App ID"`

	Debug           bool          `envconfig:"RELAY_DEBUG" default:"0"`
	QueueSize       int           `envconfig:"RELAY_QUEUE_SIZE" default:"1024"`
	Workers         int           `envconfig:"RELAY_WORKERS" default:"256"` // maximum updates handled simultaneously
	RateLimit       int           `envconfig:"RELAY_RATE_LIMIT" default:"0"` // per client IP, authenticated requests/sec on /telegram. 0 disables
	RateBurst       int           `envconfig:"RELAY_RATE_BURST" default:"100"`
	ShutdownTimeout time.Duration `envconfig:"RELAY_SHUTDOWN_TIMEOUT" default:"10s"`
	ClientTimeout   time.Duration `envconfig:"RELAY_CLIENT_TIMEOUT" default:"30s"` // Bot API requests

	// X-Forwarded-For is honoured only from these addresses or CIDRs
	TrustedProxies []string `envconfig:"RELAY_TRUSTED_PROXIES"`

	PapertrailHost string `envconfig:"PAPERTRAIL_HOST"`
	PapertrailPort int    `envconfig:"PAPERTRAIL_PORT"`

	// set from the --master switch, only the master instance registers the webhook
	Master bool `ignored:"true"`

	base *url.URL
}

// LoadConfig reads the environment and validates the result
func LoadConfig(master bool) (*Config, error) {
	c := &Config{}
	if err := envconfig.Process("", c); err != nil {
		return nil, err
	}
	c.Master = master

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the required values and normalizes WebhookURL
func (c *Config) Validate() error {
	if strings.TrimSpace(c.WebhookURL) == "" || c.BotToken == "" || c.CallbackSecret == "" {
		return ErrMissingConfig
	}

	u, err := url.ParseBase(c.WebhookURL)
	if err != nil {
		return fmt.Errorf("can't parse WEBHOOK_URL '%s': %w", c.WebhookURL, err)
	}
	if u.GetHost() == "" {
		return fmt.Errorf("WEBHOOK_URL '%s' has no host", c.WebhookURL)
	}
	c.base = u

	if c.AppID == "" {
		c.AppID = DefaultAppID
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("WEBHOOK_PORT %d is out of range", c.Port)
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return nil
}

// BaseURL returns the normalized WEBHOOK_URL without the trailing slash
func (c *Config) BaseURL() string {
	if c.base == nil {
		return strings.TrimRight(c.WebhookURL, "/")
	}
	return c.base.String()
}

// CallbackURL is the URL Telegram posts updates to
func (c *Config) CallbackURL() string {
	if c.base == nil {
		return c.BaseURL() + "/telegram"
	}
	return c.base.JoinPath("telegram")
}

func (c *Config) HealthcheckURL() string {
	if c.base == nil {
		return c.BaseURL() + "/healthcheck"
	}
	return c.base.JoinPath("healthcheck")
}

// ListenAddr returns the address for the HTTP listener
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}
