package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds runtime settings for the daybook client.
//
// Units: intervals and timeouts are time.Duration.
type Config struct {
	ServerEndpointAddr  string        `validate:"required,hostname_port"`
	OnlineCheckInterval time.Duration `validate:"gte=1s"`
	RequestTimeout      time.Duration `validate:"gt=0"`

	DatabasePath string `validate:"required"`
	UserID       string `validate:"required,max=128"`
	AccessToken  string

	// Timezone is an IANA name; empty means the system zone.
	Timezone              string
	DeadlineCheckInterval time.Duration `validate:"gte=1s"`

	SyncMaxAttempts int           `validate:"gte=1,lte=50"`
	SyncMaxBackoff  time.Duration `validate:"gt=0"`

	Notifier  string `validate:"oneof=log writer nop"`
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=text json"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 30 * time.Second
	c.RequestTimeout = 10 * time.Second
	c.DatabasePath = "daybook.db"
	c.UserID = "local"
	c.DeadlineCheckInterval = time.Minute
	c.SyncMaxAttempts = 8
	c.SyncMaxBackoff = 5 * time.Minute
	c.Notifier = "log"
	c.LogLevel = "info"
	c.LogFormat = "text"
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("invalid config: %s failed %q", verrs[0].Field(), verrs[0].Tag())
	}
	return err
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
