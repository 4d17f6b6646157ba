package bridge

import (
	"fmt"
	"time"

	"github.com/ajitpratap0/hostbridge-go/pkg/transport"
)

// FallbackPolicy decides what a connect does once the simulation fallback
// has been engaged.
type FallbackPolicy string

const (
	// FallbackPermanent keeps every later connect of the session on the
	// simulation.
	FallbackPermanent FallbackPolicy = "permanent"

	// FallbackReprobe runs detection again on the next explicit connect.
	FallbackReprobe FallbackPolicy = "reprobe"
)

// Config holds the coordinator settings
type Config struct {
	// MaxRetries is the number of scheduled reconnects before falling back
	// to the simulation
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`

	// RetryBaseDelay is multiplied by the attempt number for each retry
	RetryBaseDelay time.Duration `json:"retry_base_delay" mapstructure:"retry_base_delay"`

	// ConnectTimeout bounds a single strategy connect; zero means no bound
	ConnectTimeout time.Duration `json:"connect_timeout" mapstructure:"connect_timeout"`

	FallbackPolicy FallbackPolicy `json:"fallback_policy" mapstructure:"fallback_policy"`

	// AutoReconnect allows one unsolicited reconnect per explicit Connect
	// after a lost connection
	AutoReconnect bool `json:"auto_reconnect" mapstructure:"auto_reconnect"`

	Transport transport.Config `json:"transport" mapstructure:"transport"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		RetryBaseDelay: 2 * time.Second,
		ConnectTimeout: 30 * time.Second,
		FallbackPolicy: FallbackPermanent,
		AutoReconnect:  true,
		Transport:      transport.DefaultConfig(),
	}
}

// Validate checks the configuration for values the coordinator cannot use
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	}
	if c.RetryBaseDelay < 0 {
		return fmt.Errorf("retry_base_delay must not be negative, got %v", c.RetryBaseDelay)
	}
	switch c.FallbackPolicy {
	case FallbackPermanent, FallbackReprobe, "":
	default:
		return fmt.Errorf("unknown fallback_policy %q", c.FallbackPolicy)
	}
	return nil
}
