package session

import (
	"github.com/danmuck/plenty/internal/protocol/frame"
)

const DefaultBatchSize = 100

// Config defines per-session protocol settings.
type Config struct {
	// BatchSize is the Responder commit threshold.
	BatchSize int
	Limits    frame.Limits
	// RunID tags every log line of one synchronization run. Generated when
	// empty.
	RunID string
}

func DefaultConfig() Config {
	return Config{
		BatchSize: DefaultBatchSize,
		Limits:    frame.DefaultLimits(),
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Limits.MaxPayloadBytes == 0 {
		c.Limits = d.Limits
	}
	return c
}
