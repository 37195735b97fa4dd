package echo

import (
	"fmt"
	"time"
)

// Framing modes.
const (
	// FramingLine splits input on \n, \r or \r\n and strips the terminator.
	FramingLine = "line"

	// FramingChunked treats the bytes of each read as one item.
	FramingChunked = "chunked"
)

// DefaultPort is the port used when none is configured.
const DefaultPort = 20002

// Config holds configuration parameters for the echo server.
//
// Default values (applied by New if zero):
//   - PoolSize: 5
//   - Framing: line
//   - ReadBufferSize: 64 KiB
//   - MaxLineLength: 64 KiB
//   - WriteTimeout: 30s
//   - ShutdownTimeout: 30s
//   - Reply.Identity: true
//
// Port is not defaulted here: 0 asks the kernel for an ephemeral port. The
// config package fills in DefaultPort for file and CLI driven setups.
type Config struct {
	// Enabled controls whether the echo adapter is started.
	Enabled bool `mapstructure:"enabled"`

	// Port is the TCP port to listen on. 0 picks an ephemeral port.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// PoolSize is the fixed number of workers.
	PoolSize int `mapstructure:"pool_size" validate:"min=0"`

	// Framing selects how input bytes are split into work items: "line" or "chunked".
	Framing string `mapstructure:"framing" validate:"omitempty,oneof=line chunked"`

	// ReadBufferSize is the size of the dispatcher's shared read buffer and
	// therefore the most bytes taken from one socket per readiness event.
	ReadBufferSize int `mapstructure:"read_buffer_size" validate:"min=0"`

	// MaxLineLength bounds the partial line kept per connection in line mode.
	// A partial line reaching the limit is emitted as an item on its own.
	MaxLineLength int `mapstructure:"max_line_length" validate:"min=0"`

	// MaxConnections limits concurrent client connections. Connections over the
	// limit are accepted and closed immediately. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0"`

	// Backlog is the listen(2) backlog. 0 uses the system maximum.
	Backlog int `mapstructure:"backlog" validate:"min=0"`

	// AcceptRate throttles new connections with a token bucket.
	AcceptRate AcceptRateConfig `mapstructure:"accept_rate"`

	// Queue configures the work queue.
	Queue QueueConfig `mapstructure:"queue"`

	// WriteTimeout bounds each reply write. A client that stops reading for
	// longer has its connection torn down.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`

	// ShutdownTimeout bounds how long shutdown waits for workers to drain the
	// queue before connections are force-closed.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`

	// Reply controls the reply format.
	Reply ReplyConfig `mapstructure:"reply"`

	// MetricsLogInterval is how often a summary of the server counters is
	// logged at INFO level. 0 disables it.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" validate:"min=0"`
}

// AcceptRateConfig configures the accept rate limiter.
type AcceptRateConfig struct {
	// RequestsPerSecond is the sustained accept rate. 0 disables limiting.
	RequestsPerSecond uint `mapstructure:"requests_per_second"`

	// Burst is the bucket size. 0 defaults to RequestsPerSecond.
	Burst uint `mapstructure:"burst"`
}

// QueueConfig configures the work queue.
type QueueConfig struct {
	// MaxDepth caps the number of queued items. When full, new items are
	// dropped rather than blocking the dispatcher. 0 means unbounded.
	MaxDepth int `mapstructure:"max_depth" validate:"min=0"`
}

// ReplyConfig controls what is written back per processed item.
type ReplyConfig struct {
	// Identity prefixes each reply with a separate "Worker id: <N>" write.
	// Nil means true.
	Identity *bool `mapstructure:"identity"`
}

// IdentityEnabled reports whether replies carry the worker identity prefix.
func (r ReplyConfig) IdentityEnabled() bool {
	return r.Identity == nil || *r.Identity
}

func (c *Config) applyDefaults() {
	if c.PoolSize == 0 {
		c.PoolSize = 5
	}
	if c.Framing == "" {
		c.Framing = FramingLine
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = 64 * 1024
	}
	if c.MaxLineLength == 0 {
		c.MaxLineLength = 64 * 1024
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("invalid PoolSize %d: must be >= 1", c.PoolSize)
	}
	if c.Framing != FramingLine && c.Framing != FramingChunked {
		return fmt.Errorf("invalid Framing %q: must be %q or %q", c.Framing, FramingLine, FramingChunked)
	}
	if c.ReadBufferSize < 1 {
		return fmt.Errorf("invalid ReadBufferSize %d: must be > 0", c.ReadBufferSize)
	}
	if c.MaxLineLength < 1 {
		return fmt.Errorf("invalid MaxLineLength %d: must be > 0", c.MaxLineLength)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid MaxConnections %d: must be >= 0", c.MaxConnections)
	}
	if c.Backlog < 0 {
		return fmt.Errorf("invalid Backlog %d: must be >= 0", c.Backlog)
	}
	if c.Queue.MaxDepth < 0 {
		return fmt.Errorf("invalid Queue.MaxDepth %d: must be >= 0", c.Queue.MaxDepth)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("invalid WriteTimeout %v: must be >= 0", c.WriteTimeout)
	}
	if c.MetricsLogInterval < 0 {
		return fmt.Errorf("invalid MetricsLogInterval %v: must be >= 0", c.MetricsLogInterval)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	return nil
}
