// Package processor holds the processing routines run by the worker pool.
//
// A Processor turns one framed payload into the bytes written back to the
// client. Processors run on worker goroutines and may be slow; they must honour
// context cancellation so a forced shutdown is not held up by a sleeping worker.
package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Processor transforms a request payload into a reply payload.
//
// Implementations must be safe for concurrent use: every worker shares the same
// instance. The returned slice may alias payload.
type Processor interface {
	Process(ctx context.Context, payload []byte) ([]byte, error)

	// Name identifies the processor in logs and metrics.
	Name() string
}

// Supported processor types.
const (
	TypeEcho    = "echo"
	TypeUpper   = "upper"
	TypeReverse = "reverse"
)

// Types lists every processor type New accepts.
var Types = []string{TypeEcho, TypeUpper, TypeReverse}

// Options are the settings shared by every built-in processor.
type Options struct {
	// Delay simulates slow work before the reply is produced.
	Delay time.Duration `mapstructure:"delay"`
}

// New creates a processor of the given type, decoding its options from a
// loosely typed map (as produced by the config loader).
//
// Durations may be given as time.Duration values or as strings ("3s").
func New(kind string, options map[string]any) (Processor, error) {
	var opts Options
	if err := decodeOptions(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode %s processor options: %w", kind, err)
	}
	if opts.Delay < 0 {
		return nil, fmt.Errorf("%s processor: delay must not be negative, got %s", kind, opts.Delay)
	}

	switch kind {
	case TypeEcho:
		return NewEcho(opts.Delay), nil
	case TypeUpper:
		return NewUpper(opts.Delay), nil
	case TypeReverse:
		return NewReverse(opts.Delay), nil
	default:
		return nil, fmt.Errorf("unknown processor type: %q", kind)
	}
}

func decodeOptions(options map[string]any, out any) error {
	if len(options) == 0 {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(options)
}

// simulateWork blocks for d or until ctx is done.
func simulateWork(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
