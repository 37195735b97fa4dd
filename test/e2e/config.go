package e2e

import (
	"context"
	"fmt"

	"github.com/marmos91/hsha/pkg/adapter/echo"
	"github.com/marmos91/hsha/pkg/processor"
)

// TestConfig holds the server settings for one test run.
type TestConfig struct {
	Name      string
	Framing   string
	Processor string
	PoolSize  int

	// Identity prefixes each reply with "Worker id: <N>".
	Identity bool
}

// String returns a string representation of the configuration
func (tc *TestConfig) String() string {
	return fmt.Sprintf("%s/%s/%d", tc.Framing, tc.Processor, tc.PoolSize)
}

// AllConfigurations returns the combinations every functional test runs on.
func AllConfigurations() []*TestConfig {
	return []*TestConfig{
		{
			Name:      "line-echo-single",
			Framing:   echo.FramingLine,
			Processor: processor.TypeEcho,
			PoolSize:  1,
		},
		{
			Name:      "line-echo-pool",
			Framing:   echo.FramingLine,
			Processor: processor.TypeEcho,
			PoolSize:  8,
		},
		{
			Name:      "line-upper-pool",
			Framing:   echo.FramingLine,
			Processor: processor.TypeUpper,
			PoolSize:  4,
		},
	}
}

// expected returns what the configured processor makes of payload.
func (tc *TestConfig) expected(payload string) string {
	proc, err := processor.New(tc.Processor, nil)
	if err != nil {
		panic(err)
	}
	out, err := proc.Process(context.Background(), []byte(payload))
	if err != nil {
		panic(err)
	}
	return string(out)
}
