package processor

import (
	"context"
	"time"
)

// Echo returns every payload unchanged, optionally after a simulated delay.
type Echo struct {
	delay time.Duration
}

// NewEcho creates an echo processor. A zero delay replies immediately.
func NewEcho(delay time.Duration) *Echo {
	return &Echo{delay: delay}
}

func (e *Echo) Name() string { return TypeEcho }

func (e *Echo) Process(ctx context.Context, payload []byte) ([]byte, error) {
	if err := simulateWork(ctx, e.delay); err != nil {
		return nil, err
	}
	return payload, nil
}
