package processor

import (
	"bytes"
	"context"
	"time"
	"unicode/utf8"
)

// Upper replies with the payload upper-cased.
type Upper struct {
	delay time.Duration
}

func NewUpper(delay time.Duration) *Upper {
	return &Upper{delay: delay}
}

func (u *Upper) Name() string { return TypeUpper }

func (u *Upper) Process(ctx context.Context, payload []byte) ([]byte, error) {
	if err := simulateWork(ctx, u.delay); err != nil {
		return nil, err
	}
	return bytes.ToUpper(payload), nil
}

// Reverse replies with the payload reversed. Valid UTF-8 is reversed by rune;
// anything else is reversed byte by byte.
type Reverse struct {
	delay time.Duration
}

func NewReverse(delay time.Duration) *Reverse {
	return &Reverse{delay: delay}
}

func (r *Reverse) Name() string { return TypeReverse }

func (r *Reverse) Process(ctx context.Context, payload []byte) ([]byte, error) {
	if err := simulateWork(ctx, r.delay); err != nil {
		return nil, err
	}

	if !utf8.Valid(payload) {
		out := make([]byte, len(payload))
		for i, b := range payload {
			out[len(payload)-1-i] = b
		}
		return out, nil
	}

	runes := bytes.Runes(payload)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return []byte(string(runes)), nil
}
