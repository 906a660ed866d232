package fetch

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// Pacer inserts a randomized delay between successive requests from the same
// session. Pacing is per worker, not a global lock.
type Pacer struct {
	min time.Duration
	max time.Duration
}

// NewPacer builds a Pacer for the [min, max] delay band. A zero or inverted
// band disables pacing.
func NewPacer(min, max time.Duration) *Pacer {
	if max < min {
		max = min
	}
	return &Pacer{min: min, max: max}
}

// Wait blocks for a random delay inside the band, or returns early with the
// context's error on cancellation.
func (p *Pacer) Wait(ctx context.Context) error {
	delay := p.next()
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Pacer) next() time.Duration {
	if p.max <= 0 {
		return 0
	}
	span := p.max - p.min
	if span <= 0 {
		return p.min
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(span)))
	if err != nil {
		return p.min
	}
	return p.min + time.Duration(n.Int64())
}
