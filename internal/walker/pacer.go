package walker

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces the politeness interval between consecutive queries: the
// next query may start no earlier than interval after the previous one
// completed. An optional per-minute ceiling bounds bursts on top of that.
type Pacer struct {
	interval time.Duration
	limiter  *rate.Limiter
	last     time.Time
}

// NewPacer creates a Pacer. perMinute <= 0 disables the ceiling.
func NewPacer(interval time.Duration, perMinute int) *Pacer {
	p := &Pacer{interval: interval}
	if perMinute > 0 {
		p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
	return p
}

// Interval returns the configured minimum gap.
func (p *Pacer) Interval() time.Duration { return p.interval }

// Wait blocks until the next query may be issued or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.last.IsZero() {
		if d := p.interval - time.Since(p.last); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	if p.limiter != nil {
		return p.limiter.Wait(ctx)
	}
	return nil
}

// Done records that a query just completed.
func (p *Pacer) Done() {
	p.last = time.Now()
}
