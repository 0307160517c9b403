package services

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// otpLimiter allows one OTP issuance per email per window. Entries idle for
// longer than the window hold a full bucket again and are swept.
type otpLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	limiters  map[string]*rate.Limiter
	lastSeen  map[string]time.Time
	lastSweep time.Time
}

func newOTPLimiter(window time.Duration) *otpLimiter {
	return &otpLimiter{
		window:   window,
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
	}
}

// Reserve takes the email's token at now. When ok, release hands the token
// back; callers release it when no code ended up being issued.
func (l *otpLimiter) Reserve(email string, now time.Time) (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(now)
	}

	lim, found := l.limiters[email]
	if !found {
		lim = rate.NewLimiter(rate.Every(l.window), 1)
		l.limiters[email] = lim
	}
	l.lastSeen[email] = now

	r := lim.ReserveN(now, 1)
	if !r.OK() || r.DelayFrom(now) > 0 {
		r.CancelAt(now)
		return nil, false
	}
	return func() { r.CancelAt(now) }, true
}

func (l *otpLimiter) sweep(now time.Time) {
	cutoff := now.Add(-l.window)
	for email, seen := range l.lastSeen {
		if seen.Before(cutoff) {
			delete(l.limiters, email)
			delete(l.lastSeen, email)
		}
	}
	l.lastSweep = now
}

func (l *otpLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
