package picks

import "time"

// DefaultLockTime is midnight Eastern on Dec 26 2025, the start of bowl season.
var DefaultLockTime = time.Date(2025, time.December, 26, 5, 0, 0, 0, time.UTC)

// LockPolicy decides whether picks may still be created or changed. There is
// one cutoff for every game and every pool.
type LockPolicy struct {
	Cutoff time.Time
	Now    func() time.Time
}

// NewLockPolicy returns a policy for cutoff using the wall clock.
func NewLockPolicy(cutoff time.Time) LockPolicy {
	return LockPolicy{Cutoff: cutoff, Now: time.Now}
}

func (p LockPolicy) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// IsLockedAt reports whether t is at or past the cutoff.
func (p LockPolicy) IsLockedAt(t time.Time) bool {
	return !t.Before(p.Cutoff)
}

// IsLocked reports whether picks are locked right now.
func (p LockPolicy) IsLocked() bool {
	return p.IsLockedAt(p.now())
}

// TimeUntilLock returns the time remaining before the cutoff. The boolean is
// false once picks are locked.
func (p LockPolicy) TimeUntilLock() (time.Duration, bool) {
	now := p.now()
	if p.IsLockedAt(now) {
		return 0, false
	}
	return p.Cutoff.Sub(now), true
}
