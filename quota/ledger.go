// Package quota tracks per-backend daily usage counts and enforces caps.
//
// The ledger keys records by (backend, UTC calendar day), so crossing
// midnight UTC starts a fresh count without any explicit reset. Old
// records accumulate until Prune is called by an external maintenance
// tick.
package quota

import (
	"fmt"
	"sync"
	"time"
)

// dayFormat is the calendar-day key, always in UTC.
const dayFormat = "2006-01-02"

type recordKey struct {
	backend string
	day     string
}

// Ledger is an in-memory quota ledger. All methods are safe for
// concurrent use; Reserve is a fast compare-and-increment that never
// blocks on anything but the ledger mutex.
type Ledger struct {
	mu     sync.Mutex
	limits map[string]int
	counts map[recordKey]int
	now    func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the ledger's time source. Used by tests to drive
// day rollover deterministically.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// NewLedger creates an empty ledger.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		limits: make(map[string]int),
		counts: make(map[recordKey]int),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register sets the daily limit for a backend. A limit of 0 means
// unlimited. Backends that were never registered are treated as
// unlimited as well.
func (l *Ledger) Register(backend string, dailyLimit int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits[backend] = dailyLimit
}

// Reserve atomically checks whether today's count for the backend is
// below its limit and, if so, increments it. Returns false without side
// effect when today's quota is exhausted.
func (l *Ledger) Reserve(backend string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := recordKey{backend: backend, day: l.today()}
	limit := l.limits[backend]
	if limit > 0 && l.counts[key] >= limit {
		return false
	}
	l.counts[key]++
	return true
}

// Release undoes one reservation, so a failed provider call does not
// permanently consume quota. Releasing more than was reserved is a
// programming fault and panics.
func (l *Ledger) Release(backend string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := l.today()
	key := recordKey{backend: backend, day: today}
	if l.counts[key] > 0 {
		l.counts[key]--
		return
	}

	// A reservation made just before midnight UTC may be released just
	// after; credit it back to the day it was taken from.
	yesterday := l.now().UTC().AddDate(0, 0, -1).Format(dayFormat)
	yKey := recordKey{backend: backend, day: yesterday}
	if l.counts[yKey] > 0 {
		l.counts[yKey]--
		return
	}

	panic(fmt.Sprintf("quota: release without reservation for backend %q", backend))
}

// Usage returns today's count and the configured limit for a backend.
// A limit of 0 means unlimited.
func (l *Ledger) Usage(backend string) (count, limit int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := recordKey{backend: backend, day: l.today()}
	return l.counts[key], l.limits[backend]
}

// Prune drops records older than keepDays calendar days. Invoked by a
// periodic maintenance tick, not by the ledger itself.
func (l *Ledger) Prune(keepDays int) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().UTC().AddDate(0, 0, -keepDays).Format(dayFormat)
	removed := 0
	for key := range l.counts {
		if key.day < cutoff {
			delete(l.counts, key)
			removed++
		}
	}
	return removed
}

func (l *Ledger) today() string {
	return l.now().UTC().Format(dayFormat)
}
