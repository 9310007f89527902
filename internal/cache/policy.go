package cache

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies the write a Decision asks for.
type Kind int

const (
	// KindInsert admits a brand-new record below capacity.
	KindInsert Kind = iota + 1
	// KindUpdate rewrites the live record already holding the key.
	KindUpdate
	// KindEvict overwrites the least valuable record with the new key.
	KindEvict
)

func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindEvict:
		return "evict"
	default:
		return "unknown"
	}
}

// ErrInvalidBounds is returned by NewPolicy for non-positive limits.
var ErrInvalidBounds = errors.New("cache: policy bounds must be positive")

// Policy decides where a write lands given the current live snapshot.
type Policy struct {
	MaxEntries int
	MaxAge     time.Duration
	Clock      Clock
}

// NewPolicy validates the bounds and returns a Policy.
func NewPolicy(maxEntries int, maxAge time.Duration, clock Clock) (Policy, error) {
	if maxEntries <= 0 {
		return Policy{}, fmt.Errorf("%w: max entries %d", ErrInvalidBounds, maxEntries)
	}
	if maxAge <= 0 {
		return Policy{}, fmt.Errorf("%w: max age %s", ErrInvalidBounds, maxAge)
	}
	return Policy{MaxEntries: maxEntries, MaxAge: maxAge, Clock: clock}, nil
}

// Decision is the outcome of Decide.
type Decision struct {
	Kind    Kind
	Target  Target
	Count   int
	Expires time.Time
	// Victim is the record being overwritten when Kind is KindEvict.
	Victim *Descriptor
}

// Patch builds the write for this decision. value may be nil for a touch.
func (d Decision) Patch(key string, value *string) Patch {
	return Patch{
		Key:     key,
		Value:   value,
		Count:   d.Count,
		Expires: d.Expires,
	}
}

// Decide picks the write target for key. snapshot must hold every live
// record ordered by SnapshotLess.
//
// A key that is already live is updated in place with its counter
// incremented. A new key is inserted while the cache is below MaxEntries;
// at or above it, the front of the snapshot is overwritten.
func (p Policy) Decide(key string, snapshot []Descriptor) Decision {
	d := Decision{
		Kind:    KindInsert,
		Target:  ByKey(key),
		Count:   1,
		Expires: p.Clock.Now().Add(p.MaxAge),
	}

	for i := range snapshot {
		if snapshot[i].Key == key {
			d.Kind = KindUpdate
			d.Count = snapshot[i].Count + 1
			return d
		}
	}

	if len(snapshot) >= p.MaxEntries && len(snapshot) > 0 {
		victim := snapshot[0]
		d.Kind = KindEvict
		d.Target = ByID(victim.ID)
		d.Victim = &victim
	}
	return d
}
