package versioned

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/kodeverk-admin/internal/model"
)

// Clock issues strictly increasing millisecond timestamps for version ids.
// Two saves in the same wall-clock millisecond get consecutive values.
type Clock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewClock constructs a Clock; now defaults to time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Next returns the next epoch-millisecond value, never less than or equal to a previous one.
func (c *Clock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ms := c.now().UnixMilli()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	return ms
}

// Now returns the wall-clock time in UTC. It is not affected by Observe.
func (c *Clock) Now() time.Time { return c.now().UTC() }

// Observe advances the clock past an externally seen timestamp.
func (c *Clock) Observe(ms int64) {
	c.mu.Lock()
	if ms > c.last {
		c.last = ms
	}
	c.mu.Unlock()
}

// NewVersionID formats "<kind>-<document>-<millis>-<suffix>". Millis are zero
// padded so ids of one kind sort lexicographically in creation order; the
// random suffix separates writers in different processes.
func NewVersionID(kind model.DocumentKind, ms int64) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%013d-%s", kind, kind.DocumentName(), ms, id.String()[:8]), nil
}
