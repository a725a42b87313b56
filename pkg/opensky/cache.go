package opensky

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/unklstewy/flightmap/pkg/coordinates"
)

// CachingSource puts a short-lived LRU in front of another Source so that
// many sessions looking at the same area share one upstream request.
// Errors are never cached.
type CachingSource struct {
	next     Source
	boxes    *expirable.LRU[string, []StateVector]
	searches *expirable.LRU[string, []StateVector]
}

// NewCachingSource wraps next. size bounds each cache, ttl is how long an
// answer is reused.
func NewCachingSource(next Source, size int, ttl time.Duration) *CachingSource {
	if size <= 0 {
		size = 128
	}
	return &CachingSource{
		next:     next,
		boxes:    expirable.NewLRU[string, []StateVector](size, nil, ttl),
		searches: expirable.NewLRU[string, []StateVector](size, nil, ttl),
	}
}

// StatesInBox returns the cached answer for bbox or fetches it.
func (c *CachingSource) StatesInBox(ctx context.Context, bbox coordinates.BoundingBox) ([]StateVector, error) {
	key := bbox.String()
	if states, ok := c.boxes.Get(key); ok {
		return states, nil
	}

	states, err := c.next.StatesInBox(ctx, bbox)
	if err != nil {
		return nil, err
	}
	c.boxes.Add(key, states)
	return states, nil
}

// SearchCallsign returns the cached answer for the query or fetches it.
func (c *CachingSource) SearchCallsign(ctx context.Context, callsign string) ([]StateVector, error) {
	key := strings.ToUpper(strings.TrimSpace(callsign))
	if states, ok := c.searches.Get(key); ok {
		return states, nil
	}

	states, err := c.next.SearchCallsign(ctx, callsign)
	if err != nil {
		return nil, err
	}
	c.searches.Add(key, states)
	return states, nil
}

// Len reports the number of cached answers.
func (c *CachingSource) Len() int {
	return c.boxes.Len() + c.searches.Len()
}

// Purge drops every cached answer.
func (c *CachingSource) Purge() {
	c.boxes.Purge()
	c.searches.Purge()
}
