package imagegen

import (
	"sync"
)

type chartEntry struct {
	tick uint64
	data []byte
}

// ChartCache holds the last rendered PNG per panel. An entry is valid only for the
// refresh tick it was drawn from, so a new tick invalidates it without a sweep.
type ChartCache struct {
	mu      sync.RWMutex
	entries map[string]chartEntry
}

func NewChartCache() *ChartCache {
	return &ChartCache{entries: make(map[string]chartEntry)}
}

func (c *ChartCache) Get(panel string, tick uint64) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[panel]
	if !ok || e.tick != tick {
		return nil, false
	}
	return e.data, true
}

func (c *ChartCache) Set(panel string, tick uint64, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[panel] = chartEntry{tick: tick, data: data}
}

// Len returns the number of cached panels.
func (c *ChartCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
