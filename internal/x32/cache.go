package x32

import "sync"

// Snapshot is the cache state pushed to a newly attached session.
type Snapshot struct {
	// Names maps two-digit channel id to display name.
	Names map[string]string `json:"names"`

	// Routing holds the last observed value per routing block, nil where
	// never observed.
	Routing []*int `json:"routing"`
}

// Cache holds the last known console attributes so new sessions get an
// answer immediately instead of waiting on the console.
//
// Writers are the engine's message-handling paths (correlated resolutions
// and the unsolicited-reply handler); readers are the session attach path
// and enumerate-sources.
//
// Thread Safety: all methods are safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	names   map[int]string
	colors  map[int]int
	patches map[int]int
	routing [NumRoutingBlocks]*int
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		names:   make(map[int]string),
		colors:  make(map[int]int),
		patches: make(map[int]int),
	}
}

// SetName stores a channel display name. Returns true when the value
// changed (callers broadcast the name map only on change).
func (c *Cache) SetName(ch int, name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.names[ch]; ok && prev == name {
		return false
	}
	c.names[ch] = name
	return true
}

// SetColor stores a channel colour value.
func (c *Cache) SetColor(ch, color int) {
	c.mu.Lock()
	c.colors[ch] = color
	c.mu.Unlock()
}

// SetPatch stores a channel's user-routable input source value.
func (c *Cache) SetPatch(ch, value int) {
	c.mu.Lock()
	c.patches[ch] = value
	c.mu.Unlock()
}

// Patch returns a channel's last known patch value.
func (c *Cache) Patch(ch int) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.patches[ch]
	return v, ok
}

// SetRouting stores a routing block's last observed value. Returns true
// when the value changed (feeds the routing history log).
func (c *Cache) SetRouting(block, value int) bool {
	if block < 0 || block >= NumRoutingBlocks {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev := c.routing[block]; prev != nil && *prev == value {
		return false
	}
	v := value
	c.routing[block] = &v
	return true
}

// Routing returns the last observed routing values, nil per slot where
// never observed.
func (c *Cache) Routing() []*int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*int, NumRoutingBlocks)
	for i, v := range c.routing {
		if v != nil {
			cp := *v
			out[i] = &cp
		}
	}
	return out
}

// Names returns the full name map keyed by two-digit channel id.
func (c *Cache) Names() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.names))
	for ch, name := range c.names {
		out[ChannelID(ch)] = name
	}
	return out
}

// Snapshot returns the state pushed to a newly attached session.
func (c *Cache) Snapshot() Snapshot {
	return Snapshot{
		Names:   c.Names(),
		Routing: c.Routing(),
	}
}
