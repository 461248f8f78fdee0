package judge

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
)

type cacheKey struct {
	subject string
	hash    string
}

// Cache remembers evaluations per (subject, content hash) for the lifetime
// of the process.  It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]*Evaluation
	order   []cacheKey
}

func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]*Evaluation)}
}

// ContentHash fingerprints a transcript together with the artifact judged
// against it.
func ContentHash(transcript []string, artifact string) string {
	h := sha256.New()
	for _, line := range transcript {
		h.Write([]byte(strings.TrimSpace(line)))
		h.Write([]byte{'\n'})
	}
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(artifact)))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached evaluation, if any.
func (c *Cache) Get(subjectID, hash string) (*Evaluation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ev, ok := c.entries[cacheKey{subjectID, hash}]
	return ev, ok
}

// Put stores ev.  Replacing an entry keeps its original position.
func (c *Cache) Put(subjectID, hash string, ev *Evaluation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := cacheKey{subjectID, hash}
	if _, ok := c.entries[k]; !ok {
		c.order = append(c.order, k)
	}
	c.entries[k] = ev
}

// Len returns the number of cached evaluations.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Observations returns the observations of every cached evaluation in
// insertion order.
func (c *Cache) Observations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.entries[k].Observations)
	}
	return out
}
