package pattern

import "sync"

type scoreKey struct {
	patternID string
	nodeID    string
}

// ScoreCache memoizes structural scores. Structural scoring depends only on
// the pattern's source shape and the node's identity, so entries stay valid
// until the library mutates or node identities are reused across unrelated
// trees; callers clear the cache in those cases.
type ScoreCache struct {
	mu     sync.RWMutex
	scores map[scoreKey]float64
}

// NewScoreCache builds an empty cache.
func NewScoreCache() *ScoreCache {
	return &ScoreCache{scores: make(map[scoreKey]float64)}
}

// Get looks up a memoized structural score.
func (c *ScoreCache) Get(patternID, nodeID string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	score, ok := c.scores[scoreKey{patternID, nodeID}]
	return score, ok
}

// Put stores a structural score.
func (c *ScoreCache) Put(patternID, nodeID string, score float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scores[scoreKey{patternID, nodeID}] = score
}

// Clear drops every entry.
func (c *ScoreCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scores = make(map[scoreKey]float64)
}

// Len reports the number of memoized entries.
func (c *ScoreCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.scores)
}
