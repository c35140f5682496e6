package pattern

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/lexcodex/transmute/ast"
)

// ErrPatternNotFound is returned when a pattern id is unknown to the library.
var ErrPatternNotFound = errors.New("pattern not found")

// FeedbackAction enumerates what a user did with a suggestion.
type FeedbackAction string

const (
	ActionAccept              FeedbackAction = "accept"
	ActionReject              FeedbackAction = "reject"
	ActionModify              FeedbackAction = "modify"
	ActionSkip                FeedbackAction = "skip"
	ActionRequestAlternatives FeedbackAction = "request_alternatives"
	ActionRequestExplanation  FeedbackAction = "request_explanation"
)

// Feedback carries the learning signal attached to a user action.
// Rating is 1-5 with 0 meaning not provided.
type Feedback struct {
	Action  FeedbackAction `json:"action"`
	Rating  int            `json:"rating,omitempty"`
	Comment string         `json:"comment,omitempty"`
}

// LearningStatistics aggregates library-wide learning progress.
type LearningStatistics struct {
	TotalPatterns     int       `json:"total_patterns"`
	SuccessfulMatches int       `json:"successful_matches"`
	FailedMatches     int       `json:"failed_matches"`
	AverageConfidence float64   `json:"average_confidence"`
	ImprovementRate   float64   `json:"improvement_rate"`
	LastUpdated       time.Time `json:"last_updated"`
}

// Library is the keyed store of translation patterns. All mutation goes
// through its methods under a single lock; sessions never hold aliased
// mutable pattern references of their own. The library also owns the
// structural-score cache shared by every matcher built from it.
type Library struct {
	mu       sync.RWMutex
	patterns map[string]*TranslationPattern
	order    []string
	stats    LearningStatistics
	cache    *ScoreCache
	clock    func() time.Time
}

// NewLibrary builds an empty library.
func NewLibrary() *Library {
	return &Library{
		patterns: make(map[string]*TranslationPattern),
		cache:    NewScoreCache(),
		clock:    time.Now,
	}
}

// Matcher returns a matcher bound to the library's score cache.
func (l *Library) Matcher() *Matcher { return NewMatcher(l.cache) }

// Add stores a pattern, replacing any existing record with the same id.
func (l *Library) Add(p *TranslationPattern) {
	if p == nil || p.ID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.patterns[p.ID]; !exists {
		l.order = append(l.order, p.ID)
	}
	p.Confidence = Clamp01(p.Confidence)
	p.SuccessRate = Clamp01(p.SuccessRate)
	l.patterns[p.ID] = p
	l.cache.Clear()
	l.refreshStatsLocked()
}

// Load bulk-adds patterns, typically from the persistent store at startup.
func (l *Library) Load(patterns []*TranslationPattern) {
	for _, p := range patterns {
		l.Add(p)
	}
}

// Update applies fn to the stored pattern under the library lock.
func (l *Library) Update(id string, fn func(*TranslationPattern)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.patterns[id]
	if !ok {
		return ErrPatternNotFound
	}
	fn(p)
	p.Confidence = Clamp01(p.Confidence)
	p.SuccessRate = Clamp01(p.SuccessRate)
	l.cache.Clear()
	l.refreshStatsLocked()
	return nil
}

// Remove deletes a pattern by id. Removing an absent id is a no-op and
// reports false.
func (l *Library) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.patterns[id]; !ok {
		return false
	}
	delete(l.patterns, id)
	for i, existing := range l.order {
		if existing == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	l.cache.Clear()
	l.refreshStatsLocked()
	return true
}

// Get returns a copy of a pattern by id. Mutating the result leaves the
// stored pattern untouched.
func (l *Library) Get(id string) (*TranslationPattern, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.patterns[id]
	if !ok {
		return nil, false
	}
	return p.Copy(), true
}

// All returns copies of the patterns in insertion order.
func (l *Library) All() []*TranslationPattern {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*TranslationPattern, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.patterns[id].Copy())
	}
	return out
}

// Len reports the number of stored patterns.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.patterns)
}

// FindMatchingPatterns scores every language-pair candidate against the
// node, discards weak results, and returns at most maxResults matches in
// non-increasing confidence order. Ties keep insertion order.
func (l *Library) FindMatchingPatterns(node *ast.Node, sourceLang, targetLang string, maxResults int) []PatternMatch {
	if node == nil || maxResults <= 0 {
		return nil
	}
	matcher := l.Matcher()

	l.mu.RLock()
	candidates := make([]*TranslationPattern, 0, len(l.order))
	for _, id := range l.order {
		p := l.patterns[id]
		if p.SourceLanguage != sourceLang || p.TargetLanguage != targetLang {
			continue
		}
		if p.SourcePattern.NodeType != string(node.Type) {
			continue
		}
		// Scoring runs outside the lock and reads usage statistics,
		// so candidates must be copied here.
		candidates = append(candidates, p.Copy())
	}
	l.mu.RUnlock()

	matches := make([]PatternMatch, 0, len(candidates))
	for _, p := range candidates {
		match := matcher.Match(p, node)
		if match.Confidence <= 0.1 {
			continue
		}
		matches = append(matches, match)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches
}

// ApplyFeedback performs the synchronous learning update for the pattern
// used by a translation step. Usage always increments; the success rate is
// an incremental mean moved by accept/reject; confidence drifts toward the
// normalized rating when one is present. Later matching in the same session
// reads these mutated statistics, so callers apply this before advancing.
func (l *Library) ApplyFeedback(patternID string, fb Feedback) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.patterns[patternID]
	if !ok {
		return ErrPatternNotFound
	}

	p.UsageCount++
	n := float64(p.UsageCount)
	switch fb.Action {
	case ActionAccept:
		p.SuccessRate = (p.SuccessRate*(n-1) + 1) / n
		l.stats.SuccessfulMatches++
	case ActionReject:
		p.SuccessRate = (p.SuccessRate * (n - 1)) / n
		l.stats.FailedMatches++
	}
	if fb.Rating > 0 {
		p.Confidence = p.Confidence*0.9 + (float64(fb.Rating)/5)*0.1
	}
	p.Confidence = Clamp01(p.Confidence)
	p.SuccessRate = Clamp01(p.SuccessRate)
	p.Metadata.UpdatedAt = l.clock()
	p.Metadata.Performance.Applications++

	// Structural scores do not read usage statistics, so the cache stays
	// valid across learning updates.
	l.refreshStatsLocked()
	return nil
}

// LearningStatistics returns the current aggregate snapshot.
func (l *Library) LearningStatistics() LearningStatistics {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stats
}

// ClearCache invalidates the shared structural-score cache. Required when
// node identities are reused across unrelated ASTs.
func (l *Library) ClearCache() { l.cache.Clear() }

// refreshStatsLocked recomputes derived aggregates. Callers hold the write
// lock.
func (l *Library) refreshStatsLocked() {
	l.stats.TotalPatterns = len(l.patterns)
	if len(l.patterns) == 0 {
		l.stats.AverageConfidence = 0
	} else {
		total := 0.0
		for _, p := range l.patterns {
			total += p.Confidence
		}
		l.stats.AverageConfidence = total / float64(len(l.patterns))
	}
	outcomes := l.stats.SuccessfulMatches + l.stats.FailedMatches
	if outcomes > 0 {
		l.stats.ImprovementRate = float64(l.stats.SuccessfulMatches-l.stats.FailedMatches) / float64(outcomes)
	}
	l.stats.LastUpdated = l.clock()
}
