// Package urgency estimates how time-critical a notification is from its
// text and metadata. Scoring is a fixed-weight heuristic plus a small online
// vocabulary-expansion loop; there is no statistical model.
package urgency

import (
	"strings"
	"sync"
	"time"
	"unicode"

	"notifyd/internal/model"
)

const (
	weightKeyword    = 0.40
	weightSentiment  = 0.20
	weightTime       = 0.25
	weightContextual = 0.15

	maxSamples        = 1000
	maxLearnedWords   = 50
	trainPromoteAbove = 0.7
)

// Result is the outcome of analyzing one notification.
type Result struct {
	Score             float64
	Confidence        float64
	SuggestedPriority model.Priority
	MatchedKeywords   []string
}

type sample struct {
	Text    string    `json:"text"`
	Urgency float64   `json:"urgency"`
	At      time.Time `json:"at"`
}

// Scorer is safe for concurrent use.
type Scorer struct {
	mu  sync.RWMutex
	now func() time.Time

	critical map[string]struct{}
	high     map[string]struct{}
	medium   map[string]struct{}
	low      map[string]struct{}

	timePressure map[string]struct{}
	negative     map[string]struct{}
	positive     map[string]struct{}

	// learned preserves insertion order so the oldest learned word is evicted
	// first when the bound is hit.
	learned []string

	samples []sample
}

func New() *Scorer {
	return &Scorer{
		now:          time.Now,
		critical:     wordSet("urgent", "critical", "emergency", "immediately", "asap", "breach", "outage", "down", "failure", "failed", "severe"),
		high:         wordSet("important", "warning", "attention", "required", "action", "alert", "deadline", "expires", "overdue", "security", "error"),
		medium:       wordSet("update", "reminder", "scheduled", "ready", "available", "complete", "pending", "review"),
		low:          wordSet("newsletter", "digest", "promotion", "offer", "sale", "weekly", "social", "suggestion", "liked", "followed"),
		timePressure: wordSet("now", "today", "tonight", "immediately", "asap", "urgent", "deadline", "expires", "expiring", "minutes", "hurry"),
		negative:     wordSet("fail", "failed", "failure", "error", "problem", "broken", "down", "lost", "wrong", "denied", "rejected", "crash"),
		positive:     wordSet("success", "successful", "completed", "resolved", "fixed", "approved", "welcome", "congrats", "congratulations", "thanks"),
	}
}

func wordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// SetClock overrides the time source (tests).
func (s *Scorer) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Analyze scores a notification. Score is in [0,1], confidence in [0.3,1.0].
func (s *Scorer) Analyze(n model.Notification) Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	words := tokenize(n.Title + " " + n.Message)

	kw, matched := s.keywordScore(words)
	sent := s.sentimentScore(words)
	tr := s.timeRelevanceScore(words, n.ExpiresAt)
	ctx := s.contextualScore(n)

	score := clamp01(kw*weightKeyword + sent*weightSentiment + tr*weightTime + ctx*weightContextual)

	return Result{
		Score:             score,
		Confidence:        s.confidence(len(matched)),
		SuggestedPriority: priorityFor(score),
		MatchedKeywords:   matched,
	}
}

// Train records an observed (text, urgency) outcome. High-urgency samples
// promote novel long words into the high-keyword vocabulary.
func (s *Scorer) Train(n model.Notification, actualUrgency float64) {
	actualUrgency = clamp01(actualUrgency)
	text := strings.TrimSpace(n.Title + " " + n.Message)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples = append(s.samples, sample{Text: text, Urgency: actualUrgency, At: s.now()})
	if len(s.samples) > maxSamples {
		s.samples = s.samples[len(s.samples)-maxSamples:]
	}

	if actualUrgency <= trainPromoteAbove {
		return
	}
	for _, w := range tokenize(text) {
		if len(w) <= 4 {
			continue
		}
		if s.known(w) {
			continue
		}
		s.high[w] = struct{}{}
		s.learned = append(s.learned, w)
		if len(s.learned) > maxLearnedWords {
			evicted := s.learned[0]
			s.learned = s.learned[1:]
			delete(s.high, evicted)
		}
	}
}

// SampleCount returns the number of retained training samples.
func (s *Scorer) SampleCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}

// LearnedKeywords returns the promoted vocabulary, oldest first.
func (s *Scorer) LearnedKeywords() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.learned...)
}

// SetLearnedKeywords replaces the promoted vocabulary (import path).
func (s *Scorer) SetLearnedKeywords(words []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.learned {
		delete(s.high, w)
	}
	s.learned = s.learned[:0]
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || s.known(w) {
			continue
		}
		s.high[w] = struct{}{}
		s.learned = append(s.learned, w)
		if len(s.learned) >= maxLearnedWords {
			break
		}
	}
}

func (s *Scorer) known(w string) bool {
	if _, ok := s.critical[w]; ok {
		return true
	}
	if _, ok := s.high[w]; ok {
		return true
	}
	if _, ok := s.medium[w]; ok {
		return true
	}
	_, ok := s.low[w]
	return ok
}

// keywordScore: baseline 0.3, bumped per keyword class hit, clamped to [0,1].
func (s *Scorer) keywordScore(words []string) (float64, []string) {
	score := 0.3
	var matched []string
	for _, w := range words {
		switch {
		case member(s.critical, w):
			score += 0.15
			matched = append(matched, w)
		case member(s.high, w):
			score += 0.10
			matched = append(matched, w)
		case member(s.medium, w):
			score += 0.05
			matched = append(matched, w)
		case member(s.low, w):
			score -= 0.10
			matched = append(matched, w)
		}
	}
	return clamp01(score), matched
}

func (s *Scorer) sentimentScore(words []string) float64 {
	var neg, pos int
	for _, w := range words {
		if member(s.negative, w) {
			neg++
		}
		if member(s.positive, w) {
			pos++
		}
	}
	switch {
	case neg > pos:
		return 0.7
	case pos > neg:
		return 0.4
	default:
		return 0.5
	}
}

func (s *Scorer) timeRelevanceScore(words []string, expiresAt *time.Time) float64 {
	for _, w := range words {
		if member(s.timePressure, w) {
			return 0.8
		}
	}
	if expiresAt == nil {
		return 0.3
	}
	until := expiresAt.Sub(s.now())
	switch {
	case until < time.Hour:
		return 0.9
	case until < 6*time.Hour:
		return 0.7
	case until < 24*time.Hour:
		return 0.5
	default:
		return 0.3
	}
}

func (s *Scorer) contextualScore(n model.Notification) float64 {
	score := 0.5
	switch n.Category {
	case model.CategoryAlert:
		score += 0.3
	case model.CategoryMessage:
		score += 0.2
	case model.CategoryReminder:
		score += 0.1
	case model.CategorySocial:
		score -= 0.1
	}
	switch n.Priority {
	case model.PriorityCritical:
		score += 0.4
	case model.PriorityHigh:
		score += 0.2
	case model.PriorityLow:
		score -= 0.2
	}
	if len(n.Actions) > 0 {
		score += 0.1
	}
	return clamp01(score)
}

// confidence grows with keyword matches, capped at 0.9, with a +0.1 bonus
// once enough training samples have accumulated. Floor is 0.3.
func (s *Scorer) confidence(matches int) float64 {
	c := 0.3 + 0.1*float64(matches)
	if c > 0.9 {
		c = 0.9
	}
	if len(s.samples) >= 100 {
		c += 0.1
	}
	if c > 1.0 {
		c = 1.0
	}
	return c
}

func priorityFor(score float64) model.Priority {
	switch {
	case score >= 0.75:
		return model.PriorityCritical
	case score >= 0.55:
		return model.PriorityHigh
	case score >= 0.35:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

func member(set map[string]struct{}, w string) bool {
	_, ok := set[w]
	return ok
}

func tokenize(text string) []string {
	text = strings.ToLower(text)
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
