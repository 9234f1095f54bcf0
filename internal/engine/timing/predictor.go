// Package timing learns when the user actually reads notifications and
// recommends delivery times. The model is a histogram of interaction
// outcomes keyed by (hour-of-day, day-of-week), updated with running
// averages; buckets are created lazily and never deleted.
package timing

import (
	"sync"
	"time"

	"notifyd/internal/engine/attention"
	"notifyd/internal/model"
)

const (
	// minSamples is the sample count a bucket needs before predictions
	// trust it.
	minSamples = 5
	// hourWindow is how far around the current hour qualifying buckets are
	// searched.
	hourWindow = 2
	// goodRate is the interaction rate above which "now" is a good window.
	goodRate = 0.7
)

// Prediction is a delivery-time recommendation.
type Prediction struct {
	RecommendedAt time.Time
	Confidence    float64
	Reason        string
	Alternatives  []time.Time
}

// BucketStat is one (hour, weekday) aggregate, exported for snapshots.
type BucketStat struct {
	Hour            int           `json:"hour"`
	Day             time.Weekday  `json:"day"`
	InteractionRate float64       `json:"interaction_rate"`
	DismissalRate   float64       `json:"dismissal_rate"`
	AvgReadLatency  time.Duration `json:"avg_read_latency"`
	Samples         int           `json:"samples"`
}

type bucketKey struct {
	hour int
	day  time.Weekday
}

// Predictor is safe for concurrent use.
type Predictor struct {
	mu  sync.Mutex
	now func() time.Time

	buckets map[bucketKey]*BucketStat
}

func New() *Predictor {
	return &Predictor{
		now:     time.Now,
		buckets: map[bucketKey]*BucketStat{},
	}
}

// SetClock overrides the time source (tests).
func (p *Predictor) SetClock(now func() time.Time) {
	p.mu.Lock()
	p.now = now
	p.mu.Unlock()
}

// Predict recommends a delivery time for the notification under the given
// attention snapshot. Decision order: DND end, typing backoff, inactivity
// backoff, learned histogram, active-now, default backoff.
func (p *Predictor) Predict(n model.Notification, att attention.Snapshot) Prediction {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	alts := alternativeTimes(now)

	if att.DoNotDisturb {
		if !att.DNDUntil.IsZero() {
			return Prediction{RecommendedAt: att.DNDUntil, Confidence: 0.95, Reason: "after do-not-disturb", Alternatives: alts}
		}
		// Indefinite DND has no known end; back off and re-check.
		return Prediction{RecommendedAt: now.Add(30 * time.Minute), Confidence: 0.7, Reason: "do-not-disturb backoff", Alternatives: alts}
	}
	if att.State == attention.StateFocused && att.Typing {
		return Prediction{RecommendedAt: now.Add(5 * time.Minute), Confidence: 0.8, Reason: "user is typing", Alternatives: alts}
	}
	if att.State == attention.StateIdle || att.State == attention.StateAway {
		return Prediction{RecommendedAt: now.Add(15 * time.Minute), Confidence: 0.7, Reason: "user is inactive", Alternatives: alts}
	}

	if best := p.bestBucketLocked(now); best != nil {
		if best.InteractionRate > goodRate && best.Hour == now.Hour() {
			return Prediction{
				RecommendedAt: now,
				Confidence:    min(0.9, best.InteractionRate),
				Reason:        "learned high-interaction window",
				Alternatives:  alts,
			}
		}
		return Prediction{
			RecommendedAt: nextOccurrence(now, best.Hour),
			Confidence:    min(0.85, best.InteractionRate),
			Reason:        "learned better window ahead",
			Alternatives:  alts,
		}
	}

	if att.State == attention.StateActive && att.PageVisible {
		return Prediction{RecommendedAt: now, Confidence: 0.6, Reason: "user is active", Alternatives: alts}
	}
	return Prediction{RecommendedAt: now.Add(5 * time.Minute), Confidence: 0.5, Reason: "default backoff", Alternatives: alts}
}

// bestBucketLocked finds the highest-interaction bucket within hourWindow of
// the current hour on today's weekday, requiring minSamples.
func (p *Predictor) bestBucketLocked(now time.Time) *BucketStat {
	var best *BucketStat
	for h := now.Hour() - hourWindow; h <= now.Hour()+hourWindow; h++ {
		if h < 0 || h > 23 {
			continue
		}
		b, ok := p.buckets[bucketKey{hour: h, day: now.Weekday()}]
		if !ok || b.Samples < minSamples {
			continue
		}
		if best == nil || b.InteractionRate > best.InteractionRate {
			best = b
		}
	}
	return best
}

// RecordInteraction feeds one read/dismiss outcome back into the histogram.
func (p *Predictor) RecordInteraction(n model.Notification, interactionTime time.Time, wasRead bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := bucketKey{hour: interactionTime.Hour(), day: interactionTime.Weekday()}
	b, ok := p.buckets[key]
	if !ok {
		b = &BucketStat{Hour: key.hour, Day: key.day}
		p.buckets[key] = b
	}

	read, dismissed := 0.0, 1.0
	if wasRead {
		read, dismissed = 1.0, 0.0
	}
	count := float64(b.Samples)
	b.InteractionRate = (b.InteractionRate*count + read) / (count + 1)
	b.DismissalRate = (b.DismissalRate*count + dismissed) / (count + 1)
	if wasRead && !n.Timestamp.IsZero() {
		latency := interactionTime.Sub(n.Timestamp)
		if latency >= 0 {
			b.AvgReadLatency = time.Duration((float64(b.AvgReadLatency)*count + float64(latency)) / (count + 1))
		}
	}
	b.Samples++
}

// Export returns all buckets for snapshot persistence.
func (p *Predictor) Export() []BucketStat {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]BucketStat, 0, len(p.buckets))
	for _, b := range p.buckets {
		out = append(out, *b)
	}
	return out
}

// Import replaces the histogram with a previously exported one.
func (p *Predictor) Import(stats []BucketStat) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buckets = make(map[bucketKey]*BucketStat, len(stats))
	for _, st := range stats {
		if st.Hour < 0 || st.Hour > 23 || st.Samples < 0 {
			continue
		}
		cp := st
		p.buckets[bucketKey{hour: st.Hour, day: st.Day}] = &cp
	}
}

// Bucket returns a copy of one bucket, if it exists.
func (p *Predictor) Bucket(hour int, day time.Weekday) (BucketStat, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.buckets[bucketKey{hour: hour, day: day}]
	if !ok {
		return BucketStat{}, false
	}
	return *b, true
}

// alternativeTimes suggests up to three of a few fixed daytime hours,
// skipping the current hour. Hours still upcoming today are never displaced
// by ones that already rolled over to tomorrow.
func alternativeTimes(now time.Time) []time.Time {
	hours := []int{9, 12, 15, 18}

	upcoming := 0
	for _, h := range hours {
		if h > now.Hour() {
			upcoming++
		}
	}
	rolled := 3 - upcoming
	if rolled < 0 {
		rolled = 0
	}

	var out []time.Time
	for _, h := range hours {
		if h == now.Hour() || len(out) == 3 {
			continue
		}
		if h <= now.Hour() {
			if rolled == 0 {
				continue
			}
			rolled--
		}
		out = append(out, nextOccurrence(now, h))
	}
	return out
}

// nextOccurrence returns hour:00 today if still upcoming, else tomorrow.
func nextOccurrence(now time.Time, hour int) time.Time {
	at := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !at.After(now) {
		at = at.Add(24 * time.Hour)
	}
	return at
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
