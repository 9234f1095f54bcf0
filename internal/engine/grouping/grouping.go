// Package grouping decides whether related notifications should be folded
// into one collapsed group. Relatedness is a fixed-weight blend of category,
// source, tag and text overlap; text overlap uses a tiny two-document
// TF-IDF restricted to each text's top weighted terms.
package grouping

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"notifyd/internal/model"
)

const (
	// Threshold is the similarity score at or above which two
	// notifications group together.
	Threshold = 0.6

	// closeInTime is the window within which same-category notifications
	// always group.
	closeInTime = 30 * time.Minute

	weightCategory = 0.3
	weightSource   = 0.2
	weightTags     = 0.2
	weightText     = 0.3
)

// Grouper is stateless apart from its clock and may be shared freely.
type Grouper struct {
	now func() time.Time
}

func New() *Grouper {
	return &Grouper{now: time.Now}
}

// SetClock overrides the time source (tests).
func (g *Grouper) SetClock(now func() time.Time) { g.now = now }

// ShouldGroup reports whether a and b belong together. Critical
// notifications never group.
func (g *Grouper) ShouldGroup(a, b model.Notification) bool {
	if a.Priority == model.PriorityCritical || b.Priority == model.PriorityCritical {
		return false
	}
	if a.Category == b.Category && absDuration(a.Timestamp.Sub(b.Timestamp)) <= closeInTime {
		return true
	}
	if a.Source != "" && a.Source == b.Source {
		return true
	}
	return g.Similarity(a, b) >= Threshold
}

// Similarity scores how alike two notifications are, in [0,1].
func (g *Grouper) Similarity(a, b model.Notification) float64 {
	var score float64
	if a.Category == b.Category {
		score += weightCategory
	}
	if a.Source == b.Source {
		score += weightSource
	}
	score += weightTags * jaccard(stringSet(a.Tags), stringSet(b.Tags))
	score += weightText * textSimilarity(a.Title+" "+a.Message, b.Title+" "+b.Message)
	return score
}

// FindRelated filters existing notifications that should group with n,
// most similar first.
func (g *Grouper) FindRelated(n model.Notification, existing []model.Notification) []model.Notification {
	var related []model.Notification
	for _, cand := range existing {
		if cand.ID == n.ID {
			continue
		}
		if g.ShouldGroup(n, cand) {
			related = append(related, cand)
		}
	}
	sort.SliceStable(related, func(i, j int) bool {
		return g.Similarity(n, related[i]) > g.Similarity(n, related[j])
	})
	return related
}

// CreateGroup builds a group from at least one member. Category is the mode
// of member categories, priority the highest member priority, createdAt the
// earliest member timestamp.
func (g *Grouper) CreateGroup(members []model.Notification) model.Group {
	grp := model.Group{
		ID:        uuid.NewString(),
		Category:  modeCategory(members),
		Priority:  highestPriority(members),
		UpdatedAt: g.now(),
		Collapsed: true,
	}
	for i, m := range members {
		grp.MemberIDs = append(grp.MemberIDs, m.ID)
		if i == 0 || m.Timestamp.Before(grp.CreatedAt) {
			grp.CreatedAt = m.Timestamp
		}
	}
	grp.Title = deriveTitle(members, grp.Category)
	return grp
}

// UpdateGroup recomputes the derived fields of grp after membership changed.
// MemberIDs are rebuilt from members; CreatedAt is preserved.
func (g *Grouper) UpdateGroup(grp model.Group, members []model.Notification) model.Group {
	grp.MemberIDs = grp.MemberIDs[:0]
	for _, m := range members {
		grp.MemberIDs = append(grp.MemberIDs, m.ID)
	}
	grp.Category = modeCategory(members)
	grp.Priority = highestPriority(members)
	grp.Title = deriveTitle(members, grp.Category)
	grp.UpdatedAt = g.now()
	return grp
}

func deriveTitle(members []model.Notification, cat model.Category) string {
	n := len(members)
	if src := sharedSource(members); src != "" {
		return plural(n, "notification") + " from " + src
	}
	return categoryTitle(n, cat)
}

func sharedSource(members []model.Notification) string {
	if len(members) == 0 {
		return ""
	}
	src := members[0].Source
	if src == "" {
		return ""
	}
	for _, m := range members[1:] {
		if m.Source != src {
			return ""
		}
	}
	return src
}

func modeCategory(members []model.Notification) model.Category {
	counts := map[model.Category]int{}
	var best model.Category
	bestN := 0
	for _, m := range members {
		counts[m.Category]++
		if counts[m.Category] > bestN {
			best, bestN = m.Category, counts[m.Category]
		}
	}
	return best
}

func highestPriority(members []model.Notification) model.Priority {
	best := model.PriorityLow
	for _, m := range members {
		if m.Priority.Rank() > best.Rank() {
			best = m.Priority
		}
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
