package grouping

import (
	"testing"
	"time"

	"notifyd/internal/model"
)

var groupBase = time.Date(2026, 5, 11, 10, 0, 0, 0, time.UTC)

func notif(id string, cat model.Category, prio model.Priority, src, title string, at time.Time) model.Notification {
	return model.Notification{
		ID:        id,
		Category:  cat,
		Priority:  prio,
		Source:    src,
		Title:     title,
		Timestamp: at,
	}
}

func TestShouldGroup(t *testing.T) {
	t.Parallel()
	g := New()

	tests := []struct {
		name string
		a, b model.Notification
		want bool
	}{
		{
			name: "critical never groups",
			a:    notif("a", model.CategoryAlert, model.PriorityCritical, "ops", "server down", groupBase),
			b:    notif("b", model.CategoryAlert, model.PriorityMedium, "ops", "server down", groupBase),
			want: false,
		},
		{
			name: "same category close in time",
			a:    notif("a", model.CategoryMessage, model.PriorityMedium, "", "hi there", groupBase),
			b:    notif("b", model.CategoryMessage, model.PriorityMedium, "", "totally unrelated text", groupBase.Add(10*time.Minute)),
			want: true,
		},
		{
			name: "same category far apart, different text",
			a:    notif("a", model.CategoryMessage, model.PriorityMedium, "", "quarterly numbers attached", groupBase),
			b:    notif("b", model.CategoryMessage, model.PriorityMedium, "", "lunch on thursday instead", groupBase.Add(2*time.Hour)),
			want: false,
		},
		{
			name: "same source always groups",
			a:    notif("a", model.CategoryMessage, model.PriorityMedium, "inbox", "one", groupBase),
			b:    notif("b", model.CategoryUpdate, model.PriorityLow, "inbox", "two", groupBase.Add(3*time.Hour)),
			want: true,
		},
		{
			name: "empty sources are not a source match",
			a:    notif("a", model.CategoryMessage, model.PriorityMedium, "", "alpha beta gamma", groupBase),
			b:    notif("b", model.CategoryUpdate, model.PriorityLow, "", "delta epsilon zeta", groupBase.Add(3*time.Hour)),
			want: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := g.ShouldGroup(tt.a, tt.b); got != tt.want {
				t.Fatalf("ShouldGroup = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSimilarityReflexive(t *testing.T) {
	t.Parallel()
	g := New()

	n := notif("a", model.CategoryMessage, model.PriorityMedium, "inbox", "build failed on main", groupBase)
	n.Message = "the nightly build failed with a linker error"
	n.Tags = []string{"ci", "build"}

	clone := n.Clone()
	clone.ID = "b"
	if got := g.Similarity(n, clone); got < Threshold {
		t.Fatalf("Similarity(n, clone) = %v, want >= %v", got, Threshold)
	}
}

func TestSimilarityDisjoint(t *testing.T) {
	t.Parallel()
	g := New()

	a := notif("a", model.CategoryAlert, model.PriorityMedium, "ops", "disk pressure on node four", groupBase)
	b := notif("b", model.CategorySocial, model.PriorityLow, "feed", "someone liked your photo", groupBase)
	b.Tags = []string{"social"}
	a.Tags = []string{"infra"}

	if got := g.Similarity(a, b); got >= Threshold {
		t.Fatalf("Similarity = %v, want < %v", got, Threshold)
	}
}

func TestFindRelatedSorted(t *testing.T) {
	t.Parallel()
	g := New()

	n := notif("n", model.CategoryMessage, model.PriorityMedium, "inbox", "deploy finished", groupBase)
	near := notif("x", model.CategoryMessage, model.PriorityMedium, "inbox", "deploy finished for api", groupBase.Add(time.Minute))
	far := notif("y", model.CategoryMessage, model.PriorityMedium, "inbox", "completely different topic", groupBase.Add(2*time.Minute))
	unrelated := notif("z", model.CategoryAlert, model.PriorityCritical, "pager", "fire", groupBase)

	related := g.FindRelated(n, []model.Notification{far, unrelated, near})
	if len(related) != 2 {
		t.Fatalf("len(related) = %d, want 2", len(related))
	}
	if related[0].ID != "x" {
		t.Fatalf("most similar first, got %q", related[0].ID)
	}
}

func TestCreateGroup(t *testing.T) {
	t.Parallel()
	g := New()
	now := groupBase.Add(time.Hour)
	g.SetClock(func() time.Time { return now })

	members := []model.Notification{
		notif("a", model.CategoryMessage, model.PriorityLow, "inbox", "one", groupBase.Add(2*time.Minute)),
		notif("b", model.CategoryMessage, model.PriorityHigh, "inbox", "two", groupBase),
		notif("c", model.CategoryUpdate, model.PriorityMedium, "inbox", "three", groupBase.Add(time.Minute)),
	}

	grp := g.CreateGroup(members)
	if grp.ID == "" {
		t.Fatal("group id missing")
	}
	if grp.Title != "3 notifications from inbox" {
		t.Fatalf("title = %q", grp.Title)
	}
	if grp.Category != model.CategoryMessage {
		t.Fatalf("category = %q, want mode message", grp.Category)
	}
	if grp.Priority != model.PriorityHigh {
		t.Fatalf("priority = %q, want high", grp.Priority)
	}
	if !grp.CreatedAt.Equal(groupBase) {
		t.Fatalf("createdAt = %v, want earliest member %v", grp.CreatedAt, groupBase)
	}
	if !grp.UpdatedAt.Equal(now) {
		t.Fatalf("updatedAt = %v, want %v", grp.UpdatedAt, now)
	}
	if !grp.Collapsed {
		t.Fatal("groups start collapsed")
	}
	if len(grp.MemberIDs) != 3 {
		t.Fatalf("members = %d, want 3", len(grp.MemberIDs))
	}
}

func TestCreateGroupCategoryTitle(t *testing.T) {
	t.Parallel()
	g := New()

	members := []model.Notification{
		notif("a", model.CategoryAlert, model.PriorityMedium, "ops", "one", groupBase),
		notif("b", model.CategoryAlert, model.PriorityMedium, "pager", "two", groupBase),
	}
	grp := g.CreateGroup(members)
	if grp.Title != "2 alerts" {
		t.Fatalf("title = %q, want \"2 alerts\"", grp.Title)
	}
}
