package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"notifyd/internal/engine/attention"
	"notifyd/internal/eventbus"
	"notifyd/internal/model"
	"notifyd/pkg/logx"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// The base is far in the real future so one-shot timers armed from the fake
// clock never fire during a test run.
var testBase = time.Date(2027, 5, 10, 10, 0, 0, 0, time.UTC) // a Monday

func newTestEngine(cfg Config, bus eventbus.Bus) (*Engine, *fakeClock) {
	clk := &fakeClock{t: testBase}
	e := New(cfg, logx.Nop(), bus, nil, nil)
	e.SetClock(clk.now)

	seq := 0
	e.newID = func() string {
		seq++
		return fmt.Sprintf("n%02d", seq)
	}
	return e, clk
}

func drainEvents(ch <-chan eventbus.Event) []eventbus.Event {
	var out []eventbus.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestNotifyValidation(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(Defaults(), nil)

	if _, err := e.Notify(Draft{Title: "  "}); err == nil {
		t.Fatal("expected error for empty title")
	}
	if _, err := e.Notify(Draft{Title: "x", Priority: "urgent"}); err == nil {
		t.Fatal("expected error for unknown priority")
	}
	bad := 1.5
	if _, err := e.Notify(Draft{Title: "x", Urgency: &bad}); err == nil {
		t.Fatal("expected error for out-of-range urgency")
	}
}

func TestNotifyUrgentServerDown(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(Defaults(), nil)

	n, err := e.Notify(Draft{Title: "URGENT: Server down"})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if n.Priority != model.PriorityHigh && n.Priority != model.PriorityCritical {
		t.Fatalf("priority = %q, want high or critical", n.Priority)
	}
	if n.Urgency == nil || *n.Urgency <= 0.5 {
		t.Fatalf("urgency = %v, want > 0.5", n.Urgency)
	}
	if n.Status != model.StatusDelivered {
		t.Fatalf("status = %q, want delivered (user active)", n.Status)
	}
}

func TestNotifyDefaults(t *testing.T) {
	t.Parallel()
	cfg := Defaults()
	cfg.AIScoring = false
	cfg.Batching = false
	e, _ := newTestEngine(cfg, nil)

	n, err := e.Notify(Draft{Title: "hello", Category: "carrier-pigeon"})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if n.Category != model.CategoryCustom {
		t.Fatalf("category = %q, want custom for unknown input", n.Category)
	}
	if n.Priority != model.PriorityMedium {
		t.Fatalf("priority = %q, want configured default", n.Priority)
	}
	if n.Urgency != nil {
		t.Fatal("urgency should stay unset with scoring disabled")
	}
}

func TestEventOrdering(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(32)
	defer unsub()

	e, _ := newTestEngine(Defaults(), bus)
	n, err := e.Notify(Draft{Title: "ping", Priority: model.PriorityMedium})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	evs := drainEvents(ch)
	if len(evs) < 2 {
		t.Fatalf("events = %d, want at least created+delivered", len(evs))
	}
	if evs[0].Type != eventbus.EventCreated || evs[1].Type != eventbus.EventDelivered {
		t.Fatalf("event order = [%s %s], want [created delivered]", evs[0].Type, evs[1].Type)
	}
	data, ok := evs[0].Data.(EventData)
	if !ok || data.NotificationID != n.ID {
		t.Fatalf("event data = %+v", evs[0].Data)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(Defaults(), nil)

	n, err := e.Notify(Draft{Title: "note", Priority: model.PriorityMedium})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if n.Status != model.StatusDelivered {
		t.Fatalf("status = %q", n.Status)
	}

	if !e.MarkAsRead(n.ID) {
		t.Fatal("MarkAsRead should succeed on delivered")
	}
	if e.MarkAsRead(n.ID) {
		t.Fatal("MarkAsRead must not repeat on read")
	}
	if e.Dismiss(n.ID) {
		t.Fatal("Dismiss must not move backward from read")
	}

	got, ok := e.Get(n.ID)
	if !ok || got.Status != model.StatusRead || got.ReadAt == nil {
		t.Fatalf("notification = %+v", got)
	}

	// Unknown ids are no-ops, never errors.
	if e.Dismiss("no-such-id") || e.MarkAsRead("no-such-id") || e.Remove("no-such-id") {
		t.Fatal("unknown id operations must return false")
	}
}

func TestDoNotDisturbWindow(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(Defaults(), nil)
	e.SetDoNotDisturb(true, time.Time{})

	crit, err := e.Notify(Draft{Title: "disk failure", Priority: model.PriorityCritical})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if crit.Status != model.StatusDelivered {
		t.Fatalf("critical status = %q, want delivered despite DND", crit.Status)
	}

	med, err := e.Notify(Draft{Title: "weekly summary ready", Priority: model.PriorityMedium})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if med.Status != model.StatusScheduled {
		t.Fatalf("medium status = %q, want scheduled under DND", med.Status)
	}
	if med.Scheduled == nil || !med.Scheduled.After(testBase) {
		t.Fatalf("scheduled time = %v", med.Scheduled)
	}
}

func TestScheduledDismissIsNotRedelivered(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(Defaults(), nil)
	e.SetDoNotDisturb(true, time.Time{})

	n, err := e.Notify(Draft{Title: "later", Priority: model.PriorityMedium})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if n.Status != model.StatusScheduled {
		t.Fatalf("status = %q", n.Status)
	}
	if !e.Dismiss(n.ID) {
		t.Fatal("Dismiss on scheduled should succeed")
	}

	// A stale timer firing after dismissal must be a no-op.
	e.fireScheduled(n.ID)

	got, _ := e.Get(n.ID)
	if got.Status != model.StatusDismissed {
		t.Fatalf("status after stale timer = %q, want dismissed", got.Status)
	}
}

func TestSnooze(t *testing.T) {
	t.Parallel()
	e, clk := newTestEngine(Defaults(), nil)
	e.SetDoNotDisturb(true, time.Time{})

	n, _ := e.Notify(Draft{Title: "standup", Priority: model.PriorityMedium})
	if !e.Snooze(n.ID, time.Hour) {
		t.Fatal("Snooze on scheduled should succeed")
	}
	got, _ := e.Get(n.ID)
	if got.Scheduled == nil || !got.Scheduled.Equal(clk.now().Add(time.Hour)) {
		t.Fatalf("scheduled = %v, want +1h", got.Scheduled)
	}

	e.SetDoNotDisturb(false, time.Time{})
	d, _ := e.Notify(Draft{Title: "done", Priority: model.PriorityMedium})
	if e.Snooze(d.ID, time.Hour) {
		t.Fatal("Snooze on delivered must be a no-op")
	}
	if e.Snooze(n.ID, 0) {
		t.Fatal("Snooze with non-positive duration must be a no-op")
	}
}

func TestBatchingFillsToSize(t *testing.T) {
	t.Parallel()
	cfg := Defaults()
	cfg.MaxBatchSize = 5
	e, clk := newTestEngine(cfg, nil)

	var ids []string
	for i := 0; i < 4; i++ {
		n, err := e.Notify(Draft{
			Title:    fmt.Sprintf("digest item %d", i),
			Category: model.CategoryUpdate,
			Priority: model.PriorityLow,
		})
		if err != nil {
			t.Fatalf("Notify: %v", err)
		}
		if n.Status != model.StatusBatched {
			t.Fatalf("item %d status = %q, want batched", i, n.Status)
		}
		ids = append(ids, n.ID)
		clk.advance(time.Second)
	}

	last, err := e.Notify(Draft{
		Title:    "digest item 4",
		Category: model.CategoryUpdate,
		Priority: model.PriorityLow,
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	ids = append(ids, last.ID)

	for _, id := range ids {
		got, ok := e.Get(id)
		if !ok || got.Status != model.StatusDelivered {
			t.Fatalf("id %s status = %q, want delivered after size threshold", id, got.Status)
		}
	}
	if e.Stats().PendingBatches != 0 {
		t.Fatal("batch must be removed after delivery")
	}
}

func TestBatchTimerFlushExactlyOnce(t *testing.T) {
	t.Parallel()
	cfg := Defaults()
	cfg.BatchInterval = 50 * time.Millisecond
	cfg.Grouping = false

	bus := eventbus.New()
	ch, unsub := bus.Subscribe(64)
	defer unsub()

	// Real clock: the batch timer has to actually fire.
	e := New(cfg, logx.Nop(), bus, nil, nil)

	a, _ := e.Notify(Draft{Title: "drip one", Category: model.CategorySocial, Priority: model.PriorityLow})
	b, _ := e.Notify(Draft{Title: "drip two", Category: model.CategorySocial, Priority: model.PriorityLow})

	deadline := time.Now().Add(2 * time.Second)
	for {
		ga, _ := e.Get(a.ID)
		gb, _ := e.Get(b.ID)
		if ga.Status == model.StatusDelivered && gb.Status == model.StatusDelivered {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("batch never flushed: %q %q", ga.Status, gb.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	flushed := 0
	for _, ev := range drainEvents(ch) {
		if ev.Type == eventbus.EventBatchFlushed {
			flushed++
		}
	}
	if flushed != 1 {
		t.Fatalf("batch.flushed events = %d, want exactly 1", flushed)
	}
}

func TestBatchFullGroupsMembersOnce(t *testing.T) {
	t.Parallel()
	cfg := Defaults()
	cfg.MaxBatchSize = 2
	e, clk := newTestEngine(cfg, nil)

	a, _ := e.Notify(Draft{Title: "nightly build 1", Category: model.CategoryUpdate, Priority: model.PriorityLow, Source: "ci"})
	clk.advance(time.Second)
	b, _ := e.Notify(Draft{Title: "nightly build 2", Category: model.CategoryUpdate, Priority: model.PriorityLow, Source: "ci"})

	for _, id := range []string{a.ID, b.ID} {
		got, _ := e.Get(id)
		if got.Status != model.StatusDelivered {
			t.Fatalf("id %s status = %q, want delivered after full batch", id, got.Status)
		}
	}

	// The flushed batch folds into exactly one group; the grouping policy
	// running afterwards must not append the new member a second time.
	groups := e.Groups()
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	g := groups[0]
	if len(g.MemberIDs) != 2 {
		t.Fatalf("members = %v, want exactly [%s %s]", g.MemberIDs, a.ID, b.ID)
	}
	seen := map[string]bool{}
	for _, id := range g.MemberIDs {
		if seen[id] {
			t.Fatalf("duplicate member %s in %v", id, g.MemberIDs)
		}
		seen[id] = true
	}
	if g.Title != "2 notifications from ci" {
		t.Fatalf("title = %q", g.Title)
	}
}

func TestCriticalNeverDeferred(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(Defaults(), nil)

	// Worst case for deferral: DND on and page hidden.
	e.SetDoNotDisturb(true, time.Time{})
	e.OnActivity(attention.Signal{Kind: attention.SignalBlur})

	n, err := e.Notify(Draft{Title: "pager", Priority: model.PriorityCritical})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if n.Status != model.StatusDelivered {
		t.Fatalf("critical status = %q, want delivered", n.Status)
	}
}

func TestGroupingThreeFromSameSource(t *testing.T) {
	t.Parallel()
	e, clk := newTestEngine(Defaults(), nil)

	var ids []string
	for i := 0; i < 3; i++ {
		n, err := e.Notify(Draft{
			Title:    fmt.Sprintf("new message %d", i),
			Category: model.CategoryMessage,
			Priority: model.PriorityMedium,
			Source:   "inbox",
		})
		if err != nil {
			t.Fatalf("Notify: %v", err)
		}
		ids = append(ids, n.ID)
		clk.advance(time.Minute)
	}

	groups := e.Groups()
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want exactly 1", len(groups))
	}
	g := groups[0]
	if len(g.MemberIDs) != 3 {
		t.Fatalf("members = %d, want 3", len(g.MemberIDs))
	}
	if g.Title != "3 notifications from inbox" {
		t.Fatalf("title = %q", g.Title)
	}
	if !g.Collapsed {
		t.Fatal("new groups start collapsed")
	}
	for _, id := range ids {
		n, _ := e.Get(id)
		if n.GroupID != g.ID {
			t.Fatalf("member %s group = %q, want %q", id, n.GroupID, g.ID)
		}
	}

	// A fourth related notification joins the existing group.
	n4, _ := e.Notify(Draft{
		Title:    "new message 3",
		Category: model.CategoryMessage,
		Priority: model.PriorityMedium,
		Source:   "inbox",
	})
	g2, ok := e.Group(g.ID)
	if !ok || len(g2.MemberIDs) != 4 {
		t.Fatalf("group after join = %+v", g2)
	}
	if n4.GroupID != g.ID {
		t.Fatalf("fourth member group = %q", n4.GroupID)
	}
	if g2.Title != "4 notifications from inbox" {
		t.Fatalf("title after join = %q", g2.Title)
	}
}

func TestGroupShrinksOnRemove(t *testing.T) {
	t.Parallel()
	e, clk := newTestEngine(Defaults(), nil)

	var ids []string
	for i := 0; i < 3; i++ {
		n, _ := e.Notify(Draft{
			Title:    fmt.Sprintf("build %d failed", i),
			Category: model.CategoryAlert,
			Priority: model.PriorityMedium,
			Source:   "ci",
		})
		ids = append(ids, n.ID)
		clk.advance(time.Second)
	}
	groups := e.Groups()
	if len(groups) != 1 {
		t.Fatalf("groups = %d", len(groups))
	}

	if !e.Remove(ids[0]) {
		t.Fatal("Remove should succeed")
	}
	g, ok := e.Group(groups[0].ID)
	if !ok || len(g.MemberIDs) != 2 {
		t.Fatalf("group after remove = %+v", g)
	}
	if g.Title != "2 notifications from ci" {
		t.Fatalf("title = %q", g.Title)
	}
}

func TestCleanupExpiryAndTrim(t *testing.T) {
	t.Parallel()
	cfg := Defaults()
	cfg.Grouping = false
	cfg.Batching = false
	cfg.MaxNotifications = 3
	e, clk := newTestEngine(cfg, nil)

	past := clk.now().Add(-time.Minute)
	gone, err := e.Notify(Draft{Title: "stale offer", Priority: model.PriorityMedium, ExpiresAt: &past})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if _, ok := e.Get(gone.ID); ok {
		t.Fatal("expired notification should be dropped by cleanup")
	}

	var ids []string
	for i := 0; i < 5; i++ {
		n, _ := e.Notify(Draft{Title: fmt.Sprintf("note %d", i), Priority: model.PriorityMedium})
		ids = append(ids, n.ID)
		clk.advance(time.Second)
	}
	if got := e.Stats().Total; got != 3 {
		t.Fatalf("total = %d, want trimmed to 3", got)
	}
	for _, id := range ids[:2] {
		if _, ok := e.Get(id); ok {
			t.Fatalf("oldest %s should have been trimmed", id)
		}
	}
	for _, id := range ids[2:] {
		if _, ok := e.Get(id); !ok {
			t.Fatalf("newest %s should survive", id)
		}
	}
}

func TestDismissedExpireAfterWindow(t *testing.T) {
	t.Parallel()
	cfg := Defaults()
	cfg.Grouping = false
	cfg.Batching = false
	cfg.ExpirationTime = time.Hour
	e, clk := newTestEngine(cfg, nil)

	n, _ := e.Notify(Draft{Title: "old news", Priority: model.PriorityMedium})
	if !e.Dismiss(n.ID) {
		t.Fatal("Dismiss should succeed")
	}

	clk.advance(2 * time.Hour)
	e.Sweep()

	if _, ok := e.Get(n.ID); ok {
		t.Fatal("dismissed notification should expire after the window")
	}
}

func TestLearningFeedsTimingHistogram(t *testing.T) {
	t.Parallel()
	cfg := Defaults()
	cfg.Grouping = false
	e, clk := newTestEngine(cfg, nil)

	n, _ := e.Notify(Draft{Title: "read me", Priority: model.PriorityMedium})
	clk.advance(30 * time.Second)
	if !e.MarkAsRead(n.ID) {
		t.Fatal("MarkAsRead should succeed")
	}

	b, ok := e.predictor.Bucket(testBase.Hour(), testBase.Weekday())
	if !ok {
		t.Fatal("interaction should create the (hour, day) bucket")
	}
	if b.Samples != 1 || b.InteractionRate != 1.0 {
		t.Fatalf("bucket = %+v", b)
	}
	if b.AvgReadLatency != 30*time.Second {
		t.Fatalf("latency = %v, want 30s", b.AvgReadLatency)
	}
}

func TestMarkAllAsReadAndStats(t *testing.T) {
	t.Parallel()
	cfg := Defaults()
	cfg.Grouping = false
	e, _ := newTestEngine(cfg, nil)

	for i := 0; i < 3; i++ {
		if _, err := e.Notify(Draft{Title: fmt.Sprintf("m%d", i), Priority: model.PriorityMedium, Category: model.CategoryMessage}); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}

	s := e.Stats()
	if s.Total != 3 || s.Unread != 3 || s.ByCategory[model.CategoryMessage] != 3 {
		t.Fatalf("stats = %+v", s)
	}

	if got := e.MarkAllAsRead(); got != 3 {
		t.Fatalf("MarkAllAsRead = %d, want 3", got)
	}
	s = e.Stats()
	if s.Unread != 0 || s.ByStatus[model.StatusRead] != 3 {
		t.Fatalf("stats after read-all = %+v", s)
	}

	e.ClearAll()
	if s := e.Stats(); s.Total != 0 || s.Groups != 0 {
		t.Fatalf("stats after clear = %+v", s)
	}
}

func TestListFilters(t *testing.T) {
	t.Parallel()
	cfg := Defaults()
	cfg.Grouping = false
	e, clk := newTestEngine(cfg, nil)

	a, _ := e.Notify(Draft{Title: "alert", Category: model.CategoryAlert, Priority: model.PriorityHigh})
	clk.advance(time.Second)
	b, _ := e.Notify(Draft{Title: "social ping", Category: model.CategorySocial, Priority: model.PriorityLow})
	clk.advance(time.Second)
	e.MarkAsRead(a.ID)

	all := e.List(Filter{})
	if len(all) != 2 || all[0].ID != b.ID {
		t.Fatalf("list = %+v, want newest first", all)
	}
	if got := e.List(Filter{Category: model.CategoryAlert}); len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("category filter = %+v", got)
	}
	if got := e.List(Filter{Unread: true}); len(got) != 1 || got[0].ID != b.ID {
		t.Fatalf("unread filter = %+v", got)
	}
	if got := e.List(Filter{Limit: 1}); len(got) != 1 {
		t.Fatalf("limit = %+v", got)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	t.Parallel()
	cfg := Defaults()
	cfg.Grouping = false
	src, clk := newTestEngine(cfg, nil)

	a, _ := src.Notify(Draft{Title: "first", Priority: model.PriorityMedium, Category: model.CategoryMessage})
	clk.advance(time.Minute)
	b, _ := src.Notify(Draft{Title: "second", Priority: model.PriorityMedium, Category: model.CategoryAlert})
	src.MarkAsRead(a.ID)

	data, err := src.ExportData()
	if err != nil {
		t.Fatalf("ExportData: %v", err)
	}

	dst, _ := newTestEngine(cfg, nil)
	if err := dst.ImportData(data); err != nil {
		t.Fatalf("ImportData: %v", err)
	}

	for _, want := range []model.Notification{a, b} {
		got, ok := dst.Get(want.ID)
		if !ok {
			t.Fatalf("missing %s after import", want.ID)
		}
		if !got.Timestamp.Equal(want.Timestamp) {
			t.Fatalf("timestamp %v != %v", got.Timestamp, want.Timestamp)
		}
	}
	if got, _ := dst.Get(a.ID); got.Status != model.StatusRead {
		t.Fatalf("status = %q, want read preserved", got.Status)
	}

	// Learned timing state transfers too.
	sb, ok := src.predictor.Bucket(testBase.Hour(), testBase.Weekday())
	if !ok {
		t.Fatal("source bucket missing")
	}
	db, ok := dst.predictor.Bucket(testBase.Hour(), testBase.Weekday())
	if !ok || db != sb {
		t.Fatalf("bucket = %+v, want %+v", db, sb)
	}

	if err := dst.ImportData([]byte("{oops")); err == nil {
		t.Fatal("expected error for malformed snapshot")
	}
	if err := dst.ImportData([]byte(`{"schema": 99}`)); err == nil || !strings.Contains(err.Error(), "schema") {
		t.Fatalf("err = %v, want schema rejection", err)
	}
}

func TestApplyHotReload(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(Defaults(), nil)

	n, _ := e.Notify(Draft{Title: "queued", Category: model.CategoryUpdate, Priority: model.PriorityLow})
	if n.Status != model.StatusBatched {
		t.Fatalf("status = %q, want batched before reload", n.Status)
	}

	cfg := Defaults()
	cfg.Batching = false
	e.Apply(cfg)

	m, _ := e.Notify(Draft{Title: "direct", Category: model.CategoryUpdate, Priority: model.PriorityLow})
	if m.Status != model.StatusDelivered {
		t.Fatalf("status = %q, want delivered after batching disabled", m.Status)
	}
}

func TestStoppedEngineRejectsNotify(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(Defaults(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	e.Stop(ctx)

	if _, err := e.Notify(Draft{Title: "late"}); err != ErrStopped {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestStopCancelsArmedTimers(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(Defaults(), nil)
	e.SetDoNotDisturb(true, time.Time{})

	// Timers are armed by Notify even without Start.
	n, err := e.Notify(Draft{Title: "pending restart", Priority: model.PriorityMedium})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if n.Status != model.StatusScheduled {
		t.Fatalf("status = %q, want scheduled", n.Status)
	}
	if e.timers.PendingTimers() == 0 {
		t.Fatal("delivery timer should be armed before Stop")
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	e.Stop(ctx)
	if got := e.timers.PendingTimers(); got != 0 {
		t.Fatalf("pending timers after Stop = %d, want 0", got)
	}

	// A callback that already passed timer cancellation must see the stop
	// and not deliver.
	e.fireScheduled(n.ID)
	if got, _ := e.Get(n.ID); got.Status != model.StatusScheduled {
		t.Fatalf("status after late fire = %q, want unchanged", got.Status)
	}
}
