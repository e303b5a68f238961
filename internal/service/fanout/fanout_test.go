package fanout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"triconnect/internal/channel"
	"triconnect/internal/model"
)

type fakeAudience struct {
	users []*model.User
	err   error
}

func (f *fakeAudience) ListInterestedInSector(_ context.Context, _ string) ([]*model.User, error) {
	return f.users, f.err
}

type fakeLedger struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*model.Notification
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: make(map[int64]*model.Notification)}
}

func (f *fakeLedger) Insert(_ context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	n.ID = f.nextID
	cp := *n
	f.rows[n.ID] = &cp
	return nil
}

func (f *fakeLedger) MarkSent(_ context.Context, id int64, sentAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return errors.New("no such row")
	}
	row.Status = model.NotificationStatusSent
	row.SentAt = &sentAt
	return nil
}

func (f *fakeLedger) MarkFailed(_ context.Context, id int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return errors.New("no such row")
	}
	row.Status = model.NotificationStatusFailed
	row.FailureReason = reason
	return nil
}

func (f *fakeLedger) byStatus(status string) []*model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Notification
	for _, row := range f.rows {
		if row.Status == status {
			out = append(out, row)
		}
	}
	return out
}

type fakeEmail struct {
	mu      sync.Mutex
	sent    []string
	fail    map[string]error
	inWork  int64
	maxSeen int64
	delay   time.Duration
}

func (f *fakeEmail) SendEmail(_ context.Context, to, _, _ string) channel.DeliveryResult {
	cur := atomic.AddInt64(&f.inWork, 1)
	for {
		max := atomic.LoadInt64(&f.maxSeen)
		if cur <= max || atomic.CompareAndSwapInt64(&f.maxSeen, max, cur) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	atomic.AddInt64(&f.inWork, -1)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to)
	if err, ok := f.fail[to]; ok {
		return channel.Failure(err)
	}
	return channel.Success("msg-" + to)
}

func audienceOf(n int, emailPref bool) []*model.User {
	users := make([]*model.User, 0, n)
	for i := 0; i < n; i++ {
		users = append(users, &model.User{
			ID:          int64(i + 1),
			Name:        "User",
			Email:       "user" + strings.Repeat("x", i%3) + "@example.com",
			Preferences: model.NotificationPreferences{Email: emailPref},
		})
	}
	return users
}

func TestAnnounceRecordsRowPerUser(t *testing.T) {
	lg := newFakeLedger()
	em := &fakeEmail{}
	s := NewService(&fakeAudience{users: audienceOf(5, true)}, lg, em, zap.NewNop())

	event := &model.Event{ID: 1, Title: "Expo", Sector: model.SectorIndustry}
	if err := s.Announce(context.Background(), event); err != nil {
		t.Fatalf("Announce() error = %v", err)
	}

	if len(lg.rows) != 5 {
		t.Fatalf("expected 5 ledger rows, got %d", len(lg.rows))
	}
	if got := len(lg.byStatus(model.NotificationStatusSent)); got != 5 {
		t.Fatalf("expected 5 sent rows, got %d", got)
	}
}

func TestAnnounceFailuresDoNotAbortBatch(t *testing.T) {
	users := audienceOf(4, true)
	lg := newFakeLedger()
	em := &fakeEmail{fail: map[string]error{users[1].Email: errors.New("smtp refused")}}
	s := NewService(&fakeAudience{users: users}, lg, em, zap.NewNop())

	event := &model.Event{ID: 1, Title: "Expo", Sector: model.SectorIndustry}
	if err := s.Announce(context.Background(), event); err != nil {
		t.Fatalf("Announce() error = %v", err)
	}

	if len(lg.rows) != 4 {
		t.Fatalf("expected 4 ledger rows regardless of failures, got %d", len(lg.rows))
	}
	failed := lg.byStatus(model.NotificationStatusFailed)
	if len(failed) != 1 {
		t.Fatalf("expected 1 failed row, got %d", len(failed))
	}
	if failed[0].FailureReason == "" {
		t.Error("failed row missing failure_reason")
	}
}

func TestAnnounceDisabledPrefStaysPending(t *testing.T) {
	lg := newFakeLedger()
	em := &fakeEmail{}
	s := NewService(&fakeAudience{users: audienceOf(3, false)}, lg, em, zap.NewNop())

	event := &model.Event{ID: 1, Title: "Expo", Sector: model.SectorCollege}
	if err := s.Announce(context.Background(), event); err != nil {
		t.Fatalf("Announce() error = %v", err)
	}

	if len(em.sent) != 0 {
		t.Fatalf("email pref disabled but %d emails sent", len(em.sent))
	}
	if got := len(lg.byStatus(model.NotificationStatusPending)); got != 3 {
		t.Fatalf("expected 3 pending rows for in-app visibility, got %d", got)
	}
}

func TestAnnounceBoundsConcurrency(t *testing.T) {
	lg := newFakeLedger()
	em := &fakeEmail{delay: 10 * time.Millisecond}
	s := NewService(&fakeAudience{users: audienceOf(20, true)}, lg, em, zap.NewNop()).
		WithMaxConcurrency(3)

	event := &model.Event{ID: 1, Title: "Expo", Sector: model.SectorGovernment}
	if err := s.Announce(context.Background(), event); err != nil {
		t.Fatalf("Announce() error = %v", err)
	}

	if max := atomic.LoadInt64(&em.maxSeen); max > 3 {
		t.Fatalf("observed %d concurrent deliveries, limit is 3", max)
	}
	if len(em.sent) != 20 {
		t.Fatalf("expected 20 deliveries, got %d", len(em.sent))
	}
}

func TestAnnounceAudienceQueryFails(t *testing.T) {
	s := NewService(&fakeAudience{err: errors.New("db down")}, newFakeLedger(), &fakeEmail{}, zap.NewNop())
	if err := s.Announce(context.Background(), &model.Event{Sector: model.SectorIndustry}); err == nil {
		t.Fatal("expected error when audience query fails")
	}
}

func TestExcerpt(t *testing.T) {
	long := strings.Repeat("a", 250)
	if got := Excerpt(long, 200); len([]rune(got)) != 200 {
		t.Errorf("Excerpt length = %d runes, want 200", len([]rune(got)))
	} else if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix, got %q", got[len(got)-6:])
	}
	if got := Excerpt("short", 200); got != "short" {
		t.Errorf("Excerpt(short) = %q", got)
	}
	// 正好等于上限时不截断
	exact := strings.Repeat("a", 200)
	if got := Excerpt(exact, 200); got != exact {
		t.Errorf("Excerpt at exact limit changed the string")
	}
	// 多字节字符不能被截断在中间，省略号也计入上限
	cjk := strings.Repeat("产学研", 100)
	got := Excerpt(cjk, 200)
	if n := len([]rune(got)); n != 200 {
		t.Errorf("Excerpt length = %d runes, want 200", n)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix, got %q", got[len(got)-9:])
	}
	for _, r := range got {
		if r == '�' {
			t.Fatal("excerpt split a multi-byte rune")
		}
	}
}
