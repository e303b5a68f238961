package registration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"triconnect/internal/channel"
	"triconnect/internal/model"
)

type fakeRegStore struct {
	nextID    int64
	created   []*model.Registration
	createErr error
	flags     map[int64]model.SentFlags
	calIDs    map[int64]string
	statuses  map[int64]string
}

func newFakeRegStore() *fakeRegStore {
	return &fakeRegStore{
		flags:    make(map[int64]model.SentFlags),
		calIDs:   make(map[int64]string),
		statuses: make(map[int64]string),
	}
}

func (f *fakeRegStore) Create(_ context.Context, reg *model.Registration) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	reg.ID = f.nextID
	reg.RegisteredAt = time.Now()
	f.created = append(f.created, reg)
	return nil
}

func (f *fakeRegStore) FindByUserAndEvent(_ context.Context, userID, eventID int64) (*model.Registration, error) {
	for _, reg := range f.created {
		if reg.UserID == userID && reg.EventID == eventID {
			return reg, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeRegStore) UpdateStatus(_ context.Context, id int64, status string) error {
	f.statuses[id] = status
	return nil
}

func (f *fakeRegStore) UpdateSentFlags(_ context.Context, id int64, flags model.SentFlags) error {
	f.flags[id] = flags
	return nil
}

func (f *fakeRegStore) SetCalendarEventID(_ context.Context, id int64, calendarEventID string) error {
	f.calIDs[id] = calendarEventID
	return nil
}

type fakeEventStore struct {
	events map[int64]*model.Event
}

func (f *fakeEventStore) FindByID(_ context.Context, id int64) (*model.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return e, nil
}

type fakeUserStore struct {
	users map[int64]*model.User
}

func (f *fakeUserStore) FindByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

type fakeLedger struct {
	rows []*model.Notification
}

func (f *fakeLedger) Insert(_ context.Context, n *model.Notification) error {
	f.rows = append(f.rows, n)
	return nil
}

type fakeEmail struct {
	sent   int
	result channel.DeliveryResult
}

func (f *fakeEmail) SendEmail(_ context.Context, _, _, _ string) channel.DeliveryResult {
	f.sent++
	return f.result
}

type fakeSMS struct {
	sent   int
	result channel.DeliveryResult
}

func (f *fakeSMS) SendSMS(_ context.Context, _, _ string) channel.DeliveryResult {
	f.sent++
	return f.result
}

type fakeCalendar struct {
	inserted int
	result   channel.DeliveryResult
}

func (f *fakeCalendar) InsertEvent(_ context.Context, _ *model.Event) channel.DeliveryResult {
	f.inserted++
	return f.result
}

func activeEvent(id int64) *model.Event {
	return &model.Event{
		ID:        id,
		Title:     "Tech Expo",
		Sector:    model.SectorIndustry,
		EventDate: time.Now().Add(72 * time.Hour),
		IsActive:  true,
	}
}

func fullPrefsUser(id int64) *model.User {
	return &model.User{
		ID:    id,
		Name:  "Test User",
		Email: "user@example.com",
		Phone: "+15550001111",
		Preferences: model.NotificationPreferences{
			Email:    true,
			SMS:      true,
			Calendar: true,
		},
	}
}

func TestRegisterSendsAllConfirmations(t *testing.T) {
	regs := newFakeRegStore()
	lg := &fakeLedger{}
	em := &fakeEmail{result: channel.Success("msg-1")}
	sm := &fakeSMS{result: channel.Success("sms-1")}
	cal := &fakeCalendar{result: channel.Success("gcal-abc")}

	s := NewService(regs,
		&fakeEventStore{events: map[int64]*model.Event{1: activeEvent(1)}},
		&fakeUserStore{users: map[int64]*model.User{10: fullPrefsUser(10)}},
		lg, em, sm, cal, zap.NewNop())

	reg, err := s.Register(context.Background(), 10, 1)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if em.sent != 1 || sm.sent != 1 || cal.inserted != 1 {
		t.Fatalf("confirmations = email:%d sms:%d cal:%d, want 1 each", em.sent, sm.sent, cal.inserted)
	}
	if regs.calIDs[reg.ID] != "gcal-abc" {
		t.Errorf("calendar event id = %q, want gcal-abc", regs.calIDs[reg.ID])
	}
	flags := regs.flags[reg.ID]
	if !flags.Email || !flags.SMS || !flags.Calendar {
		t.Errorf("sent flags = %+v, want all true", flags)
	}
	if len(lg.rows) != 2 {
		t.Fatalf("expected 2 ledger rows (email, sms), got %d", len(lg.rows))
	}
	for _, row := range lg.rows {
		if row.Type != model.NotificationTypeRegistration {
			t.Errorf("row type = %q, want registration", row.Type)
		}
		if row.Status != model.NotificationStatusSent {
			t.Errorf("row status = %q, want sent", row.Status)
		}
	}
}

func TestRegisterSucceedsWhenProvidersFail(t *testing.T) {
	regs := newFakeRegStore()
	lg := &fakeLedger{}
	em := &fakeEmail{result: channel.Failure(errors.New("smtp refused"))}
	sm := &fakeSMS{result: channel.Failure(errors.New("provider returned 5xx"))}
	cal := &fakeCalendar{result: channel.Failure(errors.New("provider not configured"))}

	s := NewService(regs,
		&fakeEventStore{events: map[int64]*model.Event{1: activeEvent(1)}},
		&fakeUserStore{users: map[int64]*model.User{10: fullPrefsUser(10)}},
		lg, em, sm, cal, zap.NewNop())

	reg, err := s.Register(context.Background(), 10, 1)
	if err != nil {
		t.Fatalf("Register() should succeed despite provider failures, got %v", err)
	}
	if reg.ID == 0 {
		t.Fatal("registration was not created")
	}
	for _, row := range lg.rows {
		if row.Status != model.NotificationStatusFailed {
			t.Errorf("row status = %q, want failed", row.Status)
		}
		if row.FailureReason == "" {
			t.Error("failed row missing failure_reason")
		}
	}
	flags := regs.flags[reg.ID]
	if flags.Email || flags.SMS || flags.Calendar {
		t.Errorf("sent flags = %+v, want all false", flags)
	}
}

func TestRegisterRespectsPreferences(t *testing.T) {
	user := fullPrefsUser(10)
	user.Preferences = model.NotificationPreferences{Email: true}

	regs := newFakeRegStore()
	em := &fakeEmail{result: channel.Success("msg-1")}
	sm := &fakeSMS{result: channel.Success("sms-1")}
	cal := &fakeCalendar{result: channel.Success("gcal-abc")}

	s := NewService(regs,
		&fakeEventStore{events: map[int64]*model.Event{1: activeEvent(1)}},
		&fakeUserStore{users: map[int64]*model.User{10: user}},
		&fakeLedger{}, em, sm, cal, zap.NewNop())

	if _, err := s.Register(context.Background(), 10, 1); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if em.sent != 1 || sm.sent != 0 || cal.inserted != 0 {
		t.Fatalf("confirmations = email:%d sms:%d cal:%d, want 1/0/0", em.sent, sm.sent, cal.inserted)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	regs := newFakeRegStore()
	regs.createErr = errors.New(`duplicate key value violates unique constraint "registrations_user_event_key"`)

	s := NewService(regs,
		&fakeEventStore{events: map[int64]*model.Event{1: activeEvent(1)}},
		&fakeUserStore{users: map[int64]*model.User{10: fullPrefsUser(10)}},
		&fakeLedger{}, &fakeEmail{}, &fakeSMS{}, &fakeCalendar{}, zap.NewNop())

	if _, err := s.Register(context.Background(), 10, 1); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("Register() error = %v, want ErrAlreadyRegistered", err)
	}
}

func TestRegisterUnknownEvent(t *testing.T) {
	s := NewService(newFakeRegStore(),
		&fakeEventStore{events: map[int64]*model.Event{}},
		&fakeUserStore{users: map[int64]*model.User{10: fullPrefsUser(10)}},
		&fakeLedger{}, &fakeEmail{}, &fakeSMS{}, &fakeCalendar{}, zap.NewNop())

	if _, err := s.Register(context.Background(), 10, 99); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("Register() error = %v, want ErrEventNotFound", err)
	}
}

func TestRegisterInactiveEvent(t *testing.T) {
	event := activeEvent(1)
	event.IsActive = false

	s := NewService(newFakeRegStore(),
		&fakeEventStore{events: map[int64]*model.Event{1: event}},
		&fakeUserStore{users: map[int64]*model.User{10: fullPrefsUser(10)}},
		&fakeLedger{}, &fakeEmail{}, &fakeSMS{}, &fakeCalendar{}, zap.NewNop())

	if _, err := s.Register(context.Background(), 10, 1); !errors.Is(err, ErrEventInactive) {
		t.Fatalf("Register() error = %v, want ErrEventInactive", err)
	}
}

func TestCancel(t *testing.T) {
	regs := newFakeRegStore()
	s := NewService(regs,
		&fakeEventStore{events: map[int64]*model.Event{1: activeEvent(1)}},
		&fakeUserStore{users: map[int64]*model.User{10: fullPrefsUser(10)}},
		&fakeLedger{}, &fakeEmail{result: channel.Success("m")}, &fakeSMS{result: channel.Success("s")},
		&fakeCalendar{result: channel.Success("c")}, zap.NewNop())

	reg, err := s.Register(context.Background(), 10, 1)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := s.Cancel(context.Background(), 10, 1); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if regs.statuses[reg.ID] != model.RegistrationStatusCancelled {
		t.Fatalf("status = %q, want cancelled", regs.statuses[reg.ID])
	}

	if err := s.Cancel(context.Background(), 10, 99); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("Cancel() unknown registration error = %v, want pgx.ErrNoRows", err)
	}
}
