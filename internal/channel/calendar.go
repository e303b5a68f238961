package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"triconnect/internal/model"
	"triconnect/pkg/config"
	"triconnect/pkg/metrics"
)

var errCalendarNotConfigured = errors.New("provider not configured: google calendar")

// GoogleCalendarClient inserts TriConnect events into the primary Google
// calendar of the account whose token is on disk.
type GoogleCalendarClient struct {
	service *calendar.Service
	logger  *zap.Logger
}

// NewGoogleCalendarClient builds the client from an OAuth token file. A
// missing or unreadable token yields a client whose inserts fail cleanly
// instead of an initialization crash.
func NewGoogleCalendarClient(ctx context.Context, cfg config.CalendarConfig, logger *zap.Logger) *GoogleCalendarClient {
	service, err := newCalendarService(ctx, cfg)
	if err != nil {
		logger.Warn("Google Calendar not configured, calendar delivery disabled", zap.Error(err))
		return &GoogleCalendarClient{logger: logger}
	}
	return &GoogleCalendarClient{service: service, logger: logger}
}

func newCalendarService(ctx context.Context, cfg config.CalendarConfig) (*calendar.Service, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errCalendarNotConfigured
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{calendar.CalendarEventsScope},
		Endpoint:     google.Endpoint,
	}

	token, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("could not load calendar token: %w", err)
	}

	client := oauthCfg.Client(ctx, token)
	return calendar.NewService(ctx, option.WithHTTPClient(client))
}

// InsertEvent implements CalendarInserter. Events run one hour by default;
// a 24h email reminder and a 30min popup are attached, matching the event
// reminder policy elsewhere in the system.
func (c *GoogleCalendarClient) InsertEvent(ctx context.Context, event *model.Event) DeliveryResult {
	start := time.Now()

	if c.service == nil {
		metrics.RecordDeliveryLatency("calendar", "failed", time.Since(start))
		return Failure(errCalendarNotConfigured)
	}

	entry := &calendar.Event{
		Summary:     event.Title,
		Description: event.Description,
		Location:    fmt.Sprintf("%s, %s", event.Location.Address, event.Location.City),
		Start: &calendar.EventDateTime{
			DateTime: event.EventDate.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		End: &calendar.EventDateTime{
			DateTime: event.EventDate.Add(time.Hour).UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 30},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}

	created, err := c.service.Events.Insert("primary", entry).Context(ctx).Do()
	if err != nil {
		c.logger.Error("Calendar insert failed",
			zap.Int64("event_id", event.ID),
			zap.Error(err),
		)
		metrics.RecordDeliveryLatency("calendar", "failed", time.Since(start))
		return Failure(err)
	}

	c.logger.Info("Event added to Google Calendar",
		zap.Int64("event_id", event.ID),
		zap.String("calendar_event_id", created.Id),
	)
	metrics.RecordDeliveryLatency("calendar", "sent", time.Since(start))
	return Success(created.Id)
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	if file == "" {
		file = "token.json"
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}
