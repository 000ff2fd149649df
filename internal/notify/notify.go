// Package notify implements the outbound notification channels: web push,
// SMS, and voice calls. Every channel degrades to a logged no-op when its
// provider is unconfigured or disabled, so the escalation state machine never
// blocks on missing credentials.
package notify

import (
	"context"
	"net/http"
	"time"

	"github.com/lazypower/nudge/internal/config"
	"github.com/lazypower/nudge/internal/store"
)

// Notifier is the channel-client abstraction the engine escalates through.
// Each method reports whether the message went out; failures are logged by the
// implementation and never returned as errors, since a failed send does not
// stop escalation.
type Notifier interface {
	// SendPush delivers a push notification to all of the user's subscribed
	// devices. True means at least one device accepted it.
	SendPush(ctx context.Context, userID int64, title, body string, itemID int64, url string) bool

	// SendSMS sends a text message.
	SendSMS(ctx context.Context, phone, message string) bool

	// InitiateCall places a voice call that reads the task and records a
	// reply. True means the call was accepted by the provider.
	InitiateCall(ctx context.Context, phone, taskName string, itemID int64) bool
}

// Service is the production Notifier backed by web push and the Twilio REST
// API.
type Service struct {
	db      *store.DB
	twilio  config.TwilioConfig
	push    config.PushConfig
	baseURL string
	client  *http.Client

	// twilioAPI is overridable in tests.
	twilioAPI string
}

// New creates a Service. baseURL is the externally reachable server URL used
// for voice-call callbacks and push deep links.
func New(db *store.DB, cfg config.Config) *Service {
	return &Service{
		db:        db,
		twilio:    cfg.Twilio,
		push:      cfg.Push,
		baseURL:   cfg.Server.BaseURL,
		client:    &http.Client{Timeout: 30 * time.Second},
		twilioAPI: "https://api.twilio.com",
	}
}
