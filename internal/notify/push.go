package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// pushPayload is the JSON body delivered to the service worker.
type pushPayload struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Tag    string `json:"tag"`
	URL    string `json:"url"`
	ItemID int64  `json:"item_id,omitempty"`
}

// SendPush delivers a web push notification to every subscription the user
// has registered. Subscriptions the provider reports as permanently gone
// (404/410) are removed.
func (s *Service) SendPush(ctx context.Context, userID int64, title, body string, itemID int64, url string) bool {
	if !s.push.Enabled || s.push.VAPIDPublicKey == "" || s.push.VAPIDPrivateKey == "" {
		log.Printf("notify: push not configured, skipping for user %d", userID)
		return false
	}

	subs, err := s.db.SubscriptionsForUser(userID)
	if err != nil {
		log.Printf("notify: load subscriptions for user %d: %v", userID, err)
		return false
	}
	if len(subs) == 0 {
		log.Printf("notify: no push subscriptions for user %d", userID)
		return false
	}

	tag := "notification"
	if itemID != 0 {
		tag = fmt.Sprintf("reminder-%d", itemID)
	}
	if url == "" {
		url = "/"
	}
	payload, err := json.Marshal(pushPayload{
		Title:  title,
		Body:   body,
		Tag:    tag,
		URL:    url,
		ItemID: itemID,
	})
	if err != nil {
		log.Printf("notify: marshal push payload: %v", err)
		return false
	}

	delivered := 0
	for _, sub := range subs {
		resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dhKey,
				Auth:   sub.AuthKey,
			},
		}, &webpush.Options{
			Subscriber:      s.push.ContactEmail,
			VAPIDPublicKey:  s.push.VAPIDPublicKey,
			VAPIDPrivateKey: s.push.VAPIDPrivateKey,
			TTL:             3600,
			HTTPClient:      s.client,
		})
		if err != nil {
			log.Printf("notify: push to subscription %d failed: %v", sub.ID, err)
			continue
		}
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusNotFound, http.StatusGone:
			// Subscription is permanently invalid.
			log.Printf("notify: removing expired subscription %d (status %d)", sub.ID, resp.StatusCode)
			if err := s.db.DeleteSubscription(sub.ID); err != nil {
				log.Printf("notify: delete subscription %d: %v", sub.ID, err)
			}
		default:
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				delivered++
			} else {
				log.Printf("notify: push to subscription %d status %d", sub.ID, resp.StatusCode)
			}
		}
	}

	log.Printf("notify: push delivered to %d/%d devices for user %d", delivered, len(subs), userID)
	return delivered > 0
}
