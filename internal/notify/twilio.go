package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
)

func (s *Service) twilioConfigured() bool {
	return s.twilio.AccountSID != "" && s.twilio.AuthToken != "" && s.twilio.FromNumber != ""
}

// twilioPost sends a form-encoded request to the Twilio REST API and returns
// the provider-assigned resource SID.
func (s *Service) twilioPost(ctx context.Context, resource string, form url.Values) (string, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/%s.json", s.twilioAPI, s.twilio.AccountSID, resource)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(s.twilio.AccountSID, s.twilio.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("twilio api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("twilio api status %d: %s", resp.StatusCode, body)
	}

	var result struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return result.SID, nil
}

// SendSMS sends a text message via Twilio.
func (s *Service) SendSMS(ctx context.Context, phone, message string) bool {
	if !s.twilio.SMSEnabled {
		log.Printf("notify: SMS disabled, skipping send to %s", phone)
		return false
	}
	if !s.twilioConfigured() {
		log.Printf("notify: twilio not configured, cannot send SMS")
		return false
	}

	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", s.twilio.FromNumber)
	form.Set("Body", message)

	sid, err := s.twilioPost(ctx, "Messages", form)
	if err != nil {
		log.Printf("notify: send SMS to %s: %v", phone, err)
		return false
	}
	log.Printf("notify: SMS sent to %s, SID %s", phone, sid)
	return true
}

// InitiateCall places a voice call that reads the task aloud and records the
// user's spoken reply. The TwiML script and recording callbacks are served by
// this server under baseURL.
func (s *Service) InitiateCall(ctx context.Context, phone, taskName string, itemID int64) bool {
	if !s.twilio.CallsEnabled {
		log.Printf("notify: voice calls disabled, skipping call to %s", phone)
		return false
	}
	if !s.twilioConfigured() {
		log.Printf("notify: twilio not configured, cannot initiate call")
		return false
	}

	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", s.twilio.FromNumber)
	form.Set("Url", fmt.Sprintf("%s/api/webhooks/twilio/voice/twiml?item_id=%d", s.baseURL, itemID))
	form.Set("StatusCallback", s.baseURL+"/api/webhooks/twilio/voice/status")
	form.Set("Record", "true")

	sid, err := s.twilioPost(ctx, "Calls", form)
	if err != nil {
		log.Printf("notify: initiate call to %s: %v", phone, err)
		return false
	}
	log.Printf("notify: call initiated to %s for task %q, SID %s", phone, taskName, sid)
	return true
}
