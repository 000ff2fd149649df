package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lazypower/nudge/internal/engine"
	"github.com/lazypower/nudge/internal/store"
)

// replyTimeout bounds the synchronous in-app reply path, classifier call
// included.
const replyTimeout = 30 * time.Second

func (s *Server) handleScheduleReminder(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		http.Error(w, `{"error":"invalid item id"}`, http.StatusBadRequest)
		return
	}

	reminder, err := s.engine.ScheduleReminder(itemID)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			http.Error(w, `{"error":"item not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"reminder_id":        reminder.ID,
		"next_escalation_at": reminder.NextEscalationAt,
	})
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	reminderID, err := strconv.ParseInt(chi.URLParam(r, "reminderID"), 10, 64)
	if err != nil {
		http.Error(w, `{"error":"invalid reminder id"}`, http.StatusBadRequest)
		return
	}

	var req struct {
		Channel string `json:"channel"`
		Text    string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, `{"error":"text required"}`, http.StatusBadRequest)
		return
	}
	channel := req.Channel
	if channel == "" {
		channel = store.ChannelApp
	}

	ctx, cancel := context.WithTimeout(r.Context(), replyTimeout)
	defer cancel()

	result, err := s.engine.Interpret(ctx, reminderID, channel, req.Text)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			http.Error(w, `{"error":"reminder not found"}`, http.StatusNotFound)
			return
		}
		if errors.Is(err, context.DeadlineExceeded) {
			http.Error(w, `{"error":"reply processing timed out"}`, http.StatusGatewayTimeout)
			return
		}
		// Surface a generic processing error, not internals.
		http.Error(w, `{"error":"failed to process reply"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, `{"error":"invalid user id"}`, http.StatusBadRequest)
		return
	}

	settings, err := s.db.GetOrCreateSettings(userID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(settingsJSON(settings))
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, `{"error":"invalid user id"}`, http.StatusBadRequest)
		return
	}

	var req struct {
		PhoneNumber     string                  `json:"phone_number"`
		PartnerPhone    string                  `json:"accountability_partner_phone"`
		SafeWord        string                  `json:"escape_safe_word"`
		Timing          *store.EscalationTiming `json:"escalation_timing"`
		QuietHoursStart string                  `json:"quiet_hours_start"`
		QuietHoursEnd   string                  `json:"quiet_hours_end"`
		Timezone        string                  `json:"quiet_hours_timezone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	settings := &store.NotificationSettings{
		UserID:          userID,
		PhoneNumber:     req.PhoneNumber,
		PartnerPhone:    req.PartnerPhone,
		SafeWord:        req.SafeWord,
		Timing:          store.DefaultTiming(),
		QuietHoursStart: req.QuietHoursStart,
		QuietHoursEnd:   req.QuietHoursEnd,
		Timezone:        req.Timezone,
	}
	if req.Timing != nil {
		settings.Timing = *req.Timing
	}

	if err := s.db.UpdateSettings(settings); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	updated, err := s.db.GetSettings(userID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(settingsJSON(updated))
}

func (s *Server) handleAddSubscription(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, `{"error":"invalid user id"}`, http.StatusBadRequest)
		return
	}

	var req struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		http.Error(w, `{"error":"endpoint and keys required"}`, http.StatusBadRequest)
		return
	}

	sub := &store.PushSubscription{
		UserID:    userID,
		Endpoint:  req.Endpoint,
		P256dhKey: req.Keys.P256dh,
		AuthKey:   req.Keys.Auth,
	}
	if err := s.db.SaveSubscription(sub); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func settingsJSON(s *store.NotificationSettings) map[string]any {
	return map[string]any{
		"user_id":                      s.UserID,
		"phone_number":                 s.PhoneNumber,
		"accountability_partner_phone": s.PartnerPhone,
		"escape_safe_word":             s.SafeWord,
		"escalation_timing":            s.Timing,
		"quiet_hours_start":            s.QuietHoursStart,
		"quiet_hours_end":              s.QuietHoursEnd,
		"quiet_hours_timezone":         s.Timezone,
	}
}
