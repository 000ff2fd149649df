package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lazypower/nudge/internal/engine"
	"github.com/lazypower/nudge/internal/llm"
	"github.com/lazypower/nudge/internal/notify"
	"github.com/lazypower/nudge/internal/store"
)

func newTestServer(t *testing.T, client llm.Client) (*Server, *store.DB, *notify.Mock) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mock := notify.NewMock()
	eng := engine.New(db, client, mock)
	return New(db, eng, "test"), db, mock
}

func makeReminder(t *testing.T, db *store.DB, userID int64) (*store.Item, *store.ReminderState) {
	t.Helper()
	due := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	it := &store.Item{UserID: userID, Name: "submit expense report", DueDate: &due}
	if err := db.CreateItem(it); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	r, err := db.UpsertReminder(it.ID, due)
	if err != nil {
		t.Fatalf("UpsertReminder: %v", err)
	}
	return it, r
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	w := doJSON(t, srv, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
	if resp["db"] != true {
		t.Errorf("db = %v, want true", resp["db"])
	}
}

func TestScheduleReminderEndpoint(t *testing.T) {
	srv, db, _ := newTestServer(t, nil)
	it, _ := makeReminder(t, db, 1)

	w := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/items/%d/schedule", it.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body)
	}

	var resp struct {
		ReminderID int64 `json:"reminder_id"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.ReminderID == 0 {
		t.Error("reminder_id missing from response")
	}

	w = doJSON(t, srv, http.MethodPost, "/api/items/9999/schedule", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown item status = %d, want 404", w.Code)
	}
}

func TestScheduleReminderUnschedulable(t *testing.T) {
	srv, db, _ := newTestServer(t, nil)
	it := &store.Item{UserID: 1, Name: "no dates here"}
	if err := db.CreateItem(it); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	w := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/items/%d/schedule", it.ID), nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestReplyEndpoint(t *testing.T) {
	client := &llm.MockClient{Response: &llm.Response{Content: `{"action": "complete"}`, Provider: "mock"}}
	srv, db, _ := newTestServer(t, client)
	it, r := makeReminder(t, db, 1)

	w := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/reminders/%d/reply", r.ID),
		map[string]string{"text": "all done"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body)
	}

	var resp struct {
		Action string `json:"action"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Action != "complete" {
		t.Errorf("action = %q, want complete", resp.Action)
	}

	item, _ := db.GetItem(it.ID)
	if !item.Checked {
		t.Error("item should be checked after complete reply")
	}
}

func TestReplyEndpointValidation(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	w := doJSON(t, srv, http.MethodPost, "/api/reminders/1/reply", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty text status = %d, want 400", w.Code)
	}

	w = doJSON(t, srv, http.MethodPost, "/api/reminders/9999/reply", map[string]string{"text": "hi"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown reminder status = %d, want 404", w.Code)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	// GET creates defaults on first touch.
	w := doJSON(t, srv, http.MethodGet, "/api/users/7/settings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", w.Code)
	}
	var got map[string]any
	json.NewDecoder(w.Body).Decode(&got)
	if got["escape_safe_word"] != store.DefaultSafeWord {
		t.Errorf("escape_safe_word = %v, want %q", got["escape_safe_word"], store.DefaultSafeWord)
	}

	w = doJSON(t, srv, http.MethodPut, "/api/users/7/settings", map[string]any{
		"phone_number":      "+15551234567",
		"escape_safe_word":  "uncle",
		"quiet_hours_start": "22:00",
		"quiet_hours_end":   "06:00",
		"escalation_timing": map[string]int{"push_to_sms": 10, "sms_to_call": 20, "call_repeat": 40},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, want 200: %s", w.Code, w.Body)
	}

	w = doJSON(t, srv, http.MethodGet, "/api/users/7/settings", nil)
	got = nil
	json.NewDecoder(w.Body).Decode(&got)
	if got["phone_number"] != "+15551234567" {
		t.Errorf("phone_number = %v", got["phone_number"])
	}
	if got["escape_safe_word"] != "uncle" {
		t.Errorf("escape_safe_word = %v, want uncle", got["escape_safe_word"])
	}
	if got["quiet_hours_start"] != "22:00" {
		t.Errorf("quiet_hours_start = %v", got["quiet_hours_start"])
	}
}

func TestAddSubscription(t *testing.T) {
	srv, db, _ := newTestServer(t, nil)

	w := doJSON(t, srv, http.MethodPost, "/api/users/3/push-subscriptions", map[string]any{
		"endpoint": "https://push.example/sub1",
		"keys":     map[string]string{"p256dh": "pk", "auth": "ak"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body)
	}

	subs, err := db.SubscriptionsForUser(3)
	if err != nil {
		t.Fatalf("SubscriptionsForUser: %v", err)
	}
	if len(subs) != 1 || subs[0].Endpoint != "https://push.example/sub1" {
		t.Errorf("subs = %+v", subs)
	}

	w = doJSON(t, srv, http.MethodPost, "/api/users/3/push-subscriptions", map[string]any{
		"endpoint": "https://push.example/sub2",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing keys status = %d, want 400", w.Code)
	}
}

func TestXMLEscape(t *testing.T) {
	got := xmlEscape(`buy <milk> & cookies`)
	if strings.ContainsAny(got, "<>") {
		t.Errorf("xmlEscape left raw markup: %q", got)
	}
	if !strings.Contains(got, "&amp;") {
		t.Errorf("ampersand not escaped: %q", got)
	}
}
