package store

import (
	"testing"
	"time"
)

func TestResponsesAppendOnly(t *testing.T) {
	db := testDB(t)
	it := testItem(t, db, 1)
	r, _ := db.UpsertReminder(it.ID, time.Now().UTC())

	if err := db.AddResponse(r.ID, ChannelSMS, "doing it now", `{"action":"complete"}`); err != nil {
		t.Fatalf("AddResponse: %v", err)
	}
	if err := db.AddResponse(r.ID, ChannelApp, "done", ""); err != nil {
		t.Fatalf("AddResponse: %v", err)
	}

	got, err := db.ResponsesForReminder(r.ID)
	if err != nil {
		t.Fatalf("ResponsesForReminder: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d responses, want 2", len(got))
	}
	if got[0].Channel != ChannelSMS || got[0].RawResponse != "doing it now" {
		t.Errorf("first response = %+v", got[0])
	}
	if got[0].Interpretation != `{"action":"complete"}` {
		t.Errorf("Interpretation = %q", got[0].Interpretation)
	}
	if got[1].Interpretation != "" {
		t.Errorf("empty interpretation should round-trip empty, got %q", got[1].Interpretation)
	}
}

func TestSubscriptionsUpsertAndDelete(t *testing.T) {
	db := testDB(t)

	sub := &PushSubscription{UserID: 1, Endpoint: "https://push.example/abc", P256dhKey: "k1", AuthKey: "a1"}
	if err := db.SaveSubscription(sub); err != nil {
		t.Fatalf("SaveSubscription: %v", err)
	}

	// Same endpoint again refreshes keys instead of duplicating.
	sub.P256dhKey = "k2"
	if err := db.SaveSubscription(sub); err != nil {
		t.Fatalf("SaveSubscription refresh: %v", err)
	}

	subs, err := db.SubscriptionsForUser(1)
	if err != nil {
		t.Fatalf("SubscriptionsForUser: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("got %d subscriptions, want 1", len(subs))
	}
	if subs[0].P256dhKey != "k2" {
		t.Errorf("P256dhKey = %q, want k2", subs[0].P256dhKey)
	}

	if err := db.DeleteSubscription(subs[0].ID); err != nil {
		t.Fatalf("DeleteSubscription: %v", err)
	}
	subs, _ = db.SubscriptionsForUser(1)
	if len(subs) != 0 {
		t.Errorf("got %d subscriptions after delete, want 0", len(subs))
	}
}
