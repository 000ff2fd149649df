package store

import (
	"fmt"
	"time"
)

// PushSubscription is one browser push endpoint for a user's device.
type PushSubscription struct {
	ID        int64
	UserID    int64
	Endpoint  string
	P256dhKey string
	AuthKey   string
}

// SaveSubscription registers (or refreshes) a push subscription. The
// (user_id, endpoint) pair is unique; re-registering updates the keys.
func (db *DB) SaveSubscription(sub *PushSubscription) error {
	_, err := db.Exec(`
		INSERT INTO push_subscriptions (user_id, endpoint, p256dh_key, auth_key, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, endpoint) DO UPDATE SET p256dh_key = excluded.p256dh_key, auth_key = excluded.auth_key
	`, sub.UserID, sub.Endpoint, sub.P256dhKey, sub.AuthKey, formatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

// SubscriptionsForUser returns all of a user's push subscriptions.
func (db *DB) SubscriptionsForUser(userID int64) ([]PushSubscription, error) {
	rows, err := db.Query(`
		SELECT id, user_id, endpoint, p256dh_key, auth_key
		FROM push_subscriptions WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("subscriptions for user %d: %w", userID, err)
	}
	defer rows.Close()

	var subs []PushSubscription
	for rows.Next() {
		var s PushSubscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.P256dhKey, &s.AuthKey); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// DeleteSubscription removes a subscription the provider reported as gone.
func (db *DB) DeleteSubscription(id int64) error {
	_, err := db.Exec(`DELETE FROM push_subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete subscription %d: %w", id, err)
	}
	return nil
}
