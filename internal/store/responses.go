package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Reply channels.
const (
	ChannelPush = "push"
	ChannelSMS  = "sms"
	ChannelCall = "call"
	ChannelApp  = "app"
)

// ReminderResponse is one inbound reply to a reminder. Append-only.
type ReminderResponse struct {
	ID              int64
	ReminderStateID int64
	Channel         string
	RawResponse     string
	Interpretation  string // classifier output as JSON text
	CreatedAt       time.Time
}

// AddResponse appends a reply record with its classifier interpretation.
func (db *DB) AddResponse(reminderStateID int64, channel, raw, interpretation string) error {
	_, err := db.Exec(`
		INSERT INTO reminder_responses (reminder_state_id, channel, raw_response, llm_interpretation, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, reminderStateID, channel, raw, nullStr(interpretation), formatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("add response: %w", err)
	}
	return nil
}

// ResponsesForReminder returns all replies logged for a reminder, oldest first.
func (db *DB) ResponsesForReminder(reminderStateID int64) ([]ReminderResponse, error) {
	rows, err := db.Query(`
		SELECT id, reminder_state_id, channel, raw_response, llm_interpretation, created_at
		FROM reminder_responses WHERE reminder_state_id = ? ORDER BY id
	`, reminderStateID)
	if err != nil {
		return nil, fmt.Errorf("responses for reminder %d: %w", reminderStateID, err)
	}
	defer rows.Close()

	var responses []ReminderResponse
	for rows.Next() {
		var r ReminderResponse
		var interp, createdAt sql.NullString
		if err := rows.Scan(&r.ID, &r.ReminderStateID, &r.Channel, &r.RawResponse, &interp, &createdAt); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		r.Interpretation = interp.String
		if t := scanTime(createdAt); t != nil {
			r.CreatedAt = *t
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}
