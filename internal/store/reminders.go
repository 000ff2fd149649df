package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Reminder status lifecycle. Rows are never deleted; terminal states stay on
// record so the response log keeps its referent.
const (
	StatusPending      = "pending"
	StatusAcknowledged = "acknowledged"
	StatusCompleted    = "completed"
	StatusEscaped      = "escaped"
)

// Escalation levels.
const (
	LevelPush = 0
	LevelSMS  = 1
	LevelCall = 2
)

// ReminderState tracks the escalation state machine for one reminder cycle.
type ReminderState struct {
	ID               int64
	ItemID           int64
	EscalationLevel  int
	LastEscalationAt *time.Time
	NextEscalationAt *time.Time
	Status           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const reminderCols = `id, item_id, current_escalation_level, last_escalation_at,
	next_escalation_at, status, created_at, updated_at`

func scanReminder(row interface{ Scan(...any) error }) (*ReminderState, error) {
	var r ReminderState
	var lastAt, nextAt, createdAt, updatedAt sql.NullString

	err := row.Scan(&r.ID, &r.ItemID, &r.EscalationLevel, &lastAt, &nextAt,
		&r.Status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	r.LastEscalationAt = scanTime(lastAt)
	r.NextEscalationAt = scanTime(nextAt)
	if t := scanTime(createdAt); t != nil {
		r.CreatedAt = *t
	}
	if t := scanTime(updatedAt); t != nil {
		r.UpdatedAt = *t
	}
	return &r, nil
}

// GetReminder returns a reminder state by id, or nil if not found.
func (db *DB) GetReminder(id int64) (*ReminderState, error) {
	r, err := scanReminder(db.QueryRow(`SELECT `+reminderCols+` FROM reminder_states WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder %d: %w", id, err)
	}
	return r, nil
}

// PendingReminderForItem returns the item's pending reminder, or nil.
// The partial unique index guarantees at most one exists.
func (db *DB) PendingReminderForItem(itemID int64) (*ReminderState, error) {
	r, err := scanReminder(db.QueryRow(`
		SELECT `+reminderCols+` FROM reminder_states
		WHERE item_id = ? AND status = 'pending'
	`, itemID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pending reminder for item %d: %w", itemID, err)
	}
	return r, nil
}

// UpsertReminder creates or resets the pending reminder for an item.
// An existing pending reminder is rescheduled to the given time at level 0;
// otherwise a fresh pending row is inserted.
func (db *DB) UpsertReminder(itemID int64, at time.Time) (*ReminderState, error) {
	now := time.Now().UTC()

	existing, err := db.PendingReminderForItem(itemID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		_, err := db.Exec(`
			UPDATE reminder_states
			SET current_escalation_level = 0, next_escalation_at = ?, updated_at = ?
			WHERE id = ? AND status = 'pending'
		`, formatTime(at), formatTime(now), existing.ID)
		if err != nil {
			return nil, fmt.Errorf("reset reminder %d: %w", existing.ID, err)
		}
		return db.GetReminder(existing.ID)
	}

	result, err := db.Exec(`
		INSERT INTO reminder_states (item_id, current_escalation_level, next_escalation_at, status, created_at, updated_at)
		VALUES (?, 0, ?, 'pending', ?, ?)
	`, itemID, formatTime(at), formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert reminder for item %d: %w", itemID, err)
	}

	id, _ := result.LastInsertId()
	return db.GetReminder(id)
}

// DueReminders returns pending reminders whose next_escalation_at has passed.
func (db *DB) DueReminders(now time.Time) ([]ReminderState, error) {
	rows, err := db.Query(`
		SELECT `+reminderCols+` FROM reminder_states
		WHERE status = 'pending' AND next_escalation_at <= ?
		ORDER BY next_escalation_at
	`, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("due reminders: %w", err)
	}
	defer rows.Close()

	var reminders []ReminderState
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, *r)
	}
	return reminders, rows.Err()
}

// AdvanceReminder moves a pending reminder from one escalation level to the
// next and schedules its next escalation. The update is conditioned on the
// previously-read level and on the reminder still being due, so an
// overlapping tick cannot double-advance; the return value reports whether
// this caller won.
func (db *DB) AdvanceReminder(id int64, fromLevel, toLevel int, next, now time.Time) (bool, error) {
	result, err := db.Exec(`
		UPDATE reminder_states
		SET current_escalation_level = ?, last_escalation_at = ?, next_escalation_at = ?, updated_at = ?
		WHERE id = ? AND current_escalation_level = ? AND status = 'pending'
			AND next_escalation_at <= ?
	`, toLevel, formatTime(now), formatTime(next), formatTime(now), id, fromLevel, formatTime(now))
	if err != nil {
		return false, fmt.Errorf("advance reminder %d: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// ResolveReminder transitions a pending reminder into a terminal status
// (completed or escaped). Returns false if the reminder was no longer pending.
func (db *DB) ResolveReminder(id int64, status string, now time.Time) (bool, error) {
	result, err := db.Exec(`
		UPDATE reminder_states SET status = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'
	`, status, formatTime(now), id)
	if err != nil {
		return false, fmt.Errorf("resolve reminder %d: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// RescheduleReminder resets a pending reminder to level 0 at a new time,
// restarting the push-sms-call ladder from there.
func (db *DB) RescheduleReminder(id int64, at, now time.Time) error {
	_, err := db.Exec(`
		UPDATE reminder_states
		SET current_escalation_level = 0, next_escalation_at = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'
	`, formatTime(at), formatTime(now), id)
	if err != nil {
		return fmt.Errorf("reschedule reminder %d: %w", id, err)
	}
	return nil
}

// LatestPendingReminderForUser finds the user's most recently escalated
// pending reminder. Used by the SMS webhook, where the only context is the
// sender's phone number.
func (db *DB) LatestPendingReminderForUser(userID int64) (*ReminderState, error) {
	r, err := scanReminder(db.QueryRow(`
		SELECT r.id, r.item_id, r.current_escalation_level, r.last_escalation_at,
			r.next_escalation_at, r.status, r.created_at, r.updated_at
		FROM reminder_states r
		JOIN items i ON i.id = r.item_id
		WHERE i.user_id = ? AND r.status = 'pending'
		ORDER BY r.last_escalation_at DESC
		LIMIT 1
	`, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest pending reminder for user %d: %w", userID, err)
	}
	return r, nil
}
