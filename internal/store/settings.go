package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultSafeWord ends accountability tracking when a reply matches it.
const DefaultSafeWord = "abort"

// EscalationTiming holds per-user escalation intervals in minutes.
type EscalationTiming struct {
	PushToSMS  int `json:"push_to_sms"`
	SMSToCall  int `json:"sms_to_call"`
	CallRepeat int `json:"call_repeat"`
}

// DefaultTiming returns the stock escalation intervals.
func DefaultTiming() EscalationTiming {
	return EscalationTiming{PushToSMS: 5, SMSToCall: 15, CallRepeat: 30}
}

// NotificationSettings is per-user reminder configuration. Quiet hours are
// "HH:MM" local wall-clock strings in the settings timezone; empty disables
// them.
type NotificationSettings struct {
	ID              int64
	UserID          int64
	PhoneNumber     string
	PartnerPhone    string
	SafeWord        string
	Timing          EscalationTiming
	QuietHoursStart string
	QuietHoursEnd   string
	Timezone        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const settingsCols = `id, user_id, phone_number, accountability_partner_phone,
	escape_safe_word, escalation_timing, quiet_hours_start, quiet_hours_end,
	quiet_hours_timezone, created_at, updated_at`

func scanSettings(row interface{ Scan(...any) error }) (*NotificationSettings, error) {
	var s NotificationSettings
	var phone, partner, timing, qStart, qEnd, createdAt, updatedAt sql.NullString

	err := row.Scan(&s.ID, &s.UserID, &phone, &partner, &s.SafeWord, &timing,
		&qStart, &qEnd, &s.Timezone, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	s.PhoneNumber = phone.String
	s.PartnerPhone = partner.String
	s.QuietHoursStart = qStart.String
	s.QuietHoursEnd = qEnd.String

	s.Timing = DefaultTiming()
	if timing.Valid && timing.String != "" {
		// Bad JSON falls back to defaults rather than failing the read.
		var t EscalationTiming
		if err := json.Unmarshal([]byte(timing.String), &t); err == nil {
			if t.PushToSMS > 0 {
				s.Timing.PushToSMS = t.PushToSMS
			}
			if t.SMSToCall > 0 {
				s.Timing.SMSToCall = t.SMSToCall
			}
			if t.CallRepeat > 0 {
				s.Timing.CallRepeat = t.CallRepeat
			}
		}
	}

	if t := scanTime(createdAt); t != nil {
		s.CreatedAt = *t
	}
	if t := scanTime(updatedAt); t != nil {
		s.UpdatedAt = *t
	}
	return &s, nil
}

// GetSettings returns a user's notification settings, or nil if none exist.
func (db *DB) GetSettings(userID int64) (*NotificationSettings, error) {
	s, err := scanSettings(db.QueryRow(`SELECT `+settingsCols+` FROM notification_settings WHERE user_id = ?`, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings for user %d: %w", userID, err)
	}
	return s, nil
}

// GetOrCreateSettings returns a user's settings, creating a default row if
// none exist.
func (db *DB) GetOrCreateSettings(userID int64) (*NotificationSettings, error) {
	s, err := db.GetSettings(userID)
	if err != nil {
		return nil, err
	}
	if s != nil {
		return s, nil
	}

	now := formatTime(time.Now().UTC())
	timing, _ := json.Marshal(DefaultTiming())
	_, err = db.Exec(`
		INSERT INTO notification_settings (user_id, escape_safe_word, escalation_timing, quiet_hours_timezone, created_at, updated_at)
		VALUES (?, ?, ?, 'UTC', ?, ?)
	`, userID, DefaultSafeWord, string(timing), now, now)
	if err != nil {
		return nil, fmt.Errorf("create settings for user %d: %w", userID, err)
	}
	return db.GetSettings(userID)
}

// UpdateSettings persists the mutable settings fields for a user, creating
// the row first if needed.
func (db *DB) UpdateSettings(s *NotificationSettings) error {
	if _, err := db.GetOrCreateSettings(s.UserID); err != nil {
		return err
	}

	timing, err := json.Marshal(s.Timing)
	if err != nil {
		return fmt.Errorf("marshal timing: %w", err)
	}
	safeWord := s.SafeWord
	if safeWord == "" {
		safeWord = DefaultSafeWord
	}
	tz := s.Timezone
	if tz == "" {
		tz = "UTC"
	}

	_, err = db.Exec(`
		UPDATE notification_settings
		SET phone_number = ?, accountability_partner_phone = ?, escape_safe_word = ?,
			escalation_timing = ?, quiet_hours_start = ?, quiet_hours_end = ?,
			quiet_hours_timezone = ?, updated_at = ?
		WHERE user_id = ?
	`, nullStr(s.PhoneNumber), nullStr(s.PartnerPhone), safeWord, string(timing),
		nullStr(s.QuietHoursStart), nullStr(s.QuietHoursEnd), tz,
		formatTime(time.Now().UTC()), s.UserID)
	if err != nil {
		return fmt.Errorf("update settings for user %d: %w", s.UserID, err)
	}
	return nil
}

// SettingsByPhone looks up settings by the user's phone number. Used by the
// inbound SMS webhook to identify the sender.
func (db *DB) SettingsByPhone(phone string) (*NotificationSettings, error) {
	s, err := scanSettings(db.QueryRow(`SELECT `+settingsCols+` FROM notification_settings WHERE phone_number = ?`, phone))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settings by phone: %w", err)
	}
	return s, nil
}
