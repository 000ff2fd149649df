package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "items: task items with due dates, reminders, recurrence",
		SQL: `
CREATE TABLE items (
    id                   INTEGER PRIMARY KEY,
    user_id              INTEGER NOT NULL,
    name                 TEXT NOT NULL,
    description          TEXT,
    sort_order           INTEGER NOT NULL DEFAULT 0,

    checked              INTEGER NOT NULL DEFAULT 0,
    checked_at           TEXT,
    completed_at         TEXT,
    deleted_at           TEXT,

    due_date             TEXT,
    reminder_at          TEXT,
    reminder_offset      TEXT,

    recurrence_pattern   TEXT CHECK (recurrence_pattern IN ('daily', 'weekly', 'monthly')),
    recurrence_parent_id INTEGER,

    created_at           TEXT NOT NULL,
    updated_at           TEXT NOT NULL,

    FOREIGN KEY (recurrence_parent_id) REFERENCES items(id)
);

CREATE INDEX idx_items_user    ON items(user_id);
CREATE INDEX idx_items_checked ON items(checked);
CREATE INDEX idx_items_due     ON items(due_date);
`,
	},
	{
		Version:     2,
		Description: "reminder_states: per-item escalation state machine",
		SQL: `
CREATE TABLE reminder_states (
    id                       INTEGER PRIMARY KEY,
    item_id                  INTEGER NOT NULL,
    current_escalation_level INTEGER NOT NULL DEFAULT 0,
    last_escalation_at       TEXT,
    next_escalation_at       TEXT,
    status                   TEXT NOT NULL DEFAULT 'pending'
                             CHECK (status IN ('pending', 'acknowledged', 'completed', 'escaped')),
    created_at               TEXT NOT NULL,
    updated_at               TEXT NOT NULL,

    FOREIGN KEY (item_id) REFERENCES items(id)
);

CREATE INDEX idx_reminders_next ON reminder_states(next_escalation_at);
CREATE UNIQUE INDEX uq_reminders_pending_item
    ON reminder_states(item_id) WHERE status = 'pending';
`,
	},
	{
		Version:     3,
		Description: "reminder_responses: append-only log of inbound replies",
		SQL: `
CREATE TABLE reminder_responses (
    id                 INTEGER PRIMARY KEY,
    reminder_state_id  INTEGER NOT NULL,
    channel            TEXT NOT NULL CHECK (channel IN ('push', 'sms', 'call', 'app')),
    raw_response       TEXT NOT NULL,
    llm_interpretation TEXT,
    created_at         TEXT NOT NULL,

    FOREIGN KEY (reminder_state_id) REFERENCES reminder_states(id)
);

CREATE INDEX idx_responses_reminder ON reminder_responses(reminder_state_id);
`,
	},
	{
		Version:     4,
		Description: "notification_settings + push_subscriptions",
		SQL: `
CREATE TABLE notification_settings (
    id                          INTEGER PRIMARY KEY,
    user_id                     INTEGER NOT NULL UNIQUE,
    phone_number                TEXT,
    accountability_partner_phone TEXT,
    escape_safe_word            TEXT NOT NULL DEFAULT 'abort',
    escalation_timing           TEXT,
    quiet_hours_start           TEXT,
    quiet_hours_end             TEXT,
    quiet_hours_timezone        TEXT NOT NULL DEFAULT 'UTC',
    created_at                  TEXT NOT NULL,
    updated_at                  TEXT NOT NULL
);

CREATE TABLE push_subscriptions (
    id         INTEGER PRIMARY KEY,
    user_id    INTEGER NOT NULL,
    endpoint   TEXT NOT NULL,
    p256dh_key TEXT NOT NULL,
    auth_key   TEXT NOT NULL,
    created_at TEXT NOT NULL,

    UNIQUE (user_id, endpoint)
);

CREATE INDEX idx_push_subs_user ON push_subscriptions(user_id);
`,
	},
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
