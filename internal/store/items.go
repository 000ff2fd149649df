package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Recurrence patterns for items.
const (
	RecurDaily   = "daily"
	RecurWeekly  = "weekly"
	RecurMonthly = "monthly"
)

// Item is a task item. The reminder engine reads due/reminder fields, writes
// checked/completed_at, and inserts successor items for recurring tasks.
type Item struct {
	ID                 int64
	UserID             int64
	Name               string
	Description        string
	SortOrder          int
	Checked            bool
	CheckedAt          *time.Time
	CompletedAt        *time.Time
	DeletedAt          *time.Time
	DueDate            *time.Time
	ReminderAt         *time.Time
	ReminderOffset     string
	RecurrencePattern  string // daily, weekly, monthly, or ""
	RecurrenceParentID *int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

const itemCols = `id, user_id, name, description, sort_order, checked, checked_at,
	completed_at, deleted_at, due_date, reminder_at, reminder_offset,
	recurrence_pattern, recurrence_parent_id, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (*Item, error) {
	var it Item
	var desc, checkedAt, completedAt, deletedAt, dueDate, reminderAt sql.NullString
	var offset, pattern, createdAt, updatedAt sql.NullString
	var parentID sql.NullInt64

	err := row.Scan(&it.ID, &it.UserID, &it.Name, &desc, &it.SortOrder, &it.Checked,
		&checkedAt, &completedAt, &deletedAt, &dueDate, &reminderAt,
		&offset, &pattern, &parentID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	it.Description = desc.String
	it.CheckedAt = scanTime(checkedAt)
	it.CompletedAt = scanTime(completedAt)
	it.DeletedAt = scanTime(deletedAt)
	it.DueDate = scanTime(dueDate)
	it.ReminderAt = scanTime(reminderAt)
	it.ReminderOffset = offset.String
	it.RecurrencePattern = pattern.String
	if parentID.Valid {
		it.RecurrenceParentID = &parentID.Int64
	}
	if t := scanTime(createdAt); t != nil {
		it.CreatedAt = *t
	}
	if t := scanTime(updatedAt); t != nil {
		it.UpdatedAt = *t
	}
	return &it, nil
}

// CreateItem inserts an item and sets its ID.
func (db *DB) CreateItem(it *Item) error {
	now := time.Now().UTC()
	it.CreatedAt = now
	it.UpdatedAt = now

	var parent any
	if it.RecurrenceParentID != nil {
		parent = *it.RecurrenceParentID
	}

	result, err := db.Exec(`
		INSERT INTO items (user_id, name, description, sort_order, checked, checked_at,
			completed_at, deleted_at, due_date, reminder_at, reminder_offset,
			recurrence_pattern, recurrence_parent_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, it.UserID, it.Name, nullStr(it.Description), it.SortOrder, it.Checked,
		nullTime(it.CheckedAt), nullTime(it.CompletedAt), nullTime(it.DeletedAt),
		nullTime(it.DueDate), nullTime(it.ReminderAt), nullStr(it.ReminderOffset),
		nullStr(it.RecurrencePattern), parent, formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}

	it.ID, _ = result.LastInsertId()
	return nil
}

// GetItem returns an item by id, or nil if not found.
func (db *DB) GetItem(id int64) (*Item, error) {
	it, err := scanItem(db.QueryRow(`SELECT `+itemCols+` FROM items WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item %d: %w", id, err)
	}
	return it, nil
}

// CompleteItem marks an item checked and records completion time.
func (db *DB) CompleteItem(id int64, now time.Time) error {
	_, err := db.Exec(`
		UPDATE items SET checked = 1, checked_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`, formatTime(now), formatTime(now), formatTime(now), id)
	if err != nil {
		return fmt.Errorf("complete item %d: %w", id, err)
	}
	return nil
}
