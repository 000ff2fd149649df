package engine

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/lazypower/nudge/internal/store"
)

// nextDueDate computes the due date of the next occurrence. Monthly
// recurrence uses calendar-month arithmetic, not a 30-day approximation.
func nextDueDate(pattern string, due time.Time) (time.Time, bool) {
	switch pattern {
	case store.RecurDaily:
		return due.AddDate(0, 0, 1), true
	case store.RecurWeekly:
		return due.AddDate(0, 0, 7), true
	case store.RecurMonthly:
		return due.AddDate(0, 1, 0), true
	default:
		return time.Time{}, false
	}
}

// parseOffset parses a reminder offset like "30m", "1h", "1d".
func parseOffset(offset string) (time.Duration, bool) {
	if len(offset) < 2 {
		return 0, false
	}
	value, err := strconv.Atoi(offset[:len(offset)-1])
	if err != nil || value < 0 {
		return 0, false
	}
	switch strings.ToLower(offset[len(offset)-1:]) {
	case "m":
		return time.Duration(value) * time.Minute, true
	case "h":
		return time.Duration(value) * time.Hour, true
	case "d":
		return time.Duration(value) * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// nextReminderTime preserves the relationship between the original due date
// and its reminder: an offset string is re-applied to the new due date,
// otherwise the original (due - reminder_at) gap carries over, otherwise the
// reminder fires at the due time itself.
func nextReminderTime(item *store.Item, newDue time.Time) time.Time {
	if item.ReminderOffset != "" {
		if d, ok := parseOffset(item.ReminderOffset); ok {
			return newDue.Add(-d)
		}
	}
	if item.ReminderAt != nil && item.DueDate != nil {
		gap := item.DueDate.Sub(*item.ReminderAt)
		return newDue.Add(-gap)
	}
	return newDue
}

// generateRecurrence creates the next occurrence of a completed recurring
// item and schedules a fresh reminder for it.
func (e *Engine) generateRecurrence(item *store.Item) (*store.Item, error) {
	if item.RecurrencePattern == "" || item.DueDate == nil {
		return nil, nil
	}

	newDue, ok := nextDueDate(item.RecurrencePattern, *item.DueDate)
	if !ok {
		return nil, fmt.Errorf("unknown recurrence pattern %q", item.RecurrencePattern)
	}
	newReminder := nextReminderTime(item, newDue)

	// The chain always points at its original root, not the immediately
	// preceding occurrence.
	rootID := item.ID
	if item.RecurrenceParentID != nil {
		rootID = *item.RecurrenceParentID
	}

	next := &store.Item{
		UserID:             item.UserID,
		Name:               item.Name,
		Description:        item.Description,
		SortOrder:          item.SortOrder,
		DueDate:            &newDue,
		ReminderAt:         &newReminder,
		ReminderOffset:     item.ReminderOffset,
		RecurrencePattern:  item.RecurrencePattern,
		RecurrenceParentID: &rootID,
	}
	if err := e.DB.CreateItem(next); err != nil {
		return nil, err
	}

	if _, err := e.DB.UpsertReminder(next.ID, newReminder); err != nil {
		return nil, err
	}

	log.Printf("recurrence: created item %d from %d, due %s", next.ID, item.ID, newDue.Format(time.RFC3339))
	return next, nil
}
