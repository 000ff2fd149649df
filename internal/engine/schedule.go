package engine

import (
	"fmt"

	"github.com/lazypower/nudge/internal/store"
)

// ScheduleReminder creates or resets the pending reminder for an item.
// Called whenever the task layer changes a due date, reminder time, or
// offset. The first escalation fires at reminder_at if set, else
// due_date minus the offset, else the due date itself.
func (e *Engine) ScheduleReminder(itemID int64) (*store.ReminderState, error) {
	item, err := e.DB.GetItem(itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", itemID, ErrNotFound)
	}

	var reminderTime = item.ReminderAt
	if reminderTime == nil && item.DueDate != nil && item.ReminderOffset != "" {
		if d, ok := parseOffset(item.ReminderOffset); ok {
			t := item.DueDate.Add(-d)
			reminderTime = &t
		} else {
			reminderTime = item.DueDate
		}
	}
	if reminderTime == nil {
		reminderTime = item.DueDate
	}
	if reminderTime == nil {
		return nil, fmt.Errorf("item %d has no due date or reminder time", itemID)
	}

	return e.DB.UpsertReminder(itemID, *reminderTime)
}
