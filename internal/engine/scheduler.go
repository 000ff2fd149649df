package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lazypower/nudge/internal/store"
)

// TickStats summarizes one scheduler pass.
type TickStats struct {
	Processed      int
	PushSent       int
	SMSSent        int
	CallsInitiated int
	Completed      int
	Skipped        int
}

func (s TickStats) String() string {
	return fmt.Sprintf("processed=%d push=%d sms=%d calls=%d completed=%d skipped=%d",
		s.Processed, s.PushSent, s.SMSSent, s.CallsInitiated, s.Completed, s.Skipped)
}

// Tick processes every pending reminder whose next escalation time has
// passed. Reminders are handled independently; one reminder's failure is
// logged and does not abort the rest of the pass.
func (e *Engine) Tick(ctx context.Context, now time.Time) (TickStats, error) {
	var stats TickStats

	due, err := e.DB.DueReminders(now)
	if err != nil {
		return stats, fmt.Errorf("load due reminders: %w", err)
	}

	for i := range due {
		if err := e.escalate(ctx, &due[i], now, &stats); err != nil {
			log.Printf("scheduler: reminder %d: %v", due[i].ID, err)
		}
	}

	return stats, nil
}

// escalate runs one reminder through the state machine for this tick.
func (e *Engine) escalate(ctx context.Context, r *store.ReminderState, now time.Time, stats *TickStats) error {
	item, err := e.DB.GetItem(r.ItemID)
	if err != nil {
		return err
	}
	if item == nil || item.Checked || item.DeletedAt != nil {
		// The task was finished or removed outside this engine. Close out
		// the reminder without sending anything.
		if _, err := e.DB.ResolveReminder(r.ID, store.StatusCompleted, now); err != nil {
			return err
		}
		stats.Completed++
		return nil
	}

	settings, err := e.DB.GetSettings(item.UserID)
	if err != nil {
		return err
	}

	if inQuietHours(settings, now) {
		// Leave the row untouched; the next tick re-evaluates.
		log.Printf("scheduler: reminder %d in quiet hours, skipping", r.ID)
		stats.Skipped++
		return nil
	}

	timing := timingFor(settings)
	phone := ""
	safeWord := store.DefaultSafeWord
	tz := "UTC"
	if settings != nil {
		phone = settings.PhoneNumber
		tz = settings.Timezone
		if settings.SafeWord != "" {
			safeWord = settings.SafeWord
		}
	}

	// Claim the advance before sending. The conditional update means an
	// overlapping tick loses the claim and sends nothing, and a failed send
	// still advances on schedule: the next channel is the remedy, not a
	// retry.
	var next time.Time
	toLevel := r.EscalationLevel
	switch r.EscalationLevel {
	case store.LevelPush:
		toLevel = store.LevelSMS
		next = now.Add(time.Duration(timing.PushToSMS) * time.Minute)
	case store.LevelSMS:
		toLevel = store.LevelCall
		next = now.Add(time.Duration(timing.SMSToCall) * time.Minute)
	case store.LevelCall:
		// Stay at the call level; repeat until the user responds.
		next = now.Add(time.Duration(timing.CallRepeat) * time.Minute)
	default:
		return fmt.Errorf("unknown escalation level %d", r.EscalationLevel)
	}

	won, err := e.DB.AdvanceReminder(r.ID, r.EscalationLevel, toLevel, next, now)
	if err != nil {
		return err
	}
	if !won {
		stats.Skipped++
		return nil
	}

	switch r.EscalationLevel {
	case store.LevelPush:
		if e.Notify.SendPush(ctx, item.UserID, "Reminder: "+item.Name, reminderBody(item, tz),
			item.ID, fmt.Sprintf("/items/%d?respond=%d", item.ID, r.ID)) {
			stats.PushSent++
		}

	case store.LevelSMS:
		if phone != "" {
			msg := fmt.Sprintf("Reminder: %s. Reply with when you'll do it, or '%s' to escape.", item.Name, safeWord)
			if e.Notify.SendSMS(ctx, phone, msg) {
				stats.SMSSent++
			}
		} else {
			log.Printf("scheduler: no phone number for user %d, skipping SMS", item.UserID)
		}

	case store.LevelCall:
		if phone != "" {
			if e.Notify.InitiateCall(ctx, phone, item.Name, item.ID) {
				stats.CallsInitiated++
			}
		} else {
			log.Printf("scheduler: no phone number for user %d, skipping call", item.UserID)
		}
	}

	stats.Processed++
	return nil
}
