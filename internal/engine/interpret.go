package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lazypower/nudge/internal/llm"
	"github.com/lazypower/nudge/internal/store"
)

// Actions the classifier can decide on.
const (
	ActionComplete   = "complete"
	ActionReschedule = "reschedule"
	ActionPushback   = "pushback"
	ActionEscape     = "escape"
)

// Default pushback messages for the deterministic fallback paths.
const (
	fallbackPushback = "I didn't understand. When will you do this task?"
	badTimePushback  = "I couldn't understand that time. When exactly will you do it?"
)

// interpretation is the JSON structure returned by the classifier.
type interpretation struct {
	Action          string `json:"action"`
	NewReminderAt   string `json:"new_reminder_at,omitempty"`
	PushbackMessage string `json:"pushback_message,omitempty"`
}

// InterpretResult describes what the engine did with a reply.
type InterpretResult struct {
	Action          string     `json:"action"`
	NewReminderAt   *time.Time `json:"new_reminder_at,omitempty"`
	PushbackMessage string     `json:"pushback_message,omitempty"`
}

// Interpret classifies a raw reply and applies the resulting transition.
// It never leaves the reminder in an undefined state: classifier errors
// degrade to a pushback, and a reminder_responses row is always written.
func (e *Engine) Interpret(ctx context.Context, reminderID int64, channel, raw string) (*InterpretResult, error) {
	lock := e.reminderLock(reminderID)
	lock.Lock()
	defer lock.Unlock()

	reminder, err := e.DB.GetReminder(reminderID)
	if err != nil {
		return nil, err
	}
	if reminder == nil {
		return nil, fmt.Errorf("reminder %d: %w", reminderID, ErrNotFound)
	}

	item, err := e.DB.GetItem(reminder.ItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", reminder.ItemID, ErrNotFound)
	}

	settings, err := e.DB.GetOrCreateSettings(item.UserID)
	if err != nil {
		return nil, err
	}
	safeWord := settings.SafeWord
	if safeWord == "" {
		safeWord = store.DefaultSafeWord
	}

	now := time.Now().UTC()
	interp := e.classify(ctx, item, raw, safeWord, now)

	// Log the reply before applying the transition so the record survives
	// any downstream failure.
	interpJSON, _ := json.Marshal(interp)
	if err := e.DB.AddResponse(reminder.ID, channel, raw, string(interpJSON)); err != nil {
		log.Printf("interpret: log response for reminder %d: %v", reminder.ID, err)
	}

	result := &InterpretResult{Action: interp.Action}

	switch interp.Action {
	case ActionComplete:
		if err := e.DB.CompleteItem(item.ID, now); err != nil {
			return nil, err
		}
		if _, err := e.DB.ResolveReminder(reminder.ID, store.StatusCompleted, now); err != nil {
			return nil, err
		}
		log.Printf("interpret: item %d marked complete via %s", item.ID, channel)

		if item.RecurrencePattern != "" {
			if _, err := e.generateRecurrence(item); err != nil {
				log.Printf("interpret: recurrence for item %d: %v", item.ID, err)
			}
		}
		e.emit(Event{Action: ActionComplete, ItemID: item.ID, ReminderID: reminder.ID})

	case ActionReschedule:
		newAt, ok := parseReminderTime(interp.NewReminderAt)
		if !ok {
			log.Printf("interpret: invalid datetime from classifier: %q", interp.NewReminderAt)
			interp.Action = ActionPushback
			interp.PushbackMessage = badTimePushback
			result.Action = ActionPushback
			break
		}
		if err := e.DB.RescheduleReminder(reminder.ID, newAt, now); err != nil {
			return nil, err
		}
		result.NewReminderAt = &newAt
		log.Printf("interpret: reminder %d rescheduled to %s", reminder.ID, newAt.Format(time.RFC3339))
		e.emit(Event{Action: ActionReschedule, ItemID: item.ID, ReminderID: reminder.ID, NewReminderAt: &newAt})

	case ActionEscape:
		if _, err := e.DB.ResolveReminder(reminder.ID, store.StatusEscaped, now); err != nil {
			return nil, err
		}
		log.Printf("interpret: user %d escaped reminder %d", item.UserID, reminder.ID)
		e.notifyPartner(ctx, settings, item)
		e.emit(Event{Action: ActionEscape, ItemID: item.ID, ReminderID: reminder.ID})
	}

	if interp.Action == ActionPushback {
		msg := interp.PushbackMessage
		if msg == "" {
			msg = "When will you do this?"
		}
		result.Action = ActionPushback
		result.PushbackMessage = msg

		// Answer over the channel the reply arrived on.
		switch channel {
		case store.ChannelSMS:
			if settings.PhoneNumber != "" {
				e.Notify.SendSMS(ctx, settings.PhoneNumber, msg)
			}
		case store.ChannelPush, store.ChannelApp:
			e.Notify.SendPush(ctx, item.UserID, item.Name, msg, item.ID, "")
		}
	}

	return result, nil
}

// classify turns a raw reply into a structured interpretation. The safe word
// always wins, the classifier decides everything else, and any classifier
// failure degrades to a generic pushback.
func (e *Engine) classify(ctx context.Context, item *store.Item, raw, safeWord string, now time.Time) interpretation {
	if strings.EqualFold(strings.TrimSpace(raw), safeWord) {
		return interpretation{Action: ActionEscape}
	}

	fallback := interpretation{Action: ActionPushback, PushbackMessage: fallbackPushback}
	if e.LLM == nil {
		return fallback
	}

	due := ""
	if item.DueDate != nil {
		due = item.DueDate.Format(time.RFC3339)
	}
	prompt := llm.AccountabilityPrompt(item.Name, due, raw, safeWord, now.Format(time.RFC3339))

	timeout := e.LLMTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	llmCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := e.LLM.Complete(llmCtx, llm.AccountabilitySystem, prompt)
	if err != nil {
		log.Printf("interpret: classifier error: %v", err)
		return fallback
	}

	interp, err := parseInterpretation(resp.Content)
	if err != nil {
		log.Printf("interpret: unparseable classifier output: %v", err)
		return fallback
	}

	// The safe word is authoritative in both directions: the classifier may
	// not declare an escape the user didn't type.
	if interp.Action == ActionEscape {
		return fallback
	}
	return interp
}

// parseInterpretation extracts the JSON object from the classifier response.
// The response might contain markdown code fences or other wrapper text.
func parseInterpretation(content string) (interpretation, error) {
	var interp interpretation

	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < 0 || end <= start {
		return interp, fmt.Errorf("no JSON object found in response")
	}

	if err := json.Unmarshal([]byte(content[start:end+1]), &interp); err != nil {
		return interp, fmt.Errorf("unmarshal interpretation: %w", err)
	}

	switch interp.Action {
	case ActionComplete, ActionReschedule, ActionPushback, ActionEscape:
		return interp, nil
	default:
		return interp, fmt.Errorf("unknown action %q", interp.Action)
	}
}

// parseReminderTime parses the classifier's timestamp. Accepts RFC3339 and a
// bare local-less datetime, which is treated as UTC.
func parseReminderTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
