package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lazypower/nudge/internal/store"
)

// notifyPartner texts the accountability partner after an escape. Best
// effort: the reminder is already ESCAPED and stays that way whether or not
// the partner hears about it.
func (e *Engine) notifyPartner(ctx context.Context, settings *store.NotificationSettings, item *store.Item) {
	if settings == nil || settings.PartnerPhone == "" {
		log.Printf("escape: no accountability partner for user %d", item.UserID)
		return
	}

	due := "no due date"
	if item.DueDate != nil {
		due = item.DueDate.Format(time.RFC3339)
	}
	msg := fmt.Sprintf("User %d used their safe word to abandon task: %q (was due: %s)",
		item.UserID, item.Name, due)

	if !e.Notify.SendSMS(ctx, settings.PartnerPhone, msg) {
		log.Printf("escape: failed to notify partner for user %d", item.UserID)
	}
}
