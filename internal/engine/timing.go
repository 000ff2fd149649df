package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lazypower/nudge/internal/store"
)

// timingFor returns the user's escalation intervals, falling back to defaults
// when no settings row exists.
func timingFor(s *store.NotificationSettings) store.EscalationTiming {
	if s == nil {
		return store.DefaultTiming()
	}
	return s.Timing
}

// parseClock parses an "HH:MM" wall-clock string into minutes since midnight.
func parseClock(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// inQuietHours reports whether now falls within the user's quiet hours,
// evaluated in their configured timezone. The window is [start, end);
// overnight ranges (start > end, e.g. 23:00-07:00) wrap midnight.
func inQuietHours(s *store.NotificationSettings, now time.Time) bool {
	if s == nil || s.QuietHoursStart == "" || s.QuietHoursEnd == "" {
		return false
	}

	start, ok := parseClock(s.QuietHoursStart)
	if !ok {
		return false
	}
	end, ok := parseClock(s.QuietHoursEnd)
	if !ok {
		return false
	}

	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)
	cur := local.Hour()*60 + local.Minute()

	if start > end {
		return cur >= start || cur < end
	}
	return start <= cur && cur < end
}

// reminderBody renders the push notification body for an item, with the due
// time shown in the user's timezone.
func reminderBody(item *store.Item, tz string) string {
	if item.DueDate == nil {
		return "Time to complete this task"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	due := item.DueDate.In(loc).Format("3:04 PM")
	return fmt.Sprintf("Due at %s", due)
}
