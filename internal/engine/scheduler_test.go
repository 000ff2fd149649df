package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/nudge/internal/notify"
	"github.com/lazypower/nudge/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.DB, *notify.Mock) {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock := notify.NewMock()
	return New(db, nil, mock), db, mock
}

func makeItem(t *testing.T, db *store.DB, userID int64, due time.Time) *store.Item {
	t.Helper()
	it := &store.Item{UserID: userID, Name: "call the dentist", DueDate: &due}
	require.NoError(t, db.CreateItem(it))
	return it
}

func TestTickEscalatesThroughChannels(t *testing.T) {
	eng, db, mock := newTestEngine(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	it := makeItem(t, db, 1, now)
	require.NoError(t, db.UpdateSettings(&store.NotificationSettings{
		UserID:      1,
		PhoneNumber: "+15551234567",
		Timing:      store.DefaultTiming(),
	}))
	r, err := db.UpsertReminder(it.ID, now)
	require.NoError(t, err)

	// Level 0: push goes out, reminder moves to level 1 five minutes out.
	stats, err := eng.Tick(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PushSent)
	assert.Len(t, mock.Pushes, 1)

	got, _ := db.GetReminder(r.ID)
	assert.Equal(t, store.LevelSMS, got.EscalationLevel)
	require.NotNil(t, got.NextEscalationAt)
	assert.True(t, got.NextEscalationAt.Equal(now.Add(5*time.Minute)))

	// Not yet due again: nothing happens.
	stats, err = eng.Tick(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Processed)

	// Level 1: SMS with the safe word escape hatch.
	t1 := now.Add(5 * time.Minute)
	stats, err = eng.Tick(ctx, t1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SMSSent)
	require.Len(t, mock.SMS, 1)
	assert.Contains(t, mock.SMS[0], "call the dentist")
	assert.Contains(t, mock.SMS[0], store.DefaultSafeWord)

	got, _ = db.GetReminder(r.ID)
	assert.Equal(t, store.LevelCall, got.EscalationLevel)
	require.NotNil(t, got.NextEscalationAt)
	assert.True(t, got.NextEscalationAt.Equal(t1.Add(15*time.Minute)))

	// Level 2 repeats: two more ticks, two calls, level never exceeds 2.
	t2 := t1.Add(15 * time.Minute)
	_, err = eng.Tick(ctx, t2)
	require.NoError(t, err)
	_, err = eng.Tick(ctx, t2.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Len(t, mock.Calls, 2)

	got, _ = db.GetReminder(r.ID)
	assert.Equal(t, store.LevelCall, got.EscalationLevel)
	assert.Equal(t, store.StatusPending, got.Status)
}

func TestTickRespectsCustomTiming(t *testing.T) {
	eng, db, _ := newTestEngine(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	it := makeItem(t, db, 1, now)
	require.NoError(t, db.UpdateSettings(&store.NotificationSettings{
		UserID: 1,
		Timing: store.EscalationTiming{PushToSMS: 45, SMSToCall: 15, CallRepeat: 30},
	}))
	r, _ := db.UpsertReminder(it.ID, now)

	_, err := eng.Tick(context.Background(), now)
	require.NoError(t, err)

	got, _ := db.GetReminder(r.ID)
	require.NotNil(t, got.NextEscalationAt)
	assert.True(t, got.NextEscalationAt.Equal(now.Add(45*time.Minute)))
}

func TestTickQuietHoursLeavesReminderUntouched(t *testing.T) {
	eng, db, mock := newTestEngine(t)

	// 23:30 UTC falls inside a 23:00-07:00 overnight window.
	now := time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC)
	it := makeItem(t, db, 1, now)
	require.NoError(t, db.UpdateSettings(&store.NotificationSettings{
		UserID:          1,
		Timing:          store.DefaultTiming(),
		QuietHoursStart: "23:00",
		QuietHoursEnd:   "07:00",
		Timezone:        "UTC",
	}))
	r, _ := db.UpsertReminder(it.ID, now.Add(-time.Minute))

	stats, err := eng.Tick(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, mock.Sent())

	got, _ := db.GetReminder(r.ID)
	assert.Equal(t, store.LevelPush, got.EscalationLevel)
	assert.Nil(t, got.LastEscalationAt)

	// 07:30 is past the window: the same reminder now escalates.
	morning := time.Date(2025, 6, 2, 7, 30, 0, 0, time.UTC)
	stats, err = eng.Tick(context.Background(), morning)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PushSent)
}

func TestTickResolvesReminderForFinishedItem(t *testing.T) {
	eng, db, mock := newTestEngine(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	it := makeItem(t, db, 1, now)
	r, _ := db.UpsertReminder(it.ID, now.Add(-time.Minute))
	require.NoError(t, db.CompleteItem(it.ID, now))

	stats, err := eng.Tick(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 0, mock.Sent())

	got, _ := db.GetReminder(r.ID)
	assert.Equal(t, store.StatusCompleted, got.Status)
}

func TestTickAdvancesPastSMSWithoutPhone(t *testing.T) {
	eng, db, mock := newTestEngine(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	it := makeItem(t, db, 1, now)
	r, _ := db.UpsertReminder(it.ID, now)

	_, err := eng.Tick(context.Background(), now)
	require.NoError(t, err)
	_, err = eng.Tick(context.Background(), now.Add(5*time.Minute))
	require.NoError(t, err)

	// No phone number means no SMS, but the ladder still climbs so the
	// reminder is not stuck at the SMS rung forever.
	assert.Empty(t, mock.SMS)
	got, _ := db.GetReminder(r.ID)
	assert.Equal(t, store.LevelCall, got.EscalationLevel)
}

func TestTickFailedSendStillAdvances(t *testing.T) {
	eng, db, mock := newTestEngine(t)
	mock.PushOK = false

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	it := makeItem(t, db, 1, now)
	r, _ := db.UpsertReminder(it.ID, now)

	stats, err := eng.Tick(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.PushSent)
	assert.Equal(t, 1, stats.Processed)

	got, _ := db.GetReminder(r.ID)
	assert.Equal(t, store.LevelSMS, got.EscalationLevel)
}

func TestScheduleReminder(t *testing.T) {
	eng, db, _ := newTestEngine(t)

	due := time.Date(2025, 6, 1, 17, 0, 0, 0, time.UTC)
	remind := due.Add(-time.Hour)

	t.Run("explicit reminder time", func(t *testing.T) {
		it := &store.Item{UserID: 1, Name: "a", DueDate: &due, ReminderAt: &remind}
		require.NoError(t, db.CreateItem(it))

		r, err := eng.ScheduleReminder(it.ID)
		require.NoError(t, err)
		assert.True(t, r.NextEscalationAt.Equal(remind))
	})

	t.Run("offset from due date", func(t *testing.T) {
		it := &store.Item{UserID: 1, Name: "b", DueDate: &due, ReminderOffset: "30m"}
		require.NoError(t, db.CreateItem(it))

		r, err := eng.ScheduleReminder(it.ID)
		require.NoError(t, err)
		assert.True(t, r.NextEscalationAt.Equal(due.Add(-30*time.Minute)))
	})

	t.Run("due date only", func(t *testing.T) {
		it := &store.Item{UserID: 1, Name: "c", DueDate: &due}
		require.NoError(t, db.CreateItem(it))

		r, err := eng.ScheduleReminder(it.ID)
		require.NoError(t, err)
		assert.True(t, r.NextEscalationAt.Equal(due))
	})

	t.Run("nothing to schedule from", func(t *testing.T) {
		it := &store.Item{UserID: 1, Name: "d"}
		require.NoError(t, db.CreateItem(it))

		_, err := eng.ScheduleReminder(it.ID)
		assert.Error(t, err)
	})

	t.Run("reschedule resets existing cycle", func(t *testing.T) {
		it := &store.Item{UserID: 1, Name: "e", DueDate: &due}
		require.NoError(t, db.CreateItem(it))

		r1, err := eng.ScheduleReminder(it.ID)
		require.NoError(t, err)
		_, err = db.AdvanceReminder(r1.ID, 0, 2, due, due)
		require.NoError(t, err)

		r2, err := eng.ScheduleReminder(it.ID)
		require.NoError(t, err)
		assert.Equal(t, r1.ID, r2.ID)
		assert.Equal(t, 0, r2.EscalationLevel)
	})

	t.Run("missing item", func(t *testing.T) {
		_, err := eng.ScheduleReminder(9999)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
