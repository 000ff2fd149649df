package store

import "testing"

func TestGetOrCreateSettingsDefaults(t *testing.T) {
	db := testDB(t)

	s, err := db.GetOrCreateSettings(5)
	if err != nil {
		t.Fatalf("GetOrCreateSettings: %v", err)
	}
	if s.SafeWord != DefaultSafeWord {
		t.Errorf("SafeWord = %q, want %q", s.SafeWord, DefaultSafeWord)
	}
	if s.Timing != DefaultTiming() {
		t.Errorf("Timing = %+v, want defaults", s.Timing)
	}
	if s.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want UTC", s.Timezone)
	}

	// Second call returns the same row, not a duplicate.
	again, err := db.GetOrCreateSettings(5)
	if err != nil {
		t.Fatalf("GetOrCreateSettings again: %v", err)
	}
	if again.ID != s.ID {
		t.Errorf("got row %d, want %d", again.ID, s.ID)
	}
}

func TestUpdateSettings(t *testing.T) {
	db := testDB(t)

	s := &NotificationSettings{
		UserID:          9,
		PhoneNumber:     "+15551234567",
		PartnerPhone:    "+15559876543",
		SafeWord:        "uncle",
		Timing:          EscalationTiming{PushToSMS: 10, SMSToCall: 20, CallRepeat: 60},
		QuietHoursStart: "23:00",
		QuietHoursEnd:   "07:00",
		Timezone:        "America/New_York",
	}
	if err := db.UpdateSettings(s); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	got, err := db.GetSettings(9)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if got.PhoneNumber != "+15551234567" || got.PartnerPhone != "+15559876543" {
		t.Errorf("phones = %q / %q", got.PhoneNumber, got.PartnerPhone)
	}
	if got.SafeWord != "uncle" {
		t.Errorf("SafeWord = %q, want uncle", got.SafeWord)
	}
	if got.Timing.PushToSMS != 10 || got.Timing.SMSToCall != 20 || got.Timing.CallRepeat != 60 {
		t.Errorf("Timing = %+v", got.Timing)
	}
	if got.QuietHoursStart != "23:00" || got.QuietHoursEnd != "07:00" {
		t.Errorf("quiet hours = %q-%q", got.QuietHoursStart, got.QuietHoursEnd)
	}
	if got.Timezone != "America/New_York" {
		t.Errorf("Timezone = %q", got.Timezone)
	}
}

func TestUpdateSettingsEmptySafeWordFallsBack(t *testing.T) {
	db := testDB(t)

	if err := db.UpdateSettings(&NotificationSettings{UserID: 4, Timing: DefaultTiming()}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	got, _ := db.GetSettings(4)
	if got.SafeWord != DefaultSafeWord {
		t.Errorf("SafeWord = %q, want %q", got.SafeWord, DefaultSafeWord)
	}
}

func TestBadTimingJSONFallsBack(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetOrCreateSettings(2); err != nil {
		t.Fatalf("GetOrCreateSettings: %v", err)
	}
	if _, err := db.Exec(`UPDATE notification_settings SET escalation_timing = 'not json' WHERE user_id = 2`); err != nil {
		t.Fatalf("corrupt timing: %v", err)
	}

	got, err := db.GetSettings(2)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if got.Timing != DefaultTiming() {
		t.Errorf("Timing = %+v, want defaults", got.Timing)
	}
}

func TestSettingsByPhone(t *testing.T) {
	db := testDB(t)
	db.UpdateSettings(&NotificationSettings{UserID: 1, PhoneNumber: "+15550000001", Timing: DefaultTiming()})
	db.UpdateSettings(&NotificationSettings{UserID: 2, PhoneNumber: "+15550000002", Timing: DefaultTiming()})

	got, err := db.SettingsByPhone("+15550000002")
	if err != nil {
		t.Fatalf("SettingsByPhone: %v", err)
	}
	if got == nil || got.UserID != 2 {
		t.Fatalf("got %+v, want user 2", got)
	}

	none, err := db.SettingsByPhone("+15559999999")
	if err != nil {
		t.Fatalf("SettingsByPhone: %v", err)
	}
	if none != nil {
		t.Errorf("got %+v, want nil for unknown phone", none)
	}
}
