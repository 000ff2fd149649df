package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/lazypower/nudge/internal/store"
)

// Provider webhooks are fire-and-forget from Twilio's perspective: every
// handler acknowledges fast and processes the reply in the background.

// handleTwilioSMS receives inbound SMS replies. Twilio posts form fields
// From (sender) and Body (text); the sender's phone number identifies the
// user, and the reply targets their most recently escalated reminder.
func (s *Server) handleTwilioSMS(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeTwiMLMessage(w, "Sorry, there was an error processing your response.")
		return
	}
	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")
	log.Printf("webhook: SMS from %s: %q", from, body)

	settings, err := s.db.SettingsByPhone(from)
	if err != nil {
		log.Printf("webhook: settings lookup for %s: %v", from, err)
		writeTwiMLMessage(w, "Sorry, there was an error processing your response.")
		return
	}
	if settings == nil {
		log.Printf("webhook: no user registered with phone %s", from)
		writeTwiMLMessage(w, "Sorry, your phone number is not registered.")
		return
	}

	reminder, err := s.db.LatestPendingReminderForUser(settings.UserID)
	if err != nil {
		log.Printf("webhook: reminder lookup for user %d: %v", settings.UserID, err)
		writeTwiMLMessage(w, "Sorry, there was an error processing your response.")
		return
	}
	if reminder == nil {
		writeTwiMLMessage(w, "No active reminders found.")
		return
	}

	s.processReplyAsync(reminder.ID, store.ChannelSMS, body)
	writeTwiMLMessage(w, "Got it! Processing your response.")
}

// handleVoiceTwiML returns the call script: read the task, then record the
// spoken reply. Twilio fetches this when the outbound call connects.
func (s *Server) handleVoiceTwiML(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(r.URL.Query().Get("item_id"), 10, 64)
	if err != nil {
		writeTwiMLSay(w, "Sorry, this task was not found.")
		return
	}

	item, err := s.db.GetItem(itemID)
	if err != nil || item == nil {
		writeTwiMLSay(w, "Sorry, this task was not found.")
		return
	}

	safeWord := store.DefaultSafeWord
	if settings, err := s.db.GetSettings(item.UserID); err == nil && settings != nil && settings.SafeWord != "" {
		safeWord = settings.SafeWord
	}

	message := fmt.Sprintf("Reminder: %s. Please say your response after the beep. "+
		"Say done if you completed it, or give me a specific time to reschedule. "+
		"Say %s to escape.", item.Name, safeWord)
	writeTwiMLRecord(w, message, itemID)
}

// handleVoiceStatus receives call lifecycle callbacks.
func (s *Server) handleVoiceStatus(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	log.Printf("webhook: voice call status %s, SID %s", r.PostFormValue("CallStatus"), r.PostFormValue("CallSid"))
	writeTwiMLEmpty(w)
}

// handleVoiceRecorded acknowledges a finished recording. The transcription
// callback carries the text this engine actually acts on.
func (s *Server) handleVoiceRecorded(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	log.Printf("webhook: voice recording for item %s: %s",
		r.URL.Query().Get("item_id"), r.PostFormValue("RecordingUrl"))
	writeTwiMLSay(w, "Thank you. I'll process your response shortly.")
}

// handleVoiceTranscription routes transcribed speech into the interpreter.
func (s *Server) handleVoiceTranscription(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	text := r.PostFormValue("TranscriptionText")
	itemID, err := strconv.ParseInt(r.URL.Query().Get("item_id"), 10, 64)
	if text == "" || err != nil {
		log.Printf("webhook: transcription missing text or item_id")
		writeTwiMLEmpty(w)
		return
	}

	log.Printf("webhook: transcription for item %d: %q", itemID, text)

	reminder, err := s.db.PendingReminderForItem(itemID)
	if err != nil {
		log.Printf("webhook: reminder lookup for item %d: %v", itemID, err)
	} else if reminder != nil {
		s.processReplyAsync(reminder.ID, store.ChannelCall, text)
	}

	writeTwiMLEmpty(w)
}

// processReplyAsync runs the interpreter in the background so provider
// callbacks get their acknowledgment immediately.
func (s *Server) processReplyAsync(reminderID int64, channel, text string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := s.engine.Interpret(ctx, reminderID, channel, text); err != nil {
			log.Printf("webhook: process reply for reminder %d: %v", reminderID, err)
		}
	}()
}
