package server

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/http"
)

// TwiML response rendering for the Twilio webhook handlers. Messages are
// XML-escaped since task names are user-controlled.

func writeTwiML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprintf(w, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<Response>%s</Response>", body)
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// writeTwiMLMessage replies to an inbound SMS.
func writeTwiMLMessage(w http.ResponseWriter, message string) {
	writeTwiML(w, fmt.Sprintf("\n    <Message>%s</Message>\n", xmlEscape(message)))
}

// writeTwiMLSay speaks a message and hangs up.
func writeTwiMLSay(w http.ResponseWriter, message string) {
	writeTwiML(w, fmt.Sprintf("\n    <Say voice=\"alice\">%s</Say>\n    <Hangup/>\n", xmlEscape(message)))
}

// writeTwiMLRecord speaks the prompt and records the caller's reply, with
// transcription posted back to the transcription webhook.
func writeTwiMLRecord(w http.ResponseWriter, message string, itemID int64) {
	writeTwiML(w, fmt.Sprintf(`
    <Say voice="alice">%s</Say>
    <Record maxLength="60" playBeep="true"
            action="/api/webhooks/twilio/voice/recorded?item_id=%d"
            transcribe="true"
            transcribeCallback="/api/webhooks/twilio/voice/transcription?item_id=%d"/>
    <Say voice="alice">I didn't hear anything. Goodbye.</Say>
`, xmlEscape(message), itemID, itemID))
}

// writeTwiMLEmpty acknowledges a callback with an empty response.
func writeTwiMLEmpty(w http.ResponseWriter) {
	writeTwiML(w, "")
}
