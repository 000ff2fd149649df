package notify

import (
	"context"
	"fmt"
	"sync"
)

// Mock is a test double for the Notifier interface. It records every send and
// returns the configured results.
type Mock struct {
	mu sync.Mutex

	PushOK bool
	SMSOK  bool
	CallOK bool

	Pushes []string // "userID|title|body"
	SMS    []string // "phone|message"
	Calls  []string // "phone|taskName"
}

// NewMock returns a Mock whose sends all succeed.
func NewMock() *Mock {
	return &Mock{PushOK: true, SMSOK: true, CallOK: true}
}

func (m *Mock) SendPush(ctx context.Context, userID int64, title, body string, itemID int64, url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Pushes = append(m.Pushes, fmt.Sprintf("%d|%s|%s", userID, title, body))
	return m.PushOK
}

func (m *Mock) SendSMS(ctx context.Context, phone, message string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SMS = append(m.SMS, phone+"|"+message)
	return m.SMSOK
}

func (m *Mock) InitiateCall(ctx context.Context, phone, taskName string, itemID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, phone+"|"+taskName)
	return m.CallOK
}

// Sent returns the total number of recorded sends across all channels.
func (m *Mock) Sent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Pushes) + len(m.SMS) + len(m.Calls)
}
