package insight

import (
	"fmt"
	"sync"

	"sentilytics/internal/types"
)

// ClearedGreeting seeds the transcript after a Clear.
const ClearedGreeting = "History cleared. How can I help?"

// Greeting builds the seed message for a fresh transcript. Admins see
// the whole corpus; regular users only their own responses.
func Greeting(user types.User) string {
	if user.IsAdmin() {
		return "Hello! I am your AI Feedback Assistant. Ask me anything about the collected feedback."
	}
	return fmt.Sprintf("Hello %s! I am your AI Feedback Assistant. Ask me anything about your responses.", user.Name)
}

// Transcript is the append-only chat history for one session. Messages
// are only ever appended or reset to a single seed; existing entries
// are never edited. Safe for concurrent use.
type Transcript struct {
	mu       sync.Mutex
	messages []types.ChatMessage
}

// NewTranscript creates a transcript seeded with one assistant message.
func NewTranscript(seed string) *Transcript {
	return &Transcript{messages: []types.ChatMessage{{Role: types.ChatRoleAssistant, Text: seed}}}
}

// Append adds one message to the end of the transcript. Role is one of
// types.ChatRoleUser or types.ChatRoleAssistant.
func (t *Transcript) Append(role, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, types.ChatMessage{Role: role, Text: text})
}

// Clear resets the transcript to a single seed message.
func (t *Transcript) Clear(seed string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = []types.ChatMessage{{Role: types.ChatRoleAssistant, Text: seed}}
}

// Messages returns a copy of the transcript in order.
func (t *Transcript) Messages() []types.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.ChatMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len reports the number of messages.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}
