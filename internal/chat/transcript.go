package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/skincare-assistant/internal/domain"
)

// Greeting opens every transcript.
const Greeting = "Hello! I'm your Minimalist Skincare Assistant. How can I help you with your skin today? " +
	"You can describe your skin concerns or ask for product advice."

// Apology replaces the assistant reply of a failed turn.
const Apology = "I'm sorry, I couldn't get a response right now. Please try again in a moment."

// Transcript is an append-only, ordered list of messages. Appended messages
// are never modified; readers get copies.
type Transcript struct {
	mu       sync.RWMutex
	messages []domain.Message
	now      func() time.Time
}

// NewTranscript returns a transcript that starts with the assistant greeting.
func NewTranscript() *Transcript {
	t := &Transcript{now: time.Now}
	t.AppendAssistant(Greeting, nil)
	return t
}

// AppendUser records a user turn. imageURL may be empty.
func (t *Transcript) AppendUser(text, imageURL string) domain.Message {
	return t.append(domain.Message{Text: text, IsUser: true, ImageURL: imageURL})
}

// AppendAssistant records an assistant turn with its recommendations.
func (t *Transcript) AppendAssistant(text string, products []domain.Product) domain.Message {
	return t.append(domain.Message{Text: text, Products: append([]domain.Product(nil), products...)})
}

func (t *Transcript) append(m domain.Message) domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.appendLocked(m)
}

func (t *Transcript) appendLocked(m domain.Message) domain.Message {
	m.ID = uuid.NewString()
	m.CreatedAt = t.now().UTC()
	t.messages = append(t.messages, m)
	return m
}

// Messages returns a snapshot of the transcript in order.
func (t *Transcript) Messages() []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Reset drops every message and re-adds the greeting.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
	t.appendLocked(domain.Message{Text: Greeting})
}
