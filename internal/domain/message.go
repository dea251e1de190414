package domain

import "time"

// Message is one entry of a chat transcript.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	IsUser    bool      `json:"isUser"`
	Products  []Product `json:"products,omitempty"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasProducts returns true if the message carries product recommendations.
func (m *Message) HasProducts() bool {
	return len(m.Products) > 0
}
