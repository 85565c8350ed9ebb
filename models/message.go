package models

import "strings"

// DeliveryState tracks how far a message has travelled toward its readers.
type DeliveryState string

const (
	StateSent      DeliveryState = "sent"
	StateDelivered DeliveryState = "delivered"
	StateRead      DeliveryState = "read"
)

// ReplyPreview is the short form of a quoted message embedded in a reply.
type ReplyPreview struct {
	ID       int64  `json:"id"`
	Content  string `json:"content"`
	SenderID int64  `json:"sender_id"`
}

// Message is one transcript entry as the backend serializes it. The id field
// carries either a server-assigned id or, for a not-yet-confirmed local send,
// a provisional id from the client identity scheme.
type Message struct {
	ID             int64         `json:"id"`
	ConversationID int64         `json:"room_id"`
	SenderID       int64         `json:"sender_id"`
	Content        string        `json:"content"`
	CreatedAt      Time          `json:"created_at"`
	Status         DeliveryState `json:"status,omitempty"`
	IsMine         bool          `json:"is_me,omitempty"`
	FileURL        string        `json:"file_url,omitempty"`
	FileName       string        `json:"file_name,omitempty"`
	FileType       string        `json:"file_type,omitempty"`
	ReplyTo        *ReplyPreview `json:"reply_to,omitempty"`
}

// Preview returns a short single-line rendering of the content for lists.
func (m Message) Preview(max int) string {
	s := strings.ReplaceAll(strings.TrimSpace(m.Content), "\n", " ")
	if max > 0 && len(s) > max {
		return s[:max] + "..."
	}
	return s
}
