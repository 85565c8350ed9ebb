package models

// Chat request lifecycle.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestRejected = "rejected"
)

// ChatRequest is a pending contact request: who asked, who is asked, and
// where the request stands. Kept as an explicit record rather than a loose
// map so the CLI and tests can rely on its shape.
type ChatRequest struct {
	ID         int64  `json:"id"`
	Sender     User   `json:"sender"`
	ReceiverID int64  `json:"receiver_id"`
	Status     string `json:"status"`
	CreatedAt  Time   `json:"created_at"`
}
