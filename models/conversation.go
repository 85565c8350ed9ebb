package models

const (
	ChatTypeDirect = "direct"
	ChatTypeGroup  = "group"
)

// LastMessagePreview is the trimmed tail message shown in the room list.
type LastMessagePreview struct {
	Content   string `json:"content,omitempty"`
	CreatedAt *Time  `json:"created_at,omitempty"`
	HasFile   bool   `json:"has_file,omitempty"`
	FileType  string `json:"file_type,omitempty"`
}

// Conversation is one room as returned by the rooms listing: a direct chat
// with a counterpart user, or a group with a label. The client keeps at most
// one live transcript, for whichever conversation is active.
type Conversation struct {
	ID               int64               `json:"id"`
	ChatType         string              `json:"chat_type"`
	GroupName        string              `json:"group_name,omitempty"`
	OtherUser        *User               `json:"other_user,omitempty"`
	UnreadCount      int                 `json:"unread_count"`
	LastMessage      *LastMessagePreview `json:"last_message,omitempty"`
	ParticipantCount int                 `json:"participant_count,omitempty"`
}

// Label returns the display name for the room list.
func (c Conversation) Label() string {
	if c.ChatType == ChatTypeGroup {
		if c.GroupName != "" {
			return c.GroupName
		}
		return "Group"
	}
	if c.OtherUser != nil {
		if c.OtherUser.DisplayName != "" {
			return c.OtherUser.DisplayName
		}
		return c.OtherUser.Username
	}
	return "Unknown"
}
