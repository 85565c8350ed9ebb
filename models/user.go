package models

type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	About       string `json:"about,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	IsOnline    bool   `json:"is_online"`
	LastSeen    *Time  `json:"last_seen,omitempty"`
	CreatedAt   *Time  `json:"created_at,omitempty"`
}

// Name returns the preferred display form of the user.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
