package models

// NotificationType distinguishes notification records
type NotificationType string

const (
	NotificationTypeReply      NotificationType = "reply"
	NotificationTypeInvitation NotificationType = "invitation"
)

// Notification is a per-user record at notifications/{uid}/{id}. Repeated
// reply events for the same post collapse into Count on a single record
// (the trigger pipeline keys reply notes as "reply-{postId}").
type Notification struct {
	ID        string           `json:"id,omitempty"`
	Type      NotificationType `json:"type"`
	Count     int              `json:"count"`
	IsRead    bool             `json:"isRead"`
	CreatedAt int64            `json:"createdAt"`
	UpdatedAt int64            `json:"updatedAt"`
}
