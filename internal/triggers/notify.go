package triggers

import (
	"context"
	"log"

	"github.com/n-crespo/theopendissent/backend/internal/models"
	"github.com/n-crespo/theopendissent/backend/internal/store"
)

// NewReplyNotifier returns the trigger that records a reply notification for
// the parent post's author. Register on "replies/{parentID}/{replyID}".
//
// Notifications are keyed "reply-{parentID}" per receiver, so repeated
// replies to the same post collapse into a running count on one record
// instead of one record per reply.
func NewReplyNotifier(s *store.Store) HandlerFunc {
	return func(ctx context.Context, inv Invocation) error {
		if inv.SubPath != "" || replyDelta(inv.Event.Before, inv.Event.After) != 1 {
			return nil
		}
		parentID := inv.Params["parentID"]

		receiver, _ := s.Get(store.Join("posts", parentID, "authorId")).(string)
		if receiver == "" {
			log.Printf("reply notifier: parent %s is gone, skipping", parentID)
			return nil
		}

		var reply models.Post
		if err := store.Decode(inv.Event.After, &reply); err != nil {
			return err
		}
		if reply.AuthorID == receiver {
			// No notification for replying to yourself.
			return nil
		}

		notePath := store.Join("notifications", receiver, "reply-"+parentID)
		return s.Transaction(notePath, func(current any) (any, error) {
			now := s.Now()
			note := models.Notification{
				Type:      models.NotificationTypeReply,
				CreatedAt: now,
			}
			if store.Exists(current) {
				if err := store.Decode(current, &note); err != nil {
					return nil, err
				}
			}
			note.Count++
			note.IsRead = false
			note.UpdatedAt = now
			return note, nil
		})
	}
}
