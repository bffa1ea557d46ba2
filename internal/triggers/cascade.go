package triggers

import (
	"context"

	"github.com/n-crespo/theopendissent/backend/internal/models"
	"github.com/n-crespo/theopendissent/backend/internal/store"
)

// NewPostCascade returns the trigger cleaning up after a top-level post
// removal. Register on "posts/{postID}".
//
// From the pre-deletion snapshot it clears every interacting user's pointer
// to the post, then removes the post's entire replies subtree. The subtree
// removal re-triggers the reply-level rules for every child.
func NewPostCascade(s *store.Store) HandlerFunc {
	return func(ctx context.Context, inv Invocation) error {
		if inv.SubPath != "" || !removed(inv.Event) {
			return nil
		}
		postID := inv.Params["postID"]

		writes := mirrorCleanup(inv.Event.Before, postID)
		if len(writes) > 0 {
			if err := s.Update(writes); err != nil {
				return err
			}
		}
		return s.Delete(store.Join("replies", postID))
	}
}

// NewReplyCascade returns the trigger cleaning up after a reply removal.
// Register on "replies/{parentID}/{replyID}".
//
// Clears interacting users' pointers to the reply and the author's own
// pointer to it under users/{authorId}/replies.
func NewReplyCascade(s *store.Store) HandlerFunc {
	return func(ctx context.Context, inv Invocation) error {
		if inv.SubPath != "" || !removed(inv.Event) {
			return nil
		}
		replyID := inv.Params["replyID"]

		writes := mirrorCleanup(inv.Event.Before, replyID)

		var reply models.Post
		if err := store.Decode(inv.Event.Before, &reply); err != nil {
			return err
		}
		if reply.AuthorID != "" {
			writes[store.Join("users", reply.AuthorID, "replies", replyID)] = nil
		}

		if len(writes) == 0 {
			return nil
		}
		return s.Update(writes)
	}
}

func removed(ev store.Event) bool {
	return store.Exists(ev.Before) && !store.Exists(ev.After)
}

// mirrorCleanup builds the write-set clearing every interacting user's
// pointer to the removed post or reply.
func mirrorCleanup(before any, postID string) map[string]any {
	writes := map[string]any{}
	node, _ := before.(map[string]any)
	interactions, _ := node["interactions"].(map[string]any)
	for uid := range interactions {
		writes[store.Join("users", uid, "postInteractions", postID)] = nil
	}
	return writes
}
