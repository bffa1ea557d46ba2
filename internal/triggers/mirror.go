package triggers

import (
	"context"

	"github.com/n-crespo/theopendissent/backend/internal/models"
	"github.com/n-crespo/theopendissent/backend/internal/store"
)

// NewMirrorSync returns the trigger that keeps the post-side interactions
// map in line with the user-side pointer. Register on
// "users/{uid}/postInteractions/{postID}".
//
// The user-side pointer is the written side; this trigger issues exactly one
// downstream write: the score at the target post's (or reply's) interactions
// path when the pointer exists, nil when it doesn't. Setting nil on an
// already-absent path is a no-op, so spurious or redelivered events are
// harmless.
func NewMirrorSync(s *store.Store) HandlerFunc {
	return func(ctx context.Context, inv Invocation) error {
		uid := inv.Params["uid"]
		postID := inv.Params["postID"]

		value := inv.Event.After
		before := inv.Event.Before
		if inv.SubPath != "" {
			// A write below the pointer node: resync from the current value.
			value = s.Get(store.Join("users", uid, "postInteractions", postID))
		}

		if store.Exists(value) {
			var ref models.InteractionRef
			if err := store.Decode(value, &ref); err != nil {
				return err
			}
			return s.Set(mirrorTarget(uid, postID, ref.ParentID), ref.Score)
		}

		// The pointer is gone; the pre-deletion value names the target.
		var ref models.InteractionRef
		if store.Exists(before) {
			if err := store.Decode(before, &ref); err != nil {
				return err
			}
		}
		return s.Set(mirrorTarget(uid, postID, ref.ParentID), nil)
	}
}

// mirrorTarget resolves the post-side interaction path for a user's pointer.
// A pointer whose parentId names a post addresses a reply-scoped path,
// otherwise the top-level post's path.
func mirrorTarget(uid, postID, parentID string) string {
	if parentID != "" {
		return store.Join("replies", parentID, postID, "interactions", uid)
	}
	return store.Join("posts", postID, "interactions", uid)
}
