package triggers

import (
	"context"
	"log"

	"github.com/n-crespo/theopendissent/backend/internal/store"
)

// NewReplyCounter returns the trigger keeping posts/{parentID}/replyCount in
// line with the children under replies/{parentID}. Register on
// "replies/{parentID}/{replyID}".
//
// Rather than blind +1/-1 arithmetic, the handler recounts the existing
// children and writes the result as a fixed value, so a redelivered event
// settles on the same count as a single delivery and the count can never go
// negative.
func NewReplyCounter(s *store.Store) HandlerFunc {
	return func(ctx context.Context, inv Invocation) error {
		if inv.SubPath != "" {
			// A write below the reply node (content edit, interaction):
			// the child neither appeared nor disappeared.
			return nil
		}
		if replyDelta(inv.Event.Before, inv.Event.After) == 0 {
			return nil
		}

		parentID := inv.Params["parentID"]
		parentPath := store.Join("posts", parentID)

		// Recount and write under one store lock: with separate Get and Set
		// a concurrent handler could commit a newer count first and have it
		// overwritten by this handler's stale read.
		return s.TransactUpdate(func(get func(string) any) (map[string]any, error) {
			if !store.Exists(get(parentPath)) {
				// Expected when the parent was deleted before its children's
				// triggers finished firing.
				log.Printf("reply counter: parent %s is gone, skipping", parentID)
				return nil, nil
			}
			return map[string]any{
				store.Join(parentPath, "replyCount"): recount(get(store.Join("replies", parentID))),
			}, nil
		})
	}
}

// replyDelta classifies a reply-node write: 1 for a creation, -1 for a
// removal, 0 for anything else.
func replyDelta(before, after any) int {
	existedBefore := store.Exists(before)
	existsAfter := store.Exists(after)
	switch {
	case !existedBefore && existsAfter:
		return 1
	case existedBefore && !existsAfter:
		return -1
	default:
		return 0
	}
}

// recount returns the number of children in a replies subtree snapshot.
func recount(children any) int {
	m, ok := children.(map[string]any)
	if !ok {
		return 0
	}
	return len(m)
}
