package triggers

import (
	"context"

	"github.com/n-crespo/theopendissent/backend/internal/models"
	"github.com/n-crespo/theopendissent/backend/internal/store"
)

// PostArchive is the denormalized feed index the archive trigger maintains.
type PostArchive interface {
	Upsert(ctx context.Context, post models.ArchivedPost) error
	Remove(ctx context.Context, postID string) error
}

// NewArchiveSync returns the trigger mirroring top-level posts into the feed
// archive. Register on "posts/{postID}".
//
// The handler rereads the current node for every write at or below the post,
// so it is idempotent and self-healing: a redelivery just rewrites the same
// document.
func NewArchiveSync(s *store.Store, archive PostArchive) HandlerFunc {
	return func(ctx context.Context, inv Invocation) error {
		postID := inv.Params["postID"]

		node := s.Get(store.Join("posts", postID))
		if !store.Exists(node) {
			return archive.Remove(ctx, postID)
		}

		var post models.Post
		if err := store.Decode(node, &post); err != nil {
			return err
		}
		return archive.Upsert(ctx, models.ArchivedPost{
			ID:               postID,
			AuthorID:         post.AuthorID,
			Content:          post.Content,
			CreatedAt:        post.CreatedAt,
			EditedAt:         post.EditedAt,
			ReplyCount:       post.ReplyCount,
			InteractionCount: len(post.Interactions),
		})
	}
}

// RegisterAll wires every trigger into the pipeline. archive may be nil when
// the feed index is disabled.
func RegisterAll(p *Pipeline, s *store.Store, archive PostArchive) {
	p.Handle("reply-counter", "replies/{parentID}/{replyID}", NewReplyCounter(s))
	p.Handle("reply-cascade", "replies/{parentID}/{replyID}", NewReplyCascade(s))
	p.Handle("reply-notifier", "replies/{parentID}/{replyID}", NewReplyNotifier(s))
	p.Handle("mirror-sync", "users/{uid}/postInteractions/{postID}", NewMirrorSync(s))
	p.Handle("post-cascade", "posts/{postID}", NewPostCascade(s))
	if archive != nil {
		p.Handle("post-archive", "posts/{postID}", NewArchiveSync(s, archive))
	}
}
