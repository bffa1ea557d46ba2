package models

// Post represents a post in the realtime tree. Replies are posts with a
// ParentID; they live under replies/{parentId}/{id} instead of posts/{id}.
type Post struct {
	ID           string         `json:"id,omitempty"`
	AuthorID     string         `json:"authorId"`
	Content      string         `json:"content"`
	CreatedAt    int64          `json:"createdAt"` // server-assigned, unix milliseconds
	EditedAt     int64          `json:"editedAt,omitempty"`
	ParentID     string         `json:"parentId,omitempty"`
	ReplyCount   int            `json:"replyCount"`
	Interactions map[string]int `json:"interactions,omitempty"` // uid -> stance score
}

// IsReply reports whether the post is a reply to another post.
func (p *Post) IsReply() bool {
	return p.ParentID != ""
}

// CreatePostRequest defines the request body for creating a new top-level post
type CreatePostRequest struct {
	Content string `json:"content" validate:"required,min=1,max=600"`
}

// CreateReplyRequest defines the request body for replying to a post
type CreateReplyRequest struct {
	Content string `json:"content" validate:"required,min=1,max=600"`
	Score   *int   `json:"score,omitempty" validate:"omitempty,min=-5,max=5"` // optional stance taken with the reply
}

// UpdatePostRequest defines the request body for editing a post or reply
type UpdatePostRequest struct {
	Content string `json:"content" validate:"required,min=1,max=600"`
}

// InteractionRequest defines the request body for setting a stance score.
// A nil score clears the caller's interaction.
type InteractionRequest struct {
	Score    *int   `json:"score" validate:"omitempty,min=-5,max=5"`
	ParentID string `json:"parentId,omitempty"` // set when the target is a reply
}

// ArchivedPost is the denormalized feed document kept in MongoDB by the
// archive trigger. It carries only what the feed and share preview need.
type ArchivedPost struct {
	ID               string `json:"id" bson:"_id"`
	AuthorID         string `json:"authorId" bson:"author_id"`
	Content          string `json:"content" bson:"content"`
	CreatedAt        int64  `json:"createdAt" bson:"created_at"`
	EditedAt         int64  `json:"editedAt,omitempty" bson:"edited_at,omitempty"`
	ReplyCount       int    `json:"replyCount" bson:"reply_count"`
	InteractionCount int    `json:"interactionCount" bson:"interaction_count"`
}
