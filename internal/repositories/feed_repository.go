package repositories

import (
	"context"
	"fmt"

	"github.com/n-crespo/theopendissent/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FeedRepository defines the interface for the denormalized feed index in
// MongoDB. Documents are maintained by the archive trigger; handlers only
// read.
type FeedRepository interface {
	Upsert(ctx context.Context, post models.ArchivedPost) error
	Remove(ctx context.Context, postID string) error
	Get(ctx context.Context, postID string) (*models.ArchivedPost, error)
	List(ctx context.Context, skip, limit int64) ([]models.ArchivedPost, error)
}

// MongoFeedRepository implements FeedRepository for MongoDB
type MongoFeedRepository struct {
	collection *mongo.Collection
}

// NewMongoFeedRepository creates a new MongoFeedRepository
func NewMongoFeedRepository(db *mongo.Database) *MongoFeedRepository {
	return &MongoFeedRepository{collection: db.Collection("posts")}
}

// Upsert writes (or rewrites) a feed document. Replaying the same document
// is a no-op, which keeps trigger redelivery safe.
func (r *MongoFeedRepository) Upsert(ctx context.Context, post models.ArchivedPost) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": post.ID}, post, opts)
	return err
}

// Remove deletes a feed document. Removing an already-absent document is
// not an error.
func (r *MongoFeedRepository) Remove(ctx context.Context, postID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": postID})
	return err
}

// Get retrieves a single feed document by post id.
func (r *MongoFeedRepository) Get(ctx context.Context, postID string) (*models.ArchivedPost, error) {
	var post models.ArchivedPost
	err := r.collection.FindOne(ctx, bson.M{"_id": postID}).Decode(&post)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("post not found")
		}
		return nil, err
	}
	return &post, nil
}

// List retrieves feed documents with pagination, newest first.
func (r *MongoFeedRepository) List(ctx context.Context, skip, limit int64) ([]models.ArchivedPost, error) {
	findOptions := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.D{}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var posts []models.ArchivedPost
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}
