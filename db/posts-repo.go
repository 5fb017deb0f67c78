package db

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stakechain-explorer/metrics"
)

const postsCollection = "posts"

// PostsRepo is a read-only repository for site posts.
// Post CRUD belongs to the admin surface and is not served here.
type PostsRepo struct {
	db *mongo.Database
}

func NewPostsRepo(db *mongo.Database) (*PostsRepo, error) {
	idx := []mongo.IndexModel{
		{
			Keys: bson.D{
				{
					Key:   "type",
					Value: 1,
				},
				{
					Key:   "created_at",
					Value: -1,
				},
			},
		},
	}
	if _, err := db.Collection(postsCollection).Indexes().CreateMany(context.Background(), idx); err != nil {
		return nil, errors.Wrap(err, "failed to create posts indexes")
	}

	return &PostsRepo{db: db}, nil
}

// ByID returns the post with the given id
func (r *PostsRepo) ByID(ctx context.Context, id primitive.ObjectID) (*Post, error) {
	started := time.Now()

	var p Post
	err := r.db.Collection(postsCollection).
		FindOne(ctx, bson.M{"_id": id}).
		Decode(&p)
	metrics.ObserveStore("posts_by_id", err, started)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find post by id")
	}

	return &p, nil
}

// ByType returns all posts of the given type except the excluded id,
// in natural storage order
func (r *PostsRepo) ByType(ctx context.Context, typ string, exclude primitive.ObjectID) ([]Post, error) {
	started := time.Now()

	f := bson.M{
		"type": typ,
		"_id":  bson.M{"$ne": exclude},
	}

	cur, err := r.db.Collection(postsCollection).Find(ctx, f, options.Find())
	if err != nil {
		metrics.ObserveStore("posts_by_type", err, started)
		return nil, errors.Wrap(err, "failed to find posts by type")
	}

	posts := make([]Post, 0)
	err = cur.All(ctx, &posts)
	metrics.ObserveStore("posts_by_type", err, started)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode posts by type")
	}

	return posts, nil
}
