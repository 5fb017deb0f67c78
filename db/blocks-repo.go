package db

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/exp/slog"

	"stakechain-explorer/metrics"
)

const blocksCollection = "blocks"

// BlocksRepo is a repository for blocks
type BlocksRepo struct {
	db *mongo.Database
}

// NewBlocksRepo initializes a new blocks repository and ensures its indexes.
// Hash and number are unique: the consensus node appends each block exactly once.
func NewBlocksRepo(db *mongo.Database) (*BlocksRepo, error) {
	idx := []mongo.IndexModel{
		{
			Keys: bson.D{{
				Key:   "header.number",
				Value: -1,
			}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{
				Key:   "header.hash",
				Value: -1,
			}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{
				Key:   "header.date",
				Value: -1,
			}},
		},
		{
			Keys: bson.D{{
				Key:   "body.transactions.hash",
				Value: -1,
			}},
		},
	}
	slog.Info("creating blocks indexes", "count", len(idx))
	if _, err := db.Collection(blocksCollection).Indexes().CreateMany(context.Background(), idx); err != nil {
		return nil, errors.Wrap(err, "failed to create blocks indexes")
	}

	return &BlocksRepo{db: db}, nil
}

// ByNumber returns the block at the given height
func (r *BlocksRepo) ByNumber(ctx context.Context, number int64) (*Block, error) {
	started := time.Now()

	var b Block
	err := r.db.Collection(blocksCollection).
		FindOne(ctx, bson.M{"header.number": number}).
		Decode(&b)
	metrics.ObserveStore("blocks_by_number", err, started)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find block by number")
	}

	return &b, nil
}

// ByHash returns the block with the given header hash (exact match)
func (r *BlocksRepo) ByHash(ctx context.Context, hash string) (*Block, error) {
	started := time.Now()

	var b Block
	err := r.db.Collection(blocksCollection).
		FindOne(ctx, bson.M{"header.hash": hash}).
		Decode(&b)
	metrics.ObserveStore("blocks_by_hash", err, started)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find block by hash")
	}

	return &b, nil
}

// Page returns a window of blocks ordered by height descending
func (r *BlocksRepo) Page(ctx context.Context, skip int64, limit int64) ([]Block, error) {
	started := time.Now()

	opts := options.Find().
		SetSort(bson.D{{Key: "header.number", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)

	cur, err := r.db.Collection(blocksCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		metrics.ObserveStore("blocks_page", err, started)
		return nil, errors.Wrap(err, "failed to find blocks page")
	}

	blocks := make([]Block, 0, limit)
	err = cur.All(ctx, &blocks)
	metrics.ObserveStore("blocks_page", err, started)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode blocks page")
	}

	return blocks, nil
}

// Count returns the number of stored blocks
func (r *BlocksRepo) Count(ctx context.Context) (int64, error) {
	started := time.Now()

	n, err := r.db.Collection(blocksCollection).CountDocuments(ctx, bson.M{})
	metrics.ObserveStore("blocks_count", err, started)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count blocks")
	}

	return n, nil
}

// HeadSummary is the chain tip header plus its transaction count
type HeadSummary struct {
	Header BlockHeader `bson:"header" json:"header"`
	Trxs   int64       `bson:"trxs" json:"trxs"`
}

// LastHead returns the highest stored block's header summary,
// or nil when the collection is empty
func (r *BlocksRepo) LastHead(ctx context.Context) (*HeadSummary, error) {
	started := time.Now()

	agg := []bson.M{
		{
			"$sort": bson.M{
				"header.number": -1,
			},
		},
		{
			"$limit": 1,
		},
		{
			"$project": bson.M{
				"header": 1,
				"trxs":   bson.M{"$size": "$body.transactions"},
			},
		},
	}

	cur, err := r.db.Collection(blocksCollection).
		Aggregate(ctx, agg)
	metrics.ObserveStore("blocks_last_head", err, started)
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate last head")
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		return nil, nil
	}

	var res HeadSummary
	if err := cur.Decode(&res); err != nil {
		return nil, errors.Wrap(err, "failed to decode last head")
	}
	if cur.Err() != nil {
		return nil, errors.Wrap(cur.Err(), "failed to iterate last head")
	}

	return &res, nil
}

// Insert upserts a block keyed by its header hash
func (r *BlocksRepo) Insert(ctx context.Context, b *Block) error {
	started := time.Now()

	opts := options.Update().
		SetUpsert(true)
	f := bson.M{
		"header.hash": b.Header.Hash,
	}
	u := bson.M{
		"$set": b,
	}

	_, err := r.db.Collection(blocksCollection).UpdateOne(ctx, f, u, opts)
	metrics.ObserveStore("blocks_insert", err, started)
	if err != nil {
		return errors.Wrap(err, "failed to upsert block")
	}

	return nil
}
