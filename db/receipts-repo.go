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

const receiptsCollection = "receipts"

// ReceiptsRepo is a repository for transaction receipts
type ReceiptsRepo struct {
	db *mongo.Database
}

// NewReceiptsRepo initializes a new receipts repository and ensures its indexes
func NewReceiptsRepo(db *mongo.Database) (*ReceiptsRepo, error) {
	idx := []mongo.IndexModel{
		{
			Keys: bson.D{{
				Key:   "hash",
				Value: -1,
			}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{
				Key:   "date",
				Value: -1,
			}},
		},
		{
			Keys: bson.D{
				{
					Key:   "status",
					Value: 1,
				},
				{
					Key:   "date",
					Value: -1,
				},
			},
		},
	}
	slog.Info("creating receipts indexes", "count", len(idx))
	if _, err := db.Collection(receiptsCollection).Indexes().CreateMany(context.Background(), idx); err != nil {
		return nil, errors.Wrap(err, "failed to create receipts indexes")
	}

	return &ReceiptsRepo{db: db}, nil
}

// Insert stores a freshly broadcast receipt. Status defaults to Pending.
func (r *ReceiptsRepo) Insert(ctx context.Context, rec *Receipt) error {
	started := time.Now()

	if rec.Status == "" {
		rec.Status = ReceiptPending
	}

	_, err := r.db.Collection(receiptsCollection).InsertOne(ctx, rec)
	metrics.ObserveStore("receipts_insert", err, started)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return errors.Wrap(err, "failed to insert receipt")
	}

	return nil
}

// ByHash returns the receipt with the given transaction hash
func (r *ReceiptsRepo) ByHash(ctx context.Context, hash string) (*Receipt, error) {
	started := time.Now()

	var rec Receipt
	err := r.db.Collection(receiptsCollection).
		FindOne(ctx, bson.M{"hash": hash}).
		Decode(&rec)
	metrics.ObserveStore("receipts_by_hash", err, started)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find receipt by hash")
	}

	return &rec, nil
}

// Page returns a window of receipts ordered by broadcast date descending
func (r *ReceiptsRepo) Page(ctx context.Context, skip int64, limit int64) ([]Receipt, error) {
	started := time.Now()

	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)

	cur, err := r.db.Collection(receiptsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		metrics.ObserveStore("receipts_page", err, started)
		return nil, errors.Wrap(err, "failed to find receipts page")
	}

	recs := make([]Receipt, 0, limit)
	err = cur.All(ctx, &recs)
	metrics.ObserveStore("receipts_page", err, started)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode receipts page")
	}

	return recs, nil
}

// Count returns the number of stored receipts
func (r *ReceiptsRepo) Count(ctx context.Context) (int64, error) {
	started := time.Now()

	n, err := r.db.Collection(receiptsCollection).CountDocuments(ctx, bson.M{})
	metrics.ObserveStore("receipts_count", err, started)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count receipts")
	}

	return n, nil
}

// CountConfirmed returns the number of confirmed receipts
func (r *ReceiptsRepo) CountConfirmed(ctx context.Context) (int64, error) {
	started := time.Now()

	n, err := r.db.Collection(receiptsCollection).
		CountDocuments(ctx, bson.M{"status": ReceiptConfirmed})
	metrics.ObserveStore("receipts_count_confirmed", err, started)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count confirmed receipts")
	}

	return n, nil
}

// Confirm marks a receipt as included in the given block.
// A receipt is confirmed at most once; it is never deleted.
func (r *ReceiptsRepo) Confirm(ctx context.Context, hash string, blockNumber int64) error {
	started := time.Now()

	u := bson.M{
		"$set": bson.M{
			"status":       ReceiptConfirmed,
			"block_number": blockNumber,
		},
	}

	res, err := r.db.Collection(receiptsCollection).UpdateOne(ctx, bson.M{"hash": hash}, u)
	metrics.ObserveStore("receipts_confirm", err, started)
	if err != nil {
		return errors.Wrap(err, "failed to confirm receipt")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

// Fail marks a receipt as rejected
func (r *ReceiptsRepo) Fail(ctx context.Context, hash string) error {
	started := time.Now()

	u := bson.M{
		"$set": bson.M{
			"status": ReceiptFailed,
		},
	}

	res, err := r.db.Collection(receiptsCollection).UpdateOne(ctx, bson.M{"hash": hash}, u)
	metrics.ObserveStore("receipts_fail", err, started)
	if err != nil {
		return errors.Wrap(err, "failed to fail receipt")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}
