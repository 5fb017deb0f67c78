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

const relaysCollection = "relays"
const outNodesCollection = "outnodes"

// PeersRepo is a repository for relay peer addresses and promoted peers
type PeersRepo struct {
	db *mongo.Database
}

// NewPeersRepo initializes a new peers repository and ensures its indexes.
// The unique index on addr settles concurrent registrations of the same
// address: the losing insert surfaces as ErrDuplicate.
func NewPeersRepo(db *mongo.Database) (*PeersRepo, error) {
	relayIdx := []mongo.IndexModel{
		{
			Keys: bson.D{{
				Key:   "addr",
				Value: 1,
			}},
			Options: options.Index().SetUnique(true),
		},
	}
	slog.Info("creating relays indexes", "count", len(relayIdx))
	if _, err := db.Collection(relaysCollection).Indexes().CreateMany(context.Background(), relayIdx); err != nil {
		return nil, errors.Wrap(err, "failed to create relays indexes")
	}

	outIdx := []mongo.IndexModel{
		{
			Keys: bson.D{{
				Key:   "peer",
				Value: 1,
			}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := db.Collection(outNodesCollection).Indexes().CreateMany(context.Background(), outIdx); err != nil {
		return nil, errors.Wrap(err, "failed to create outnodes indexes")
	}

	return &PeersRepo{db: db}, nil
}

// Insert stores a new peer record
func (r *PeersRepo) Insert(ctx context.Context, rec *PeerRecord) error {
	started := time.Now()

	_, err := r.db.Collection(relaysCollection).InsertOne(ctx, rec)
	metrics.ObserveStore("peers_insert", err, started)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return errors.Wrap(err, "failed to insert peer")
	}

	return nil
}

// PromotedExists reports whether the given peer id is in the promoted set
func (r *PeersRepo) PromotedExists(ctx context.Context, peer string) (bool, error) {
	started := time.Now()

	n, err := r.db.Collection(outNodesCollection).
		CountDocuments(ctx, bson.M{"peer": peer}, options.Count().SetLimit(1))
	metrics.ObserveStore("peers_promoted_exists", err, started)
	if err != nil {
		return false, errors.Wrap(err, "failed to check promoted peer")
	}

	return n > 0, nil
}

// All returns every registered peer record
func (r *PeersRepo) All(ctx context.Context) ([]PeerRecord, error) {
	started := time.Now()

	cur, err := r.db.Collection(relaysCollection).Find(ctx, bson.M{})
	if err != nil {
		metrics.ObserveStore("peers_all", err, started)
		return nil, errors.Wrap(err, "failed to find peers")
	}

	recs := make([]PeerRecord, 0)
	err = cur.All(ctx, &recs)
	metrics.ObserveStore("peers_all", err, started)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode peers")
	}

	return recs, nil
}

// Delete removes peer records with exactly the given address
// and returns how many were removed
func (r *PeersRepo) Delete(ctx context.Context, addr string) (int64, error) {
	started := time.Now()

	res, err := r.db.Collection(relaysCollection).DeleteMany(ctx, bson.M{"addr": addr})
	metrics.ObserveStore("peers_delete", err, started)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete peer")
	}

	return res.DeletedCount, nil
}
