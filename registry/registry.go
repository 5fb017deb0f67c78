package registry

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/slog"

	"stakechain-explorer/db"
)

// DefaultCap is the population size above which List starts sampling
const DefaultCap = 50

// peerIDMarker separates the transport part of a multiaddr from the peer id
const peerIDMarker = "/p2p/"

// ErrPromoted is returned when the embedded peer id belongs to a peer
// already promoted out of the plain relay role
var ErrPromoted = errors.New("peer has been promoted")

// Store is the subset of the peers repository the registry needs
type Store interface {
	Insert(ctx context.Context, rec *db.PeerRecord) error
	PromotedExists(ctx context.Context, peer string) (bool, error)
	All(ctx context.Context) ([]db.PeerRecord, error)
	Delete(ctx context.Context, addr string) (int64, error)
}

// Registry tracks self-registered relay/RPC peer addresses
type Registry struct {
	store Store
	cap   int
	now   func() time.Time
	intn  func(n int) int
}

func New(store Store, cap int) *Registry {
	if cap < 1 {
		cap = DefaultCap
	}
	return &Registry{
		store: store,
		cap:   cap,
		now:   time.Now,
		intn:  rand.Intn,
	}
}

// PeerID extracts the peer identifier from a multiaddr-like address:
// the segment after the last /p2p/ marker, or empty when absent.
func PeerID(addr string) string {
	i := strings.LastIndex(addr, peerIDMarker)
	if i < 0 {
		return ""
	}
	id := addr[i+len(peerIDMarker):]
	if j := strings.IndexByte(id, '/'); j >= 0 {
		id = id[:j]
	}
	return id
}

// Register stores a new peer address and returns a bounded sample of the
// other registered peers for bootstrapping. A duplicate address is
// rejected with db.ErrDuplicate; the unique index on addr makes the
// check atomic against concurrent registrations. An address whose peer
// id is in the promoted set is rejected with ErrPromoted.
func (r *Registry) Register(ctx context.Context, addr string, wallet string) ([]db.PeerRecord, error) {
	if id := PeerID(addr); id != "" {
		promoted, err := r.store.PromotedExists(ctx, id)
		if err != nil {
			return nil, errors.Wrap(err, "failed to check promoted set")
		}
		if promoted {
			return nil, ErrPromoted
		}
	}

	rec := &db.PeerRecord{
		Addr:     addr,
		Wallet:   wallet,
		JoinDate: r.now(),
	}
	if err := r.store.Insert(ctx, rec); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to insert peer")
	}
	slog.Info("registered relay peer", "addr", addr)

	others, err := r.List(ctx)
	if err != nil {
		// registration itself succeeded; the bootstrap list is best effort
		slog.Error("failed to list peers after registration", "error", err)
		return []db.PeerRecord{}, nil
	}

	out := make([]db.PeerRecord, 0, len(others))
	for _, o := range others {
		if o.Addr != addr {
			out = append(out, o)
		}
	}
	return out, nil
}

// List returns the registered peers. Populations up to the cap are
// returned whole; larger ones are subsampled to cap+1 distinct records
// so public discovery responses stay bounded.
func (r *Registry) List(ctx context.Context) ([]db.PeerRecord, error) {
	all, err := r.store.All(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list peers")
	}

	if len(all) <= r.cap {
		return all, nil
	}

	idx := sampleIndices(len(all), r.cap+1, r.intn)
	out := make([]db.PeerRecord, len(idx))
	for i, j := range idx {
		out[i] = all[j]
	}
	return out, nil
}

// Deregister removes the peer with exactly the given address and
// returns how many records were removed
func (r *Registry) Deregister(ctx context.Context, addr string) (int64, error) {
	removed, err := r.store.Delete(ctx, addr)
	if err != nil {
		return 0, errors.Wrap(err, "failed to deregister peer")
	}
	if removed > 0 {
		slog.Info("deregistered relay peer", "addr", addr, "removed", removed)
	}
	return removed, nil
}
