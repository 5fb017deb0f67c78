package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"stakechain-explorer/db"
	"stakechain-explorer/explorer"
	"stakechain-explorer/model"
	"stakechain-explorer/registry"
)

type fakeBlocks struct {
	blocks []db.Block
}

func (f *fakeBlocks) ByNumber(_ context.Context, number int64) (*db.Block, error) {
	for i := range f.blocks {
		if f.blocks[i].Header.Number == number {
			return &f.blocks[i], nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeBlocks) ByHash(_ context.Context, hash string) (*db.Block, error) {
	for i := range f.blocks {
		if f.blocks[i].Header.Hash == hash {
			return &f.blocks[i], nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeBlocks) Page(_ context.Context, skip int64, limit int64) ([]db.Block, error) {
	sorted := make([]db.Block, len(f.blocks))
	copy(sorted, f.blocks)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Header.Number > sorted[j].Header.Number
	})

	if skip >= int64(len(sorted)) {
		return []db.Block{}, nil
	}
	end := skip + limit
	if end > int64(len(sorted)) {
		end = int64(len(sorted))
	}
	return sorted[skip:end], nil
}

func (f *fakeBlocks) Count(_ context.Context) (int64, error) {
	return int64(len(f.blocks)), nil
}

type fakeReceipts struct {
	recs []db.Receipt
}

func (f *fakeReceipts) ByHash(_ context.Context, hash string) (*db.Receipt, error) {
	for i := range f.recs {
		if f.recs[i].Hash == hash {
			return &f.recs[i], nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeReceipts) Page(_ context.Context, skip int64, limit int64) ([]db.Receipt, error) {
	sorted := make([]db.Receipt, len(f.recs))
	copy(sorted, f.recs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})

	if skip >= int64(len(sorted)) {
		return []db.Receipt{}, nil
	}
	end := skip + limit
	if end > int64(len(sorted)) {
		end = int64(len(sorted))
	}
	return sorted[skip:end], nil
}

func (f *fakeReceipts) Count(_ context.Context) (int64, error) {
	return int64(len(f.recs)), nil
}

func (f *fakeReceipts) CountConfirmed(_ context.Context) (int64, error) {
	var n int64
	for _, r := range f.recs {
		if r.Status == db.ReceiptConfirmed {
			n++
		}
	}
	return n, nil
}

type fakePosts struct {
	posts []db.Post
}

func (f *fakePosts) ByID(_ context.Context, id primitive.ObjectID) (*db.Post, error) {
	for i := range f.posts {
		if f.posts[i].ID == id {
			return &f.posts[i], nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakePosts) ByType(_ context.Context, typ string, exclude primitive.ObjectID) ([]db.Post, error) {
	out := make([]db.Post, 0)
	for _, p := range f.posts {
		if p.Type == typ && p.ID != exclude {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakePeerStore struct {
	recs     []db.PeerRecord
	promoted map[string]bool
}

func (f *fakePeerStore) Insert(_ context.Context, rec *db.PeerRecord) error {
	for _, r := range f.recs {
		if r.Addr == rec.Addr {
			return db.ErrDuplicate
		}
	}
	f.recs = append(f.recs, *rec)
	return nil
}

func (f *fakePeerStore) PromotedExists(_ context.Context, peer string) (bool, error) {
	return f.promoted[peer], nil
}

func (f *fakePeerStore) All(_ context.Context) ([]db.PeerRecord, error) {
	out := make([]db.PeerRecord, len(f.recs))
	copy(out, f.recs)
	return out, nil
}

func (f *fakePeerStore) Delete(_ context.Context, addr string) (int64, error) {
	kept := f.recs[:0]
	var removed int64
	for _, r := range f.recs {
		if r.Addr == addr {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	f.recs = kept
	return removed, nil
}

func seedBlocks(n int) []db.Block {
	blocks := make([]db.Block, n)
	for i := 0; i < n; i++ {
		blocks[i] = db.Block{Header: db.BlockHeader{
			Number: int64(i + 1),
			Hash:   fmt.Sprintf("hash-%d", i+1),
			Date:   time.Unix(int64(1700000000+i), 0),
		}}
	}
	return blocks
}

func newTestHandler(blocks *fakeBlocks, receipts *fakeReceipts, posts *fakePosts, peers *fakePeerStore) http.Handler {
	if blocks == nil {
		blocks = &fakeBlocks{}
	}
	if receipts == nil {
		receipts = &fakeReceipts{}
	}
	if posts == nil {
		posts = &fakePosts{}
	}
	if peers == nil {
		peers = &fakePeerStore{promoted: map[string]bool{}}
	}

	h := NewHandler(blocks, receipts, explorer.NewRecommender(posts), registry.New(peers, registry.DefaultCap))
	return h.Routes()
}

func doJSON(t *testing.T, h http.Handler, method string, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestBlockSearchByNumberAndHash(t *testing.T) {
	h := newTestHandler(&fakeBlocks{blocks: seedBlocks(100)}, nil, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/block", model.BlockSearchRequest{SearchValue: "42"})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[model.BlockSearchResponse](t, rec)
	assert.Equal(t, model.StatusSuccess, res.Status)
	require.NotNil(t, res.Block)
	assert.Equal(t, int64(42), res.Block.Header.Number)

	rec = doJSON(t, h, http.MethodPost, "/api/block", model.BlockSearchRequest{SearchValue: "hash-7"})
	res = decode[model.BlockSearchResponse](t, rec)
	require.NotNil(t, res.Block)
	assert.Equal(t, int64(7), res.Block.Header.Number)
}

func TestBlockSearchNotFoundIsStructured(t *testing.T) {
	h := newTestHandler(&fakeBlocks{blocks: seedBlocks(10)}, nil, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/block", model.BlockSearchRequest{SearchValue: "no-such-hash"})
	// a miss is a domain outcome, not a transport error
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[model.BlockSearchResponse](t, rec)
	assert.Equal(t, model.StatusError, res.Status)
	assert.Equal(t, model.CodeNotFound, res.Code)
	assert.Nil(t, res.Block)
}

func TestBlockSearchValidation(t *testing.T) {
	h := newTestHandler(nil, nil, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/block", model.BlockSearchRequest{SearchValue: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	res := decode[model.ErrorResponse](t, rec)
	assert.Equal(t, model.CodeInvalid, res.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/block", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBlockScanPaginates(t *testing.T) {
	h := newTestHandler(&fakeBlocks{blocks: seedBlocks(100)}, nil, nil, nil)

	tests := []struct {
		page      int64
		wantFirst int64
		wantLast  int64
		wantLen   int
	}{
		{page: 1, wantFirst: 100, wantLast: 89, wantLen: 12},
		{page: 9, wantFirst: 4, wantLast: 1, wantLen: 4},
		{page: 10, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("page %d", tt.page), func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/api/blockscan", model.PageRequest{Page: tt.page})
			require.Equal(t, http.StatusOK, rec.Code)
			res := decode[model.BlockScanResponse](t, rec)

			assert.Equal(t, model.StatusSuccess, res.Status)
			assert.Equal(t, int64(9), res.Pages)
			require.Len(t, res.Blocks, tt.wantLen)
			if tt.wantLen > 0 {
				assert.Equal(t, tt.wantFirst, res.Blocks[0].Header.Number)
				assert.Equal(t, tt.wantLast, res.Blocks[len(res.Blocks)-1].Header.Number)
			}
		})
	}
}

func TestBlockScanRejectsPageZero(t *testing.T) {
	h := newTestHandler(&fakeBlocks{blocks: seedBlocks(10)}, nil, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/blockscan", model.PageRequest{Page: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBlockCount(t *testing.T) {
	h := newTestHandler(&fakeBlocks{blocks: seedBlocks(37)}, nil, nil, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/blockcount", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[model.BlockCountResponse](t, rec)
	assert.Equal(t, int64(37), res.Number)
}

func TestTrxSearch(t *testing.T) {
	n := int64(5)
	receipts := &fakeReceipts{recs: []db.Receipt{
		{Hash: "tx-1", Status: db.ReceiptConfirmed, BlockNumber: &n},
	}}
	h := newTestHandler(nil, receipts, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/trx", model.TrxSearchRequest{Hash: "tx-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[model.TrxSearchResponse](t, rec)
	assert.Equal(t, model.StatusSuccess, res.Status)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, db.ReceiptConfirmed, res.Transaction.Status)

	rec = doJSON(t, h, http.MethodPost, "/api/trx", model.TrxSearchRequest{Hash: "tx-2"})
	require.Equal(t, http.StatusOK, rec.Code)
	miss := decode[model.TrxSearchResponse](t, rec)
	assert.Equal(t, model.CodeNotFound, miss.Code)
}

func TestTrxScanOrdersByDateDesc(t *testing.T) {
	receipts := &fakeReceipts{}
	for i := 0; i < 20; i++ {
		receipts.recs = append(receipts.recs, db.Receipt{
			Hash: fmt.Sprintf("tx-%d", i),
			Date: time.Unix(int64(1700000000+i), 0),
		})
	}
	h := newTestHandler(nil, receipts, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/trxscan", model.PageRequest{Page: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[model.TrxScanResponse](t, rec)

	assert.Equal(t, int64(20), res.Count)
	require.Len(t, res.Trxs, 12)
	assert.Equal(t, "tx-19", res.Trxs[0].Hash)
	assert.Equal(t, "tx-8", res.Trxs[11].Hash)
}

func TestTrxCountCountsConfirmedOnly(t *testing.T) {
	receipts := &fakeReceipts{recs: []db.Receipt{
		{Hash: "a", Status: db.ReceiptConfirmed},
		{Hash: "b", Status: db.ReceiptPending},
		{Hash: "c", Status: db.ReceiptConfirmed},
		{Hash: "d", Status: db.ReceiptFailed},
	}}
	h := newTestHandler(nil, receipts, nil, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/trxcount", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[model.TrxCountResponse](t, rec)
	assert.Equal(t, int64(2), res.Data)
}

func TestSimilarArticles(t *testing.T) {
	refID := primitive.NewObjectID()
	posts := &fakePosts{posts: []db.Post{
		{ID: refID, Title: "staking guide", Content: "delegate your stake to validators", Type: "article"},
		{ID: primitive.NewObjectID(), Title: "close", Content: "delegate stake to validators safely", Type: "article"},
		{ID: primitive.NewObjectID(), Title: "far", Content: "marketing roadmap announcement", Type: "article"},
		{ID: primitive.NewObjectID(), Title: "mid", Content: "validators and their stake", Type: "article"},
		{ID: primitive.NewObjectID(), Title: "other type", Content: "delegate stake validators", Type: "dev"},
	}}
	h := newTestHandler(nil, nil, posts, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/similar-articles", model.SimilarRequest{ID: refID.Hex(), Type: "article"})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[model.SimilarResponse](t, rec)

	assert.Equal(t, model.StatusSuccess, res.Status)
	require.Len(t, res.Articles, 3)
	assert.Equal(t, "close", res.Articles[0].Title)
	for _, a := range res.Articles {
		assert.NotEqual(t, refID, a.ID)
		assert.Equal(t, "article", a.Type)
	}
}

func TestSimilarArticlesUnknownReference(t *testing.T) {
	h := newTestHandler(nil, nil, &fakePosts{}, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/similar-articles", model.SimilarRequest{ID: primitive.NewObjectID().Hex(), Type: "article"})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[model.SimilarResponse](t, rec)
	assert.Equal(t, model.CodeNotFound, res.Code)
	assert.Empty(t, res.Articles)
}

func TestSimilarArticlesRejectsBadID(t *testing.T) {
	h := newTestHandler(nil, nil, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/similar-articles", model.SimilarRequest{ID: "not-an-id"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRelayRegisterThenDuplicate(t *testing.T) {
	h := newTestHandler(nil, nil, nil, nil)
	req := model.RegisterRequest{Addr: "/ip4/1.2.3.4/tcp/4001/p2p/QmX"}

	rec := doJSON(t, h, http.MethodPost, "/api/relays", req)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[model.RegisterResponse](t, rec)
	assert.Equal(t, model.StatusSuccess, first.Status)
	assert.Empty(t, first.Anothers)

	rec = doJSON(t, h, http.MethodPost, "/api/relays", req)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[model.RegisterResponse](t, rec)
	assert.Equal(t, model.StatusError, second.Status)
	assert.Equal(t, model.CodeConflict, second.Code)
}

func TestRelayRegisterPromotedConflict(t *testing.T) {
	peers := &fakePeerStore{promoted: map[string]bool{"QmX": true}}
	h := newTestHandler(nil, nil, nil, peers)

	rec := doJSON(t, h, http.MethodPost, "/api/relays", model.RegisterRequest{Addr: "/ip4/5.6.7.8/tcp/4001/p2p/QmX"})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[model.RegisterResponse](t, rec)
	assert.Equal(t, model.CodeConflict, res.Code)
	assert.Empty(t, peers.recs)
}

func TestRelayListAndDeregister(t *testing.T) {
	peers := &fakePeerStore{promoted: map[string]bool{}, recs: []db.PeerRecord{
		{Addr: "/ip4/1.1.1.1/tcp/4001"},
		{Addr: "/ip4/2.2.2.2/tcp/4001"},
	}}
	h := newTestHandler(nil, nil, nil, peers)

	rec := doJSON(t, h, http.MethodGet, "/api/relays", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[model.PeerListResponse](t, rec)
	assert.Len(t, list.Data, 2)

	rec = doJSON(t, h, http.MethodDelete, "/api/relays?address=%2Fip4%2F1.1.1.1%2Ftcp%2F4001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	del := decode[model.DeregisterResponse](t, rec)
	assert.Equal(t, int64(1), del.Removed)

	rec = doJSON(t, h, http.MethodGet, "/api/relays", nil)
	list = decode[model.PeerListResponse](t, rec)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "/ip4/2.2.2.2/tcp/4001", list.Data[0].Addr)
}

func TestRelayDeregisterRequiresAddress(t *testing.T) {
	h := newTestHandler(nil, nil, nil, nil)

	rec := doJSON(t, h, http.MethodDelete, "/api/relays", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRelayRegisterIsRateLimited(t *testing.T) {
	h := newTestHandler(nil, nil, nil, nil)

	var last int
	for i := 0; i < registerBurst+1; i++ {
		rec := doJSON(t, h, http.MethodPost, "/api/relays", model.RegisterRequest{Addr: fmt.Sprintf("/ip4/10.0.0.%d/tcp/4001", i)})
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
