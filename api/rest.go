package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/exp/slog"

	"stakechain-explorer/db"
	"stakechain-explorer/explorer"
	"stakechain-explorer/metrics"
	"stakechain-explorer/model"
	"stakechain-explorer/registry"
)

// BlocksStore is the subset of the blocks repository the handlers need
type BlocksStore interface {
	ByNumber(ctx context.Context, number int64) (*db.Block, error)
	ByHash(ctx context.Context, hash string) (*db.Block, error)
	Page(ctx context.Context, skip int64, limit int64) ([]db.Block, error)
	Count(ctx context.Context) (int64, error)
}

// ReceiptsStore is the subset of the receipts repository the handlers need
type ReceiptsStore interface {
	ByHash(ctx context.Context, hash string) (*db.Receipt, error)
	Page(ctx context.Context, skip int64, limit int64) ([]db.Receipt, error)
	Count(ctx context.Context) (int64, error)
	CountConfirmed(ctx context.Context) (int64, error)
}

// Handler serves the explorer's JSON API
type Handler struct {
	blocks   BlocksStore
	receipts ReceiptsStore
	resolver *explorer.Resolver
	similar  *explorer.Recommender
	relays   *registry.Registry
	limiter  *ipLimiter
}

func NewHandler(blocks BlocksStore, receipts ReceiptsStore, similar *explorer.Recommender, relays *registry.Registry) *Handler {
	return &Handler{
		blocks:   blocks,
		receipts: receipts,
		resolver: explorer.NewResolver(blocks),
		similar:  similar,
		relays:   relays,
		limiter:  newIPLimiter(),
	}
}

// Routes registers the API routes on a fresh mux
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/block", instrument("block", post(h.blockSearch)))
	mux.HandleFunc("/api/blockscan", instrument("blockscan", post(h.blockScan)))
	mux.HandleFunc("/api/blockcount", instrument("blockcount", get(h.blockCount)))
	mux.HandleFunc("/api/trx", instrument("trx", post(h.trxSearch)))
	mux.HandleFunc("/api/trxscan", instrument("trxscan", post(h.trxScan)))
	mux.HandleFunc("/api/trxcount", instrument("trxcount", get(h.trxCount)))
	mux.HandleFunc("/api/similar-articles", instrument("similar_articles", post(h.similarArticles)))
	mux.HandleFunc("/api/relays", instrument("relays", h.relaysRoot))
	return mux
}

func (h *Handler) blockSearch(w http.ResponseWriter, r *http.Request) {
	var req model.BlockSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalid(w, "request body must be JSON")
		return
	}
	token := strings.TrimSpace(req.SearchValue)
	if token == "" {
		writeInvalid(w, "searchValue is required")
		return
	}

	block, err := h.resolver.Resolve(r.Context(), token)
	if errors.Is(err, db.ErrNotFound) {
		writeJSON(w, http.StatusOK, model.BlockSearchResponse{
			Status:  model.StatusError,
			Code:    model.CodeNotFound,
			Message: "block not found",
		})
		return
	}
	if err != nil {
		writeInternal(w, "block search", err)
		return
	}

	writeJSON(w, http.StatusOK, model.BlockSearchResponse{
		Status: model.StatusSuccess,
		Block:  block,
	})
}

func (h *Handler) blockScan(w http.ResponseWriter, r *http.Request) {
	var req model.PageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalid(w, "request body must be JSON")
		return
	}

	skip, limit, err := explorer.Window(req.Page, explorer.PageSize)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}

	blocks, err := h.blocks.Page(r.Context(), skip, limit)
	if err != nil {
		writeInternal(w, "block scan", err)
		return
	}
	total, err := h.blocks.Count(r.Context())
	if err != nil {
		writeInternal(w, "block count", err)
		return
	}

	writeJSON(w, http.StatusOK, model.BlockScanResponse{
		Status: model.StatusSuccess,
		Blocks: blocks,
		Pages:  explorer.Pages(total, explorer.PageSize),
	})
}

func (h *Handler) blockCount(w http.ResponseWriter, r *http.Request) {
	total, err := h.blocks.Count(r.Context())
	if err != nil {
		writeInternal(w, "block count", err)
		return
	}
	writeJSON(w, http.StatusOK, model.BlockCountResponse{Number: total})
}

func (h *Handler) trxSearch(w http.ResponseWriter, r *http.Request) {
	var req model.TrxSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalid(w, "request body must be JSON")
		return
	}
	hash := strings.TrimSpace(req.Hash)
	if hash == "" {
		writeInvalid(w, "hash is required")
		return
	}

	rec, err := h.receipts.ByHash(r.Context(), hash)
	if errors.Is(err, db.ErrNotFound) {
		writeJSON(w, http.StatusOK, model.TrxSearchResponse{
			Status:  model.StatusError,
			Code:    model.CodeNotFound,
			Message: "transaction not found",
		})
		return
	}
	if err != nil {
		writeInternal(w, "trx search", err)
		return
	}

	writeJSON(w, http.StatusOK, model.TrxSearchResponse{
		Status:      model.StatusSuccess,
		Transaction: rec,
	})
}

func (h *Handler) trxScan(w http.ResponseWriter, r *http.Request) {
	var req model.PageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalid(w, "request body must be JSON")
		return
	}

	skip, limit, err := explorer.Window(req.Page, explorer.PageSize)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}

	trxs, err := h.receipts.Page(r.Context(), skip, limit)
	if err != nil {
		writeInternal(w, "trx scan", err)
		return
	}
	total, err := h.receipts.Count(r.Context())
	if err != nil {
		writeInternal(w, "trx count", err)
		return
	}

	writeJSON(w, http.StatusOK, model.TrxScanResponse{
		Status: model.StatusSuccess,
		Trxs:   trxs,
		Count:  total,
	})
}

func (h *Handler) trxCount(w http.ResponseWriter, r *http.Request) {
	confirmed, err := h.receipts.CountConfirmed(r.Context())
	if err != nil {
		writeInternal(w, "confirmed trx count", err)
		return
	}
	writeJSON(w, http.StatusOK, model.TrxCountResponse{Data: confirmed})
}

func (h *Handler) similarArticles(w http.ResponseWriter, r *http.Request) {
	var req model.SimilarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalid(w, "request body must be JSON")
		return
	}
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.ID))
	if err != nil {
		writeInvalid(w, "id must be a valid object id")
		return
	}

	articles, err := h.similar.Similar(r.Context(), id, strings.TrimSpace(req.Type))
	if errors.Is(err, db.ErrNotFound) {
		writeJSON(w, http.StatusOK, model.SimilarResponse{
			Status:   model.StatusError,
			Code:     model.CodeNotFound,
			Message:  "article not found",
			Articles: []db.Post{},
		})
		return
	}
	if err != nil {
		writeInternal(w, "similar articles", err)
		return
	}

	writeJSON(w, http.StatusOK, model.SimilarResponse{
		Status:   model.StatusSuccess,
		Articles: articles,
	})
}

func (h *Handler) relaysRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.peerList(w, r)
	case http.MethodPost:
		h.peerRegister(w, r)
	case http.MethodDelete:
		h.peerDeregister(w, r)
	default:
		writeMethodNotAllowed(w)
	}
}

func (h *Handler) peerRegister(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.allow(r.RemoteAddr) {
		writeJSON(w, http.StatusTooManyRequests, model.ErrorResponse{
			Status:  model.StatusError,
			Code:    model.CodeInvalid,
			Message: "too many registration attempts",
		})
		return
	}

	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalid(w, "request body must be JSON")
		return
	}
	addr := strings.TrimSpace(req.Addr)
	if addr == "" {
		writeInvalid(w, "addr is required")
		return
	}

	anothers, err := h.relays.Register(r.Context(), addr, strings.TrimSpace(req.Wallet))
	switch {
	case errors.Is(err, db.ErrDuplicate):
		writeJSON(w, http.StatusOK, model.RegisterResponse{
			Status:   model.StatusError,
			Code:     model.CodeConflict,
			Detail:   "address is already registered",
			Anothers: []db.PeerRecord{},
		})
	case errors.Is(err, registry.ErrPromoted):
		writeJSON(w, http.StatusOK, model.RegisterResponse{
			Status:   model.StatusError,
			Code:     model.CodeConflict,
			Detail:   "peer has been promoted and cannot re-register as a relay",
			Anothers: []db.PeerRecord{},
		})
	case err != nil:
		writeInternal(w, "peer register", err)
	default:
		writeJSON(w, http.StatusOK, model.RegisterResponse{
			Status:   model.StatusSuccess,
			Detail:   "registered",
			Anothers: anothers,
		})
	}
}

func (h *Handler) peerList(w http.ResponseWriter, r *http.Request) {
	peers, err := h.relays.List(r.Context())
	if err != nil {
		writeInternal(w, "peer list", err)
		return
	}
	writeJSON(w, http.StatusOK, model.PeerListResponse{
		Status: model.StatusSuccess,
		Data:   peers,
	})
}

func (h *Handler) peerDeregister(w http.ResponseWriter, r *http.Request) {
	addr := strings.TrimSpace(r.URL.Query().Get("address"))
	if addr == "" {
		writeInvalid(w, "address query parameter is required")
		return
	}

	removed, err := h.relays.Deregister(r.Context(), addr)
	if err != nil {
		writeInternal(w, "peer deregister", err)
		return
	}

	writeJSON(w, http.StatusOK, model.DeregisterResponse{
		Status:  model.StatusSuccess,
		Removed: removed,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeInvalid(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, model.ErrorResponse{
		Status:  model.StatusError,
		Code:    model.CodeInvalid,
		Message: msg,
	})
}

// writeInternal logs the underlying error and returns a generic message;
// raw store errors never reach the client.
func writeInternal(w http.ResponseWriter, op string, err error) {
	slog.Error("request failed", "op", op, "error", err)
	writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{
		Status:  model.StatusError,
		Code:    model.CodeInternal,
		Message: "internal error",
	})
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, model.ErrorResponse{
		Status:  model.StatusError,
		Code:    model.CodeInvalid,
		Message: "method not allowed",
	})
}

func post(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		next(w, r)
	}
}

func get(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		next(w, r)
	}
}

// statusRecorder captures the response code for metrics
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next(rec, r)
		metrics.ObserveRequest(route, rec.code, started)
	}
}
