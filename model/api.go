package model

import "stakechain-explorer/db"

// Status is the overall outcome of a request. The legacy site used the
// free-form strings "success", "error", "failed" and "done"
// interchangeably; here the outcome is a closed pair of values and the
// machine-readable detail lives in Code.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Code categorizes a non-success outcome
type Code string

const (
	CodeNotFound Code = "not_found"
	CodeInvalid  Code = "invalid"
	CodeConflict Code = "conflict"
	CodeInternal Code = "internal"
)

// BlockSearchRequest carries a raw user-entered height or hash
type BlockSearchRequest struct {
	SearchValue string `json:"searchValue"`
}

type BlockSearchResponse struct {
	Status  Status    `json:"status"`
	Code    Code      `json:"code,omitempty"`
	Message string    `json:"message,omitempty"`
	Block   *db.Block `json:"block,omitempty"`
}

// PageRequest selects a 1-based page of a scan
type PageRequest struct {
	Page int64 `json:"page"`
}

type BlockScanResponse struct {
	Status  Status     `json:"status"`
	Code    Code       `json:"code,omitempty"`
	Message string     `json:"message,omitempty"`
	Blocks  []db.Block `json:"blocks"`
	Pages   int64      `json:"pages"`
}

type BlockCountResponse struct {
	Number int64 `json:"number"`
}

type TrxSearchRequest struct {
	Hash string `json:"hash"`
}

type TrxSearchResponse struct {
	Status      Status      `json:"status"`
	Code        Code        `json:"code,omitempty"`
	Message     string      `json:"message,omitempty"`
	Transaction *db.Receipt `json:"transaction,omitempty"`
}

type TrxScanResponse struct {
	Status  Status       `json:"status"`
	Code    Code         `json:"code,omitempty"`
	Message string       `json:"message,omitempty"`
	Trxs    []db.Receipt `json:"trxs"`
	Count   int64        `json:"count"`
}

type TrxCountResponse struct {
	Data int64 `json:"data"`
}

type SimilarRequest struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type SimilarResponse struct {
	Status   Status    `json:"status"`
	Code     Code      `json:"code,omitempty"`
	Message  string    `json:"message,omitempty"`
	Articles []db.Post `json:"articles"`
}

type RegisterRequest struct {
	Addr   string `json:"addr"`
	Wallet string `json:"wallet,omitempty"`
}

// RegisterResponse reports the registration outcome; Anothers is a
// bounded sample of the other registered peers for bootstrapping
type RegisterResponse struct {
	Status   Status          `json:"status"`
	Code     Code            `json:"code,omitempty"`
	Detail   string          `json:"detail"`
	Anothers []db.PeerRecord `json:"anothers"`
}

type PeerListResponse struct {
	Status  Status          `json:"status"`
	Code    Code            `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    []db.PeerRecord `json:"data"`
}

type DeregisterResponse struct {
	Status  Status `json:"status"`
	Code    Code   `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Removed int64  `json:"removed"`
}

// ErrorResponse is the generic failure body for routes without a
// dedicated response shape
type ErrorResponse struct {
	Status  Status `json:"status"`
	Code    Code   `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
