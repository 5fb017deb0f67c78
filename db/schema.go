package db

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Signature is a block header signature together with the signing key
type Signature struct {
	Value string `bson:"value" json:"value"`
	Key   string `bson:"key" json:"key"`
}

// BlockHeader identifies a block and links it to its predecessor
type BlockHeader struct {
	Hash       string    `bson:"hash" json:"hash"`
	Number     int64     `bson:"number" json:"number"`
	Previous   string    `bson:"previous" json:"previous"`
	Validator  string    `bson:"validator" json:"validator"`
	Relay      string    `bson:"relay" json:"relay"`
	MerkleRoot string    `bson:"merkle_root" json:"merkleRoot"`
	Signature  Signature `bson:"signature" json:"signature"`
	Date       time.Time `bson:"date" json:"date"`
}

// Coinbase is the block's reward distribution between validator and relay
type Coinbase struct {
	ValidatorReward string `bson:"validator_reward" json:"validatorReward"`
	RelayReward     string `bson:"relay_reward" json:"relayReward"`
	FeeTotal        string `bson:"fee_total" json:"feeTotal"`
}

// BlockBody holds the coinbase and the transactions included in the block
type BlockBody struct {
	Coinbase     Coinbase  `bson:"coinbase" json:"coinbase"`
	Transactions []Receipt `bson:"transactions" json:"transactions"`
}

// Block represents a block of the chain, annotated for MongoDB.
// Blocks are written once by the consensus node and never mutated.
type Block struct {
	Header BlockHeader `bson:"header" json:"header"`
	Body   BlockBody   `bson:"body" json:"body"`
}

// ReceiptStatus is the lifecycle state of a transaction receipt
type ReceiptStatus string

const (
	ReceiptPending   ReceiptStatus = "Pending"
	ReceiptConfirmed ReceiptStatus = "Confirmed"
	ReceiptFailed    ReceiptStatus = "Failed"
)

// Receipt represents a transaction receipt, annotated for MongoDB.
// BlockNumber is nil until the transaction is confirmed.
type Receipt struct {
	Hash        string        `bson:"hash" json:"hash"`
	From        string        `bson:"from" json:"from"`
	To          string        `bson:"to" json:"to"`
	Value       string        `bson:"value" json:"value"`
	Fee         string        `bson:"fee" json:"fee"`
	Status      ReceiptStatus `bson:"status" json:"status"`
	Date        time.Time     `bson:"date" json:"date"`
	BlockNumber *int64        `bson:"block_number,omitempty" json:"blockNumber,omitempty"`
}

// Post is an article managed by the site admin and consumed read-only here
type Post struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Content     string             `bson:"content" json:"content"`
	Description string             `bson:"description" json:"description"`
	Type        string             `bson:"type" json:"type"`
	Image       string             `bson:"image" json:"image"`
	Author      string             `bson:"author,omitempty" json:"author,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
}

// PeerRecord is a self-registered relay/RPC network address
type PeerRecord struct {
	Addr           string     `bson:"addr" json:"addr"`
	Wallet         string     `bson:"wallet,omitempty" json:"wallet,omitempty"`
	JoinDate       time.Time  `bson:"join_date" json:"joinDate"`
	DeactivateDate *time.Time `bson:"deactivate_date,omitempty" json:"deactivateDate,omitempty"`
}

// PromotedPeer is a peer that has been upgraded out of the plain relay role.
// Its peer id blocks re-registration of the same node as a relay.
type PromotedPeer struct {
	Peer        string    `bson:"peer" json:"peer"`
	Addr        string    `bson:"addr" json:"addr"`
	Wallet      string    `bson:"wallet,omitempty" json:"wallet,omitempty"`
	PromoteDate time.Time `bson:"promote_date" json:"promoteDate"`
}
