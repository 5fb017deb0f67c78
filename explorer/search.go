package explorer

import (
	"context"
	"strconv"
	"strings"

	"stakechain-explorer/db"
)

// BlockFinder is the subset of the blocks repository the resolver needs
type BlockFinder interface {
	ByNumber(ctx context.Context, number int64) (*db.Block, error)
	ByHash(ctx context.Context, hash string) (*db.Block, error)
}

// Resolver turns a raw user-entered search token into a block lookup
type Resolver struct {
	blocks BlockFinder
}

func NewResolver(blocks BlockFinder) *Resolver {
	return &Resolver{blocks: blocks}
}

// Resolve classifies the token and performs the matching point lookup.
// A token that fully parses as a base-10 integer is taken as a block
// height; anything else is an exact hash match. Hashes are alphanumeric
// and far longer than any plausible height, so the split is unambiguous.
// A miss returns db.ErrNotFound, never a transport error.
func (r *Resolver) Resolve(ctx context.Context, token string) (*db.Block, error) {
	token = strings.TrimSpace(token)

	if number, err := strconv.ParseInt(token, 10, 64); err == nil {
		return r.blocks.ByNumber(ctx, number)
	}

	return r.blocks.ByHash(ctx, token)
}
