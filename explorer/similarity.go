package explorer

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"stakechain-explorer/db"
)

// topK is how many related articles the recommender returns
const topK = 3

// Tokenize splits text on whitespace, lower-cases every token and
// collapses duplicates to a set.
func Tokenize(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(text) {
		set[strings.ToLower(tok)] = struct{}{}
	}
	return set
}

// Score is the shared-token overlap between two token sets:
// |A∩B| / (|A|+|B|). This is the Dice coefficient without the factor
// of 2; the maximum for identical sets is 0.5. Kept as is for
// compatibility with historical scores.
func Score(a, b map[string]struct{}) float64 {
	if len(a)+len(b) == 0 {
		return 0
	}

	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}

	common := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			common++
		}
	}

	return float64(common) / float64(len(a)+len(b))
}

// Rank orders candidates by content overlap with the reference text,
// best first, and returns at most k of them. The sort is stable so ties
// keep their storage order.
func Rank(referenceText string, candidates []db.Post, k int) []db.Post {
	ref := Tokenize(referenceText)

	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = Score(Tokenize(c.Content), ref)
	}

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	if k > len(order) {
		k = len(order)
	}
	out := make([]db.Post, k)
	for i := 0; i < k; i++ {
		out[i] = candidates[order[i]]
	}
	return out
}

// PostFinder is the subset of the posts repository the recommender needs
type PostFinder interface {
	ByID(ctx context.Context, id primitive.ObjectID) (*db.Post, error)
	ByType(ctx context.Context, typ string, exclude primitive.ObjectID) ([]db.Post, error)
}

// Recommender ranks stored posts against a reference post
type Recommender struct {
	posts PostFinder
}

func NewRecommender(posts PostFinder) *Recommender {
	return &Recommender{posts: posts}
}

// Similar returns the posts of the given type most similar to the post
// with the given id, excluding the post itself. The reference text is
// title plus content. A missing reference post fails the whole call
// with db.ErrNotFound; no partial ranking is attempted. An empty typ
// falls back to the reference post's own type.
func (r *Recommender) Similar(ctx context.Context, id primitive.ObjectID, typ string) ([]db.Post, error) {
	ref, err := r.posts.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to load reference post")
	}

	if typ == "" {
		typ = ref.Type
	}

	candidates, err := r.posts.ByType(ctx, typ, ref.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load candidate posts")
	}

	return Rank(ref.Title+" "+ref.Content, candidates, topK), nil
}
