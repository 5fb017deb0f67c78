package explorer

import "github.com/pkg/errors"

// PageSize is the fixed number of entries per explorer page
const PageSize = 12

// ErrBadPage is returned for page numbers below 1
var ErrBadPage = errors.New("page must be a positive integer")

// Window converts a 1-based page number into a skip/limit window.
// Callers sort by a monotonic key before applying the window, so pages
// are disjoint and deterministic for stable data.
func Window(page int64, pageSize int64) (skip int64, limit int64, err error) {
	if page < 1 || pageSize < 1 {
		return 0, 0, ErrBadPage
	}
	return (page - 1) * pageSize, pageSize, nil
}

// Pages returns the number of pages needed to show total entries.
// The count and the windowed fetch are separate queries; a write landing
// between them can skew the pager by one, which we accept.
func Pages(total int64, pageSize int64) int64 {
	if total <= 0 || pageSize < 1 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
