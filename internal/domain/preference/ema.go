// Package preference implements the exponential-moving-average update
// applied to a user's taste vector when content is liked, and its
// algebraic inverse applied on unlike.
package preference

import (
	"fmt"

	"github.com/feedworks/prefeed/internal/domain"
)

// DefaultAlpha is the learning rate used when none is configured.
const DefaultAlpha = 0.15

// Updater blends item vectors into user vectors with a fixed learning
// rate alpha.
type Updater struct {
	alpha float64
}

// New creates an Updater. Alpha must lie strictly inside (0,1): 0 would
// make every like a no-op, 1 would make the unlike division undefined.
func New(alpha float64) (*Updater, error) {
	if alpha <= 0 || alpha >= 1 {
		return nil, fmt.Errorf("%w: alpha must be in (0,1), got %g", domain.ErrConfig, alpha)
	}
	return &Updater{alpha: alpha}, nil
}

// Alpha returns the configured learning rate.
func (u *Updater) Alpha() float64 { return u.alpha }

// ApplyLike returns alpha*item + (1-alpha)*cur.
func (u *Updater) ApplyLike(cur, item domain.Vector) (domain.Vector, error) {
	if len(cur) != len(item) {
		return nil, fmt.Errorf("%w: user %d, item %d", domain.ErrVectorDimMismatch, len(cur), len(item))
	}
	next := make(domain.Vector, len(cur))
	for i := range cur {
		next[i] = float32(u.alpha*float64(item[i]) + (1-u.alpha)*float64(cur[i]))
	}
	return next, nil
}

// ApplyUnlike returns (cur - alpha*item) / (1-alpha), the inverse of
// ApplyLike. The inversion is exact only when no other update for the
// same user happened since the matching like; for any other ordering it
// undoes the most recent EMA step algebraically, not the historical one.
// Callers must not treat it as a general history rewind.
func (u *Updater) ApplyUnlike(cur, item domain.Vector) (domain.Vector, error) {
	if len(cur) != len(item) {
		return nil, fmt.Errorf("%w: user %d, item %d", domain.ErrVectorDimMismatch, len(cur), len(item))
	}
	next := make(domain.Vector, len(cur))
	for i := range cur {
		next[i] = float32((float64(cur[i]) - u.alpha*float64(item[i])) / (1 - u.alpha))
	}
	return next, nil
}
