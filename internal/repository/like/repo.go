// Package like stores the (username, post_id) like records. Membership
// here decides whether an unlike is valid; it does not reconstruct
// vectors.
package like

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/feedworks/prefeed/internal/domain"
)

// Repo manages like records in the user_likes table.
type Repo struct {
	db *sqlx.DB
}

// New creates a like repository.
func New(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

// Exists reports whether username has liked postID.
func (r *Repo) Exists(ctx context.Context, username string, postID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM user_likes WHERE username = $1 AND post_id = $2)`,
		username, postID)
	if err != nil {
		return false, fmt.Errorf("check like: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return exists, nil
}

// Insert records a like. Duplicate inserts are a no-op (set semantics).
func (r *Repo) Insert(ctx context.Context, username string, postID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_likes (username, post_id) VALUES ($1, $2)
		 ON CONFLICT (username, post_id) DO NOTHING`,
		username, postID)
	if err != nil {
		return fmt.Errorf("insert like: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes a like record.
func (r *Repo) Delete(ctx context.Context, username string, postID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_likes WHERE username = $1 AND post_id = $2`,
		username, postID)
	if err != nil {
		return fmt.Errorf("delete like: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}
