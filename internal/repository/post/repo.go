// Package post reads content rows and their embeddings from the posts
// table. Candidate sampling uses ORDER BY RANDOM(): a bounded random
// draw per request, the deliberate alternative to exact nearest-neighbor
// search over the whole corpus.
package post

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/feedworks/prefeed/internal/domain"
)

// Repo reads posts and post vectors.
type Repo struct {
	db     *sqlx.DB
	dim    int
	logger *zap.Logger
}

// New creates a post repository.
func New(db *sqlx.DB, dim int, logger *zap.Logger) *Repo {
	return &Repo{db: db, dim: dim, logger: logger}
}

type postRow struct {
	ID          int64          `db:"id"`
	Title       sql.NullString `db:"title"`
	Description sql.NullString `db:"description"`
	Embedding   string         `db:"embedding"`
}

// Vector returns the embedding of one post. Posts without an embedding
// are indistinguishable from missing posts: both are ErrPostNotFound.
func (r *Repo) Vector(ctx context.Context, postID int64) (domain.Vector, error) {
	var literal string
	err := r.db.GetContext(ctx, &literal,
		`SELECT embedding::text FROM posts WHERE id = $1 AND embedding IS NOT NULL`, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", domain.ErrPostNotFound, postID)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch post vector: %w: %w", domain.ErrStoreUnavailable, err)
	}

	vec, err := domain.ParseVector(literal, r.dim)
	if err != nil {
		return nil, fmt.Errorf("post %d: %w", postID, err)
	}
	return vec, nil
}

// Sample returns up to limit random posts that have an embedding. Rows
// with corrupt embeddings are skipped with a warning, mirroring the
// startup load discipline.
func (r *Repo) Sample(ctx context.Context, limit int) ([]domain.Post, error) {
	var rows []postRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, title, description, embedding::text AS embedding
		 FROM posts
		 WHERE embedding IS NOT NULL
		 ORDER BY RANDOM()
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("sample posts: %w: %w", domain.ErrStoreUnavailable, err)
	}

	posts := make([]domain.Post, 0, len(rows))
	for _, row := range rows {
		vec, err := domain.ParseVector(row.Embedding, r.dim)
		if err != nil {
			r.logger.Warn("Skipping post with corrupt embedding",
				zap.Int64("post_id", row.ID),
				zap.Error(err),
			)
			continue
		}
		posts = append(posts, domain.Post{
			ID:          row.ID,
			Title:       row.Title.String,
			Description: row.Description.String,
			Vector:      vec,
		})
	}
	return posts, nil
}
