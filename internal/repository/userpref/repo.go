// Package userpref persists user preference vectors in the user_prefs
// table (user_vector is a pgvector column of the configured dimension).
package userpref

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/feedworks/prefeed/internal/domain"
)

// Repo implements prefstore.Writer and the startup bulk load.
type Repo struct {
	db     *sqlx.DB
	dim    int
	logger *zap.Logger
}

// New creates a user-preference repository. dim is the expected vector
// dimension; rows that fail it are skipped at load time.
func New(db *sqlx.DB, dim int, logger *zap.Logger) *Repo {
	return &Repo{db: db, dim: dim, logger: logger}
}

type prefRow struct {
	Username string `db:"username"`
	Vector   string `db:"user_vector"`
}

// LoadAll fetches every user vector for the startup load. Rows whose
// vector fails to parse or has the wrong dimension are skipped with a
// warning; only a store-level failure aborts the load.
func (r *Repo) LoadAll(ctx context.Context) (map[string]domain.Vector, error) {
	var rows []prefRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT username, user_vector::text AS user_vector FROM user_prefs`)
	if err != nil {
		return nil, fmt.Errorf("load user vectors: %w: %w", domain.ErrStoreUnavailable, err)
	}

	vectors := make(map[string]domain.Vector, len(rows))
	for _, row := range rows {
		vec, err := domain.ParseVector(row.Vector, r.dim)
		if err != nil {
			r.logger.Warn("Skipping user with corrupt vector row",
				zap.String("username", row.Username),
				zap.Error(err),
			)
			continue
		}
		vectors[row.Username] = vec
	}
	return vectors, nil
}

// Write durably replaces one user's vector. The single UPDATE is atomic
// from the core's point of view.
func (r *Repo) Write(ctx context.Context, username string, vec domain.Vector) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE user_prefs SET user_vector = $1 WHERE username = $2`,
		domain.EncodeVector(vec), username)
	if err != nil {
		return fmt.Errorf("write user vector: %w: %w", domain.ErrStoreUnavailable, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write user vector: %w: %w", domain.ErrStoreUnavailable, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %q", domain.ErrUserNotFound, username)
	}
	return nil
}
