package feed

import (
	"context"

	"github.com/feedworks/prefeed/internal/domain"
)

// Preferences is the in-memory authoritative preference store.
type Preferences interface {
	Get(username string) (domain.Vector, error)
	StageAndCommit(ctx context.Context, username string, stage func(cur domain.Vector) (domain.Vector, error)) error
}

// PostReader provides content vectors and candidate samples.
type PostReader interface {
	Vector(ctx context.Context, postID int64) (domain.Vector, error)
	Sample(ctx context.Context, limit int) ([]domain.Post, error)
}

// LikeStore manages the durable like-record set.
type LikeStore interface {
	Exists(ctx context.Context, username string, postID int64) (bool, error)
	Insert(ctx context.Context, username string, postID int64) error
	Delete(ctx context.Context, username string, postID int64) error
}
