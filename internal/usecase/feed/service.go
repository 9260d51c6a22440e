// Package feed orchestrates the preference-feed operations: ranked feed
// queries, random post listings, and the like/unlike mutations with
// their two-phase vector commit.
package feed

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/feedworks/prefeed/internal/domain"
	"github.com/feedworks/prefeed/internal/domain/preference"
	"github.com/feedworks/prefeed/internal/domain/ranking"
)

const (
	// DefaultFeedSize is the number of posts returned per feed page.
	DefaultFeedSize = 15
	// DefaultSampleSize bounds the candidate pool scored per request.
	DefaultSampleSize = 100
	// vectorPreviewLen is the number of components exposed on the
	// vector inspection endpoint.
	vectorPreviewLen = 10
)

// Service implements the feed operations over the injected stores.
type Service struct {
	prefs      Preferences
	posts      PostReader
	likes      LikeStore
	updater    *preference.Updater
	feedSize   int
	sampleSize int
	logger     *zap.Logger
}

// New creates a feed service.
func New(prefs Preferences, posts PostReader, likes LikeStore, updater *preference.Updater, logger *zap.Logger) *Service {
	return &Service{
		prefs:      prefs,
		posts:      posts,
		likes:      likes,
		updater:    updater,
		feedSize:   DefaultFeedSize,
		sampleSize: DefaultSampleSize,
		logger:     logger,
	}
}

// WithSizes overrides the feed page size and candidate sample size.
func (s *Service) WithSizes(feedSize, sampleSize int) *Service {
	if feedSize > 0 {
		s.feedSize = feedSize
	}
	if sampleSize > 0 {
		s.sampleSize = sampleSize
	}
	return s
}

// Feed returns the personalized top-K feed for username: a bounded
// random candidate sample scored by cosine similarity against the
// user's current vector.
func (s *Service) Feed(ctx context.Context, username string) ([]domain.ScoredPost, error) {
	vec, err := s.prefs.Get(username)
	if err != nil {
		return nil, err
	}

	candidates, err := s.posts.Sample(ctx, s.sampleSize)
	if err != nil {
		return nil, fmt.Errorf("sample candidates: %w", err)
	}

	return ranking.Rank(vec, candidates, s.feedSize), nil
}

// Posts returns a random page of posts with a neutral score, for
// clients without a ranking context.
func (s *Service) Posts(ctx context.Context) ([]domain.ScoredPost, error) {
	sample, err := s.posts.Sample(ctx, s.feedSize)
	if err != nil {
		return nil, fmt.Errorf("sample posts: %w", err)
	}

	scored := make([]domain.ScoredPost, 0, len(sample))
	for _, p := range sample {
		scored = append(scored, domain.ScoredPost{Post: p, Score: 0.0})
	}
	return scored, nil
}

// Like blends the post vector into the user's preference vector and
// records the like. The vector commit happens first: if the durable
// vector write fails, the like record is never touched. The EMA
// transform applies on every call, including repeat likes of the same
// post; only the like record itself is deduplicated.
func (s *Service) Like(ctx context.Context, username string, postID int64) error {
	if _, err := s.prefs.Get(username); err != nil {
		return err
	}

	item, err := s.posts.Vector(ctx, postID)
	if err != nil {
		return err
	}

	err = s.prefs.StageAndCommit(ctx, username, func(cur domain.Vector) (domain.Vector, error) {
		return s.updater.ApplyLike(cur, item)
	})
	if err != nil {
		return err
	}

	if err := s.likes.Insert(ctx, username, postID); err != nil {
		// Vector already committed; surface the failure so the client
		// can retry the (idempotent) record insert.
		return fmt.Errorf("record like: %w", err)
	}

	s.logger.Debug("like applied",
		zap.String("username", username),
		zap.Int64("post_id", postID),
	)
	return nil
}

// Unlike reverses the EMA step for a previously liked post and removes
// the like record. The reversal is exact only when no other update for
// this user happened since the matching like (LIFO ordering); see
// preference.Updater.ApplyUnlike.
func (s *Service) Unlike(ctx context.Context, username string, postID int64) error {
	if _, err := s.prefs.Get(username); err != nil {
		return err
	}

	liked, err := s.likes.Exists(ctx, username, postID)
	if err != nil {
		return fmt.Errorf("check like: %w", err)
	}
	if !liked {
		return fmt.Errorf("%w: user %q, post %d", domain.ErrInvalidUnlike, username, postID)
	}

	item, err := s.posts.Vector(ctx, postID)
	if err != nil {
		return err
	}

	err = s.prefs.StageAndCommit(ctx, username, func(cur domain.Vector) (domain.Vector, error) {
		return s.updater.ApplyUnlike(cur, item)
	})
	if err != nil {
		return err
	}

	if err := s.likes.Delete(ctx, username, postID); err != nil {
		return fmt.Errorf("remove like: %w", err)
	}

	s.logger.Debug("unlike applied",
		zap.String("username", username),
		zap.Int64("post_id", postID),
	)
	return nil
}

// IsLiked reports whether username has liked postID.
func (s *Service) IsLiked(ctx context.Context, username string, postID int64) (bool, error) {
	if _, err := s.prefs.Get(username); err != nil {
		return false, err
	}
	return s.likes.Exists(ctx, username, postID)
}

// VectorInfo is the inspection view of a user's preference vector.
type VectorInfo struct {
	Username string
	Preview  []float32
	Norm     float64
}

// UserVector returns the preview and norm of a user's current vector.
func (s *Service) UserVector(username string) (VectorInfo, error) {
	vec, err := s.prefs.Get(username)
	if err != nil {
		return VectorInfo{}, err
	}

	previewLen := min(vectorPreviewLen, len(vec))
	preview := make([]float32, previewLen)
	copy(preview, vec[:previewLen])

	return VectorInfo{
		Username: username,
		Preview:  preview,
		Norm:     vec.Norm(),
	}, nil
}
