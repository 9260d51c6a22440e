// prefeed-embed backfills post embeddings. It scans the posts table for
// rows without a vector, embeds title and description through an
// OpenAI-compatible API, and writes the vectors back. Run it offline
// whenever content is ingested; the serving path never embeds.
package main

import (
	"context"
	"database/sql"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/feedworks/prefeed/internal/config"
	dbPostgres "github.com/feedworks/prefeed/internal/db/postgres"
	"github.com/feedworks/prefeed/internal/domain"
	logpkg "github.com/feedworks/prefeed/internal/logger"
	openaiEmb "github.com/feedworks/prefeed/internal/transport/openai"
)

type pendingPost struct {
	ID          int64          `db:"id"`
	Title       sql.NullString `db:"title"`
	Description sql.NullString `db:"description"`
}

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Embedding.APIKey == "" || cfg.Embedding.Model == "" {
		logger.Fatal("embedding.api_key and embedding.model are required")
	}

	pg, err := dbPostgres.Connect(dbPostgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer func() { _ = pg.Close() }()

	ctx := context.Background()
	if err := pg.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}

	var pending []pendingPost
	err = pg.DB().SelectContext(ctx, &pending,
		`SELECT id, title, description FROM posts WHERE embedding IS NULL ORDER BY id`)
	if err != nil {
		logger.Fatal("Failed to list pending posts", zap.Error(err))
	}
	if len(pending) == 0 {
		logger.Info("No posts pending embedding")
		return
	}
	logger.Info("Embedding posts",
		zap.Int("pending", len(pending)),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("concurrency", cfg.Embedding.Concurrency),
	)

	embedder := openaiEmb.NewEmbedder(openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})

	var embedded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Embedding.Concurrency)

	for _, p := range pending {
		p := p
		g.Go(func() error {
			vec, err := embedder.Embed(gctx, embedText(p))
			if err != nil {
				failed.Add(1)
				logger.Warn("Failed to embed post", zap.Int64("post_id", p.ID), zap.Error(err))
				return nil // keep going; one bad row must not stop the backfill
			}

			_, err = pg.DB().ExecContext(gctx,
				`UPDATE posts SET embedding = $1 WHERE id = $2`,
				domain.EncodeVector(vec), p.ID)
			if err != nil {
				failed.Add(1)
				logger.Warn("Failed to store embedding", zap.Int64("post_id", p.ID), zap.Error(err))
				return nil
			}

			embedded.Add(1)
			return nil
		})
	}

	_ = g.Wait()

	logger.Info("Backfill finished",
		zap.Int64("embedded", embedded.Load()),
		zap.Int64("failed", failed.Load()),
	)
}

// embedText joins title and description the same way for every post so
// repeated runs produce identical inputs.
func embedText(p pendingPost) string {
	parts := make([]string, 0, 2)
	if p.Title.String != "" {
		parts = append(parts, p.Title.String)
	}
	if p.Description.String != "" {
		parts = append(parts, p.Description.String)
	}
	return strings.Join(parts, "\n")
}
