// Package chi is the HTTP transport: route wiring, request decoding,
// and the mapping from domain sentinels to status codes. All feed
// semantics live in the usecase layer.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/feedworks/prefeed/internal/domain"
	"github.com/feedworks/prefeed/internal/metrics"
	feeduc "github.com/feedworks/prefeed/internal/usecase/feed"
	healthuc "github.com/feedworks/prefeed/internal/usecase/health"
)

// Error codes returned in the JSON error body.
const (
	codeBadRequest       = "bad_request"
	codeUserNotFound     = "user_not_found"
	codePostNotFound     = "post_not_found"
	codeInvalidUnlike    = "invalid_unlike"
	codeStoreUnavailable = "store_unavailable"
	codeInternalError    = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the feed API over chi.
type Server struct {
	feed          *feeduc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(feed *feeduc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		feed:   feed,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrUserNotFound, http.StatusNotFound, codeUserNotFound),
		sentinelHandler(domain.ErrPostNotFound, http.StatusNotFound, codePostNotFound),
		sentinelHandler(domain.ErrInvalidUnlike, http.StatusBadRequest, codeInvalidUnlike),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, codeStoreUnavailable),
	}
	return s
}

// Routes mounts all API routes on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/posts", s.handlePosts)
	r.Get("/feed/{username}", s.handleFeed)
	r.Get("/is-liked/{username}/{postID}", s.handleIsLiked)
	r.Post("/like", s.handleLike)
	r.Post("/unlike", s.handleUnlike)
	r.Get("/user/{username}/vector", s.handleUserVector)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

type postResponse struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	SimilarityScore float64 `json:"similarity_score"`
}

type likeRequest struct {
	Username string `json:"username"`
	PostID   int64  `json:"post_id"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handlePosts serves GET /posts: a random sample with neutral scores.
func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.feed.Posts(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponses(posts))
}

// handleFeed serves GET /feed/{username}: the personalized top-K feed.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	posts, err := s.feed.Feed(r.Context(), username)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	metrics.FeedRequestsTotal.Inc()
	writeJSON(w, http.StatusOK, toPostResponses(posts))
}

// handleIsLiked serves GET /is-liked/{username}/{postID}.
func (s *Server) handleIsLiked(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	postID, ok := parsePostID(w, chi.URLParam(r, "postID"))
	if !ok {
		return
	}

	liked, err := s.feed.IsLiked(r.Context(), username, postID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"is_liked": liked})
}

// handleLike serves POST /like.
func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeLikeRequest(w, r)
	if !ok {
		return
	}

	if err := s.feed.Like(r.Context(), req.Username, req.PostID); err != nil {
		metrics.LikesTotal.WithLabelValues("error").Inc()
		s.handleDomainError(w, err)
		return
	}

	metrics.LikesTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("user %s liked post %d", req.Username, req.PostID),
	})
}

// handleUnlike serves POST /unlike.
func (s *Server) handleUnlike(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeLikeRequest(w, r)
	if !ok {
		return
	}

	if err := s.feed.Unlike(r.Context(), req.Username, req.PostID); err != nil {
		metrics.UnlikesTotal.WithLabelValues("error").Inc()
		s.handleDomainError(w, err)
		return
	}

	metrics.UnlikesTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("user %s unliked post %d", req.Username, req.PostID),
	})
}

// handleUserVector serves GET /user/{username}/vector.
func (s *Server) handleUserVector(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	info, err := s.feed.UserVector(username)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"username":       info.Username,
		"vector_preview": info.Preview,
		"vector_norm":    info.Norm,
	})
}

// handleHealth serves GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func decodeLikeRequest(w http.ResponseWriter, r *http.Request) (likeRequest, bool) {
	var req likeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return likeRequest{}, false
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "username is required")
		return likeRequest{}, false
	}
	if req.PostID <= 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest, "post_id must be positive")
		return likeRequest{}, false
	}
	return req, true
}

func parsePostID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid post id")
		return 0, false
	}
	return id, true
}

func toPostResponses(posts []domain.ScoredPost) []postResponse {
	out := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, postResponse{
			ID:              p.ID,
			Title:           p.Title,
			Description:     p.Description,
			SimilarityScore: p.Score,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrUserNotFound,
		domain.ErrPostNotFound,
		domain.ErrInvalidUnlike,
		domain.ErrStoreUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler creates a handler mapping one sentinel to a status and code.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
