package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/feedworks/prefeed/internal/domain"
	"github.com/feedworks/prefeed/internal/domain/preference"
	feeduc "github.com/feedworks/prefeed/internal/usecase/feed"
	healthuc "github.com/feedworks/prefeed/internal/usecase/health"
)

// --- In-memory fakes behind the usecase interfaces ---

type fakePrefs struct {
	vectors map[string]domain.Vector
	failAll bool
}

func (f *fakePrefs) Get(username string) (domain.Vector, error) {
	vec, ok := f.vectors[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return vec, nil
}

func (f *fakePrefs) StageAndCommit(
	_ context.Context, username string, stage func(domain.Vector) (domain.Vector, error),
) error {
	if f.failAll {
		return domain.ErrStoreUnavailable
	}
	vec, ok := f.vectors[username]
	if !ok {
		return domain.ErrUserNotFound
	}
	next, err := stage(vec)
	if err != nil {
		return err
	}
	f.vectors[username] = next
	return nil
}

type fakePosts struct {
	vectors map[int64]domain.Vector
	sample  []domain.Post
}

func (f *fakePosts) Vector(_ context.Context, postID int64) (domain.Vector, error) {
	vec, ok := f.vectors[postID]
	if !ok {
		return nil, domain.ErrPostNotFound
	}
	return vec, nil
}

func (f *fakePosts) Sample(_ context.Context, limit int) ([]domain.Post, error) {
	if len(f.sample) > limit {
		return f.sample[:limit], nil
	}
	return f.sample, nil
}

type fakeLikes struct {
	set map[string]map[int64]bool
}

func (f *fakeLikes) Exists(_ context.Context, username string, postID int64) (bool, error) {
	return f.set[username][postID], nil
}

func (f *fakeLikes) Insert(_ context.Context, username string, postID int64) error {
	if f.set[username] == nil {
		f.set[username] = make(map[int64]bool)
	}
	f.set[username][postID] = true
	return nil
}

func (f *fakeLikes) Delete(_ context.Context, username string, postID int64) error {
	delete(f.set[username], postID)
	return nil
}

type okPinger struct{}

func (okPinger) Ping(_ context.Context) error { return nil }

func newTestRouter(t *testing.T, prefs *fakePrefs, posts *fakePosts, likes *fakeLikes) *chi.Mux {
	t.Helper()
	updater, err := preference.New(0.15)
	if err != nil {
		t.Fatalf("updater: %v", err)
	}
	feedSvc := feeduc.New(prefs, posts, likes, updater, zap.NewNop())
	healthSvc := healthuc.New(okPinger{}, nil)

	r := chi.NewRouter()
	NewServer(feedSvc, healthSvc, zap.NewNop()).Routes(r)
	return r
}

func defaultRouter(t *testing.T) *chi.Mux {
	t.Helper()
	prefs := &fakePrefs{vectors: map[string]domain.Vector{
		"user1": {1, 0},
	}}
	posts := &fakePosts{
		vectors: map[int64]domain.Vector{1: {1, 0}, 2: {0, 1}},
		sample: []domain.Post{
			{ID: 1, Title: "a", Vector: domain.Vector{1, 0}},
			{ID: 2, Title: "b", Vector: domain.Vector{0, 1}},
		},
	}
	return newTestRouter(t, prefs, posts, &fakeLikes{set: map[string]map[int64]bool{}})
}

func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

// --- Tests ---

func TestGetFeed_UnknownUserIs404(t *testing.T) {
	rec := doRequest(defaultRouter(t), http.MethodGet, "/feed/unknown_user", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != codeUserNotFound {
		t.Errorf("code: got %q, want %q", resp.Code, codeUserNotFound)
	}
}

func TestGetFeed_ReturnsRankedPosts(t *testing.T) {
	rec := doRequest(defaultRouter(t), http.MethodGet, "/feed/user1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}

	var posts []postResponse
	if err := json.NewDecoder(rec.Body).Decode(&posts); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}
	// user1 points along e1, post 1 matches exactly
	if posts[0].ID != 1 {
		t.Errorf("top post: got %d, want 1", posts[0].ID)
	}
	if posts[0].SimilarityScore < posts[1].SimilarityScore {
		t.Error("feed not sorted by score")
	}
}

func TestGetPosts_NeutralScores(t *testing.T) {
	rec := doRequest(defaultRouter(t), http.MethodGet, "/posts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}

	var posts []postResponse
	if err := json.NewDecoder(rec.Body).Decode(&posts); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	for _, p := range posts {
		if p.SimilarityScore != 0.0 {
			t.Errorf("post %d: got score %g, want 0", p.ID, p.SimilarityScore)
		}
	}
}

func TestPostLike_Success(t *testing.T) {
	r := defaultRouter(t)
	rec := doRequest(r, http.MethodPost, "/like", `{"username":"user1","post_id":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(r, http.MethodGet, "/is-liked/user1/2", "")
	var liked map[string]bool
	if err := json.NewDecoder(rec.Body).Decode(&liked); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !liked["is_liked"] {
		t.Error("expected is_liked=true after like")
	}
}

func TestPostLike_UnknownPostIs404(t *testing.T) {
	rec := doRequest(defaultRouter(t), http.MethodPost, "/like", `{"username":"user1","post_id":99}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != codePostNotFound {
		t.Errorf("code: got %q, want %q", resp.Code, codePostNotFound)
	}
}

func TestPostLike_BadBody(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"username":`},
		{"missing username", `{"post_id":1}`},
		{"non-positive post id", `{"username":"user1","post_id":0}`},
	}
	r := defaultRouter(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(r, http.MethodPost, "/like", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want 400", rec.Code)
			}
		})
	}
}

func TestPostUnlike_WithoutLikeIs400(t *testing.T) {
	rec := doRequest(defaultRouter(t), http.MethodPost, "/unlike", `{"username":"user1","post_id":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != codeInvalidUnlike {
		t.Errorf("code: got %q, want %q", resp.Code, codeInvalidUnlike)
	}
}

func TestPostUnlike_AfterLike(t *testing.T) {
	r := defaultRouter(t)
	if rec := doRequest(r, http.MethodPost, "/like", `{"username":"user1","post_id":1}`); rec.Code != http.StatusOK {
		t.Fatalf("like status: got %d", rec.Code)
	}
	if rec := doRequest(r, http.MethodPost, "/unlike", `{"username":"user1","post_id":1}`); rec.Code != http.StatusOK {
		t.Fatalf("unlike status: got %d", rec.Code)
	}

	rec := doRequest(r, http.MethodGet, "/is-liked/user1/1", "")
	var liked map[string]bool
	if err := json.NewDecoder(rec.Body).Decode(&liked); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if liked["is_liked"] {
		t.Error("expected is_liked=false after unlike")
	}
}

func TestPostLike_StoreUnavailableIs503(t *testing.T) {
	prefs := &fakePrefs{vectors: map[string]domain.Vector{"user1": {1, 0}}, failAll: true}
	posts := &fakePosts{vectors: map[int64]domain.Vector{1: {1, 0}}}
	r := newTestRouter(t, prefs, posts, &fakeLikes{set: map[string]map[int64]bool{}})

	rec := doRequest(r, http.MethodPost, "/like", `{"username":"user1","post_id":1}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want 503", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != codeStoreUnavailable {
		t.Errorf("code: got %q, want %q", resp.Code, codeStoreUnavailable)
	}
}

func TestIsLiked_BadPostID(t *testing.T) {
	rec := doRequest(defaultRouter(t), http.MethodGet, "/is-liked/user1/notanumber", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
}

func TestUserVector_PreviewAndNorm(t *testing.T) {
	rec := doRequest(defaultRouter(t), http.MethodGet, "/user/user1/vector", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}

	var resp struct {
		Username      string    `json:"username"`
		VectorPreview []float32 `json:"vector_preview"`
		VectorNorm    float64   `json:"vector_norm"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Username != "user1" {
		t.Errorf("username: got %q", resp.Username)
	}
	if len(resp.VectorPreview) != 2 {
		t.Errorf("preview length: got %d, want 2", len(resp.VectorPreview))
	}
	if resp.VectorNorm != 1 {
		t.Errorf("norm: got %g, want 1", resp.VectorNorm)
	}
}

func TestUserVector_UnknownUserIs404(t *testing.T) {
	rec := doRequest(defaultRouter(t), http.MethodGet, "/user/nobody/vector", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	rec := doRequest(defaultRouter(t), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
}
