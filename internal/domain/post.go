package domain

// Post is a content item with an immutable embedding produced offline.
type Post struct {
	ID          int64
	Title       string
	Description string
	Vector      Vector
}

// ScoredPost is a post annotated with its similarity score for a feed.
type ScoredPost struct {
	Post
	Score float64
}
