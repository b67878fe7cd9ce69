package domain

import "time"

// PostRequest is a request to publish a post on a connected platform.
// @Description Request to publish a post
type PostRequest struct {
	Platform Platform `json:"platform" example:"x"`
	Text     string   `json:"text" example:"hello world"`
}

// PostResult describes a post created on the provider.
// @Description Created post
type PostResult struct {
	Platform  Platform  `json:"platform"`
	PostID    string    `json:"post_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// PostMetrics holds public engagement counts for one post.
// @Description Engagement metrics for a post
type PostMetrics struct {
	PostID      string    `json:"post_id"`
	Impressions int64     `json:"impressions"`
	Likes       int64     `json:"likes"`
	Reposts     int64     `json:"reposts"`
	Replies     int64     `json:"replies"`
	Quotes      int64     `json:"quotes"`
	Bookmarks   int64     `json:"bookmarks"`
	FetchedAt   time.Time `json:"fetched_at"`
}
