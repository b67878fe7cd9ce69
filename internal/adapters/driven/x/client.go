package x

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/sociallink-core/internal/core/domain"
)

// CreatePost publishes a tweet.
func (c *Client) CreatePost(ctx context.Context, accessToken, text string) (*domain.PostResult, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal post: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiBaseURL+"/tweets", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("create post failed (%d): %s", resp.StatusCode, string(body))
	}

	var postResp struct {
		Data struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &postResp); err != nil {
		return nil, fmt.Errorf("decode post response: %w", err)
	}

	return &domain.PostResult{
		Platform:  domain.PlatformX,
		PostID:    postResp.Data.ID,
		Text:      postResp.Data.Text,
		CreatedAt: time.Now(),
	}, nil
}

// GetPostMetrics fetches public engagement metrics for tweets.
func (c *Client) GetPostMetrics(ctx context.Context, accessToken string, ids []string) ([]*domain.PostMetrics, error) {
	params := url.Values{
		"ids":          {strings.Join(ids, ",")},
		"tweet.fields": {"public_metrics"},
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.apiBaseURL+"/tweets?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get metrics failed (%d): %s", resp.StatusCode, string(body))
	}

	var metricsResp struct {
		Data []struct {
			ID            string `json:"id"`
			PublicMetrics struct {
				ImpressionCount int64 `json:"impression_count"`
				LikeCount       int64 `json:"like_count"`
				RetweetCount    int64 `json:"retweet_count"`
				ReplyCount      int64 `json:"reply_count"`
				QuoteCount      int64 `json:"quote_count"`
				BookmarkCount   int64 `json:"bookmark_count"`
			} `json:"public_metrics"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &metricsResp); err != nil {
		return nil, fmt.Errorf("decode metrics response: %w", err)
	}

	now := time.Now()
	metrics := make([]*domain.PostMetrics, 0, len(metricsResp.Data))
	for _, d := range metricsResp.Data {
		metrics = append(metrics, &domain.PostMetrics{
			PostID:      d.ID,
			Impressions: d.PublicMetrics.ImpressionCount,
			Likes:       d.PublicMetrics.LikeCount,
			Reposts:     d.PublicMetrics.RetweetCount,
			Replies:     d.PublicMetrics.ReplyCount,
			Quotes:      d.PublicMetrics.QuoteCount,
			Bookmarks:   d.PublicMetrics.BookmarkCount,
			FetchedAt:   now,
		})
	}
	return metrics, nil
}
