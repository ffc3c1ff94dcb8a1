// Package twitter is the Twitter API v2 client used to resolve handles
// and fetch recent tweets for watched accounts.
package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"twitter-watcher/pkg/watcher"
)

const (
	defaultBaseURL = "https://api.twitter.com/2"

	// maxResults caps how many tweets one fetch returns; plenty for a
	// poll interval measured in minutes.
	maxResults = 5
)

// ErrUserNotFound indicates a handle that does not map to any account.
var ErrUserNotFound = errors.New("twitter: user not found")

// APIError indicates a non-2xx response from the Twitter API.
type APIError struct {
	Endpoint   string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter API HTTP %d: %s", e.StatusCode, e.Endpoint)
}

// Client talks to the Twitter API v2 with app-only bearer auth.
type Client struct {
	client  *http.Client
	logger  *slog.Logger
	baseURL string
	bearer  string
}

// New creates a new Twitter API client.
func New(bearerToken string, logger *slog.Logger) *Client {
	return &Client{
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
		baseURL: defaultBaseURL,
		bearer:  bearerToken,
	}
}

type userResponse struct {
	Data *struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
}

type tweetsResponse struct {
	Data []struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		CreatedAt string `json:"created_at"`
	} `json:"data"`
}

// ResolveUser maps a handle to its stable numeric user ID.
func (c *Client) ResolveUser(ctx context.Context, handle string) (string, error) {
	endpoint := "/users/by/username/" + url.PathEscape(handle)

	var out userResponse
	if err := c.get(ctx, endpoint, nil, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return "", ErrUserNotFound
		}
		return "", err
	}
	if out.Data == nil || out.Data.ID == "" {
		return "", ErrUserNotFound
	}

	c.logger.Info("Resolved Twitter user", "username", handle, "user_id", out.Data.ID)
	return out.Data.ID, nil
}

// RecentTweets returns up to maxResults tweets for userID, newest-first,
// the way the platform orders them. A non-empty sinceID restricts the
// result to tweets newer than that ID; an empty sinceID returns the most
// recent tweets unconstrained (the seeding case).
func (c *Client) RecentTweets(ctx context.Context, userID, sinceID string) ([]watcher.Tweet, error) {
	endpoint := "/users/" + url.PathEscape(userID) + "/tweets"

	query := url.Values{}
	query.Set("max_results", fmt.Sprint(maxResults))
	query.Set("tweet.fields", "created_at")
	if sinceID != "" {
		query.Set("since_id", sinceID)
	}

	var out tweetsResponse
	if err := c.get(ctx, endpoint, query, &out); err != nil {
		return nil, err
	}

	tweets := make([]watcher.Tweet, 0, len(out.Data))
	for _, d := range out.Data {
		tweets = append(tweets, watcher.Tweet{
			ID:        d.ID,
			Text:      d.Text,
			CreatedAt: d.CreatedAt,
		})
	}
	return tweets, nil
}

// get performs one API request with retries and decodes the JSON body.
// 4xx responses other than 429 are not retried.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	reqURL := c.baseURL + endpoint
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}
			req.Header.Set("Authorization", "Bearer "+c.bearer)
			req.Header.Set("Accept", "application/json")

			startTime := time.Now()
			resp, err := c.client.Do(req)
			duration := time.Since(startTime)

			if err != nil {
				c.logger.Warn("Twitter API request failed, will retry",
					"endpoint", endpoint,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					c.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			if resp.StatusCode != http.StatusOK {
				apiErr := &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode}
				if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
					c.logger.Warn("Twitter API client error, not retrying",
						"endpoint", endpoint,
						"status_code", resp.StatusCode)
					return retry.Unrecoverable(apiErr)
				}
				c.logger.Warn("Twitter API returned non-OK status, will retry",
					"endpoint", endpoint,
					"status_code", resp.StatusCode)
				return apiErr
			}

			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode response: %w", err))
			}

			c.logger.Debug("Twitter API request completed",
				"endpoint", endpoint,
				"duration_ms", duration.Milliseconds())
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying Twitter API request after error", "attempt", n, "endpoint", endpoint, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("after retries: %w", err)
	}
	return nil
}
