// Package source queries the YouTube Data API v3.
//
// All lookups are single-shot and stateless. Failures collapse to a "not
// found" result: the upstream API does not reliably distinguish an empty
// channel from a failed query, so neither do we. Errors are still logged
// at debug level for operators.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"golang.org/x/time/rate"

	logx "tubewatch/pkg/logx"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

// Config controls the API client.
type Config struct {
	APIKey      string
	BaseURL     string // empty means the public API endpoint
	HTTPTimeout time.Duration
	RatePerSec  int
	Burst       int
	RetryMax    int
}

// Client is a stateless query surface over the Data API. Safe for
// concurrent use.
type Client struct {
	cfg     Config
	base    string
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("youtube api key is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 4
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	return &Client{
		cfg:     cfg,
		base:    base,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     log,
	}, nil
}

// LatestItemID returns the most recent published item id for a channel.
// ok is false when the channel has no items or the query failed; callers
// cannot tell these apart.
func (c *Client) LatestItemID(ctx context.Context, channelID string) (string, bool) {
	var resp searchResponse
	err := c.getJSON(ctx, "search", url.Values{
		"part":       {"snippet"},
		"channelId":  {channelID},
		"maxResults": {"1"},
		"order":      {"date"},
	}, &resp)
	if err != nil {
		c.log.Debug("latest item lookup failed", logx.String("channel", channelID), logx.Err(err))
		return "", false
	}
	if len(resp.Items) == 0 || resp.Items[0].ID.VideoID == "" {
		return "", false
	}
	return resp.Items[0].ID.VideoID, true
}

// ItemDetails fetches full metadata for one item. ok is false on any
// fetch or parse failure.
func (c *Client) ItemDetails(ctx context.Context, channelID, itemID string) (*ItemDetails, bool) {
	var resp videosResponse
	err := c.getJSON(ctx, "videos", url.Values{
		"part": {"snippet,contentDetails,liveStreamingDetails"},
		"id":   {itemID},
	}, &resp)
	if err != nil {
		c.log.Debug("item details lookup failed", logx.String("channel", channelID), logx.String("item", itemID), logx.Err(err))
		return nil, false
	}
	if len(resp.Items) == 0 {
		return nil, false
	}

	v := resp.Items[0]
	d := &ItemDetails{
		ID:           v.ID,
		Title:        v.Snippet.Title,
		Description:  v.Snippet.Description,
		DurationCode: v.ContentDetails.Duration,
	}
	if t, err := time.Parse(time.RFC3339, v.Snippet.PublishedAt); err == nil {
		d.PublishedAt = t
	}
	if thumb, ok := v.Snippet.Thumbnails["high"]; ok {
		d.ThumbnailURL = thumb.URL
	} else if thumb, ok := v.Snippet.Thumbnails["default"]; ok {
		d.ThumbnailURL = thumb.URL
	}
	if v.LiveStreamingDetails != nil {
		if t, err := time.Parse(time.RFC3339, v.LiveStreamingDetails.ActualStartTime); err == nil {
			d.LiveStart = t
		}
		if t, err := time.Parse(time.RFC3339, v.LiveStreamingDetails.ActualEndTime); err == nil {
			d.LiveEnd = t
		}
	}
	return d, true
}

// ChannelStat fetches aggregate channel statistics.
func (c *Client) ChannelStat(ctx context.Context, channelID string) (Stat, bool) {
	var resp channelsResponse
	err := c.getJSON(ctx, "channels", url.Values{
		"part": {"statistics"},
		"id":   {channelID},
	}, &resp)
	if err != nil {
		c.log.Debug("channel stat lookup failed", logx.String("channel", channelID), logx.Err(err))
		return Stat{}, false
	}
	if len(resp.Items) == 0 {
		return Stat{}, false
	}
	st := resp.Items[0].Statistics
	return Stat{
		Subscribers: parseCount(st.SubscriberCount),
		Views:       parseCount(st.ViewCount),
		Videos:      parseCount(st.VideoCount),
	}, true
}

// getJSON performs one rate-limited, retried API call and decodes the body.
// Every attempt takes its own limiter token so retries stay under the
// configured API rate.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	params.Set("key", c.cfg.APIKey)
	reqURL := c.base + "/" + endpoint + "?" + params.Encode()

	return retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Accept", "application/json")

			resp, err := c.http.Do(req)
			if err != nil {
				return fmt.Errorf("http get %s: %w", endpoint, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
				err := fmt.Errorf("http get %s: status %d", endpoint, resp.StatusCode)
				// Quota and auth failures will not heal within a retry window.
				if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
					return retry.Unrecoverable(err)
				}
				return err
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode %s: %w", endpoint, err))
			}
			return nil
		},
		retry.Attempts(uint(c.cfg.RetryMax)),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(2*time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.log.Debug("api call retrying", logx.String("endpoint", endpoint), logx.Int("attempt", int(n)+1), logx.Err(err))
		}),
	)
}

func parseCount(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

// ---- wire types ----

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			PublishedAt string               `json:"publishedAt"`
			Title       string               `json:"title"`
			Description string               `json:"description"`
			Thumbnails  map[string]thumbnail `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		LiveStreamingDetails *struct {
			ActualStartTime string `json:"actualStartTime"`
			ActualEndTime   string `json:"actualEndTime"`
		} `json:"liveStreamingDetails"`
	} `json:"items"`
}

type thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type channelsResponse struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			ViewCount       string `json:"viewCount"`
			SubscriberCount string `json:"subscriberCount"`
			VideoCount      string `json:"videoCount"`
		} `json:"statistics"`
	} `json:"items"`
}
