package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/models"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// Client is a stateless adapter over the upstream tweet provider's HTTP JSON
// API. It authenticates with an API key and normalises the provider's loosely
// typed response shape into canonical Tweet records.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	retry      RetryPolicy
	logger     *slog.Logger
}

// NewClient constructs a Scraper Client for the given upstream base URL and
// API key.
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry:  DefaultRetryPolicy(),
		logger: logger,
	}
}

// FetchUserTweets fetches up to limit recent tweets for username, retrying
// transient upstream failures per the Scraper Client's retry policy.
func (c *Client) FetchUserTweets(ctx context.Context, username string, limit int) ([]models.Tweet, error) {
	if !usernamePattern.MatchString(username) {
		return nil, fmt.Errorf("username %q does not match ^[A-Za-z0-9_]{1,15}$: %w", username, apperr.ErrValidation)
	}
	if limit < 1 || limit > 1000 {
		return nil, fmt.Errorf("limit must be in [1, 1000], got %d: %w", limit, apperr.ErrValidation)
	}

	var tweets []models.Tweet

	err := Retry(ctx, c.retry, func(attempt int) error {
		body, fetchErr := c.doFetch(ctx, username, limit)
		if fetchErr != nil {
			return fetchErr
		}

		parsed, parseErr := c.parseTweets(body)
		if parseErr != nil {
			return parseErr
		}

		tweets = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tweets, nil
}

func (c *Client) doFetch(ctx context.Context, username string, limit int) ([]byte, error) {
	url := fmt.Sprintf("%s/user/last_tweets?userName=%s&limit=%s", c.baseURL, username, strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewRetryableError(fmt.Errorf("upstream request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewRetryableError(fmt.Errorf("reading upstream response: %w", err))
	}

	if resp.StatusCode == http.StatusOK {
		return body, nil
	}

	statusErr := fmt.Errorf("upstream returned status %d for %q: %s", resp.StatusCode, username, truncate(string(body), 500))

	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return nil, NewRetryableError(statusErr)
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s", apperr.ErrAuthRequired, statusErr)
	case http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", apperr.ErrForbidden, statusErr)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, statusErr)
	case http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: %s", apperr.ErrValidation, statusErr)
	default:
		return nil, fmt.Errorf("%w: %s", apperr.ErrPermanentUpstream, statusErr)
	}
}

// parseTweets normalises the upstream provider's response into canonical
// Tweet records. The response shape is only partially specified by the
// provider, so fields are extracted leniently with gjson.
func (c *Client) parseTweets(body []byte) ([]models.Tweet, error) {
	result := gjson.ParseBytes(body)
	data := result.Get("tweets")
	if !data.Exists() {
		data = result.Get("data")
	}
	if !data.IsArray() {
		return nil, fmt.Errorf("%w: upstream response missing tweet array", apperr.ErrPermanentUpstream)
	}

	var tweets []models.Tweet
	for _, item := range data.Array() {
		tw, err := c.normaliseTweet(item)
		if err != nil {
			return nil, err
		}
		tweets = append(tweets, tw)
	}

	return tweets, nil
}

func (c *Client) normaliseTweet(item gjson.Result) (models.Tweet, error) {
	tw := models.Tweet{
		TweetID:           item.Get("id").String(),
		AuthorUsername:    item.Get("author.userName").String(),
		AuthorDisplayName: item.Get("author.name").String(),
	}

	if created := item.Get("createdAt"); created.Exists() {
		if t, err := time.Parse(time.RubyDate, created.String()); err == nil {
			tw.CreatedAt = t
		} else if t, err := time.Parse(time.RFC3339, created.String()); err == nil {
			tw.CreatedAt = t
		}
	}

	refType, refID, refText, refAuthor, refMedia := c.extractReference(item)
	if refType != "" {
		rt := refType
		tw.ReferenceType = &rt
		tw.ReferencedTweetID = &refID
		tw.ReferencedTweetText = refText
		tw.ReferencedTweetAuthor = refAuthor
		tw.ReferencedTweetMedia = refMedia
	}

	tw.Media = extractMedia(item.Get("extendedEntities.media"))
	tw.Text = normaliseText(c.fullText(item))

	return tw, nil
}

// extractReference implements the reference-classification rules: retweet
// takes precedence over quote, which takes precedence over reply.
func (c *Client) extractReference(item gjson.Result) (refType models.ReferenceType, refID, refText, refAuthor string, refMedia []models.Media) {
	if rt := item.Get("retweeted_tweet"); rt.Exists() {
		return models.ReferenceRetweeted, rt.Get("id").String(), c.fullText(rt), rt.Get("author.userName").String(), extractMedia(rt.Get("extendedEntities.media"))
	}
	if qt := item.Get("quoted_tweet"); qt.Exists() {
		return models.ReferenceQuoted, qt.Get("id").String(), c.fullText(qt), qt.Get("author.userName").String(), extractMedia(qt.Get("extendedEntities.media"))
	}
	if item.Get("isReply").Bool() && item.Get("inReplyToId").Exists() {
		return models.ReferenceRepliedTo, item.Get("inReplyToId").String(), "", "", nil
	}
	return "", "", "", "", nil
}

// fullText collects all candidate full-text fields and returns the longest,
// per the provider's inconsistent truncation behaviour. Logs a warning when
// the winning candidate looks truncated itself.
func (c *Client) fullText(item gjson.Result) string {
	candidates := []string{
		item.Get("note_tweet.text").String(),
		item.Get("full_text").String(),
		item.Get("text").String(),
	}

	longest := ""
	for _, cand := range candidates {
		if len(cand) > len(longest) {
			longest = cand
		}
	}

	if len(longest) <= 300 && strings.HasSuffix(strings.TrimSpace(longest), "…") {
		c.logger.Warn("chosen tweet text looks truncated", "length", len(longest))
	}

	return longest
}

func extractMedia(arr gjson.Result) []models.Media {
	if !arr.IsArray() {
		return nil
	}

	var media []models.Media
	for _, m := range arr.Array() {
		typ := models.MediaType(m.Get("type").String())
		media = append(media, models.Media{
			Key:  m.Get("id_str").String(),
			Type: typ,
			URL:  m.Get("media_url_https").String(),
		})
	}
	return media
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// normaliseText collapses CRLF to spaces, squeezes whitespace runs, and
// truncates to models.MaxTextLength.
func normaliseText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	if len(text) > models.MaxTextLength {
		text = text[:models.MaxTextLength]
	}

	return text
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
