package craft

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/brainreset/internal/apperr"
	"github.com/starford/brainreset/internal/models"
)

// TodayPlaceholder is the date value the Craft API resolves to the current
// daily note.
const TodayPlaceholder = "today"

const (
	dateLayout      = "2006-01-02"
	maxResponseBody = 10 << 20
)

var errNoBlockID = errors.New("response carried no block id")

// Client is a Craft Connect API client. The API base and token are passed
// per call because both belong to the caller, not to the service.
type Client struct {
	http        *http.Client
	now         func() time.Time
	loc         *time.Location
	concurrency int
	scheme      string
	logger      *slog.Logger

	onFetchFailure func()
	onFallback     func()
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Its Timeout is the per-call limit.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithClock overrides the time source used to compute the fetch window.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLocation sets the zone in which "today" is evaluated.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) { c.loc = loc }
}

// WithConcurrency bounds parallel per-day fetches. 1 fetches sequentially.
func WithConcurrency(n int) Option {
	return func(c *Client) { c.concurrency = n }
}

// WithDeepLinkScheme sets the URI scheme of returned deep links.
func WithDeepLinkScheme(scheme string) Option {
	return func(c *Client) { c.scheme = scheme }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHooks registers callbacks for skipped days and placement fallbacks.
func WithHooks(onFetchFailure, onFallback func()) Option {
	return func(c *Client) {
		c.onFetchFailure = onFetchFailure
		c.onFallback = onFallback
	}
}

// NewClient returns a Client with a 20 second per-call timeout, UTC dates
// and sequential fetching unless overridden.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:        &http.Client{Timeout: 20 * time.Second},
		now:         time.Now,
		loc:         time.UTC,
		concurrency: 1,
		scheme:      "craftdocs",
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.concurrency < 1 {
		c.concurrency = 1
	}
	return c
}

// WindowDates returns the calendar dates of the days-long window ending
// today, newest first.
func (c *Client) WindowDates(days int) []string {
	now := c.now().In(c.loc)
	// Noon keeps AddDate clear of DST transitions at midnight.
	anchor := time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, c.loc)
	dates := make([]string, 0, days)
	for i := 0; i < days; i++ {
		dates = append(dates, anchor.AddDate(0, 0, -i).Format(dateLayout))
	}
	return dates
}

// FetchDailyNotes reads one daily note per day of the window. A day whose
// request fails or whose note is blank is skipped; the returned notes are
// sorted ascending by date. The only error is cancellation of ctx.
func (c *Client) FetchDailyNotes(ctx context.Context, apiBase, token string, days int) ([]models.DailyNote, error) {
	dates := c.WindowDates(days)
	found := make([]*models.DailyNote, len(dates))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, date := range dates {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			note, err := c.fetchDay(ctx, apiBase, token, date)
			if err != nil {
				c.logger.Warn("craft: fetch daily note failed",
					slog.String("date", date), slog.String("error", err.Error()))
				if c.onFetchFailure != nil {
					c.onFetchFailure()
				}
				return nil
			}
			if note == nil {
				c.logger.Debug("craft: no content", slog.String("date", date))
				return nil
			}
			c.logger.Debug("craft: found content", slog.String("date", date))
			found[i] = note
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	notes := make([]models.DailyNote, 0, len(found))
	for i := len(found) - 1; i >= 0; i-- {
		if found[i] != nil {
			notes = append(notes, *found[i])
		}
	}
	return notes, nil
}

// fetchDay returns nil without error when the note exists but is blank.
func (c *Client) fetchDay(ctx context.Context, apiBase, token, date string) (*models.DailyNote, error) {
	endpoint := apiBase + "/blocks?date=" + url.QueryEscape(date)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var block Block
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&block); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}

	content := strings.TrimSpace(ExtractMarkdown(block))
	if content == "" {
		return nil, nil
	}
	return &models.DailyNote{ID: block.ID, Date: date, Content: content}, nil
}

type position struct {
	Position string `json:"position"`
	Date     string `json:"date"`
}

type createRequest struct {
	Markdown string    `json:"markdown"`
	Position *position `json:"position,omitempty"`
}

type createResponse struct {
	Items []struct {
		ID string `json:"id"`
	} `json:"items"`
	ID string `json:"id"`
}

// CreateDocument appends markdown at the end of targetDate's daily note and
// returns a deep link to the new block. When the first placement fails it
// tries once more with the "today" placeholder. Failures are
// apperr.KindWrite carrying the last upstream status. A created block whose
// response carries no id yields an empty link and no error.
func (c *Client) CreateDocument(ctx context.Context, apiBase, token, markdown, targetDate string) (string, error) {
	if targetDate == "" {
		targetDate = TodayPlaceholder
	}

	id, status, err := c.createBlock(ctx, apiBase, token, markdown, targetDate)
	if err != nil && targetDate != TodayPlaceholder && !errors.Is(err, errNoBlockID) && ctx.Err() == nil {
		c.logger.Warn("craft: placement failed, retrying with today",
			slog.String("date", targetDate), slog.Int("status", status), slog.String("error", err.Error()))
		if c.onFallback != nil {
			c.onFallback()
		}
		id, status, err = c.createBlock(ctx, apiBase, token, markdown, TodayPlaceholder)
	}
	if errors.Is(err, errNoBlockID) {
		c.logger.Warn("craft: document created but no block id returned",
			slog.String("date", targetDate), slog.Int("status", status))
		return "", nil
	}
	if err != nil {
		return "", apperr.WithStatus(apperr.KindWrite, "craft.create", status, err)
	}
	return c.DeepLink(id), nil
}

func (c *Client) createBlock(ctx context.Context, apiBase, token, markdown, date string) (string, int, error) {
	body, err := json.Marshal(createRequest{
		Markdown: markdown,
		Position: &position{Position: "end", Date: date},
	})
	if err != nil {
		return "", 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase+"/blocks", bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", resp.StatusCode, fmt.Errorf("failed to create document: %d: %s", resp.StatusCode, truncate(string(raw), 512))
	}

	var out createResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Items) > 0 && out.Items[0].ID != "" {
		return out.Items[0].ID, resp.StatusCode, nil
	}
	if out.ID != "" {
		return out.ID, resp.StatusCode, nil
	}
	return "", resp.StatusCode, errNoBlockID
}

// DeepLink returns the URI that opens block id in the Craft app.
func (c *Client) DeepLink(id string) string {
	return c.scheme + "://open?blockId=" + strings.ReplaceAll(url.QueryEscape(id), "+", "%20")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
