// Package jikan reads title metadata from the Jikan (MyAnimeList) API and
// overlays it onto stored catalog records.
package jikan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://api.jikan.moe/v4"

// StatusError is a non-200 reply.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jikan: status %d body=%q", e.Code, e.Body)
}

// Temporary reports whether retrying may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type Options struct {
	BaseURL string
	// RPS caps outbound requests per second; Jikan allows 3. Defaults to 1.
	RPS int
	// Attempts per request including the first; defaults to 3.
	Attempts uint
	// RetryDelay is the initial backoff; defaults to 500ms.
	RetryDelay time.Duration
	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	attempts   uint
	delay      time.Duration
}

func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Attempts == 0 {
		opts.Attempts = 3
	}
	if opts.RPS <= 0 {
		opts.RPS = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(opts.RPS), 1),
		attempts:   opts.Attempts,
		delay:      opts.RetryDelay,
	}
}

// Close drops pooled connections to the API.
func (c *Client) Close() { c.httpClient.CloseIdleConnections() }

// AnimeData is the data block of GET /anime/{id}/full.
type AnimeData struct {
	MalID         int      `json:"mal_id"`
	Title         string   `json:"title"`
	TitleEnglish  string   `json:"title_english"`
	TitleJapanese string   `json:"title_japanese"`
	Synopsis      string   `json:"synopsis"`
	Type          string   `json:"type"`
	Status        string   `json:"status"`
	Episodes      int      `json:"episodes"`
	Score         *float64 `json:"score"`
	Year          *int     `json:"year"`
	Aired         struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"aired"`
	Genres []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Images struct {
		JPG struct {
			ImageURL      string `json:"image_url"`
			LargeImageURL string `json:"large_image_url"`
		} `json:"jpg"`
	} `json:"images"`
	Trailer struct {
		Images struct {
			MaximumImageURL string `json:"maximum_image_url"`
		} `json:"images"`
	} `json:"trailer"`
}

type AnimeResponse struct {
	Data AnimeData `json:"data"`
}

type CharacterEntry struct {
	Character struct {
		MalID  int    `json:"mal_id"`
		Name   string `json:"name"`
		Images struct {
			JPG struct {
				ImageURL string `json:"image_url"`
			} `json:"jpg"`
		} `json:"images"`
	} `json:"character"`
	Role        string `json:"role"`
	VoiceActors []struct {
		Language string `json:"language"`
		Person   struct {
			Name string `json:"name"`
		} `json:"person"`
	} `json:"voice_actors"`
}

type CharactersResponse struct {
	Data []CharacterEntry `json:"data"`
}

func (c *Client) GetAnime(ctx context.Context, malID int) (*AnimeResponse, error) {
	if malID <= 0 {
		return nil, fmt.Errorf("malID required")
	}
	var out AnimeResponse
	if err := c.getJSON(ctx, "/anime/"+strconv.Itoa(malID)+"/full", 2<<20, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetCharacters(ctx context.Context, malID int) (*CharactersResponse, error) {
	if malID <= 0 {
		return nil, fmt.Errorf("malID required")
	}
	var out CharactersResponse
	if err := c.getJSON(ctx, "/anime/"+strconv.Itoa(malID)+"/characters", 4<<20, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// getJSON retries transport failures, 429 and 5xx replies with exponential
// backoff. Every attempt waits for the rate limiter.
func (c *Client) getJSON(ctx context.Context, path string, limit int64, out any) error {
	return retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			return c.fetch(ctx, c.baseURL+path, limit, out)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
	)
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return !errors.Is(err, errDecode)
}

var errDecode = errors.New("jikan: decode error")

func (c *Client) fetch(ctx context.Context, rawURL string, limit int64, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return retry.Unrecoverable(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "animestream-catalog/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Body: string(b[:min(len(b), 200)])}
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%w: %v body=%q", errDecode, err, string(b[:min(len(b), 200)]))
	}
	return nil
}

// BestTitle prefers the English title.
func BestTitle(d AnimeData) string {
	if t := strings.TrimSpace(d.TitleEnglish); t != "" {
		return t
	}
	if t := strings.TrimSpace(d.Title); t != "" {
		return t
	}
	return strings.TrimSpace(d.TitleJapanese)
}
