// Package dictionary validates played words against the Yandex Dictionary
// service. A word is admitted automatically only when the lookup returns a
// definition whose first part of speech is a noun; everything else goes to a
// chat vote.
package dictionary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
)

const defaultBaseURL = "https://dictionary.yandex.net/api/v1/dicservice.json/lookup"

type lookupResponse struct {
	Def []struct {
		Text string `json:"text"`
		Pos  string `json:"pos"`
	} `json:"def"`
}

// Client is a Yandex Dictionary lookup client. Failures trip a circuit
// breaker so a dictionary outage does not stall every turn on timeouts.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	lang       string
	breaker    *gobreaker.CircuitBreaker[lookupResponse]
	log        *slog.Logger
}

// Option adjusts a Client.
type Option func(*Client)

// WithBaseURL points the client at a different lookup endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// New builds a client for the given API token and language pair (for
// example "ru-ru").
func New(token, lang string, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		token:      token,
		lang:       lang,
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker[lookupResponse](gobreaker.Settings{
		Name:        "yandex-dictionary",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("dictionary breaker state changed",
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return c
}

// IsNoun reports whether word has a dictionary entry whose leading part of
// speech is a noun.
func (c *Client) IsNoun(ctx context.Context, word string) (bool, error) {
	resp, err := c.breaker.Execute(func() (lookupResponse, error) {
		return c.lookup(ctx, word)
	})
	if err != nil {
		return false, err
	}
	return len(resp.Def) > 0 && resp.Def[0].Pos == "noun", nil
}

func (c *Client) lookup(ctx context.Context, word string) (lookupResponse, error) {
	q := url.Values{}
	q.Set("key", c.token)
	q.Set("lang", c.lang)
	q.Set("text", word)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return lookupResponse{}, fmt.Errorf("build lookup request: %w", err)
	}
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return lookupResponse{}, fmt.Errorf("dictionary lookup: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, httpResp.Body)
		return lookupResponse{}, fmt.Errorf("dictionary lookup: status %d", httpResp.StatusCode)
	}
	var resp lookupResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return lookupResponse{}, fmt.Errorf("decode lookup response: %w", err)
	}
	return resp, nil
}
