// Package taiga talks to the Taiga REST API: projects and their user
// stories, which the rest of the program calls tasks.
package taiga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"

	"github.com/harrisonrobin/taigo/pkg/auth"
	"github.com/harrisonrobin/taigo/pkg/logger"
)

// Requester performs authenticated requests relative to the API root.
// *auth.Manager implements it.
type Requester interface {
	Do(ctx context.Context, method, path string, body any) (*http.Response, error)
}

// maxPages bounds pagination in case the service keeps pointing forward.
const maxPages = 500

// Client is a Taiga API client.
type Client struct {
	r   Requester
	log *slog.Logger
}

// NewClient creates a client sending its requests through r.
func NewClient(r Requester, log *slog.Logger) *Client {
	return &Client{r: r, log: logger.OrDiscard(log)}
}

// call sends one request and decodes a successful JSON reply into out.
// It returns the response headers for callers that page.
func (c *Client) call(ctx context.Context, method, p string, body, out any) (http.Header, error) {
	resp, err := c.r.Do(ctx, method, p, body)
	if err != nil {
		if errors.Is(err, auth.ErrAuth) || errors.Is(err, auth.ErrNotLoggedIn) {
			return nil, err
		}
		return nil, &RemoteError{Message: fmt.Sprintf("%s %s failed", method, p), Err: err}
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, &RemoteError{StatusCode: resp.StatusCode, Message: "failed to decode response", Err: err}
		}
	}
	return resp.Header, nil
}

// nextPage turns an absolute x-pagination-next URL into a path relative to
// the API root. It returns "" when there is no next page.
func nextPage(header http.Header) (string, error) {
	next := header.Get("x-pagination-next")
	if next == "" {
		return "", nil
	}
	u, err := url.Parse(next)
	if err != nil {
		return "", fmt.Errorf("failed to parse next page url '%s': %w", next, err)
	}
	p := "/" + path.Base(u.Path)
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p, nil
}
