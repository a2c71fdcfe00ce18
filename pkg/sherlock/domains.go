package sherlock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Search checks availability and pricing for a domain query. It works
// unauthenticated; a cached bearer token is attached when present so
// the search is associated with the account, but no handshake is
// triggered just to search.
func (c *Client) Search(ctx context.Context, query string) (*SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query cannot be empty")
	}
	if strings.ContainsAny(query, " \t") {
		return nil, fmt.Errorf("search query cannot contain spaces: %q", query)
	}

	auth := ""
	if tok, ok := c.auth.cached(); ok {
		auth = bearerAuth(tok)
	}

	endpoint := c.baseURL + "/api/v0/domains/search?query=" + url.QueryEscape(query)
	status, body, err := c.transport.send(ctx, http.MethodGet, endpoint, nil, auth)
	if err != nil {
		return nil, err
	}
	if status == http.StatusBadRequest {
		var detail struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(body, &detail) == nil && detail.Detail != "" {
			return nil, fmt.Errorf("%w: %s", ErrRequestFailed, detail.Detail)
		}
	}
	if status < 200 || status >= 300 {
		return nil, apiError(ErrRequestFailed, status, body)
	}

	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &resp, nil
}

// Domains lists the domains registered to the authenticated key.
func (c *Client) Domains(ctx context.Context) ([]DomainInfo, error) {
	body, err := c.getAuthed(ctx, "/api/v0/domains/domains")
	if err != nil {
		return nil, err
	}
	var domains []DomainInfo
	if err := json.Unmarshal(body, &domains); err != nil {
		return nil, fmt.Errorf("decode domains response: %w", err)
	}
	return domains, nil
}

// getAuthed performs a bearer-authorized GET against path.
func (c *Client) getAuthed(ctx context.Context, path string) ([]byte, error) {
	tok, err := c.auth.Token(ctx)
	if err != nil {
		return nil, err
	}
	status, body, err := c.transport.send(ctx, http.MethodGet, c.baseURL+path, nil, bearerAuth(tok))
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, apiError(ErrRequestFailed, status, body)
	}
	return body, nil
}
