package client

import (
	"context"
	"net/http"

	"github.com/jmcleod/headless/cache"
)

// ListSessions returns the account's sessions, served from cache when
// fresh.
func (c *Client) ListSessions(ctx context.Context) (*SessionsResponse, error) {
	return fetchCached(ctx, c, cache.KeySessions, func(ctx context.Context) (*SessionsResponse, error) {
		var resp SessionsResponse
		if err := c.do(ctx, http.MethodGet, "/auth/sessions", nil, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
}

// DeleteSessions ends the sessions with the given ids. Deleting a
// non-current session returns the replacement list, which overwrites the
// cached one. With no ids the current session is ended instead, which is
// a logout with its full cache effect.
func (c *Client) DeleteSessions(ctx context.Context, ids ...int64) (*SessionsResponse, error) {
	if len(ids) == 0 {
		state, err := c.Logout(ctx)
		if err != nil {
			return nil, err
		}
		return &SessionsResponse{Status: state.Status}, nil
	}
	var resp SessionsResponse
	req := SessionDeleteRequest{Sessions: ids}
	if err := c.do(ctx, http.MethodDelete, "/auth/sessions", req, &resp); err != nil {
		return nil, err
	}
	c.coord.SessionsUpdated(&resp)
	return &resp, nil
}
