package client

import (
	"context"
	"net/http"

	"github.com/jmcleod/headless/cache"
)

// GetConfiguration returns the server's feature configuration, served
// from cache when fresh. The configuration is server-wide and survives
// sign-in/sign-out transitions.
func (c *Client) GetConfiguration(ctx context.Context) (*ConfigurationResponse, error) {
	return fetchCached(ctx, c, cache.KeyConfig, func(ctx context.Context) (*ConfigurationResponse, error) {
		var resp ConfigurationResponse
		if err := c.do(ctx, http.MethodGet, "/config", nil, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
}
