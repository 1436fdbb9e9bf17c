package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/trobanga/rastergate/internal/lib"
)

const mapServerService = "map server"

// MapServerClient checks which layers the tile map server already serves
type MapServerClient struct {
	baseURL    string
	httpClient *HTTPClient
	logger     *lib.Logger
}

// NewMapServerClient creates a new map server client with the given base URL
func NewMapServerClient(baseURL string, httpClient *HTTPClient, logger *lib.Logger) *MapServerClient {
	return &MapServerClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// LayerExists reports whether the layer is configured in the map server.
// 200 means it exists, 404 means it does not, anything else is an error.
// GET /layers/{name}
func (c *MapServerClient) LayerExists(ctx context.Context, layerName string) (bool, error) {
	endpoint := fmt.Sprintf("%s/layers/%s", c.baseURL, url.PathEscape(layerName))
	status, err := c.httpClient.DoJSON(ctx, mapServerService, http.MethodGet, endpoint, nil, nil)
	if status == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	c.logger.Debug("Layer found in map server", "layer", layerName)
	return true, nil
}
