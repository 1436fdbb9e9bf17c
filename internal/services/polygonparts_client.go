package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/trobanga/rastergate/internal/lib"
)

const polygonPartsService = "polygon parts"

// PolygonPartsClient manages the per-product validation entity that the
// asynchronous validation writes downstream
type PolygonPartsClient struct {
	baseURL    string
	httpClient *HTTPClient
	logger     *lib.Logger
}

// NewPolygonPartsClient creates a new polygon parts client with the given base URL
func NewPolygonPartsClient(baseURL string, httpClient *HTTPClient, logger *lib.Logger) *PolygonPartsClient {
	return &PolygonPartsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// DeleteValidationEntity removes the validation entity of a product.
// A missing entity is not an error.
// DELETE /polygonParts/validate?productId=..&productType=..
func (c *PolygonPartsClient) DeleteValidationEntity(ctx context.Context, productID, productType string) error {
	query := url.Values{}
	query.Set("productId", productID)
	query.Set("productType", productType)
	endpoint := fmt.Sprintf("%s/polygonParts/validate?%s", c.baseURL, query.Encode())

	status, err := c.httpClient.DoJSON(ctx, polygonPartsService, http.MethodDelete, endpoint, nil, nil)
	if status == http.StatusNotFound {
		c.logger.Debug("No validation entity to delete", "product_id", productID, "product_type", productType)
		return nil
	}
	return err
}
