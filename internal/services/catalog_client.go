package services

import (
	"context"
	"net/http"
	"strings"

	"github.com/trobanga/rastergate/internal/lib"
	"github.com/trobanga/rastergate/internal/models"
)

const catalogService = "catalog"

// CatalogClient queries the raster layer catalog
type CatalogClient struct {
	baseURL    string
	httpClient *HTTPClient
	logger     *lib.Logger
}

// NewCatalogClient creates a new catalog client with the given base URL
func NewCatalogClient(baseURL string, httpClient *HTTPClient, logger *lib.Logger) *CatalogClient {
	return &CatalogClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

type catalogFindRequest struct {
	ID       string               `json:"id,omitempty"`
	Metadata *catalogFindMetadata `json:"metadata,omitempty"`
}

type catalogFindMetadata struct {
	ProductID   string `json:"productId"`
	ProductType string `json:"productType"`
}

// FindByCriteria returns every record of a product id and type
// POST /records/find
func (c *CatalogClient) FindByCriteria(ctx context.Context, productID, productType string) ([]models.CatalogRecord, error) {
	return c.find(ctx, catalogFindRequest{
		Metadata: &catalogFindMetadata{ProductID: productID, ProductType: productType},
	})
}

// FindByID returns every record with the given catalog id
// POST /records/find
func (c *CatalogClient) FindByID(ctx context.Context, id string) ([]models.CatalogRecord, error) {
	return c.find(ctx, catalogFindRequest{ID: id})
}

func (c *CatalogClient) find(ctx context.Context, criteria catalogFindRequest) ([]models.CatalogRecord, error) {
	var records []models.CatalogRecord
	if _, err := c.httpClient.DoJSON(ctx, catalogService, http.MethodPost, c.baseURL+"/records/find", criteria, &records); err != nil {
		return nil, err
	}
	c.logger.Debug("Catalog lookup", "matches", len(records))
	return records, nil
}
