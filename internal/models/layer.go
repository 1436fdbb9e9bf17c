package models

// LayerMetadata describes a raster product as declared by the requester
type LayerMetadata struct {
	ProductID        string   `json:"productId"`
	ProductName      string   `json:"productName"`
	ProductType      string   `json:"productType"`
	ProductSubType   string   `json:"productSubType,omitempty"`
	Description      string   `json:"description,omitempty"`
	Classification   string   `json:"classification"`
	Region           []string `json:"region,omitempty"`
	Scale            int      `json:"scale,omitempty"`
	ProducerName     string   `json:"producerName,omitempty"`
	TransparencyType string   `json:"transparency,omitempty"`
	SRSID            string   `json:"srs,omitempty"`
}

// NewLayerRequest asks for a new layer to be ingested
type NewLayerRequest struct {
	InputFiles   InputFiles    `json:"inputFiles"`
	Metadata     LayerMetadata `json:"metadata"`
	CallbackURLs []string      `json:"callbackUrls,omitempty"`
}

// UpdateLayerMetadata is what an update may change on an existing layer
type UpdateLayerMetadata struct {
	Classification string `json:"classification"`
}

// UpdateLayerRequest asks for new sources to be ingested into an existing layer
type UpdateLayerRequest struct {
	InputFiles   InputFiles          `json:"inputFiles"`
	Metadata     UpdateLayerMetadata `json:"metadata"`
	CallbackURLs []string            `json:"callbackUrls,omitempty"`
}

// JobResponse is returned when a job was submitted
type JobResponse struct {
	JobID  string `json:"jobId"`
	TaskID string `json:"taskId"`
}

// CatalogRecord is a layer as known by the catalog
type CatalogRecord struct {
	ID       string                `json:"id"`
	Metadata CatalogRecordMetadata `json:"metadata"`
	Links    []CatalogLink         `json:"links,omitempty"`
}

// CatalogRecordMetadata is the subset of catalog metadata the gateway uses
type CatalogRecordMetadata struct {
	ID               string `json:"id"`
	ProductID        string `json:"productId"`
	ProductName      string `json:"productName"`
	ProductType      string `json:"productType"`
	ProductSubType   string `json:"productSubType,omitempty"`
	ProductVersion   string `json:"productVersion"`
	DisplayPath      string `json:"displayPath,omitempty"`
	TileOutputFormat string `json:"tileOutputFormat,omitempty"`
}

// CatalogLink points at a service exposing the layer
type CatalogLink struct {
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
	URL      string `json:"url"`
}

// LayerName is the map-server layer name of a product
func LayerName(productID, productType string) string {
	return productID + "-" + productType
}
