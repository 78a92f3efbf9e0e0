package sentinel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/Solar-crew/solar-detector/internal/domain/model"
)

// catalogResponse is the part of the resto GeoJSON response we use.
type catalogResponse struct {
	Features []catalogFeature `json:"features"`
}

type catalogFeature struct {
	ID any `json:"id"`
	// keys differ only in case between catalog versions, so they are matched exactly
	Properties map[string]any `json:"properties"`
}

// property returns the first non-empty string value among keys.
func (f catalogFeature) property(keys ...string) string {
	for _, k := range keys {
		if v, ok := f.Properties[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func (f catalogFeature) productID() string {
	switch id := f.ID.(type) {
	case string:
		if id != "" {
			return id
		}
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	}
	return f.property("title")
}

// SearchCatalog queries Sentinel-2 L2A products intersecting bbox within window.
func (c *Client) SearchCatalog(
	ctx context.Context,
	bbox model.BoundingBox,
	window model.TimeWindow,
	maxRecords int,
) ([]model.CatalogEntry, error) {
	params := url.Values{}
	params.Set("startDate", window.Start.Format(model.DateLayout))
	params.Set("completionDate", window.End.Format(model.DateLayout))
	params.Set("productType", "S2MSI2A")
	params.Set("geometry", bbox.WKT())
	params.Set("maxRecords", strconv.Itoa(maxRecords))

	requestURL := c.cfg.CatalogURL + "?" + params.Encode()

	body, err := c.do(ctx, "catalog", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	})
	if err != nil {
		return nil, err
	}

	var resp catalogResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", err)
	}

	entries := make([]model.CatalogEntry, 0, len(resp.Features))
	for _, f := range resp.Features {
		entries = append(entries, model.CatalogEntry{
			ProductID:       f.productID(),
			AcquisitionDate: f.property("startDate", "startdate"),
		})
	}

	// провайдер может вернуть больше, чем просили
	if len(entries) > maxRecords {
		entries = entries[:maxRecords]
	}
	return entries, nil
}
