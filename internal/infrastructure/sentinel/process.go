package sentinel

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/Solar-crew/solar-detector/internal/domain/model"
)

// evalscriptCloud flags Sentinel-2 SCL classes 3 (cloud shadow), 8 (medium
// cloud), 9 (high cloud) and 10 (cirrus). Band 0 is dataMask, band 1 the flag.
const evalscriptCloud = `//VERSION=3
function setup() {
  return {
    input: ["SCL", "dataMask"],
    output: { bands: 2, sampleType: "UINT8" }
  };
}

function evaluatePixel(sample) {
  let cloudClasses = [3, 8, 9, 10];
  let isCloud = cloudClasses.indexOf(sample.SCL) !== -1 ? 1 : 0;
  return [sample.dataMask, isCloud];
}
`

// evalscriptElevation encodes DEM heights as UINT16 (h + 11000) * 2; no-data
// pixels become 0, which decodes below the no-data sentinel.
const evalscriptElevation = `//VERSION=3
function setup() {
  return {
    input: ["DEM", "dataMask"],
    output: { bands: 1, sampleType: "UINT16" }
  };
}

function evaluatePixel(sample) {
  if (sample.dataMask === 0) {
    return [0];
  }
  return [(sample.DEM + 11000) * 2];
}
`

const (
	elevationOffset = 11000.0
	elevationScale  = 2.0
)

const crsWGS84 = "http://www.opengis.net/def/crs/EPSG/0/4326"

type processRequest struct {
	Input      processInput  `json:"input"`
	Output     processOutput `json:"output"`
	Evalscript string        `json:"evalscript"`
}

type processInput struct {
	Bounds processBounds `json:"bounds"`
	Data   []processData `json:"data"`
}

type processBounds struct {
	BBox       [4]float64        `json:"bbox"`
	Properties map[string]string `json:"properties"`
}

type processData struct {
	Type       string         `json:"type"`
	DataFilter map[string]any `json:"dataFilter,omitempty"`
}

type processOutput struct {
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Responses []processResponse `json:"responses"`
}

type processResponse struct {
	Identifier string            `json:"identifier"`
	Format     map[string]string `json:"format"`
}

// buildProcessRequest returns the Process API payload for a raster request.
func buildProcessRequest(req model.RasterRequest) (processRequest, error) {
	p := processRequest{
		Input: processInput{
			Bounds: processBounds{
				BBox:       [4]float64{req.BBox.MinLon, req.BBox.MinLat, req.BBox.MaxLon, req.BBox.MaxLat},
				Properties: map[string]string{"crs": crsWGS84},
			},
		},
		Output: processOutput{
			Width:  req.Width,
			Height: req.Height,
			Responses: []processResponse{
				{Identifier: "default", Format: map[string]string{"type": "image/png"}},
			},
		},
	}

	switch req.Kind {
	case model.RasterCloudMask:
		if req.Date.IsZero() {
			return processRequest{}, fmt.Errorf("cloud mask request needs a date")
		}
		day := req.Date.Format(model.DateLayout)
		p.Input.Data = []processData{{
			Type: "sentinel-2-l2a",
			DataFilter: map[string]any{
				"timeRange": map[string]string{
					"from": day + "T00:00:00Z",
					"to":   day + "T23:59:59Z",
				},
			},
		}}
		p.Evalscript = evalscriptCloud
	case model.RasterElevation:
		p.Input.Data = []processData{{
			Type:       "dem",
			DataFilter: map[string]any{"demInstance": "COPERNICUS_30"},
		}}
		p.Evalscript = evalscriptElevation
	default:
		return processRequest{}, fmt.Errorf("unsupported raster kind %s", req.Kind)
	}

	return p, nil
}

// FetchRaster requests a raster from the Process API and decodes it.
func (c *Client) FetchRaster(ctx context.Context, req model.RasterRequest) (*model.Raster, error) {
	payload, err := buildProcessRequest(req)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal process request: %w", err)
	}

	op := "process:" + req.Kind.String()
	data, err := c.do(ctx, op, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ProcessURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("Accept", "image/png")
		return r, nil
	})
	if err != nil {
		return nil, err
	}

	var date string
	if req.Kind == model.RasterCloudMask {
		date = req.Date.Format(model.DateLayout)
	}

	raster, err := decodeRaster(data, req.Kind, date)
	if err != nil {
		return nil, err
	}
	if raster.Width != req.Width || raster.Height != req.Height {
		return nil, &model.ShapeMismatchError{
			Kind: req.Kind, Date: date, WantBands: req.Kind.Bands(), GotBands: len(raster.Bands),
			Reason: fmt.Sprintf("size %dx%d does not match requested %dx%d",
				raster.Width, raster.Height, req.Width, req.Height),
		}
	}
	return raster, nil
}
