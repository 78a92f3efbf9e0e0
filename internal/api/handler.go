package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/Solar-crew/solar-detector/internal/core"
	"github.com/Solar-crew/solar-detector/internal/domain/model"
	"github.com/Solar-crew/solar-detector/internal/logging"
)

// DefaultRadiusM is used when a site-score request omits the radius.
const DefaultRadiusM = 500.0

// Scorer is the part of core.ScoringService the handlers need.
type Scorer interface {
	ComputeSiteScore(ctx context.Context, aoi model.AreaOfInterest, window model.TimeWindow, weights model.Weights) (*model.SiteScoreResult, error)
	ComputeCloudiness(ctx context.Context, aoi model.AreaOfInterest, window model.TimeWindow, opts core.CloudOptions) (*model.CloudinessStats, error)
	CloudOptions() core.CloudOptions
}

type Handler struct {
	scorer   Scorer
	weights  model.Weights
	validate *validator.Validate
}

func NewHandler(scorer Scorer, defaultWeights model.Weights) *Handler {
	return &Handler{
		scorer:   scorer,
		weights:  defaultWeights,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type LocationRequest struct {
	Lat     *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon     *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
	RadiusM float64  `json:"radius_m" validate:"omitempty,gt=0,lte=50000"`
}

type TimeRangeRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// WeightsRequest overrides the configured weights field by field.
type WeightsRequest struct {
	Cloud     *float64 `json:"cloud" validate:"omitempty,gte=0"`
	Elevation *float64 `json:"elevation" validate:"omitempty,gte=0"`
	Road      *float64 `json:"road" validate:"omitempty,gte=0"`
	Grid      *float64 `json:"grid" validate:"omitempty,gte=0"`
}

type SiteScoreRequest struct {
	Location  LocationRequest  `json:"location" validate:"required"`
	TimeRange TimeRangeRequest `json:"time_range" validate:"required"`
	Weights   *WeightsRequest  `json:"weights,omitempty"`
}

type CloudinessRequest struct {
	CenterLat     *float64 `json:"center_lat" validate:"required,gte=-90,lte=90"`
	CenterLon     *float64 `json:"center_lon" validate:"required,gte=-180,lte=180"`
	RadiusM       float64  `json:"radius_m" validate:"required,gt=0,lte=50000"`
	StartDate     string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate       string   `json:"end_date" validate:"required,datetime=2006-01-02"`
	MaxRecords    *int     `json:"max_records,omitempty" validate:"omitempty,min=1,max=500"`
	MinValidRatio *float64 `json:"min_valid_ratio,omitempty" validate:"omitempty,gte=0,lte=1"`
	Width         *int     `json:"width,omitempty" validate:"omitempty,min=8,max=2500"`
	Height        *int     `json:"height,omitempty" validate:"omitempty,min=8,max=2500"`
}

type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func (h *Handler) SiteScore(w http.ResponseWriter, r *http.Request) {
	var req SiteScoreRequest
	if !h.decode(w, r, &req) {
		return
	}

	aoi := model.AreaOfInterest{Lat: *req.Location.Lat, Lon: *req.Location.Lon, RadiusM: req.Location.RadiusM}
	if aoi.RadiusM == 0 {
		aoi.RadiusM = DefaultRadiusM
	}
	window, err := model.NewTimeWindow(req.TimeRange.StartDate, req.TimeRange.EndDate)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.scorer.ComputeSiteScore(r.Context(), aoi, window, h.mergeWeights(req.Weights))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Cloudiness(w http.ResponseWriter, r *http.Request) {
	var req CloudinessRequest
	if !h.decode(w, r, &req) {
		return
	}

	aoi := model.AreaOfInterest{Lat: *req.CenterLat, Lon: *req.CenterLon, RadiusM: req.RadiusM}
	window, err := model.NewTimeWindow(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, r, err)
		return
	}

	opts := h.scorer.CloudOptions()
	if req.MaxRecords != nil {
		opts.MaxRecords = *req.MaxRecords
	}
	if req.MinValidRatio != nil {
		opts.MinValidRatio = *req.MinValidRatio
	}
	if req.Width != nil {
		opts.Width = *req.Width
	}
	if req.Height != nil {
		opts.Height = *req.Height
	}

	stats, err := h.scorer.ComputeCloudiness(r.Context(), aoi, window, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Service: "solar-detector"})
}

func (h *Handler) mergeWeights(req *WeightsRequest) model.Weights {
	weights := h.weights
	if req == nil {
		return weights
	}
	if req.Cloud != nil {
		weights.Cloud = *req.Cloud
	}
	if req.Elevation != nil {
		weights.Elevation = *req.Elevation
	}
	if req.Road != nil {
		weights.Road = *req.Road
	}
	if req.Grid != nil {
		weights.Grid = *req.Grid
	}
	return weights
}

// decode reads and validates a JSON body, answering 400 itself on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, r, http.StatusBadRequest, "INVALID_BODY", "invalid request body: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	msg := fe.Namespace() + " failed on " + fe.Tag()
	if fe.Param() != "" {
		msg += "=" + fe.Param()
	}
	return msg
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	var (
		invalid  *model.InvalidInputError
		noData   *model.NoDataError
		shape    *model.ShapeMismatchError
		upstream *model.UpstreamUnavailableError
	)
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.As(err, &noData):
		return http.StatusUnprocessableEntity, "NO_DATA"
	case errors.As(err, &shape):
		return http.StatusBadGateway, "SHAPE_MISMATCH"
	case errors.As(err, &upstream):
		return http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)

	log := logging.Ctx(r.Context())
	ev := log.Warn()
	if status >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).Str("code", code).Int("status", status).Str("path", r.URL.Path).Msg("request failed")

	respondError(w, r, status, code, err.Error())
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{
		Code:      code,
		Message:   message,
		RequestID: logging.RequestIDFromContext(r.Context()),
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write response")
	}
}
