package demandforecast

import (
	"context"
	"math"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/taxi-demand/pkg/common"
	"github.com/richxcame/taxi-demand/pkg/geo"
	"github.com/richxcame/taxi-demand/pkg/validation"
)

func init() {
	conditions := make([]string, len(WeatherConditions))
	for i, c := range WeatherConditions {
		conditions[i] = string(c)
	}
	if err := validation.RegisterEnum("weather_condition", conditions...); err != nil {
		panic("register weather_condition validator: " + err.Error())
	}
}

// WeatherInput is a caller-supplied weather reading. Missing numeric
// fields fall back to the model defaults.
type WeatherInput struct {
	Condition    string   `json:"condition" validate:"required,weather_condition"`
	TemperatureC *float64 `json:"temperature_c" validate:"omitempty,gte=-90,lte=60"`
	HumidityPct  *float64 `json:"humidity_pct" validate:"omitempty,gte=0,lte=100"`
	Description  string   `json:"description"`
}

func (w WeatherInput) reading() WeatherReading {
	r := WeatherReading{
		Condition:    WeatherCondition(w.Condition),
		TemperatureC: math.NaN(),
		HumidityPct:  math.NaN(),
		Description:  w.Description,
	}
	if w.TemperatureC != nil {
		r.TemperatureC = *w.TemperatureC
	}
	if w.HumidityPct != nil {
		r.HumidityPct = *w.HumidityPct
	}
	return r.Normalized()
}

// TimeInput is a caller-supplied time context.
type TimeInput struct {
	HourOfDay *int `json:"hour_of_day" validate:"required,gte=0,lte=23"`
	DayOfWeek *int `json:"day_of_week" validate:"required,gte=0,lte=6"`
}

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	Latitude  *float64      `json:"latitude" validate:"required,latitude"`
	Longitude *float64      `json:"longitude" validate:"required,longitude"`
	Weather   *WeatherInput `json:"weather"`
	Time      *TimeInput    `json:"time"`
}

// LocationQuery is the query of GET /weather.
type LocationQuery struct {
	Latitude  *float64 `form:"latitude" validate:"required,latitude"`
	Longitude *float64 `form:"longitude" validate:"required,longitude"`
}

// HotspotQuery is the optional reference point of GET /hotspots.
type HotspotQuery struct {
	Latitude  *float64 `form:"latitude" validate:"omitempty,latitude"`
	Longitude *float64 `form:"longitude" validate:"omitempty,longitude"`
}

// HotspotResponse describes a hotspot together with its H3 cell and, when a
// reference point was given, its distance from it.
type HotspotResponse struct {
	Hotspot
	Cell       string   `json:"cell"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

type weatherStatser interface {
	Stats() WeatherClientStats
}

type weatherLookuper interface {
	Lookup(ctx context.Context, loc geo.Coordinate) (WeatherReading, WeatherOrigin)
}

// Handler serves the demand prediction HTTP API.
type Handler struct {
	predictor *Predictor
	weather   WeatherSource
}

// NewHandler creates a handler
func NewHandler(predictor *Predictor, weather WeatherSource) *Handler {
	return &Handler{predictor: predictor, weather: weather}
}

// RegisterRoutes mounts the API under group.
func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/predict", h.Predict)
	group.GET("/weather", h.GetWeather)
	group.GET("/hotspots", h.GetHotspots)
	group.GET("/training/stats", h.GetTrainingStats)
	group.POST("/train", h.TriggerTraining)
}

// Predict handles demand prediction requests
func (h *Handler) Predict(c *gin.Context) {
	var req PredictRequest
	if !common.BindJSON(c, &req) {
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		common.AppErrorResponse(c, common.NewValidationError(err.Error()))
		return
	}

	var weather *WeatherReading
	if req.Weather != nil {
		r := req.Weather.reading()
		weather = &r
	}
	var tm *TimeContext
	if req.Time != nil {
		tm = &TimeContext{HourOfDay: *req.Time.HourOfDay, DayOfWeek: *req.Time.DayOfWeek}
	}

	loc := geo.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}
	result := h.predictor.Predict(c.Request.Context(), loc, weather, tm)
	common.SuccessResponse(c, result)
}

// GetWeather returns the current weather for a location
func (h *Handler) GetWeather(c *gin.Context) {
	var q LocationQuery
	if !common.BindQuery(c, &q) {
		return
	}
	if err := validation.ValidateStruct(&q); err != nil {
		common.AppErrorResponse(c, common.NewValidationError(err.Error()))
		return
	}

	loc := geo.Coordinate{Latitude: *q.Latitude, Longitude: *q.Longitude}

	lookup, ok := h.weather.(weatherLookuper)
	if !ok {
		common.SuccessResponse(c, h.weather.GetCurrentWeather(c.Request.Context(), loc))
		return
	}

	reading, origin := lookup.Lookup(c.Request.Context(), loc)
	meta := &common.Meta{Cached: origin.Cached(), Source: string(origin)}
	if s, ok := h.weather.(weatherStatser); ok {
		meta.Stats = s.Stats()
	}
	common.SuccessResponseWithMeta(c, reading, meta)
}

// GetHotspots lists the hotspots in feature order, with distances when
// latitude and longitude are given
func (h *Handler) GetHotspots(c *gin.Context) {
	var q HotspotQuery
	if !common.BindQuery(c, &q) {
		return
	}
	if err := validation.ValidateStruct(&q); err != nil {
		common.AppErrorResponse(c, common.NewValidationError(err.Error()))
		return
	}
	if (q.Latitude == nil) != (q.Longitude == nil) {
		common.AppErrorResponse(c, common.NewValidationError("latitude and longitude must be given together"))
		return
	}

	hotspots := h.predictor.Hotspots()
	out := make([]HotspotResponse, len(hotspots))
	for i, hs := range hotspots {
		out[i] = HotspotResponse{
			Hotspot: hs,
			Cell:    geo.CellFor(hs.Location, geo.H3ResolutionDemand),
		}
		if q.Latitude != nil {
			d := geo.Haversine(*q.Latitude, *q.Longitude, hs.Location.Latitude, hs.Location.Longitude)
			out[i].DistanceKm = &d
		}
	}
	common.SuccessResponse(c, out)
}

// GetTrainingStats returns model weights and training log statistics
func (h *Handler) GetTrainingStats(c *gin.Context) {
	common.SuccessResponse(c, h.predictor.Stats())
}

// TriggerTraining refits the model from the current training log
func (h *Handler) TriggerTraining(c *gin.Context) {
	adjusted := h.predictor.Retrain()
	common.SuccessResponse(c, gin.H{
		"adjusted": adjusted,
		"weights":  h.predictor.Stats().Weights,
	})
}
