package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/farmlens/backend/internal/domain"
	"github.com/farmlens/backend/internal/usecase"
)

const (
	serviceName    = "farmlens-backend"
	serviceVersion = "1.0.0"
)

// Services are the usecases behind the HTTP API. Any of them may be nil,
// in which case its endpoints answer 501.
type Services struct {
	Weights   *usecase.WeightService
	Produce   *usecase.ProduceService
	Analytics *usecase.AnalyticsService
	Farmers   *usecase.FarmerService
	Images    *usecase.ImageLoader
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	weights   *usecase.WeightService
	produce   *usecase.ProduceService
	analytics *usecase.AnalyticsService
	farmers   *usecase.FarmerService
	images    *usecase.ImageLoader
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(services Services, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		weights:   services.Weights,
		produce:   services.Produce,
		analytics: services.Analytics,
		farmers:   services.Farmers,
		images:    services.Images,
		logger:    logger.Named("http"),
	}
}

// imageRequest carries an image as base64 or URL
type imageRequest struct {
	ImageBase64 string `json:"image_base64"`
	ImageURL    string `json:"image_url"`
	ProduceType string `json:"produce_type"`
}

type csvRequest struct {
	CSVData string `json:"csv_data"`
	Crop    string `json:"crop"`
}

type analyticsRequest struct {
	FarmerID   string `json:"farmer_id"`
	CropFilter string `json:"crop_filter"`
	Weeks      int    `json:"weeks"`
}

type farmerAnalyticsResponse struct {
	Status string `json:"status"`
	*domain.FarmerAnalytics
}

// Root lists the service endpoints
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "FarmLens API",
		"version": serviceVersion,
		"status":  "running",
		"endpoints": gin.H{
			"health":           "GET /health",
			"metrics":          "GET /metrics",
			"capture_weight":   "POST /api/v1/capture/weight",
			"list_captures":    "GET /api/v1/capture/weight?farmer_id=",
			"get_capture":      "GET /api/v1/capture/weight/{id}",
			"classify":         "POST /api/v1/capture/classify",
			"analytics_status": "GET /api/v1/analytics/status",
			"analyze_csv":      "POST /api/v1/analytics/csv",
			"analyze_image":    "POST /api/v1/analytics/image",
			"creao_analytics":  "POST /api/v1/creao/analytics",
			"analyze_produce":  "POST /api/v1/creao/analyze-produce",
			"bulk_upload":      "POST /api/v1/creao/bulk-upload",
			"send_data":        "POST /api/v1/data/send",
			"generate":         "POST /api/v1/analytics/generate",
			"list_farmers":     "GET /api/v1/farmers",
			"get_farmer_data":  "GET /api/v1/farmers/{id}/data",
			"farmer_dashboard": "GET /api/v1/farmers/{id}/dashboard",
			"delete_farmer":    "DELETE /api/v1/farmers/{id}",
			"stream":           "GET /ws/stream",
		},
	})
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	backends := gin.H{
		"weight":         []string{},
		"classification": h.produce != nil && h.produce.Available(),
		"farmers":        h.farmers != nil,
	}
	if h.weights != nil {
		backends["weight"] = h.weights.Backends()
	}
	if h.analytics != nil {
		backends["analytics"] = h.analytics.Status()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"service":  serviceName,
		"version":  serviceVersion,
		"backends": backends,
	})
}

// CaptureWeight reads a scale photo and stores the capture
func (h *Handler) CaptureWeight(c *gin.Context) {
	if h.weights == nil {
		notConfigured(c, "weight capture")
		return
	}

	var req domain.CaptureRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := authorizeFarmer(c, req.FarmerID); err != nil {
		h.respondError(c, err)
		return
	}

	capture, err := h.weights.CaptureWeight(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, capture)
}

// ListCaptures lists a farmer's captures, newest first
func (h *Handler) ListCaptures(c *gin.Context) {
	if h.weights == nil {
		notConfigured(c, "weight capture")
		return
	}

	farmerID := c.Query("farmer_id")
	if farmerID == "" {
		h.respondError(c, fmt.Errorf("%w: farmer_id is required", domain.ErrInvalidRequest))
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := authorizeFarmer(c, farmerID); err != nil {
		h.respondError(c, err)
		return
	}

	captures, err := h.weights.ListCaptures(c.Request.Context(), farmerID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"farmer_id": farmerID,
		"captures":  captures,
		"count":     len(captures),
	})
}

// GetCapture returns one capture
func (h *Handler) GetCapture(c *gin.Context) {
	if h.weights == nil {
		notConfigured(c, "weight capture")
		return
	}

	capture, err := h.weights.GetCapture(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := authorizeFarmer(c, capture.FarmerID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, capture)
}

// Classify recognizes the produce in an image
func (h *Handler) Classify(c *gin.Context) {
	if h.produce == nil || h.images == nil {
		notConfigured(c, "classification")
		return
	}

	_, image, ok := h.loadImage(c)
	if !ok {
		return
	}

	result, err := h.produce.Classify(c.Request.Context(), image)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AnalyticsStatus reports the analytics backend
func (h *Handler) AnalyticsStatus(c *gin.Context) {
	if h.analytics == nil {
		notConfigured(c, "analytics")
		return
	}
	c.JSON(http.StatusOK, h.analytics.Status())
}

// AnalyzeCSV generates insights from tabular sales data
func (h *Handler) AnalyzeCSV(c *gin.Context) {
	if h.analytics == nil {
		notConfigured(c, "analytics")
		return
	}

	var req csvRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.analytics.AnalyzeCSV(c.Request.Context(), req.CSVData, req.Crop)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AnalyzeImage estimates crates, weight and quality from a produce photo
func (h *Handler) AnalyzeImage(c *gin.Context) {
	if h.analytics == nil || h.images == nil {
		notConfigured(c, "analytics")
		return
	}

	req, image, ok := h.loadImage(c)
	if !ok {
		return
	}

	result, err := h.analytics.AnalyzeImage(c.Request.Context(), image, req.ProduceType)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SuggestListing turns a produce photo into a priced marketplace listing
func (h *Handler) SuggestListing(c *gin.Context) {
	if h.analytics == nil || h.images == nil {
		notConfigured(c, "analytics")
		return
	}

	req, image, ok := h.loadImage(c)
	if !ok {
		return
	}

	listing, err := h.analytics.SuggestListing(c.Request.Context(), image, req.ProduceType)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "success",
		"produce":     req.ProduceType,
		"suggestions": listing,
	})
}

// SendData stores weekly records for one farmer
func (h *Handler) SendData(c *gin.Context) {
	if h.farmers == nil {
		notConfigured(c, "farmer data")
		return
	}

	var req domain.FarmerData
	if !h.bindJSON(c, &req) {
		return
	}
	if err := authorizeFarmer(c, req.FarmerID); err != nil {
		h.respondError(c, err)
		return
	}

	stored, err := h.farmers.SendData(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":           "success",
		"message":          fmt.Sprintf("Data received for %s", stored.FarmerName),
		"farmer_id":        stored.FarmerID,
		"records_received": len(stored.Records),
	})
}

// BulkUpload stores many farmers at once. The body is either a JSON array or {"farmers": [...]}.
func (h *Handler) BulkUpload(c *gin.Context) {
	if h.farmers == nil {
		notConfigured(c, "farmer data")
		return
	}

	var raw json.RawMessage
	if !h.bindJSON(c, &raw) {
		return
	}
	entries, err := decodeBulk(raw)
	if err != nil {
		h.respondError(c, err)
		return
	}
	for _, entry := range entries {
		if err := authorizeFarmer(c, entry.FarmerID); err != nil {
			h.respondError(c, err)
			return
		}
	}

	results, err := h.farmers.BulkUpload(c.Request.Context(), entries)
	if err != nil {
		h.respondError(c, err)
		return
	}

	accepted := 0
	for _, r := range results {
		if r.Accepted {
			accepted++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":           "success",
		"message":          fmt.Sprintf("Uploaded %d of %d farmers", accepted, len(results)),
		"farmers_uploaded": accepted,
		"farmers_rejected": len(results) - accepted,
		"results":          results,
	})
}

func decodeBulk(raw json.RawMessage) ([]domain.FarmerData, error) {
	var entries []domain.FarmerData
	if err := json.Unmarshal(raw, &entries); err == nil {
		return entries, nil
	}

	var wrapped struct {
		Farmers []domain.FarmerData `json:"farmers"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: body must be a list of farmers", domain.ErrInvalidRequest)
	}
	return wrapped.Farmers, nil
}

// GenerateAnalytics runs AI analytics over a farmer's stored records
func (h *Handler) GenerateAnalytics(c *gin.Context) {
	if h.farmers == nil {
		notConfigured(c, "farmer data")
		return
	}

	var req analyticsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := authorizeFarmer(c, req.FarmerID); err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.farmers.GenerateAnalytics(c.Request.Context(), req.FarmerID, req.CropFilter, req.Weeks)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, farmerAnalyticsResponse{Status: "success", FarmerAnalytics: result})
}

// ListFarmers lists stored farmers. A token bound to a farmer sees only
// that farmer.
func (h *Handler) ListFarmers(c *gin.Context) {
	if h.farmers == nil {
		notConfigured(c, "farmer data")
		return
	}

	farmers, err := h.farmers.ListFarmers(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	if claimed := c.GetString(farmerClaimKey); claimed != "" {
		own := make([]domain.FarmerSummary, 0, 1)
		for _, f := range farmers {
			if f.FarmerID == claimed {
				own = append(own, f)
			}
		}
		farmers = own
	}
	c.JSON(http.StatusOK, gin.H{"farmers": farmers})
}

// GetFarmerData returns a farmer's stored records
func (h *Handler) GetFarmerData(c *gin.Context) {
	if h.farmers == nil {
		notConfigured(c, "farmer data")
		return
	}

	farmerID := c.Param("id")
	if err := authorizeFarmer(c, farmerID); err != nil {
		h.respondError(c, err)
		return
	}

	data, err := h.farmers.GetFarmerData(c.Request.Context(), farmerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// Dashboard returns metrics and charts without calling a model
func (h *Handler) Dashboard(c *gin.Context) {
	if h.farmers == nil {
		notConfigured(c, "farmer data")
		return
	}

	farmerID := c.Param("id")
	weeks, err := queryInt(c, "weeks", 0)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := authorizeFarmer(c, farmerID); err != nil {
		h.respondError(c, err)
		return
	}

	dashboard, err := h.farmers.Dashboard(c.Request.Context(), farmerID, c.Query("crop"), weeks)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// DeleteFarmer removes a farmer's stored records
func (h *Handler) DeleteFarmer(c *gin.Context) {
	if h.farmers == nil {
		notConfigured(c, "farmer data")
		return
	}

	farmerID := c.Param("id")
	if err := authorizeFarmer(c, farmerID); err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.farmers.DeleteFarmer(c.Request.Context(), farmerID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Farmer data deleted"})
}

// loadImage binds an imageRequest body and loads the image it names
func (h *Handler) loadImage(c *gin.Context) (*imageRequest, *domain.Image, bool) {
	var req imageRequest
	if !h.bindJSON(c, &req) {
		return nil, nil, false
	}
	image, err := h.images.Load(c.Request.Context(), req.ImageBase64, req.ImageURL)
	if err != nil {
		h.respondError(c, err)
		return nil, nil, false
	}
	return &req, image, true
}

// bindJSON decodes the body into out, answering 400 or 413 on failure
func (h *Handler) bindJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(c, fmt.Errorf("%w: request body over %d bytes", domain.ErrImageTooLarge, tooLarge.Limit))
			return false
		}
		h.respondError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidRequest, key)
	}
	return v, nil
}

func notConfigured(c *gin.Context, feature string) {
	c.JSON(http.StatusNotImplemented, gin.H{
		"error": fmt.Sprintf("%s service not configured", feature),
	})
}

// statusFor maps domain errors to HTTP status codes. Range and confidence
// failures are checked before recognition failures since a failed chain wraps both.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrWeightOutOfRange),
		errors.Is(err, domain.ErrLowConfidence),
		errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidImage),
		errors.Is(err, domain.ErrUnsupportedImageType):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrImageFetchFailed):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrUnparseableReply),
		errors.Is(err, domain.ErrRecognitionFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		message = "internal server error"
	}
	c.JSON(status, gin.H{"error": message})
}
