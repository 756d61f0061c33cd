package transport

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"invoice-scan-service/internal/config"
	apperrors "invoice-scan-service/internal/errors"
	"invoice-scan-service/internal/logger"
	"invoice-scan-service/internal/service"
	"invoice-scan-service/pkg/models"
)

// MetricsSource exposes the cascade counters for the metrics endpoint.
type MetricsSource interface {
	Metrics() models.CascadeMetrics
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func NewHandler(scanner service.ScanService, metrics MetricsSource, cfg *config.Config) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestSizeLimiter(cfg.MaxUploadSize))

	r.GET("/health", healthCheck)
	r.GET("/metrics", cascadeMetrics(metrics))
	r.POST("/scan", scanImage(scanner, cfg))

	return r
}

func scanImage(scanner service.ScanService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"ip":         c.ClientIP(),
		}).Info("Processing scan request")

		data, err := readUpload(c)
		if err != nil {
			logger.WithError(err).WithField("request_id", requestID).Error("Invalid upload")
			respondError(c, http.StatusBadRequest, "invalid upload", err)
			return
		}

		result, err := scanner.ScanImage(ctx, data, requestID)
		if err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"request_id": requestID,
				"bytes":      len(data),
			}).Error("Scan request rejected")
			respondError(c, apperrors.GetStatusCode(err), "scan failed", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"request_id":         requestID,
			"success":            result.Success,
			"decoder":            result.Decoder,
			"level_used":         result.LevelUsed,
			"fallback_degraded":  result.FallbackDegraded,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}).Info("Scan request completed")

		c.JSON(http.StatusOK, result)
	}
}

// readUpload pulls the image out of the multipart form. The field is named
// "file"; "image" is accepted for older clients.
func readUpload(c *gin.Context) ([]byte, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		fileHeader, err = c.FormFile("image")
	}
	if err != nil {
		return nil, apperrors.NewValidationError("multipart field 'file' is required", err)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, apperrors.NewValidationError("cannot open uploaded file", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperrors.NewValidationError("cannot read uploaded file", err)
	}
	return data, nil
}

func cascadeMetrics(metrics MetricsSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.JSON(http.StatusOK, models.CascadeMetrics{PerDecoder: map[string]int64{}})
			return
		}
		c.JSON(http.StatusOK, metrics.Metrics())
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Message = err.Error()
	}
	c.AbortWithStatusJSON(code, response)
}
