package container

import (
	"fmt"
	"net/http"

	"invoice-scan-service/internal/cascade"
	"invoice-scan-service/internal/config"
	"invoice-scan-service/internal/decoder"
	"invoice-scan-service/internal/fallback"
	"invoice-scan-service/internal/logger"
	"invoice-scan-service/internal/mldetect"
	"invoice-scan-service/internal/preprocess"
	"invoice-scan-service/internal/service"
	"invoice-scan-service/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config   *config.Config
	detector *mldetect.Detector
	cascade  *cascade.Cascade
	scanner  service.ScanService
	handler  http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}

	adapters := decoder.DefaultAdapters()
	pre := preprocess.New()

	// A model load failure disables Level 3 for the process lifetime; the
	// cascade still runs the classical levels and the fallback service.
	var detector *mldetect.Detector
	if cfg.MLEnabled() {
		d, err := mldetect.New(mldetect.Config{
			ModelPath:   cfg.MLModelPath,
			LibraryPath: cfg.OnnxLibPath,
			Confidence:  float32(cfg.MLConfidence),
		}, adapters)
		if err != nil {
			logger.WithError(err).Error("ML detector unavailable, Level 3 disabled")
		} else {
			detector = d
			logger.WithField("model", cfg.MLModelPath).Info("ML detector loaded")
		}
	} else {
		logger.Info("No ML model configured, Level 3 disabled")
	}

	var fb fallback.Client
	if cfg.FallbackURL != "" {
		fb = fallback.NewHTTPClient(cfg.FallbackURL, cfg.FallbackTimeout)
	}

	casc := cascade.New(adapters, pre, detector, fb)
	pool := cascade.NewPool(cfg.ScanConcurrency)
	scanner := service.NewScanService(casc, pool, cfg.MaxImageSide)
	handler := transport.NewHandler(scanner, casc, cfg)

	return &Container{
		config:   cfg,
		detector: detector,
		cascade:  casc,
		scanner:  scanner,
		handler:  handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close releases process-wide resources (the ONNX session and runtime).
func (c *Container) Close() {
	if c.detector != nil {
		c.detector.Close()
	}
	mldetect.Shutdown()
}
