package service

import (
	"context"
	"errors"

	"invoice-scan-service/internal/cascade"
	apperrors "invoice-scan-service/internal/errors"
	"invoice-scan-service/internal/raster"
	"invoice-scan-service/pkg/models"
)

// Runner abstracts the cascade for testing.
type Runner interface {
	Run(ctx context.Context, original []byte, ras *raster.GrayRaster, requestID string) *models.ScanResult
}

// ScanService decodes the machine-readable code from one invoice image.
type ScanService interface {
	ScanImage(ctx context.Context, data []byte, requestID string) (*models.ScanResult, error)
}

type scanService struct {
	runner       Runner
	pool         *cascade.Pool
	maxImageSide int
}

// NewScanService creates the scan service. The pool bounds concurrent
// cascades across requests.
func NewScanService(runner Runner, pool *cascade.Pool, maxImageSide int) ScanService {
	if maxImageSide <= 0 {
		maxImageSide = raster.DefaultMaxSide
	}
	return &scanService{
		runner:       runner,
		pool:         pool,
		maxImageSide: maxImageSide,
	}
}

// ScanImage loads the image bytes and runs the cascade. An unreadable image
// is a client error; an exhausted cascade is a normal success=false result.
func (s *scanService) ScanImage(ctx context.Context, data []byte, requestID string) (*models.ScanResult, error) {
	if len(data) == 0 {
		return nil, apperrors.NewValidationError("empty image payload", nil)
	}

	if s.pool != nil {
		if err := s.pool.Acquire(ctx); err != nil {
			return nil, apperrors.NewTimeoutError("scan queue wait cancelled", err)
		}
		defer s.pool.Release()
	}

	ras, err := raster.LoadWithLimit(data, s.maxImageSide)
	if err != nil {
		switch {
		case errors.Is(err, raster.ErrUnsupportedFormat):
			return nil, apperrors.NewValidationError("unsupported image format", err)
		case errors.Is(err, raster.ErrCorrupt):
			return nil, apperrors.NewProcessingError("corrupt image data", err)
		default:
			return nil, apperrors.NewInternalError("failed to load image", err)
		}
	}

	return s.runner.Run(ctx, data, ras, requestID), nil
}
