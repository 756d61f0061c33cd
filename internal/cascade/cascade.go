// Package cascade sequences the detection strategies into a deterministic,
// latency-ordered pipeline: classical adapters, rotation search, ML detector,
// external fallback. Each level runs only if every prior level missed.
package cascade

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"invoice-scan-service/internal/decoder"
	"invoice-scan-service/internal/fallback"
	"invoice-scan-service/internal/logger"
	"invoice-scan-service/internal/preprocess"
	"invoice-scan-service/internal/raster"
	"invoice-scan-service/pkg/models"
)

// rotationAngles is the fixed Level-2 search order.
var rotationAngles = [3]int{90, 180, 270}

// MLDetector is the Level-3 capability. Detect must treat a low-confidence
// model answer as a plain miss.
type MLDetector interface {
	Available() bool
	Detect(ctx context.Context, r *raster.GrayRaster) decoder.Outcome
}

// Cascade holds the per-process collaborators. All of them are read-only
// across concurrent requests.
type Cascade struct {
	adapters []decoder.Adapter
	pre      *preprocess.Preprocessor
	ml       MLDetector
	fb       fallback.Client
	metrics  *Metrics
}

// New wires a cascade. ml and fb may be nil; the corresponding levels are
// then skipped (misses) rather than errors.
func New(adapters []decoder.Adapter, pre *preprocess.Preprocessor, ml MLDetector, fb fallback.Client) *Cascade {
	return &Cascade{
		adapters: adapters,
		pre:      pre,
		ml:       ml,
		fb:       fb,
		metrics:  newMetrics(),
	}
}

// Metrics returns a snapshot of the per-level success counters.
func (c *Cascade) Metrics() models.CascadeMetrics {
	return c.metrics.snapshot()
}

// run carries the per-request state: the attempt log is append-only and
// ordered by start time.
type run struct {
	requestID string
	start     time.Time
	attempts  []models.Attempt
	degraded  bool
}

func (r *run) record(adapter string, angle int, preprocessed bool, started time.Time, status decoder.Status) {
	r.attempts = append(r.attempts, models.Attempt{
		Adapter:      adapter,
		Angle:        angle,
		Preprocessed: preprocessed,
		ElapsedMs:    time.Since(started).Milliseconds(),
		Status:       status.String(),
	})
}

// Run executes the cascade on a loaded raster. original holds the caller's
// compressed bytes, forwarded untouched to the fallback service. The caller
// owns the deadline on ctx; it is observed at every stage boundary.
func (c *Cascade) Run(ctx context.Context, original []byte, ras *raster.GrayRaster, requestID string) *models.ScanResult {
	c.metrics.total.Add(1)
	r := &run{requestID: requestID, start: time.Now()}

	// Level 0: preprocess exactly once; every later attempt reuses the result.
	prep := c.pre.Run(ras)

	// Level 1: adapters on the unrotated preprocessed raster, latency order.
	if result := c.tryAdapters(ctx, r, prep, 0); result != nil {
		c.metrics.direct.Add(1)
		return result
	}

	// Level 2: rotation search, only after every adapter missed at Level 1.
	for _, angle := range rotationAngles {
		if ctx.Err() != nil {
			return c.failure(r, ctx.Err())
		}
		rotated := raster.Rotate(prep, angle)
		if result := c.tryAdapters(ctx, r, rotated, angle); result != nil {
			c.metrics.rotation.Add(1)
			return result
		}
	}

	// Level 3: ML detection on the original grayscale raster. The detector
	// was trained on natural images; binarization removes the gradients it
	// keys on.
	if result := c.tryML(ctx, r, ras); result != nil {
		c.metrics.ml.Add(1)
		return result
	}

	// Level 4: external fallback service.
	if result := c.tryFallback(ctx, r, original); result != nil {
		c.metrics.fallbackSuccess.Add(1)
		return result
	}

	return c.failure(r, nil)
}

func (c *Cascade) tryAdapters(ctx context.Context, r *run, ras *raster.GrayRaster, angle int) *models.ScanResult {
	for _, adapter := range c.adapters {
		if ctx.Err() != nil {
			return nil
		}
		started := time.Now()
		outcome := adapter.Decode(ras)
		r.record(adapter.Name(), angle, true, started, outcome.Status)

		switch outcome.Status {
		case decoder.Decoded:
			level := 1
			if angle != 0 {
				level = 2
			}
			logger.WithFields(logrus.Fields{
				"request_id": r.requestID,
				"decoder":    adapter.Name(),
				"angle":      angle,
				"level":      level,
			}).Debug("Decode attempt succeeded")
			return c.success(r, outcome.Content, adapter.Name(), level, angle)
		case decoder.Fault:
			logger.WithError(outcome.Err).WithFields(logrus.Fields{
				"request_id": r.requestID,
				"decoder":    adapter.Name(),
				"angle":      angle,
			}).Warn("Decoder fault, treating as miss")
		}
	}
	return nil
}

func (c *Cascade) tryML(ctx context.Context, r *run, ras *raster.GrayRaster) *models.ScanResult {
	if c.ml == nil || !c.ml.Available() {
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}

	started := time.Now()
	outcome := c.ml.Detect(ctx, ras)
	r.record("ml-detector", 0, false, started, outcome.Status)

	switch outcome.Status {
	case decoder.Decoded:
		return c.success(r, outcome.Content, "ml-detector", 3, 0)
	case decoder.Fault:
		logger.WithError(outcome.Err).WithField("request_id", r.requestID).
			Warn("ML detector fault, treating as miss")
	}
	return nil
}

func (c *Cascade) tryFallback(ctx context.Context, r *run, original []byte) *models.ScanResult {
	if c.fb == nil || len(original) == 0 {
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}

	started := time.Now()
	content, err := c.fb.TryDecode(ctx, original, "")
	if err == nil && content != "" {
		r.record("fallback", 0, false, started, decoder.Decoded)
		return c.success(r, content, "fallback", 4, 0)
	}

	status := decoder.NoCode
	if errors.Is(err, fallback.ErrUnavailable) {
		// Degraded infrastructure, observable separately from a plain miss.
		status = decoder.Fault
		r.degraded = true
		c.metrics.degraded.Add(1)
		logger.WithError(err).WithField("request_id", r.requestID).
			Warn("Fallback service unavailable")
	}
	r.record("fallback", 0, false, started, status)
	return nil
}

func (c *Cascade) success(r *run, content, decoderName string, level, angle int) *models.ScanResult {
	c.metrics.recordDecoder(decoderName)
	result := &models.ScanResult{
		Success:              true,
		Content:              &content,
		Decoder:              decoderName,
		LevelUsed:            level,
		ProcessingTimeMs:     time.Since(r.start).Milliseconds(),
		PreprocessingApplied: true,
		FallbackDegraded:     r.degraded,
		RequestID:            r.requestID,
		Attempts:             r.attempts,
	}
	if angle != 0 {
		result.RotationAngle = &angle
	}
	return result
}

// failure is the terminal "no code detected" result. It is a normal outcome,
// not an error: the caller distinguishes it from infrastructure problems via
// the degraded flag and the attempt log.
func (c *Cascade) failure(r *run, cause error) *models.ScanResult {
	c.metrics.failures.Add(1)
	if cause != nil {
		logger.WithError(cause).WithField("request_id", r.requestID).
			Debug("Cascade stopped before exhausting all levels")
	}
	return &models.ScanResult{
		Success:              false,
		LevelUsed:            0,
		ProcessingTimeMs:     time.Since(r.start).Milliseconds(),
		PreprocessingApplied: true,
		FallbackDegraded:     r.degraded,
		RequestID:            r.requestID,
		Attempts:             r.attempts,
	}
}
