// Package mldetect runs the learned QR localization model. The ONNX session
// is process-wide state: loaded once, shared read-only by every request, torn
// down at shutdown.
package mldetect

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"invoice-scan-service/internal/decoder"
	"invoice-scan-service/internal/raster"
)

const inputSide = 640

// Config carries the model artifact locations and detection threshold.
type Config struct {
	ModelPath   string
	LibraryPath string
	Confidence  float32
}

// Detector localizes a code region with a YOLO-style ONNX detector and
// decodes the cropped region with the classical adapters.
type Detector struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	confidence float32
	adapters   []decoder.Adapter
}

var (
	runtimeOnce sync.Once
	runtimeErr  error
)

func initRuntime(libraryPath string) error {
	runtimeOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		runtimeErr = ort.InitializeEnvironment()
	})
	return runtimeErr
}

// Shutdown releases the shared ONNX runtime environment. Call once at process
// exit, after all detectors are closed.
func Shutdown() {
	if ort.IsInitialized() {
		_ = ort.DestroyEnvironment()
	}
}

// New loads the detector model. A failure here disables the ML level for the
// process lifetime; callers log it and run the cascade without Level 3.
func New(cfg Config, adapters []decoder.Adapter) (*Detector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("detector model not found: %s", cfg.ModelPath)
	}
	if err := initRuntime(cfg.LibraryPath); err != nil {
		return nil, fmt.Errorf("initialize onnx runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("inspect model: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model has no usable inputs/outputs: %s", cfg.ModelPath)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, nil)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	confidence := cfg.Confidence
	if confidence <= 0 {
		confidence = 0.5
	}

	return &Detector{
		session:    session,
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
		confidence: confidence,
		adapters:   adapters,
	}, nil
}

// Available reports whether the model loaded and Level 3 can run.
func (d *Detector) Available() bool {
	return d != nil && d.session != nil
}

// Close releases the session. The detector is unusable afterwards.
func (d *Detector) Close() {
	if d == nil || d.session == nil {
		return
	}
	_ = d.session.Destroy()
	d.session = nil
}

// Detect localizes the most confident code region in the raster and tries the
// classical adapters on the crop. A low-confidence or empty detection is a
// normal miss, not an error.
func (d *Detector) Detect(ctx context.Context, r *raster.GrayRaster) decoder.Outcome {
	if !d.Available() {
		return decoder.Outcome{Status: decoder.NoCode, Err: fmt.Errorf("ml detector disabled")}
	}
	if err := ctx.Err(); err != nil {
		return decoder.Outcome{Status: decoder.NoCode, Err: err}
	}

	data, scale, padX, padY := letterbox(r, inputSide)
	input, err := ort.NewTensor(ort.NewShape(1, 3, inputSide, inputSide), data)
	if err != nil {
		return decoder.Outcome{Status: decoder.Fault, Err: fmt.Errorf("create input tensor: %w", err)}
	}
	defer func() { _ = input.Destroy() }()

	outs := []ort.Value{nil}
	if err := d.session.Run([]ort.Value{input}, outs); err != nil {
		return decoder.Outcome{Status: decoder.Fault, Err: fmt.Errorf("run model: %w", err)}
	}
	defer func() { _ = outs[0].Destroy() }()

	tensor, ok := outs[0].(*ort.Tensor[float32])
	if !ok {
		return decoder.Outcome{Status: decoder.Fault, Err: fmt.Errorf("unexpected output tensor type")}
	}

	box, found := bestDetection(tensor.GetData(), tensor.GetShape(), d.confidence)
	if !found {
		return decoder.Outcome{Status: decoder.NoCode}
	}

	crop := cropDetection(r, box, scale, padX, padY)
	if crop == nil {
		return decoder.Outcome{Status: decoder.NoCode}
	}

	for _, adapter := range d.adapters {
		if outcome := adapter.Decode(crop); outcome.Status == decoder.Decoded {
			return outcome
		}
	}
	return decoder.Outcome{Status: decoder.NoCode}
}
