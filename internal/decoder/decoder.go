// Package decoder wraps the concrete barcode engines behind one adapter
// contract. Adapters are tried in a fixed order chosen by expected latency,
// not accuracy; the orchestrator stops at the first success.
package decoder

import (
	"fmt"

	"invoice-scan-service/internal/raster"
)

// Status tags the outcome of a single decode attempt.
type Status int

const (
	// Decoded means the adapter recovered code content.
	Decoded Status = iota
	// NoCode means the adapter ran cleanly but located no code. This is the
	// expected common miss that drives cascade progression.
	NoCode
	// Fault means the adapter itself failed (typically a recovered panic).
	// Treated as a miss by the cascade, never propagated.
	Fault
)

func (s Status) String() string {
	switch s {
	case Decoded:
		return "decoded"
	case NoCode:
		return "no_code"
	case Fault:
		return "fault"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of one adapter run.
type Outcome struct {
	Status  Status
	Content string
	Err     error
}

// Adapter is a uniform wrapper around one concrete decoding engine.
type Adapter interface {
	Name() string
	Decode(r *raster.GrayRaster) Outcome
}

// DefaultAdapters returns the registered adapters in cascade order: the
// fastest engine first, the slowest and most tolerant last.
func DefaultAdapters() []Adapter {
	return []Adapter{
		NewGoQR(),
		NewGoZXing(),
		NewZXingMulti(),
	}
}

// guard runs fn and converts any panic from a native decode path into a Fault
// outcome, so one faulty engine cannot take down the cascade.
func guard(fn func() Outcome) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = Outcome{Status: Fault, Err: fmt.Errorf("decoder panic: %v", r)}
		}
	}()
	return fn()
}
