package decoder

import (
	"github.com/liyue201/goqr"

	"invoice-scan-service/internal/raster"
)

// goqrAdapter wraps the goqr engine (a quirc port). It is the cheapest of the
// three and handles clean, axis-aligned codes well.
type goqrAdapter struct{}

func NewGoQR() Adapter {
	return goqrAdapter{}
}

func (goqrAdapter) Name() string { return "goqr" }

func (goqrAdapter) Decode(r *raster.GrayRaster) Outcome {
	return guard(func() Outcome {
		codes, err := goqr.Recognize(r.ToGray())
		if err != nil || len(codes) == 0 {
			return Outcome{Status: NoCode, Err: err}
		}
		for _, code := range codes {
			if len(code.Payload) > 0 {
				return Outcome{Status: Decoded, Content: string(code.Payload)}
			}
		}
		return Outcome{Status: NoCode}
	})
}
