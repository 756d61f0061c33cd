package decoder

import (
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"invoice-scan-service/internal/raster"
)

// gozxingAdapter wraps the gozxing QR reader. Slower than goqr but recovers
// codes with perspective distortion and partial damage.
type gozxingAdapter struct {
	hints map[gozxing.DecodeHintType]interface{}
}

func NewGoZXing() Adapter {
	return &gozxingAdapter{
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

func (*gozxingAdapter) Name() string { return "gozxing" }

func (a *gozxingAdapter) Decode(r *raster.GrayRaster) Outcome {
	return guard(func() Outcome {
		bmp, err := gozxing.NewBinaryBitmapFromImage(r.ToGray())
		if err != nil {
			return Outcome{Status: Fault, Err: err}
		}
		result, err := qrcode.NewQRCodeReader().Decode(bmp, a.hints)
		if err != nil {
			return Outcome{Status: NoCode, Err: err}
		}
		text := result.GetText()
		if text == "" {
			return Outcome{Status: NoCode}
		}
		return Outcome{Status: Decoded, Content: text}
	})
}
