package decoder

import (
	zxinggo "github.com/ericlevine/zxinggo"
	"github.com/ericlevine/zxinggo/binarizer"

	// Register format readers.
	_ "github.com/ericlevine/zxinggo/datamatrix"
	_ "github.com/ericlevine/zxinggo/oned"
	_ "github.com/ericlevine/zxinggo/qrcode"

	"invoice-scan-service/internal/raster"
)

// zxingMultiAdapter wraps the zxinggo multi-format reader in try-harder mode.
// The slowest engine of the three, but the only one that also reads the 1D
// barcodes and DataMatrix symbols that show up on some invoices.
type zxingMultiAdapter struct {
	opts *zxinggo.DecodeOptions
}

func NewZXingMulti() Adapter {
	return &zxingMultiAdapter{
		opts: &zxinggo.DecodeOptions{
			TryHarder:    true,
			AlsoInverted: true,
		},
	}
}

func (*zxingMultiAdapter) Name() string { return "zxing-multi" }

func (a *zxingMultiAdapter) Decode(r *raster.GrayRaster) Outcome {
	return guard(func() Outcome {
		source := zxinggo.NewGrayImageLuminanceSource(r.ToGray())
		bitmap := zxinggo.NewBinaryBitmap(binarizer.NewHybrid(source))
		result, err := zxinggo.Decode(bitmap, a.opts)
		if err != nil {
			return Outcome{Status: NoCode, Err: err}
		}
		if result.Text == "" {
			return Outcome{Status: NoCode}
		}
		return Outcome{Status: Decoded, Content: result.Text}
	})
}
