// Package testutil builds synthetic code images for tests.
package testutil

import (
	"bytes"
	"image"
	"image/png"

	zxinggo "github.com/ericlevine/zxinggo"

	_ "github.com/ericlevine/zxinggo/qrcode"
)

// QRGray renders content as a QR code at the given module scale. The rendered
// matrix already carries a four-module quiet zone.
func QRGray(content string, scale int) (*image.Gray, error) {
	matrix, err := zxinggo.Encode(content, zxinggo.FormatQRCode, 0, 0, nil)
	if err != nil {
		return nil, err
	}
	img := zxinggo.BitMatrixToImage(matrix)
	if scale <= 1 {
		return img, nil
	}

	bounds := img.Bounds()
	w := bounds.Dx() * scale
	h := bounds.Dy() * scale
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.SetGray(x, y, img.GrayAt(x/scale, y/scale))
		}
	}
	return out, nil
}

// PNGBytes encodes an image to PNG.
func PNGBytes(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
