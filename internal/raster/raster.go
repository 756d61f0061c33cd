// Package raster turns compressed image bytes into immutable 8-bit grayscale
// pixel grids. Every transform allocates a new raster; nothing here mutates
// a raster after construction.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var (
	// ErrUnsupportedFormat is returned when the input bytes do not carry a
	// recognized image signature.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrCorrupt is returned when the input carries a known signature but
	// cannot be decoded.
	ErrCorrupt = errors.New("corrupt image data")
)

// DefaultMaxSide caps the longest raster side at load time. Larger inputs are
// box-downsampled; the fallback service applies the same 2048px limit.
const DefaultMaxSide = 2048

// GrayRaster is a dense 8-bit luminance grid. Pix holds Width*Height bytes in
// row-major order.
type GrayRaster struct {
	Width  int
	Height int
	Pix    []byte
}

// At returns the luminance at (x, y). Callers are expected to stay in bounds.
func (r *GrayRaster) At(x, y int) byte {
	return r.Pix[y*r.Width+x]
}

// Clone returns an independent copy of the raster.
func (r *GrayRaster) Clone() *GrayRaster {
	pix := make([]byte, len(r.Pix))
	copy(pix, r.Pix)
	return &GrayRaster{Width: r.Width, Height: r.Height, Pix: pix}
}

// RawImage is the owned input buffer plus its sniffed format. It exists only
// between request intake and raster construction.
type RawImage struct {
	Data   []byte
	Format string
}

// Sniff identifies the image format from magic bytes. It returns an empty
// string for unknown signatures.
func Sniff(data []byte) string {
	switch {
	case len(data) >= 3 && bytes.Equal(data[:3], []byte{0xFF, 0xD8, 0xFF}):
		return "jpeg"
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "png"
	case len(data) >= 6 && (bytes.Equal(data[:6], []byte("GIF87a")) || bytes.Equal(data[:6], []byte("GIF89a"))):
		return "gif"
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "webp"
	case len(data) >= 2 && bytes.Equal(data[:2], []byte("BM")):
		return "bmp"
	default:
		return ""
	}
}

// NewRawImage sniffs and wraps input bytes, rejecting unknown formats.
func NewRawImage(data []byte) (*RawImage, error) {
	format := Sniff(data)
	if format == "" {
		return nil, fmt.Errorf("%w: unrecognized signature (%d bytes)", ErrUnsupportedFormat, len(data))
	}
	return &RawImage{Data: data, Format: format}, nil
}

// Load decodes compressed image bytes into a grayscale raster, discarding
// color, with the default size cap.
func Load(data []byte) (*GrayRaster, error) {
	return LoadWithLimit(data, DefaultMaxSide)
}

// LoadWithLimit decodes compressed image bytes into a grayscale raster and
// box-downsamples any image whose longest side exceeds maxSide.
func LoadWithLimit(data []byte, maxSide int) (*GrayRaster, error) {
	raw, err := NewRawImage(data)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(raw.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s decode failed: %v", ErrCorrupt, raw.Format, err)
	}

	ras := FromImage(img)
	if maxSide > 0 && (ras.Width > maxSide || ras.Height > maxSide) {
		ras = downsample(ras, maxSide)
	}
	return ras, nil
}

// FromImage converts any image.Image into a grayscale raster.
func FromImage(img image.Image) *GrayRaster {
	bounds := img.Bounds()
	gray, ok := img.(*image.Gray)
	if !ok || bounds.Min != (image.Point{}) {
		gray = image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	}

	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	ras := &GrayRaster{Width: w, Height: h, Pix: make([]byte, w*h)}
	for y := 0; y < h; y++ {
		copy(ras.Pix[y*w:(y+1)*w], gray.Pix[y*gray.Stride:y*gray.Stride+w])
	}
	return ras
}

// ToGray bridges a raster back to an image.Gray for decoder libraries.
func (r *GrayRaster) ToGray() *image.Gray {
	gray := image.NewGray(image.Rect(0, 0, r.Width, r.Height))
	for y := 0; y < r.Height; y++ {
		copy(gray.Pix[y*gray.Stride:y*gray.Stride+r.Width], r.Pix[y*r.Width:(y+1)*r.Width])
	}
	return gray
}

// downsample reduces the raster so its longest side equals maxSide, averaging
// the source pixels each destination pixel covers.
func downsample(r *GrayRaster, maxSide int) *GrayRaster {
	longest := r.Width
	if r.Height > longest {
		longest = r.Height
	}
	scale := float64(maxSide) / float64(longest)
	dw := int(float64(r.Width) * scale)
	dh := int(float64(r.Height) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	out := &GrayRaster{Width: dw, Height: dh, Pix: make([]byte, dw*dh)}
	for dy := 0; dy < dh; dy++ {
		sy0 := dy * r.Height / dh
		sy1 := (dy + 1) * r.Height / dh
		if sy1 <= sy0 {
			sy1 = sy0 + 1
		}
		for dx := 0; dx < dw; dx++ {
			sx0 := dx * r.Width / dw
			sx1 := (dx + 1) * r.Width / dw
			if sx1 <= sx0 {
				sx1 = sx0 + 1
			}
			var sum, n int
			for sy := sy0; sy < sy1; sy++ {
				row := sy * r.Width
				for sx := sx0; sx < sx1; sx++ {
					sum += int(r.Pix[row+sx])
					n++
				}
			}
			out.Pix[dy*dw+dx] = byte(sum / n)
		}
	}
	return out
}
