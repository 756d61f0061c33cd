package raster

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func gradientImage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Pix[y*img.Stride+x] = byte((x + y) % 256)
		}
	}
	return img
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, "jpeg"},
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, "png"},
		{"gif87a", []byte("GIF87a trailer"), "gif"},
		{"gif89a", []byte("GIF89a trailer"), "gif"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "webp"},
		{"bmp", []byte("BM\x00\x00\x00\x00"), "bmp"},
		{"text", []byte("hello, not an image"), ""},
		{"empty", nil, ""},
		{"short jpeg prefix", []byte{0xFF, 0xD8}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.data); got != tt.want {
				t.Errorf("Sniff() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewRawImage_RejectsUnknownSignature(t *testing.T) {
	_, err := NewRawImage([]byte("definitely not an image"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestLoad_PNGRoundTrip(t *testing.T) {
	src := gradientImage(40, 25)
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	ras, err := Load(buf.Bytes())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if ras.Width != 40 || ras.Height != 25 {
		t.Fatalf("Load() dimensions = %dx%d, want 40x25", ras.Width, ras.Height)
	}
	for y := 0; y < 25; y++ {
		for x := 0; x < 40; x++ {
			if got, want := ras.At(x, y), src.GrayAt(x, y).Y; got != want {
				t.Fatalf("pixel (%d,%d) = %d, want %d", x, y, got, want)
			}
		}
	}
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	_, err := Load([]byte("plain text payload"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestLoad_CorruptData(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradientImage(30, 30), nil); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	truncated := buf.Bytes()[:32]

	pngHeader := append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, []byte("garbage after the header")...)

	for _, tt := range []struct {
		name string
		data []byte
	}{
		{"truncated jpeg", truncated},
		{"garbage png body", pngHeader},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.data)
			if !errors.Is(err, ErrCorrupt) {
				t.Fatalf("expected ErrCorrupt, got %v", err)
			}
		})
	}
}

func TestLoadWithLimit_Downsamples(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradientImage(100, 50)); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	ras, err := LoadWithLimit(buf.Bytes(), 50)
	if err != nil {
		t.Fatalf("LoadWithLimit() error = %v", err)
	}
	if ras.Width != 50 || ras.Height != 25 {
		t.Fatalf("dimensions = %dx%d, want 50x25", ras.Width, ras.Height)
	}
}

func TestLoadWithLimit_KeepsSmallImages(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradientImage(60, 40)); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	ras, err := LoadWithLimit(buf.Bytes(), 2048)
	if err != nil {
		t.Fatalf("LoadWithLimit() error = %v", err)
	}
	if ras.Width != 60 || ras.Height != 40 {
		t.Fatalf("dimensions = %dx%d, want 60x40", ras.Width, ras.Height)
	}
}

func TestFromImage_NonZeroOrigin(t *testing.T) {
	src := image.NewGray(image.Rect(5, 7, 15, 17))
	for y := 7; y < 17; y++ {
		for x := 5; x < 15; x++ {
			src.SetGray(x, y, color.Gray{Y: byte(x + y)})
		}
	}

	ras := FromImage(src)
	if ras.Width != 10 || ras.Height != 10 {
		t.Fatalf("dimensions = %dx%d, want 10x10", ras.Width, ras.Height)
	}
	// (0,0) in the raster corresponds to (5,7) in the source.
	if got, want := ras.At(0, 0), byte(12); got != want {
		t.Errorf("pixel (0,0) = %d, want %d", got, want)
	}
	if got, want := ras.At(9, 9), byte(14+16); got != want {
		t.Errorf("pixel (9,9) = %d, want %d", got, want)
	}
}

func TestDownsample_AveragesBlocks(t *testing.T) {
	// A 4x4 raster of four uniform 2x2 blocks reduces to one pixel per block.
	r := &GrayRaster{Width: 4, Height: 4, Pix: []byte{
		10, 10, 200, 200,
		10, 10, 200, 200,
		60, 60, 120, 120,
		60, 60, 120, 120,
	}}
	out := downsample(r, 2)
	if out.Width != 2 || out.Height != 2 {
		t.Fatalf("dimensions = %dx%d, want 2x2", out.Width, out.Height)
	}
	want := []byte{10, 200, 60, 120}
	for i, v := range want {
		if out.Pix[i] != v {
			t.Errorf("pixel %d = %d, want %d", i, out.Pix[i], v)
		}
	}
}

func TestClone_Independent(t *testing.T) {
	r := &GrayRaster{Width: 2, Height: 1, Pix: []byte{1, 2}}
	c := r.Clone()
	c.Pix[0] = 99
	if r.Pix[0] != 1 {
		t.Fatal("Clone shares the pixel buffer with its source")
	}
}

func TestToGray_RoundTrip(t *testing.T) {
	r := FromImage(gradientImage(13, 9))
	back := FromImage(r.ToGray())
	if back.Width != r.Width || back.Height != r.Height {
		t.Fatalf("dimensions changed: %dx%d -> %dx%d", r.Width, r.Height, back.Width, back.Height)
	}
	if !bytes.Equal(back.Pix, r.Pix) {
		t.Fatal("pixels changed across ToGray/FromImage round trip")
	}
}
