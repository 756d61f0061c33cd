package preprocess

import (
	"bytes"
	"testing"

	"invoice-scan-service/internal/raster"
)

func gradientRaster(w, h int) *raster.GrayRaster {
	r := &raster.GrayRaster{Width: w, Height: h, Pix: make([]byte, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r.Pix[y*w+x] = byte((x*255/(w-1) + y*255/(h-1)) / 2)
		}
	}
	return r
}

func uniformRaster(w, h int, v byte) *raster.GrayRaster {
	r := &raster.GrayRaster{Width: w, Height: h, Pix: make([]byte, w*h)}
	for i := range r.Pix {
		r.Pix[i] = v
	}
	return r
}

func TestRun_ProducesBinaryOutput(t *testing.T) {
	p := New()
	out := p.Run(gradientRaster(64, 48))

	if out.Width != 64 || out.Height != 48 {
		t.Fatalf("dimensions = %dx%d, want 64x48", out.Width, out.Height)
	}
	for i, v := range out.Pix {
		if v != 0 && v != 255 {
			t.Fatalf("pixel %d = %d, want 0 or 255", i, v)
		}
	}
}

func TestRun_DoesNotMutateInput(t *testing.T) {
	in := gradientRaster(32, 32)
	before := append([]byte(nil), in.Pix...)

	New().Run(in)

	if !bytes.Equal(in.Pix, before) {
		t.Fatal("pipeline mutated the input raster")
	}
}

func TestRun_CountsRuns(t *testing.T) {
	p := New()
	if p.Runs() != 0 {
		t.Fatalf("fresh preprocessor reports %d runs", p.Runs())
	}
	in := gradientRaster(16, 16)
	p.Run(in)
	p.Run(in)
	p.Run(in)
	if p.Runs() != 3 {
		t.Fatalf("Runs() = %d, want 3", p.Runs())
	}
}

func TestRun_UniformInputStaysUniform(t *testing.T) {
	out := New().Run(uniformRaster(40, 40, 128))
	first := out.Pix[0]
	for i, v := range out.Pix {
		if v != first {
			t.Fatalf("pixel %d = %d, expected uniform output %d", i, v, first)
		}
	}
}

func TestRun_SeparatesBimodalRegions(t *testing.T) {
	// Left half dark, right half bright. Binarization must map the halves to
	// opposite extremes.
	r := &raster.GrayRaster{Width: 64, Height: 32, Pix: make([]byte, 64*32)}
	for y := 0; y < 32; y++ {
		for x := 0; x < 64; x++ {
			v := byte(40)
			if x >= 32 {
				v = 210
			}
			r.Pix[y*64+x] = v
		}
	}

	out := New().Run(r)
	// Sample interior points away from tile seams and the closing boundary.
	if got := out.At(8, 16); got != 0 {
		t.Errorf("dark-half pixel = %d, want 0", got)
	}
	if got := out.At(56, 16); got != 255 {
		t.Errorf("bright-half pixel = %d, want 255", got)
	}
}

func TestOtsuLevel_SplitsBimodalHistogram(t *testing.T) {
	r := &raster.GrayRaster{Width: 20, Height: 10, Pix: make([]byte, 200)}
	for i := range r.Pix {
		if i < 100 {
			r.Pix[i] = 10
		} else {
			r.Pix[i] = 200
		}
	}

	threshold := otsuLevel(r)
	if threshold < 10 || threshold >= 200 {
		t.Fatalf("otsuLevel() = %d, want a value in [10, 200)", threshold)
	}
}

func TestBinarize(t *testing.T) {
	r := &raster.GrayRaster{Width: 4, Height: 1, Pix: []byte{0, 100, 101, 255}}
	out := binarize(r, 100)
	want := []byte{0, 0, 255, 255}
	if !bytes.Equal(out.Pix, want) {
		t.Fatalf("binarize() = %v, want %v", out.Pix, want)
	}
}

func TestClosing_RemovesIsolatedDarkPixel(t *testing.T) {
	r := uniformRaster(9, 9, 255)
	r.Pix[4*9+4] = 0

	out := closing(r, structuringElement)
	if out.At(4, 4) != 255 {
		t.Fatal("closing left a single dark pixel inside a bright region")
	}
}

func TestClosing_KeepsLargeDarkBlocks(t *testing.T) {
	r := uniformRaster(16, 16, 255)
	for y := 4; y < 12; y++ {
		for x := 4; x < 12; x++ {
			r.Pix[y*16+x] = 0
		}
	}

	out := closing(r, structuringElement)
	if out.At(8, 8) != 0 {
		t.Fatal("closing erased the interior of an 8x8 dark block")
	}
}

func TestEstimateNoise(t *testing.T) {
	flat := uniformRaster(32, 32, 77)
	if got := EstimateNoise(flat); got != 0 {
		t.Errorf("flat raster noise = %f, want 0", got)
	}

	checker := &raster.GrayRaster{Width: 32, Height: 32, Pix: make([]byte, 32*32)}
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if (x+y)%2 == 0 {
				checker.Pix[y*32+x] = 255
			}
		}
	}
	if got := EstimateNoise(checker); got <= 0.9 {
		t.Errorf("checkerboard noise = %f, want close to 1", got)
	}

	tiny := &raster.GrayRaster{Width: 1, Height: 5, Pix: make([]byte, 5)}
	if got := EstimateNoise(tiny); got != 0 {
		t.Errorf("degenerate raster noise = %f, want 0", got)
	}
}

func TestGaussianBlur3_SmoothsImpulse(t *testing.T) {
	r := uniformRaster(5, 5, 0)
	r.Pix[2*5+2] = 255

	out := gaussianBlur3(r)
	center := out.At(2, 2)
	if center == 0 || center == 255 {
		t.Fatalf("center after blur = %d, want an intermediate value", center)
	}
	if out.At(0, 0) != 0 {
		t.Errorf("corner after blur = %d, want 0", out.At(0, 0))
	}
	if edge := out.At(2, 1); edge == 0 {
		t.Error("impulse did not spread to its neighbor")
	}
}
