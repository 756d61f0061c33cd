package mldetect

import (
	"image"

	"invoice-scan-service/internal/raster"
)

// detection is one candidate box in model input coordinates.
type detection struct {
	cx, cy, w, h float32
	score        float32
}

// letterbox scales the raster to fit side x side preserving aspect ratio,
// pads the borders with neutral gray, and replicates the single luminance
// channel into the three input channels (CHW float32, 0..1).
func letterbox(r *raster.GrayRaster, side int) (data []float32, scale float64, padX, padY int) {
	scale = float64(side) / float64(r.Width)
	if s := float64(side) / float64(r.Height); s < scale {
		scale = s
	}
	if scale > 1 {
		scale = 1
	}
	scaledW := int(float64(r.Width) * scale)
	scaledH := int(float64(r.Height) * scale)
	if scaledW < 1 {
		scaledW = 1
	}
	if scaledH < 1 {
		scaledH = 1
	}
	padX = (side - scaledW) / 2
	padY = (side - scaledH) / 2

	plane := make([]float32, side*side)
	const neutral = 114.0 / 255.0
	for i := range plane {
		plane[i] = neutral
	}
	for y := 0; y < scaledH; y++ {
		srcY := int(float64(y) / scale)
		if srcY >= r.Height {
			srcY = r.Height - 1
		}
		row := (y + padY) * side
		srcRow := srcY * r.Width
		for x := 0; x < scaledW; x++ {
			srcX := int(float64(x) / scale)
			if srcX >= r.Width {
				srcX = r.Width - 1
			}
			plane[row+x+padX] = float32(r.Pix[srcRow+srcX]) / 255.0
		}
	}

	data = make([]float32, 3*side*side)
	copy(data, plane)
	copy(data[side*side:], plane)
	copy(data[2*side*side:], plane)
	return data, scale, padX, padY
}

// bestDetection scans a single-class YOLO output for the highest-scoring box
// above the threshold. Both [1, 5, N] and [1, N, 5] layouts are handled.
func bestDetection(data []float32, shape []int64, threshold float32) (detection, bool) {
	if len(shape) != 3 || shape[0] != 1 {
		return detection{}, false
	}

	var count int
	var attr func(i, a int) float32
	if shape[1] == 5 {
		count = int(shape[2])
		attr = func(i, a int) float32 { return data[a*count+i] }
	} else if shape[2] == 5 {
		count = int(shape[1])
		attr = func(i, a int) float32 { return data[i*5+a] }
	} else {
		return detection{}, false
	}
	if count*5 > len(data) {
		return detection{}, false
	}

	best := detection{}
	found := false
	for i := 0; i < count; i++ {
		score := attr(i, 4)
		if score < threshold || (found && score <= best.score) {
			continue
		}
		best = detection{
			cx:    attr(i, 0),
			cy:    attr(i, 1),
			w:     attr(i, 2),
			h:     attr(i, 3),
			score: score,
		}
		found = true
	}
	return best, found
}

// cropDetection maps a box from model input space back onto the raster and
// returns a padded crop around it, upscaled when the region is small.
func cropDetection(r *raster.GrayRaster, box detection, scale float64, padX, padY int) *raster.GrayRaster {
	x0 := (float64(box.cx-box.w/2) - float64(padX)) / scale
	y0 := (float64(box.cy-box.h/2) - float64(padY)) / scale
	x1 := (float64(box.cx+box.w/2) - float64(padX)) / scale
	y1 := (float64(box.cy+box.h/2) - float64(padY)) / scale

	// Pad by 15% per side so quiet zones survive the crop.
	padW := (x1 - x0) * 0.15
	padH := (y1 - y0) * 0.15
	rect := image.Rect(int(x0-padW), int(y0-padH), int(x1+padW)+1, int(y1+padH)+1)

	crop := raster.Crop(r, rect)
	if crop == nil {
		return nil
	}
	if longest := max(crop.Width, crop.Height); longest > 0 && longest < 160 {
		crop = upscale(crop, 160/longest+1)
	}
	return crop
}

// upscale performs nearest-neighbor integer upscaling.
func upscale(r *raster.GrayRaster, factor int) *raster.GrayRaster {
	if factor <= 1 {
		return r
	}
	w := r.Width * factor
	h := r.Height * factor
	out := &raster.GrayRaster{Width: w, Height: h, Pix: make([]byte, w*h)}
	for y := 0; y < h; y++ {
		srcRow := (y / factor) * r.Width
		row := y * w
		for x := 0; x < w; x++ {
			out.Pix[row+x] = r.Pix[srcRow+x/factor]
		}
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
