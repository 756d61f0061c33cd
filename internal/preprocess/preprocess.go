// Package preprocess produces the enhanced grayscale variant every decode
// level works from: local contrast normalization, global binarization,
// morphological cleanup and noise-gated smoothing.
package preprocess

import (
	"sync/atomic"

	"invoice-scan-service/internal/raster"
)

const (
	tileSize  = 8
	clipLimit = 2.0

	structuringElement = 1 // 3x3 kernel radius

	// Binarization leaves residual salt-and-pepper speckle on noisy photos.
	// Above this adjacent-difference estimate a light blur pass pays for
	// itself; below it the common case stays single-pass.
	noiseThreshold = 0.10
)

// Preprocessor runs the fixed enhancement pipeline. It is stateless apart
// from a run counter used to verify the pipeline executes once per request.
type Preprocessor struct {
	runs atomic.Int64
}

func New() *Preprocessor {
	return &Preprocessor{}
}

// Runs reports how many times the pipeline has executed.
func (p *Preprocessor) Runs() int64 {
	return p.runs.Load()
}

// Run applies the full pipeline and returns a new raster. The input raster is
// never modified.
func (p *Preprocessor) Run(r *raster.GrayRaster) *raster.GrayRaster {
	p.runs.Add(1)

	equalized := clahe(r, tileSize, clipLimit)
	binary := binarize(equalized, otsuLevel(equalized))
	closed := closing(binary, structuringElement)

	if EstimateNoise(closed) > noiseThreshold {
		blurred := gaussianBlur3(closed)
		closed = binarize(blurred, otsuLevel(blurred))
	}
	return closed
}

// clahe applies contrast-limited histogram equalization over fixed-size tiles.
// Each tile's histogram is clipped, the excess redistributed, and the tile
// remapped through its own CDF.
func clahe(r *raster.GrayRaster, tile int, clip float64) *raster.GrayRaster {
	out := &raster.GrayRaster{Width: r.Width, Height: r.Height, Pix: make([]byte, len(r.Pix))}

	for ty := 0; ty < r.Height; ty += tile {
		for tx := 0; tx < r.Width; tx += tile {
			xEnd := tx + tile
			if xEnd > r.Width {
				xEnd = r.Width
			}
			yEnd := ty + tile
			if yEnd > r.Height {
				yEnd = r.Height
			}

			var histogram [256]uint32
			for y := ty; y < yEnd; y++ {
				row := y * r.Width
				for x := tx; x < xEnd; x++ {
					histogram[r.Pix[row+x]]++
				}
			}

			tilePixels := (xEnd - tx) * (yEnd - ty)
			clipValue := uint32(float64(tilePixels) * clip / 256.0)
			if clipValue == 0 {
				clipValue = 1
			}
			var clipped uint32
			for i := range histogram {
				if histogram[i] > clipValue {
					clipped += histogram[i] - clipValue
					histogram[i] = clipValue
				}
			}
			redistribute := clipped / 256
			for i := range histogram {
				histogram[i] += redistribute
			}

			var cdf [256]uint32
			cdf[0] = histogram[0]
			for i := 1; i < 256; i++ {
				cdf[i] = cdf[i-1] + histogram[i]
			}
			total := cdf[255]
			var cdfMin uint32
			for _, c := range cdf {
				if c > 0 {
					cdfMin = c
					break
				}
			}

			for y := ty; y < yEnd; y++ {
				row := y * r.Width
				for x := tx; x < xEnd; x++ {
					v := r.Pix[row+x]
					if total <= cdfMin {
						// Constant tile; equalization is undefined, keep it.
						out.Pix[row+x] = v
						continue
					}
					out.Pix[row+x] = byte((cdf[v] - cdfMin) * 255 / (total - cdfMin))
				}
			}
		}
	}
	return out
}

// otsuLevel computes the global threshold maximizing between-class variance.
func otsuLevel(r *raster.GrayRaster) byte {
	var histogram [256]int
	for _, v := range r.Pix {
		histogram[v]++
	}

	total := len(r.Pix)
	var sum float64
	for i, count := range histogram {
		sum += float64(i) * float64(count)
	}

	var sumB, wB float64
	var best float64
	var threshold byte
	for t := 0; t < 256; t++ {
		wB += float64(histogram[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(histogram[t])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			threshold = byte(t)
		}
	}
	return threshold
}

func binarize(r *raster.GrayRaster, threshold byte) *raster.GrayRaster {
	out := &raster.GrayRaster{Width: r.Width, Height: r.Height, Pix: make([]byte, len(r.Pix))}
	for i, v := range r.Pix {
		if v > threshold {
			out.Pix[i] = 255
		}
	}
	return out
}

// closing repairs broken module edges: dilate then erode with a square
// structuring element of the given radius.
func closing(r *raster.GrayRaster, radius int) *raster.GrayRaster {
	return erode(dilate(r, radius), radius)
}

func dilate(r *raster.GrayRaster, radius int) *raster.GrayRaster {
	return neighborhood(r, radius, func(best, v byte) bool { return v > best })
}

func erode(r *raster.GrayRaster, radius int) *raster.GrayRaster {
	return neighborhood(r, radius, func(best, v byte) bool { return v < best })
}

func neighborhood(r *raster.GrayRaster, radius int, better func(best, v byte) bool) *raster.GrayRaster {
	out := &raster.GrayRaster{Width: r.Width, Height: r.Height, Pix: make([]byte, len(r.Pix))}
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			best := r.Pix[y*r.Width+x]
			for dy := -radius; dy <= radius; dy++ {
				ny := y + dy
				if ny < 0 || ny >= r.Height {
					continue
				}
				row := ny * r.Width
				for dx := -radius; dx <= radius; dx++ {
					nx := x + dx
					if nx < 0 || nx >= r.Width {
						continue
					}
					if v := r.Pix[row+nx]; better(best, v) {
						best = v
					}
				}
			}
			out.Pix[y*r.Width+x] = best
		}
	}
	return out
}

// EstimateNoise returns a 0..1 estimate from mean absolute differences of
// horizontally and vertically adjacent pixels.
func EstimateNoise(r *raster.GrayRaster) float64 {
	if r.Width < 2 || r.Height < 2 {
		return 0
	}
	var sum, count int64
	for y := 1; y < r.Height; y++ {
		row := y * r.Width
		prev := row - r.Width
		for x := 1; x < r.Width; x++ {
			current := int64(r.Pix[row+x])
			left := int64(r.Pix[row+x-1])
			top := int64(r.Pix[prev+x])
			sum += abs64(current-left) + abs64(current-top)
			count += 2
		}
	}
	noise := float64(sum) / (float64(count) * 255.0)
	if noise > 1 {
		noise = 1
	}
	return noise
}

// gaussianBlur3 applies a 3x3 Gaussian kernel (sigma ~0.8).
func gaussianBlur3(r *raster.GrayRaster) *raster.GrayRaster {
	kernel := [3][3]int{{1, 2, 1}, {2, 4, 2}, {1, 2, 1}}
	out := &raster.GrayRaster{Width: r.Width, Height: r.Height, Pix: make([]byte, len(r.Pix))}
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			var acc, weight int
			for dy := -1; dy <= 1; dy++ {
				ny := y + dy
				if ny < 0 || ny >= r.Height {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					nx := x + dx
					if nx < 0 || nx >= r.Width {
						continue
					}
					k := kernel[dy+1][dx+1]
					acc += k * int(r.Pix[ny*r.Width+nx])
					weight += k
				}
			}
			out.Pix[y*r.Width+x] = byte(acc / weight)
		}
	}
	return out
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
