package raster

import "image"

// Rotate90 returns a new raster rotated 90 degrees clockwise.
func Rotate90(r *GrayRaster) *GrayRaster {
	out := &GrayRaster{Width: r.Height, Height: r.Width, Pix: make([]byte, len(r.Pix))}
	for y := 0; y < r.Height; y++ {
		row := y * r.Width
		for x := 0; x < r.Width; x++ {
			// (x, y) -> (height-1-y, x)
			out.Pix[x*out.Width+(r.Height-1-y)] = r.Pix[row+x]
		}
	}
	return out
}

// Rotate180 returns a new raster rotated 180 degrees.
func Rotate180(r *GrayRaster) *GrayRaster {
	n := len(r.Pix)
	out := &GrayRaster{Width: r.Width, Height: r.Height, Pix: make([]byte, n)}
	for i := 0; i < n; i++ {
		out.Pix[n-1-i] = r.Pix[i]
	}
	return out
}

// Rotate270 returns a new raster rotated 270 degrees clockwise.
func Rotate270(r *GrayRaster) *GrayRaster {
	out := &GrayRaster{Width: r.Height, Height: r.Width, Pix: make([]byte, len(r.Pix))}
	for y := 0; y < r.Height; y++ {
		row := y * r.Width
		for x := 0; x < r.Width; x++ {
			// (x, y) -> (y, width-1-x)
			out.Pix[(r.Width-1-x)*out.Width+y] = r.Pix[row+x]
		}
	}
	return out
}

// Rotate returns a new raster rotated clockwise by the given angle, which must
// be one of 0, 90, 180 or 270.
func Rotate(r *GrayRaster, angle int) *GrayRaster {
	switch angle {
	case 90:
		return Rotate90(r)
	case 180:
		return Rotate180(r)
	case 270:
		return Rotate270(r)
	default:
		return r.Clone()
	}
}

// Crop returns a new raster holding the intersection of rect with the raster
// bounds. It returns nil when the intersection is empty.
func Crop(r *GrayRaster, rect image.Rectangle) *GrayRaster {
	rect = rect.Intersect(image.Rect(0, 0, r.Width, r.Height))
	if rect.Empty() {
		return nil
	}
	w, h := rect.Dx(), rect.Dy()
	out := &GrayRaster{Width: w, Height: h, Pix: make([]byte, w*h)}
	for y := 0; y < h; y++ {
		src := (rect.Min.Y + y) * r.Width
		copy(out.Pix[y*w:(y+1)*w], r.Pix[src+rect.Min.X:src+rect.Min.X+w])
	}
	return out
}
