package sentinel

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/Solar-crew/solar-detector/internal/domain/model"
)

// pngColorTypeOffset is the IHDR color type byte: 8 signature bytes, 8 chunk
// header bytes, then width(4) height(4) depth(1).
const pngColorTypeOffset = 25

// pngBands maps a PNG color type to its channel count.
func pngBands(data []byte) int {
	if len(data) <= pngColorTypeOffset {
		return 0
	}
	switch data[pngColorTypeOffset] {
	case 0: // grayscale
		return 1
	case 2, 3: // truecolor, palette
		return 3
	case 4: // grayscale + alpha
		return 2
	case 6: // truecolor + alpha
		return 4
	default:
		return 0
	}
}

// decodeRaster decodes a Process API PNG into a band-major raster. Grayscale
// with alpha yields [gray, alpha]; color images yield their channels in order.
func decodeRaster(data []byte, kind model.RasterKind, date string) (*model.Raster, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &model.ShapeMismatchError{
			Kind: kind, Date: date, WantBands: kind.Bands(), Reason: fmt.Sprintf("undecodable PNG: %v", err),
		}
	}

	bands := pngBands(data)
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var channels [][]float64
	switch im := img.(type) {
	case *image.Gray:
		channels = collect(w, h, 1, func(x, y int, out []float64) {
			out[0] = float64(im.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
		})
	case *image.Gray16:
		channels = collect(w, h, 1, func(x, y int, out []float64) {
			out[0] = float64(im.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
		})
	case *image.NRGBA:
		channels = collect(w, h, 4, func(x, y int, out []float64) {
			c := im.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			out[0], out[1], out[2], out[3] = float64(c.R), float64(c.G), float64(c.B), float64(c.A)
		})
	case *image.NRGBA64:
		channels = collect(w, h, 4, func(x, y int, out []float64) {
			c := im.NRGBA64At(b.Min.X+x, b.Min.Y+y)
			out[0], out[1], out[2], out[3] = float64(c.R), float64(c.G), float64(c.B), float64(c.A)
		})
	case *image.RGBA:
		channels = collect(w, h, 3, func(x, y int, out []float64) {
			c := im.RGBAAt(b.Min.X+x, b.Min.Y+y)
			out[0], out[1], out[2] = float64(c.R), float64(c.G), float64(c.B)
		})
	case *image.RGBA64:
		channels = collect(w, h, 3, func(x, y int, out []float64) {
			c := im.RGBA64At(b.Min.X+x, b.Min.Y+y)
			out[0], out[1], out[2] = float64(c.R), float64(c.G), float64(c.B)
		})
	default:
		return nil, &model.ShapeMismatchError{Kind: kind, Date: date, WantBands: kind.Bands(), GotBands: bands}
	}

	switch {
	case bands == 2 && len(channels) == 4:
		// gray+alpha decodes as NRGBA with R=G=B
		channels = [][]float64{channels[0], channels[3]}
	case bands == 3 && len(channels) == 4:
		channels = channels[:3]
	}

	if len(channels) < kind.Bands() || (kind == model.RasterElevation && len(channels) != 1) {
		return nil, &model.ShapeMismatchError{Kind: kind, Date: date, WantBands: kind.Bands(), GotBands: len(channels)}
	}

	if kind == model.RasterElevation {
		heights := channels[0]
		for i, v := range heights {
			heights[i] = v/elevationScale - elevationOffset
		}
	}

	return &model.Raster{
		Kind:   kind,
		Date:   date,
		Width:  w,
		Height: h,
		Bands:  channels,
	}, nil
}

// collect walks the image row by row and splits the per-pixel channel values
// into n band slices.
func collect(w, h, n int, pixel func(x, y int, out []float64)) [][]float64 {
	bands := make([][]float64, n)
	for i := range bands {
		bands[i] = make([]float64, w*h)
	}
	out := make([]float64, n)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pixel(x, y, out)
			for i := range bands {
				bands[i][y*w+x] = out[i]
			}
		}
	}
	return bands
}
