package cinepak

import (
	"image"
	"math"
)

// YUVToRGB converts one pixel.
func YUVToRGB(y uint8, u, v int8) RGB {
	fy, fu, fv := float64(y), float64(u), float64(v)
	return RGB{
		R: clampRound(fy + 1.402*fv),
		G: clampRound(fy - 0.344*fu - 0.714*fv),
		B: clampRound(fy + 1.772*fu),
	}
}

func clampRound(f float64) uint8 {
	switch {
	case f <= 0:
		return 0
	case f >= 255:
		return 255
	}
	return uint8(math.Round(f))
}

func (d *Decoder) toRGB() *RGB24 {
	img := NewRGB24(image.Rect(0, 0, d.width, d.height))
	for i := range d.y {
		c := YUVToRGB(d.y[i], d.u[i], d.v[i])
		p := i * 3
		img.Pix[p], img.Pix[p+1], img.Pix[p+2] = c.R, c.G, c.B
	}
	return img
}
