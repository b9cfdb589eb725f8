package envmap

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/df07/go-ibl-baker/pkg/core"
)

// Sampler returns the radiance arriving from a direction
type Sampler interface {
	Sample(dir core.Vec3) core.Vec3
}

// SeamMode selects how bilinear lookups behave past the image edges
type SeamMode int

const (
	// SeamWrap wraps horizontally (longitude is periodic) and clamps vertically
	SeamWrap SeamMode = iota
	// SeamClamp clamps to the edge texels in both directions
	SeamClamp
)

// String returns the flag name of the mode
func (m SeamMode) String() string {
	switch m {
	case SeamWrap:
		return "wrap"
	case SeamClamp:
		return "clamp"
	default:
		return "unknown"
	}
}

// ParseSeamMode converts a flag value to a SeamMode
func ParseSeamMode(s string) (SeamMode, error) {
	switch s {
	case "wrap", "":
		return SeamWrap, nil
	case "clamp":
		return SeamClamp, nil
	default:
		return SeamWrap, fmt.Errorf("unknown seam mode %q (want wrap or clamp)", s)
	}
}

// EquirectSampler samples an equirectangular (latitude/longitude) image by direction
type EquirectSampler struct {
	image *core.Image
	seam  SeamMode
}

// NewEquirectSampler wraps an image; the image must not be modified while sampling
func NewEquirectSampler(img *core.Image, seam SeamMode) (*EquirectSampler, error) {
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("equirectangular map: %w", err)
	}
	return &EquirectSampler{image: img, seam: seam}, nil
}

// Image returns the backing image
func (s *EquirectSampler) Image() *core.Image {
	return s.image
}

// DirectionToUV converts a unit direction to equirectangular texture coordinates in [0, 1]
func DirectionToUV(dir core.Vec3) core.Vec2 {
	theta := math32.Atan2(dir.Z, dir.X)
	phi := math32.Asin(max(-1, min(1, dir.Y)))

	return core.Vec2{
		X: (theta + math32.Pi) / (2 * math32.Pi),
		Y: (phi + math32.Pi/2) / math32.Pi,
	}
}

// UVToDirection is the inverse of DirectionToUV
func UVToDirection(uv core.Vec2) core.Vec3 {
	theta := uv.X*2*math32.Pi - math32.Pi
	phi := uv.Y*math32.Pi - math32.Pi/2

	sinPhi, cosPhi := math32.Sincos(phi)
	sinTheta, cosTheta := math32.Sincos(theta)
	return core.Vec3{X: cosPhi * cosTheta, Y: sinPhi, Z: cosPhi * sinTheta}
}

// Sample bilinearly samples the image in the given direction
func (s *EquirectSampler) Sample(dir core.Vec3) core.Vec3 {
	return s.SampleUV(DirectionToUV(dir))
}

// SampleUV bilinearly samples the image at continuous texture coordinates.
// V=0 is the bottom row, V=1 the top row (image rows run top to bottom).
func (s *EquirectSampler) SampleUV(uv core.Vec2) core.Vec3 {
	w, h := s.image.Width, s.image.Height

	// -0.5 to adjust for the pixel center offset
	fx := uv.X*float32(w) - 0.5
	fy := (1-uv.Y)*float32(h) - 0.5
	x0f := math32.Floor(fx)
	y0f := math32.Floor(fy)
	tx := fx - x0f
	ty := fy - y0f

	x0, y0 := int(x0f), int(y0f)
	x1, y1 := x0+1, y0+1

	switch s.seam {
	case SeamWrap:
		x0, x1 = wrap(x0, w), wrap(x1, w)
	default:
		x0, x1 = clamp(x0, w), clamp(x1, w)
	}
	y0, y1 = clamp(y0, h), clamp(y1, h)

	c00 := s.image.At(x0, y0)
	c10 := s.image.At(x1, y0)
	c01 := s.image.At(x0, y1)
	c11 := s.image.At(x1, y1)

	top := c00.Multiply(1 - tx).Add(c10.Multiply(tx))
	bottom := c01.Multiply(1 - tx).Add(c11.Multiply(tx))
	return top.Multiply(1 - ty).Add(bottom.Multiply(ty))
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
