package sh

import (
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/df07/go-ibl-baker/pkg/core"
)

// partialSum is the contribution of one face to the projection
type partialSum struct {
	coeffs []float64 // RGB interleaved, 3 per coefficient
	weight float64
}

// Project integrates the six faces against the first bands SH bands.
// Every texel contributes color * solidAngle * basis. The total weight
// counts each color channel separately (3 per texel), and the result is
// scaled by 4π / totalWeight. The returned coefficients are not normalized;
// see Normalize.
func Project(bands int, faces core.FaceSet) (*Coefficients, error) {
	if bands < 1 {
		return nil, fmt.Errorf("%d bands: %w", bands, core.ErrInvalidBands)
	}
	if err := faces.Validate(); err != nil {
		return nil, err
	}

	size := faces.Size()
	n := Count(bands)

	// One accumulator per face, reduced in face order so the result does
	// not depend on scheduling
	var partials [core.FaceCount]partialSum
	var g errgroup.Group
	for _, face := range core.Faces() {
		face := face
		g.Go(func() error {
			partials[face] = projectFace(bands, face, faces[face], size)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sum := make([]float64, 3*n)
	var weightSum float64
	for _, p := range partials {
		for i, v := range p.coeffs {
			sum[i] += v
		}
		weightSum += p.weight
	}

	scale := 4 * math.Pi / weightSum
	result := NewCoefficients(bands)
	for i := range result.Values {
		result.Values[i] = core.Vec3{
			X: float32(sum[3*i+0] * scale),
			Y: float32(sum[3*i+1] * scale),
			Z: float32(sum[3*i+2] * scale),
		}
	}
	return result, nil
}

func projectFace(bands int, face core.CubeFace, img *core.Image, size int) partialSum {
	n := Count(bands)
	p := partialSum{coeffs: make([]float64, 3*n)}
	basis := make([]float64, n)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dir := core.TexelDirection(face, x, y, size)
			weight := SolidAngle(x, y, size)
			computeBasis(basis, bands, dir)

			c := img.At(x, y)
			r := float64(c.X) * weight
			g := float64(c.Y) * weight
			b := float64(c.Z) * weight
			for i, bv := range basis {
				p.coeffs[3*i+0] += r * bv
				p.coeffs[3*i+1] += g * bv
				p.coeffs[3*i+2] += b * bv
			}

			p.weight += weight * 3
		}
	}
	return p
}
