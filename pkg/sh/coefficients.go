package sh

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/df07/go-ibl-baker/pkg/core"
)

// Normalization records which normalization factors a coefficient set carries
type Normalization int

const (
	// NormalizeNone is the raw projection against the non-normalized basis
	NormalizeNone Normalization = iota
	// NormalizeOrthonormal coefficients pair with the orthonormal basis
	NormalizeOrthonormal
	// NormalizeSquared coefficients carry the factor twice and pair with
	// the non-normalized basis at reconstruction time
	NormalizeSquared
)

var normalizationNames = []string{"none", "orthonormal", "squared"}

// String returns the flag name of the normalization
func (n Normalization) String() string {
	if n < 0 || int(n) >= len(normalizationNames) {
		return "unknown"
	}
	return normalizationNames[n]
}

// ParseNormalization converts a flag value to a Normalization
func ParseNormalization(s string) (Normalization, error) {
	for i, name := range normalizationNames {
		if name == s {
			return Normalization(i), nil
		}
	}
	return NormalizeNone, fmt.Errorf("unknown normalization %q (want none, orthonormal or squared)", s)
}

var (
	// ErrAlreadyNormalized is returned when normalizing a normalized set
	ErrAlreadyNormalized = errors.New("coefficients are already normalized")
	// ErrAlreadyConvolved is returned when convolving an irradiance set again
	ErrAlreadyConvolved = errors.New("coefficients are already convolved to irradiance")
)

// Coefficients is a set of RGB spherical harmonic coefficients, indexed by Index(l, m)
type Coefficients struct {
	Bands         int
	Values        []core.Vec3
	Normalization Normalization
	Irradiance    bool // Convolved with the clamped cosine lobe
}

// NewCoefficients allocates a zeroed set for the given number of bands
func NewCoefficients(bands int) *Coefficients {
	return &Coefficients{
		Bands:  bands,
		Values: make([]core.Vec3, Count(bands)),
	}
}

// At returns the coefficient of band l, order m
func (c *Coefficients) At(l, m int) core.Vec3 {
	return c.Values[Index(l, m)]
}

// Clone returns a deep copy
func (c *Coefficients) Clone() *Coefficients {
	out := *c
	out.Values = append([]core.Vec3(nil), c.Values...)
	return &out
}

// Normalize returns a copy of the raw coefficients scaled by the
// orthonormalization factors, once (NormalizeOrthonormal) or squared
// (NormalizeSquared)
func (c *Coefficients) Normalize(mode Normalization) (*Coefficients, error) {
	if c.Normalization != NormalizeNone {
		return nil, fmt.Errorf("%s: %w", c.Normalization, ErrAlreadyNormalized)
	}

	out := c.Clone()
	out.Normalization = mode
	if mode == NormalizeNone {
		return out, nil
	}
	for i := range out.Values {
		l, m := BandOf(i)
		f := NormalizationFactor(l, m)
		if mode == NormalizeSquared {
			f *= f
		}
		out.Values[i] = out.Values[i].Multiply(float32(f))
	}
	return out, nil
}

// TruncatedCosine returns the band-l coefficient of the clamped cosine lobe
// max(cos θ, 0), premultiplied by 1/K(l,0): π, 2π/3, 0 for odd l > 1, and a
// closed form for even l
func TruncatedCosine(l int) float64 {
	switch {
	case l == 0:
		return math.Pi
	case l == 1:
		return 2 * math.Pi / 3
	case l%2 == 1:
		return 0
	}
	l2 := l / 2
	a0 := -1.0
	if l2%2 == 1 {
		a0 = 1.0
	}
	a0 /= float64((l + 2) * (l - 1))
	a1 := factorialDivision(l, l2) / (factorialDivision(l2, 1) * float64(uint64(1)<<l))
	return 2 * math.Pi * a0 * a1
}

// ConvolveIrradiance returns a copy with every band l scaled by
// TruncatedCosine(l), turning radiance coefficients into irradiance
func (c *Coefficients) ConvolveIrradiance() (*Coefficients, error) {
	if c.Irradiance {
		return nil, ErrAlreadyConvolved
	}
	out := c.Clone()
	out.Irradiance = true
	for i := range out.Values {
		l, _ := BandOf(i)
		out.Values[i] = out.Values[i].Multiply(float32(TruncatedCosine(l)))
	}
	return out, nil
}

// Evaluate reconstructs the function in direction dir, using the basis that
// pairs with the set's normalization
func (c *Coefficients) Evaluate(dir core.Vec3) core.Vec3 {
	basis := ComputeBasis(c.Bands, dir)
	var r, g, b float64
	for i, bv := range basis {
		l, m := BandOf(i)
		switch c.Normalization {
		case NormalizeNone:
			f := NormalizationFactor(l, m)
			bv *= f * f
		case NormalizeOrthonormal:
			bv *= NormalizationFactor(l, m)
		}
		v := c.Values[i]
		r += float64(v.X) * bv
		g += float64(v.Y) * bv
		b += float64(v.Z) * bv
	}
	return core.Vec3{X: float32(r), Y: float32(g), Z: float32(b)}
}

// String formats the coefficients one per line for debugging
func (c *Coefficients) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SH bands=%d normalization=%s irradiance=%t\n", c.Bands, c.Normalization, c.Irradiance)
	for i, v := range c.Values {
		l, m := BandOf(i)
		fmt.Fprintf(&sb, "  [%2d] l=%d m=%+d: [%12.6f, %12.6f, %12.6f]\n", i, l, m, v.X, v.Y, v.Z)
	}
	return sb.String()
}
