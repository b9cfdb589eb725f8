// Package sh projects cubemaps onto the real spherical harmonic basis.
//
// The basis is evaluated in its non-normalized polynomial form (associated
// Legendre recurrences in z, angle-addition recurrences in x and y); the
// normalization constants K(l,m) are applied separately. See
// https://www.ppsloan.org/publications/StupidSH36.pdf and
// https://google.github.io/filament/Filament.html#annex/sphericalharmonics.
package sh

import (
	"math"

	"github.com/df07/go-ibl-baker/pkg/core"
)

// Index returns the flat coefficient index of band l, order m (-l <= m <= l)
func Index(l, m int) int {
	return l*(l+1) + m
}

// Count returns the number of coefficients for the given number of bands
func Count(bands int) int {
	return bands * bands
}

// BandOf returns the (l, m) pair of a flat coefficient index
func BandOf(index int) (l, m int) {
	l = int(math.Sqrt(float64(index)))
	for (l+1)*(l+1) <= index {
		l++
	}
	for l*l > index {
		l--
	}
	return l, index - l*(l+1)
}

// ComputeBasis evaluates the non-normalized real SH basis for direction s.
// Multiply by NormalizationFactor to obtain the orthonormal basis.
func ComputeBasis(bands int, s core.Vec3) []float64 {
	basis := make([]float64, Count(bands))
	if bands <= 0 {
		return basis
	}
	computeBasis(basis, bands, s)
	return basis
}

// computeBasis writes the basis into a caller-owned slice of length bands²
func computeBasis(basis []float64, bands int, s core.Vec3) {
	x, y, z := float64(s.X), float64(s.Y), float64(s.Z)
	if length := math.Sqrt(x*x + y*y + z*z); length > 0 {
		x, y, z = x/length, y/length, z/length
	}

	// m = 0 produces a single coefficient per band
	pml2 := 0.0
	pml1 := 1.0
	basis[0] = pml1
	for l := 1; l < bands; l++ {
		fl := float64(l)
		pml := ((2*fl-1)*pml1*z - (fl-1)*pml2) / fl
		pml2, pml1 = pml1, pml
		basis[Index(l, 0)] = pml
	}

	// m != 0: seed P(m,m) from P(m-1,m-1), then walk up in l
	pmm := 1.0
	for m := 1; m < bands; m++ {
		fm := float64(m)
		pmm = (1 - 2*fm) * pmm
		pml2 := pmm
		pml1 := (2*fm + 1) * pmm * z

		basis[Index(m, -m)] = pml2
		basis[Index(m, m)] = pml2
		if m+1 < bands {
			basis[Index(m+1, -m)] = pml1
			basis[Index(m+1, m)] = pml1
			for l := m + 2; l < bands; l++ {
				fl := float64(l)
				pml := ((2*fl-1)*pml1*z - (fl+fm-1)*pml2) / (fl - fm)
				pml2, pml1 = pml1, pml
				basis[Index(l, -m)] = pml
				basis[Index(l, m)] = pml
			}
		}
	}

	// cos(m*phi) and sin(m*phi) scaled by sin(theta)^m, by angle addition
	cm := x
	sm := y
	for m := 1; m < bands; m++ {
		for l := m; l < bands; l++ {
			basis[Index(l, -m)] *= sm
			basis[Index(l, m)] *= cm
		}
		cm, sm = cm*x-sm*y, sm*x+cm*y
	}
}

// K returns the SH normalization constant
// sqrt((2l+1)/(4π) * (l-|m|)!/(l+|m|)!)
func K(l, m int) float64 {
	am := m
	if am < 0 {
		am = -am
	}
	return math.Sqrt((2*float64(l) + 1) / (4 * math.Pi) * factorialDivision(l-am, l+am))
}

// NormalizationFactor turns the non-normalized basis into the orthonormal
// one: K(l,0) for m = 0 and sqrt(2)*K(l,m) otherwise
func NormalizationFactor(l, m int) float64 {
	if m == 0 {
		return K(l, 0)
	}
	return math.Sqrt2 * K(l, m)
}

// factorialDivision returns n!/d! without computing either factorial
func factorialDivision(n, d int) float64 {
	n = max(n, 1)
	d = max(d, 1)

	r := 1.0
	switch {
	case n > d:
		for ; n > d; n-- {
			r *= float64(n)
		}
	case d > n:
		for ; d > n; d-- {
			r *= float64(d)
		}
		r = 1 / r
	}
	return r
}
