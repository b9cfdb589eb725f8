package core

import "github.com/chewxy/math32"

// RadicalInverseVdC mirrors the bits of a 32-bit integer around the binary
// point, giving the Van der Corput sequence in [0, 1)
func RadicalInverseVdC(bits uint32) float32 {
	bits = (bits << 16) | (bits >> 16)
	bits = ((bits & 0x55555555) << 1) | ((bits & 0xAAAAAAAA) >> 1)
	bits = ((bits & 0x33333333) << 2) | ((bits & 0xCCCCCCCC) >> 2)
	bits = ((bits & 0x0F0F0F0F) << 4) | ((bits & 0xF0F0F0F0) >> 4)
	bits = ((bits & 0x00FF00FF) << 8) | ((bits & 0xFF00FF00) >> 8)
	return float32(bits) * 2.3283064365386963e-10 // 1 / 2^32
}

// Hammersley returns the i-th of n points of the Hammersley set in [0, 1)^2
func Hammersley(i, n uint32) Vec2 {
	return Vec2{X: float32(i) / float32(n), Y: RadicalInverseVdC(i)}
}

// HammersleySet precomputes all n points of the Hammersley set
func HammersleySet(n uint32) []Vec2 {
	points := make([]Vec2, n)
	for i := uint32(0); i < n; i++ {
		points[i] = Hammersley(i, n)
	}
	return points
}

// TangentBasis builds an orthonormal tangent and bitangent around normal.
// +z is the reference axis unless the normal is nearly parallel to it.
func TangentBasis(normal Vec3) (tangent, bitangent Vec3) {
	up := Vec3{0, 0, 1}
	if math32.Abs(normal.Z) > 0.999 {
		up = Vec3{1, 0, 0}
	}
	tangent = up.Cross(normal).Normalize()
	bitangent = normal.Cross(tangent)
	return tangent, bitangent
}

// ImportanceSampleGGX maps a 2D sample to a halfway vector distributed
// according to the GGX normal distribution around normal
func ImportanceSampleGGX(xi Vec2, normal Vec3, roughness float32) Vec3 {
	a := roughness * roughness

	phi := 2 * math32.Pi * xi.X
	cosTheta := float32(1)
	if denom := 1 + (a*a-1)*xi.Y; denom > 0 {
		cosTheta = math32.Sqrt((1 - xi.Y) / denom)
	}
	sinTheta := math32.Sqrt(math32.Max(0, 1-cosTheta*cosTheta))

	// Spherical to cartesian, in tangent space
	sinPhi, cosPhi := math32.Sincos(phi)
	h := Vec3{cosPhi * sinTheta, sinPhi * sinTheta, cosTheta}

	// Tangent space to world space
	tangent, bitangent := TangentBasis(normal)
	return tangent.Multiply(h.X).Add(bitangent.Multiply(h.Y)).Add(normal.Multiply(h.Z)).Normalize()
}

// Reflect reflects v about the unit vector h: 2*dot(v,h)*h - v
func Reflect(v, h Vec3) Vec3 {
	return h.Multiply(2 * v.Dot(h)).Subtract(v)
}
