package core

import "github.com/chewxy/math32"

// CubeFace identifies one face of a cubemap
type CubeFace int

const (
	FacePosX CubeFace = iota
	FaceNegX
	FacePosY
	FaceNegY
	FacePosZ
	FaceNegZ
)

// FaceCount is the number of faces in a cubemap
const FaceCount = 6

// faceBasis describes the linear mapping of a face: dir = U*u + V*v + N
type faceBasis struct {
	U, V, N Vec3
}

// faceBases follows the canonical cubemap layout with v pointing down the
// image. Every component that builds or reads cubemaps goes through this
// table, so a (face, u, v) triple always means the same direction.
var faceBases = [FaceCount]faceBasis{
	FacePosX: {U: Vec3{0, 0, -1}, V: Vec3{0, -1, 0}, N: Vec3{1, 0, 0}},
	FaceNegX: {U: Vec3{0, 0, 1}, V: Vec3{0, -1, 0}, N: Vec3{-1, 0, 0}},
	FacePosY: {U: Vec3{1, 0, 0}, V: Vec3{0, 0, 1}, N: Vec3{0, 1, 0}},
	FaceNegY: {U: Vec3{1, 0, 0}, V: Vec3{0, 0, -1}, N: Vec3{0, -1, 0}},
	FacePosZ: {U: Vec3{1, 0, 0}, V: Vec3{0, -1, 0}, N: Vec3{0, 0, 1}},
	FaceNegZ: {U: Vec3{-1, 0, 0}, V: Vec3{0, -1, 0}, N: Vec3{0, 0, -1}},
}

var faceNames = [FaceCount]string{"+x", "-x", "+y", "-y", "+z", "-z"}

// String returns the face name used in file names ("+x", "-x", ...)
func (f CubeFace) String() string {
	if f < 0 || int(f) >= FaceCount {
		return "invalid"
	}
	return faceNames[f]
}

// Faces returns all faces in storage order
func Faces() [FaceCount]CubeFace {
	return [FaceCount]CubeFace{FacePosX, FaceNegX, FacePosY, FaceNegY, FacePosZ, FaceNegZ}
}

// ParseCubeFace converts a face name back to a CubeFace
func ParseCubeFace(name string) (CubeFace, bool) {
	for i, n := range faceNames {
		if n == name {
			return CubeFace(i), true
		}
	}
	return 0, false
}

// TexelUV maps a texel index to the [-1, 1] face coordinate of its center
func TexelUV(i, size int) float32 {
	return 2*(float32(i)+0.5)/float32(size) - 1
}

// FaceVector returns the unnormalized direction for face coordinates u, v in [-1, 1]
func FaceVector(face CubeFace, u, v float32) Vec3 {
	b := &faceBases[face]
	return b.U.Multiply(u).Add(b.V.Multiply(v)).Add(b.N)
}

// FaceDirection returns the unit direction for face coordinates u, v in [-1, 1]
func FaceDirection(face CubeFace, u, v float32) Vec3 {
	return FaceVector(face, u, v).Normalize()
}

// TexelDirection returns the unit direction through the center of texel (x, y)
func TexelDirection(face CubeFace, x, y, size int) Vec3 {
	return FaceDirection(face, TexelUV(x, size), TexelUV(y, size))
}

// FaceForDirection is the inverse of FaceDirection: it picks the face of the
// dominant axis and projects the direction onto it.
func FaceForDirection(dir Vec3) (face CubeFace, u, v float32) {
	ax, ay, az := math32.Abs(dir.X), math32.Abs(dir.Y), math32.Abs(dir.Z)

	var major float32
	switch {
	case ax >= ay && ax >= az:
		major = ax
		face = FacePosX
		if dir.X < 0 {
			face = FaceNegX
		}
	case ay >= az:
		major = ay
		face = FacePosY
		if dir.Y < 0 {
			face = FaceNegY
		}
	default:
		major = az
		face = FacePosZ
		if dir.Z < 0 {
			face = FaceNegZ
		}
	}
	if major == 0 {
		return FacePosX, 0, 0
	}

	p := dir.Multiply(1 / major)
	b := &faceBases[face]
	return face, p.Dot(b.U), p.Dot(b.V)
}

// MipCount returns log2(size)+1, the number of levels down to a 1x1 face.
// size must be a power of two.
func MipCount(size int) int {
	count := 1
	for size > 1 {
		size >>= 1
		count++
	}
	return count
}

// IsPowerOfTwo reports whether n is a positive power of two
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
