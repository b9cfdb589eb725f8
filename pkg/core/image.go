package core

import "fmt"

// Image is a dense grid of RGB float32 triples.
// Row-major: pixel (x, y) starts at Pix[(y*Width+x)*3].
type Image struct {
	Width  int
	Height int
	Pix    []float32
}

// NewImage allocates a black image
func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height*3),
	}
}

// NewUniformImage allocates an image filled with a single color
func NewUniformImage(width, height int, color Vec3) *Image {
	img := NewImage(width, height)
	for i := 0; i < len(img.Pix); i += 3 {
		img.Pix[i+0] = color.X
		img.Pix[i+1] = color.Y
		img.Pix[i+2] = color.Z
	}
	return img
}

// At returns the color of pixel (x, y)
func (img *Image) At(x, y int) Vec3 {
	i := (y*img.Width + x) * 3
	return Vec3{img.Pix[i], img.Pix[i+1], img.Pix[i+2]}
}

// Set writes the color of pixel (x, y)
func (img *Image) Set(x, y int, c Vec3) {
	i := (y*img.Width + x) * 3
	img.Pix[i+0] = c.X
	img.Pix[i+1] = c.Y
	img.Pix[i+2] = c.Z
}

// Validate checks that the image is non-empty and its buffer matches its dimensions
func (img *Image) Validate() error {
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return ErrEmptyImage
	}
	if len(img.Pix) != img.Width*img.Height*3 {
		return fmt.Errorf("%w: %dx%d needs %d floats, got %d",
			ErrMalformedImage, img.Width, img.Height, img.Width*img.Height*3, len(img.Pix))
	}
	return nil
}

// FaceSet holds the six faces of a cubemap in CubeFace order (+x, -x, +y, -y, +z, -z)
type FaceSet [FaceCount]*Image

// NewFaceSet allocates six black square faces
func NewFaceSet(size int) FaceSet {
	var faces FaceSet
	for i := range faces {
		faces[i] = NewImage(size, size)
	}
	return faces
}

// FaceSetFromSlice builds a FaceSet, failing unless exactly six faces are given
func FaceSetFromSlice(faces []*Image) (FaceSet, error) {
	var set FaceSet
	if len(faces) != FaceCount {
		return set, fmt.Errorf("%w, got %d", ErrFaceCount, len(faces))
	}
	copy(set[:], faces)
	return set, nil
}

// Size returns the edge length of the faces
func (fs FaceSet) Size() int {
	if fs[0] == nil {
		return 0
	}
	return fs[0].Width
}

// Validate checks that all six faces are present, square and of equal size
func (fs FaceSet) Validate() error {
	for i, face := range fs {
		if err := face.Validate(); err != nil {
			return fmt.Errorf("face %s: %w", CubeFace(i), err)
		}
		if face.Width != face.Height {
			return fmt.Errorf("face %s is %dx%d: %w", CubeFace(i), face.Width, face.Height, ErrFaceNotSquare)
		}
		if face.Width != fs[0].Width {
			return fmt.Errorf("face %s is %d wide, face %s is %d wide: %w",
				CubeFace(i), face.Width, CubeFace(0), fs[0].Width, ErrFaceSizeMismatch)
		}
	}
	return nil
}
