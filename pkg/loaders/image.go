package loaders

import (
	"bufio"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"  // BMP decoder
	_ "golang.org/x/image/tiff" // TIFF decoder
	_ "golang.org/x/image/webp" // WebP decoder

	"github.com/df07/go-ibl-baker/pkg/core"
)

// LoadImage loads an OpenEXR or LDR image (PNG, JPEG, GIF, BMP, TIFF, WebP)
// as linear float RGB. LDR values are mapped to [0, 1] without any transfer
// function.
func LoadImage(filename string) (*core.Image, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer file.Close()

	r := bufio.NewReader(file)
	if isEXR(filename, r) {
		img, err := DecodeEXR(r)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
		}
		return img, nil
	}

	// Decode image (auto-detects the format from the file header)
	decoded, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}
	return FromImage(decoded), nil
}

// isEXR sniffs the magic number, falling back to the extension
func isEXR(filename string, r *bufio.Reader) bool {
	magic, err := r.Peek(4)
	if err == nil {
		return magic[0] == 0x76 && magic[1] == 0x2f && magic[2] == 0x31 && magic[3] == 0x01
	}
	return strings.EqualFold(filepath.Ext(filename), ".exr")
}

// FromImage converts a decoded image to float RGB, dropping alpha
func FromImage(src image.Image) *core.Image {
	bounds := src.Bounds()
	img := core.NewImage(bounds.Dx(), bounds.Dy())
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			r, g, b, _ := src.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			// RGBA returns uint32 in [0, 65535], convert to [0, 1]
			img.Set(x, y, core.NewVec3(
				float32(r)/65535.0,
				float32(g)/65535.0,
				float32(b)/65535.0,
			))
		}
	}
	return img
}

// SaveEXR writes img to filename as OpenEXR
func SaveEXR(filename string, img *core.Image, opts EXROptions) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}

	w := bufio.NewWriter(file)
	if err := EncodeEXR(w, img, opts); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", filename, err)
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return file.Close()
}

// LoadFaceSet loads six cubemap faces given in +x, -x, +y, -y, +z, -z order
// and validates that they form a cubemap
func LoadFaceSet(paths []string) (core.FaceSet, error) {
	var faces core.FaceSet
	if len(paths) != core.FaceCount {
		return faces, fmt.Errorf("%w, got %d paths", core.ErrFaceCount, len(paths))
	}
	for i, path := range paths {
		img, err := LoadImage(path)
		if err != nil {
			return faces, fmt.Errorf("face %s: %w", core.CubeFace(i), err)
		}
		faces[i] = img
	}
	if err := faces.Validate(); err != nil {
		return faces, err
	}
	return faces, nil
}
