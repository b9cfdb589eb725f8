package loaders

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/imgio"
	"golang.org/x/sync/errgroup"

	"github.com/df07/go-ibl-baker/pkg/core"
)

// SaveOptions controls how cubemap faces are written
type SaveOptions struct {
	EXR         EXROptions
	Preview     bool // Also write a tonemapped PNG next to every face
	Concurrency int  // Files written at once, <= 0 means unlimited
}

// MipFaceName returns the file name of one face of one mip level,
// e.g. "2mip-z.exr"
func MipFaceName(mip int, face core.CubeFace) string {
	return fmt.Sprintf("%dmip%s.exr", mip, face)
}

// FaceName returns the file name of one face of a plain cubemap, e.g. "+x.exr"
func FaceName(face core.CubeFace) string {
	return face.String() + ".exr"
}

// SaveFaceSet writes the six faces to dir as {face}.exr and returns the
// written paths in face order
func SaveFaceSet(dir string, faces core.FaceSet, opts SaveOptions) ([]string, error) {
	if err := faces.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, core.FaceCount)
	for _, face := range core.Faces() {
		paths[face] = filepath.Join(dir, FaceName(face))
	}
	if err := saveAll(paths, faces[:], opts); err != nil {
		return nil, err
	}
	return paths, nil
}

// SaveMipChain writes every level to dir as {mip}mip{face}.exr and returns
// the written paths, level by level in face order
func SaveMipChain(dir string, levels []core.FaceSet, opts SaveOptions) ([]string, error) {
	for i, faces := range levels {
		if err := faces.Validate(); err != nil {
			return nil, fmt.Errorf("mip %d: %w", i, err)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, 0, len(levels)*core.FaceCount)
	images := make([]*core.Image, 0, len(levels)*core.FaceCount)
	for mip, faces := range levels {
		for _, face := range core.Faces() {
			paths = append(paths, filepath.Join(dir, MipFaceName(mip, face)))
			images = append(images, faces[face])
		}
	}
	if err := saveAll(paths, images, opts); err != nil {
		return nil, err
	}
	return paths, nil
}

func saveAll(paths []string, images []*core.Image, opts SaveOptions) error {
	var g errgroup.Group
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}
	for i := range paths {
		path, img := paths[i], images[i]
		g.Go(func() error {
			if err := SaveEXR(path, img, opts.EXR); err != nil {
				return err
			}
			if opts.Preview {
				return SavePreview(PreviewPath(path), img)
			}
			return nil
		})
	}
	return g.Wait()
}

// PreviewPath swaps the extension of an image path for .png
func PreviewPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
}

// Tonemap maps HDR values to 8-bit with the Reinhard operator. The result
// is still linear; SavePreview applies the display gamma.
func Tonemap(img *core.Image) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			c := img.At(x, y)
			out.SetRGBA(x, y, color.RGBA{
				R: reinhard(c.X),
				G: reinhard(c.Y),
				B: reinhard(c.Z),
				A: 255,
			})
		}
	}
	return out
}

func reinhard(v float32) uint8 {
	// NaN fails this comparison too
	if !(v > 0) {
		return 0
	}
	if v > 1e30 {
		return 255
	}
	return uint8(v/(1+v)*255 + 0.5)
}

// SavePreview writes a tonemapped, gamma corrected PNG of img
func SavePreview(path string, img *core.Image) error {
	if err := img.Validate(); err != nil {
		return err
	}
	preview := adjust.Gamma(Tonemap(img), 2.2)
	if err := imgio.Save(path, preview, imgio.PNGEncoder()); err != nil {
		return fmt.Errorf("failed to save preview %s: %w", path, err)
	}
	return nil
}
