package loaders

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/df07/go-ibl-baker/pkg/core"
)

// testPattern is a 2x2 image: white, red / green, blue
func testPattern() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	img.Set(1, 0, color.RGBA{R: 255, G: 0, B: 0, A: 255})
	img.Set(0, 1, color.RGBA{R: 0, G: 255, B: 0, A: 255})
	img.Set(1, 1, color.RGBA{R: 0, G: 0, B: 255, A: 255})
	return img
}

func assertTestPattern(t *testing.T, img *core.Image) {
	t.Helper()
	require.Equal(t, 2, img.Width)
	require.Equal(t, 2, img.Height)

	const tolerance = 0.01
	expected := map[[2]int]core.Vec3{
		{0, 0}: core.NewVec3(1, 1, 1),
		{1, 0}: core.NewVec3(1, 0, 0),
		{0, 1}: core.NewVec3(0, 1, 0),
		{1, 1}: core.NewVec3(0, 0, 1),
	}
	for xy, want := range expected {
		got := img.At(xy[0], xy[1])
		assert.InDelta(t, want.X, got.X, tolerance, "pixel %v", xy)
		assert.InDelta(t, want.Y, got.Y, tolerance, "pixel %v", xy)
		assert.InDelta(t, want.Z, got.Z, tolerance, "pixel %v", xy)
	}
}

func TestLoadImage_PNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, testPattern()))
	require.NoError(t, f.Close())

	img, err := LoadImage(path)
	require.NoError(t, err)
	assertTestPattern(t, img)
}

func TestLoadImage_BMP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.bmp")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, bmp.Encode(f, testPattern()))
	require.NoError(t, f.Close())

	img, err := LoadImage(path)
	require.NoError(t, err)
	assertTestPattern(t, img)
}

func TestLoadImage_EXR(t *testing.T) {
	// The magic number wins over a misleading extension
	path := filepath.Join(t.TempDir(), "radiance.hdrimage")
	src := gradientImage(6, 3)
	require.NoError(t, SaveEXR(path, src, DefaultEXROptions))

	img, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, img.Pix)
}

func TestLoadImage_Errors(t *testing.T) {
	_, err := LoadImage("nonexistent.png")
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "garbage.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image at all"), 0o644))
	_, err = LoadImage(path)
	assert.Error(t, err)
}

func TestFromImage_Bounds(t *testing.T) {
	// Sub-images keep a non-zero origin
	sub := testPattern().SubImage(image.Rect(1, 1, 2, 2))
	img := FromImage(sub)
	require.Equal(t, 1, img.Width)
	assert.InDelta(t, 1, img.At(0, 0).Z, 1e-6)
	assert.InDelta(t, 0, img.At(0, 0).X, 1e-6)
}
