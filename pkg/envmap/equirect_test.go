package envmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-ibl-baker/pkg/core"
)

// gradientImage stores the column index in red and the row index in green
func gradientImage(w, h int) *core.Image {
	img := core.NewImage(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, core.NewVec3(float32(x), float32(y), 1))
		}
	}
	return img
}

func TestDirectionToUV(t *testing.T) {
	tests := []struct {
		name string
		dir  core.Vec3
		uv   core.Vec2
	}{
		{"+x", core.NewVec3(1, 0, 0), core.NewVec2(0.5, 0.5)},
		{"+z", core.NewVec3(0, 0, 1), core.NewVec2(0.75, 0.5)},
		{"-z", core.NewVec3(0, 0, -1), core.NewVec2(0.25, 0.5)},
		{"up", core.NewVec3(0, 1, 0), core.NewVec2(0.5, 1)},
		{"down", core.NewVec3(0, -1, 0), core.NewVec2(0.5, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uv := DirectionToUV(tt.dir)
			assert.InDelta(t, tt.uv.X, uv.X, 1e-6)
			assert.InDelta(t, tt.uv.Y, uv.Y, 1e-6)
		})
	}
}

func TestUVToDirection_RoundTrip(t *testing.T) {
	for _, dir := range []core.Vec3{
		core.NewVec3(1, 0, 0),
		core.NewVec3(0.3, 0.4, -0.5).Normalize(),
		core.NewVec3(-0.7, -0.1, 0.2).Normalize(),
		core.NewVec3(0, 0.9, 0.1).Normalize(),
	} {
		back := UVToDirection(DirectionToUV(dir))
		assert.InDelta(t, 0, back.Subtract(dir).Length(), 1e-5, "dir %v", dir)
	}
}

func TestEquirectSampler_Constant(t *testing.T) {
	gray := core.NewVec3(0.5, 0.5, 0.5)
	sampler, err := NewEquirectSampler(core.NewUniformImage(256, 128, gray), SeamWrap)
	require.NoError(t, err)

	for i := uint32(0); i < 64; i++ {
		xi := core.Hammersley(i, 64)
		dir := UVToDirection(xi)
		c := sampler.Sample(dir)
		assert.InDelta(t, 0.5, c.X, 1e-6)
		assert.InDelta(t, 0.5, c.Y, 1e-6)
		assert.InDelta(t, 0.5, c.Z, 1e-6)
	}
}

func TestEquirectSampler_TexelCenters(t *testing.T) {
	img := gradientImage(8, 4)
	sampler, err := NewEquirectSampler(img, SeamClamp)
	require.NoError(t, err)

	// The center of texel (x, y) is returned exactly
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			uv := core.NewVec2((float32(x)+0.5)/8, 1-(float32(y)+0.5)/4)
			c := sampler.SampleUV(uv)
			assert.InDelta(t, float32(x), c.X, 1e-5)
			assert.InDelta(t, float32(y), c.Y, 1e-5)
		}
	}

	// Halfway between two texel centers is their average
	c := sampler.SampleUV(core.NewVec2(2.0/8, 1-0.5/4))
	assert.InDelta(t, 1.5, c.X, 1e-5)
}

func TestEquirectSampler_Seam(t *testing.T) {
	img := gradientImage(8, 4)
	wrapSampler, err := NewEquirectSampler(img, SeamWrap)
	require.NoError(t, err)
	clampSampler, err := NewEquirectSampler(img, SeamClamp)
	require.NoError(t, err)

	// u = 0 sits halfway between the last and the first column
	uv := core.NewVec2(0, 0.5)
	assert.InDelta(t, 3.5, wrapSampler.SampleUV(uv).X, 1e-5)
	assert.InDelta(t, 0, clampSampler.SampleUV(uv).X, 1e-5)

	// Vertical edges always clamp
	top := wrapSampler.SampleUV(core.NewVec2(0.5, 1))
	bottom := wrapSampler.SampleUV(core.NewVec2(0.5, 0))
	assert.InDelta(t, 0, top.Y, 1e-5)
	assert.InDelta(t, 3, bottom.Y, 1e-5)
}

func TestEquirectSampler_UpIsTopRow(t *testing.T) {
	img := core.NewImage(16, 8)
	for x := 0; x < 16; x++ {
		img.Set(x, 0, core.NewVec3(1, 0, 0))
		img.Set(x, 7, core.NewVec3(0, 0, 1))
	}
	sampler, err := NewEquirectSampler(img, SeamWrap)
	require.NoError(t, err)

	assert.InDelta(t, 1, sampler.Sample(core.NewVec3(0, 1, 0)).X, 1e-6)
	assert.InDelta(t, 1, sampler.Sample(core.NewVec3(0, -1, 0)).Z, 1e-6)
}

func TestNewEquirectSampler_Invalid(t *testing.T) {
	_, err := NewEquirectSampler(&core.Image{}, SeamWrap)
	assert.ErrorIs(t, err, core.ErrEmptyImage)

	_, err = NewEquirectSampler(&core.Image{Width: 2, Height: 1, Pix: []float32{1}}, SeamWrap)
	assert.ErrorIs(t, err, core.ErrMalformedImage)
}

func TestParseSeamMode(t *testing.T) {
	for _, mode := range []SeamMode{SeamWrap, SeamClamp} {
		parsed, err := ParseSeamMode(mode.String())
		assert.NoError(t, err)
		assert.Equal(t, mode, parsed)
	}
	_, err := ParseSeamMode("mirror")
	assert.Error(t, err)
}
