package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-ibl-baker/pkg/core"
	"github.com/df07/go-ibl-baker/pkg/loaders"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bake.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 256, cfg.Prefilter.FaceSize)
	assert.Equal(t, uint32(1024), cfg.Prefilter.SampleCount)
	assert.Equal(t, "wrap", cfg.Prefilter.Seam)
	assert.Equal(t, 3, cfg.SH.Bands)
	assert.Equal(t, "none", cfg.SH.Normalize)
	assert.Equal(t, "bin", cfg.SH.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[prefilter]
face_size = 512
seam = "clamp"
compression = "none"

[sh]
bands = 5
normalize = "orthonormal"
irradiance = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Prefilter.FaceSize)
	assert.Equal(t, "clamp", cfg.Prefilter.Seam)
	// Keys absent from the file keep their defaults
	assert.Equal(t, uint32(1024), cfg.Prefilter.SampleCount)
	assert.Equal(t, "bin", cfg.SH.Format)
	assert.Equal(t, 5, cfg.SH.Bands)
	assert.True(t, cfg.SH.Irradiance)
	require.NoError(t, cfg.Validate())

	opts, err := cfg.Prefilter.EXROptions()
	require.NoError(t, err)
	assert.Equal(t, loaders.EXRCompressionNone, opts.Compression)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "[prefilter]\nface_sise = 64\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "face_sise")

	_, err = Load(writeConfig(t, "[prefilter\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		is     error
	}{
		{"face size", func(c *Config) { c.Prefilter.FaceSize = 100 }, core.ErrFaceSizeNotPowerOfTwo},
		{"zero face size", func(c *Config) { c.Prefilter.FaceSize = 0 }, core.ErrFaceSizeNotPowerOfTwo},
		{"bands", func(c *Config) { c.SH.Bands = 0 }, core.ErrInvalidBands},
		{"seam", func(c *Config) { c.Prefilter.Seam = "mirror" }, nil},
		{"workers", func(c *Config) { c.Prefilter.Workers = -1 }, nil},
		{"compression", func(c *Config) { c.Prefilter.Compression = "piz" }, nil},
		{"normalize", func(c *Config) { c.SH.Normalize = "unit" }, nil},
		{"format", func(c *Config) { c.SH.Format = "json" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestValidate_SectionsIndependent(t *testing.T) {
	cfg := Default()
	cfg.Prefilter.FaceSize = 3
	assert.Error(t, cfg.Prefilter.Validate())
	assert.NoError(t, cfg.SH.Validate())
}

func TestValidateConvert_AnyPositiveSize(t *testing.T) {
	cfg := Default()
	cfg.Prefilter.FaceSize = 100
	assert.ErrorIs(t, cfg.Prefilter.Validate(), core.ErrFaceSizeNotPowerOfTwo)
	assert.NoError(t, cfg.Prefilter.ValidateConvert())

	cfg.Prefilter.FaceSize = 0
	assert.ErrorIs(t, cfg.Prefilter.ValidateConvert(), core.ErrEmptyImage)

	cfg.Prefilter.FaceSize = 3
	cfg.Prefilter.Seam = "mirror"
	assert.Error(t, cfg.Prefilter.ValidateConvert())
}

func TestLoad_Half(t *testing.T) {
	cfg, err := Load(writeConfig(t, "[prefilter]\nhalf = true\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Prefilter.Half)

	opts, err := cfg.Prefilter.EXROptions()
	require.NoError(t, err)
	assert.True(t, opts.Half)
	assert.Equal(t, loaders.EXRCompressionZIP, opts.Compression)

	assert.False(t, Default().Prefilter.Half)
}
